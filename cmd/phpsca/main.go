// File: cmd/phpsca/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/phpsca/cmd"
)

// Exit statuses.
const (
	exitOK       = 0
	exitError    = 1
	exitFindings = 2
)

// osExit is replaced in tests.
var osExit = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := exitCode(cmd.Execute(ctx))
	stop()
	osExit(code)
}

// exitCode maps the result of a command run to a process exit status.
// cmd.Execute has already logged the error.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, cmd.ErrFindingsReported):
		return exitFindings
	default:
		return exitError
	}
}
