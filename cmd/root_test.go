// File: cmd/root_test.go
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/phpsca/internal/config"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "phpsca version "+Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "phpsca finds tainted data flows into dangerous PHP calls.")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCommand()
	assert.NotNil(t, findSubcommand(root, "analyze"))
	assert.NotNil(t, findSubcommand(root, "version"))
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "phpsca "+Version)
}

func TestRootCmd_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phpsca.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  concurrency: 0\n"), 0o600))

	_, err := executeCommand(t, "--config", path, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
	assert.Contains(t, err.Error(), "scan.concurrency must be a positive integer")
}

func TestRootCmd_UnreadableConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phpsca.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [unclosed\n"), 0o600))

	_, err := executeCommand(t, "--config", path, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.EqualError(t, err, "configuration not found in context")

	cfg := config.NewDefaultConfig()
	ctx := context.WithValue(context.Background(), configKey, config.Interface(cfg))
	got, err := getConfigFromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
