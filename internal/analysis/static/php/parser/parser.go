// Package parser turns PHP source into the engine's closed syntax tree using
// the tree-sitter PHP grammar.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
)

// ErrSyntax is wrapped by every SyntaxError.
var ErrSyntax = errors.New("php syntax error")

// SyntaxError reports the first malformed construct found in the input.
type SyntaxError struct {
	Location LocationInfo
	// Near is the source text of the offending node, truncated.
	Near string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s near %q", e.Location, e.Near)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parser converts PHP source into an ast.File. A Parser holds no per-parse
// state and can be shared; each Parse call builds its own tree-sitter parser.
type Parser struct {
	logger *zap.Logger
}

// New creates a Parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logger.Named("php_parser")}
}

// Parse parses src. It fails with a *SyntaxError when the tree contains any
// ERROR or MISSING node; no partial tree is returned in that case.
func (p *Parser) Parse(ctx context.Context, filename string, src []byte) (*ast.File, error) {
	tsParser := sitter.NewParser()
	tsParser.SetLanguage(php.GetLanguage())

	tree, err := tsParser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		bad := firstErrorNode(root)
		if bad == nil {
			bad = root
		}
		synErr := &SyntaxError{
			Location: FormatLocation(filename, bad, src),
			Near:     truncate(NodeContent(bad, src), 40),
		}
		p.logger.Debug("Rejected malformed input", zap.String("file", filename), zap.Error(synErr))
		return nil, synErr
	}

	c := &converter{src: src}
	file := &ast.File{Name: filename, Stmts: c.stmtList(root)}
	p.logger.Debug("Parsed file",
		zap.String("file", filename),
		zap.Int("statements", len(file.Stmts)),
	)
	return file, nil
}

// firstErrorNode returns the first ERROR or MISSING node in document order.
func firstErrorNode(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstErrorNode(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
