package parser

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
)

// LocationInfo holds the location and line snippet of a node.
type LocationInfo struct {
	File    string
	Line    int
	Column  int
	Snippet string
}

func (l LocationInfo) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// NodeContent extracts the source text of a node.
func NodeContent(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

// FormatLocation builds a LocationInfo for a node, using 1-based line and column.
func FormatLocation(filename string, node *sitter.Node, source []byte) LocationInfo {
	start := node.StartPoint()
	startByte := int(node.StartByte())
	return LocationInfo{
		File:    filename,
		Line:    int(start.Row) + 1,
		Column:  int(start.Column) + 1,
		Snippet: string(source[findLineStart(source, startByte):findLineEnd(source, startByte)]),
	}
}

func position(node *sitter.Node) ast.Pos {
	start := node.StartPoint()
	return ast.Pos{
		Line:   int(start.Row) + 1,
		Column: int(start.Column) + 1,
		Offset: int(node.StartByte()),
	}
}

func endLine(node *sitter.Node) int {
	return int(node.EndPoint().Row) + 1
}

func findLineStart(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	for i := offset - 1; i >= 0; i-- {
		if source[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

func findLineEnd(source []byte, offset int) int {
	for i := offset; i < len(source); i++ {
		if source[i] == '\n' {
			return i
		}
	}
	return len(source)
}
