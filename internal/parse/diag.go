package parse

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/breadchris/crange/internal/cursor"
)

const maxSnippet = 24

// collectDiagnostics reports tree-sitter's error recovery as compiler-style
// diagnostics. Nodes the parser had to invent become "expected" errors with
// a fix-it inserting the missing token; skipped input becomes a syntax error
// over its range.
func collectDiagnostics(root *sitter.Node, src []byte, path string) []cursor.Diagnostic {
	var diags []cursor.Diagnostic
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch {
		case n.IsMissing():
			at := position(n.StartPoint(), n.StartByte())
			d := cursor.Diagnostic{
				Severity: cursor.Error,
				File:     path,
				Location: at,
				Ranges:   []cursor.Extent{{Start: at, End: at}},
			}
			if n.IsNamed() {
				d.Spelling = "expected " + n.Type()
			} else {
				d.Spelling = fmt.Sprintf("expected '%s'", n.Type())
				d.FixIts = []cursor.FixIt{{Range: cursor.Extent{Start: at, End: at}, Value: n.Type()}}
			}
			diags = append(diags, d)
			return
		case n.IsError():
			ext := extentOf(n)
			diags = append(diags, cursor.Diagnostic{
				Severity: cursor.Error,
				File:     path,
				Location: ext.Start,
				Spelling: fmt.Sprintf("unexpected %q", snippet(n.Content(src))),
				Ranges:   []cursor.Extent{ext},
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return diags
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxSnippet {
		s = s[:maxSnippet] + "..."
	}
	return s
}
