// Package parse turns C and C++ sources into cursor trees using tree-sitter.
//
// The tree-sitter concrete syntax tree is lowered into an arena of cursors
// named after libclang's cursor kinds. Declarations get clang-style USRs and
// every reference is resolved by lexical scope to the USR of what it names,
// so definition/reference linkage survives as plain strings.
package parse

import (
	"context"
	"fmt"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/breadchris/crange/internal/cursor"
	"github.com/breadchris/crange/internal/lang"
)

var unitSeq atomic.Uint64

// Unit is one parsed translation unit. It owns every cursor reachable from
// Root; cursors stay valid for the lifetime of the Unit.
type Unit struct {
	id    uint64
	path  string
	lang  *lang.Language
	nodes []node
	decls map[string]int32 // USR -> first declaration
	defs  map[string]int32 // USR -> definition
	diags []cursor.Diagnostic
}

type node struct {
	kind      cursor.Kind
	typeKind  string
	spelling  string
	display   string
	usr       string
	ref       string
	loc       cursor.Position
	ext       cursor.Extent
	isDef     bool
	isStatic  bool
	synthetic bool
	rule      typeRule
	children  []int32
}

// Parse parses source as a single translation unit named filePath.
// The parser must be created for l.
func Parse(ctx context.Context, l *lang.Language, parser *sitter.Parser, source []byte, filePath string) (*Unit, error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	u := &Unit{
		id:    unitSeq.Add(1),
		path:  filePath,
		lang:  l,
		decls: make(map[string]int32),
		defs:  make(map[string]int32),
	}
	root := tree.RootNode()
	newBuilder(u, source).build(root)
	u.diags = collectDiagnostics(root, source, filePath)
	return u, nil
}

// Path returns the file name the unit was parsed as.
func (u *Unit) Path() string { return u.path }

// Language returns the grammar the unit was parsed with.
func (u *Unit) Language() *lang.Language { return u.lang }

// Root returns the translation-unit cursor. It has no file of its own.
func (u *Unit) Root() cursor.Cursor { return Cursor{u: u, i: 0} }

// Diagnostics returns syntax problems found while parsing.
func (u *Unit) Diagnostics() []cursor.Diagnostic { return u.diags }

// Len returns the number of cursors in the unit, synthesized ones included.
func (u *Unit) Len() int { return len(u.nodes) }

// Cursor is a handle to one node of a Unit. The zero value is not usable.
type Cursor struct {
	u *Unit
	i int32
}

var (
	_ cursor.Cursor  = Cursor{}
	_ cursor.Handler = Cursor{}
)

func (c Cursor) n() *node { return &c.u.nodes[c.i] }

func (c Cursor) File() (string, bool) {
	if c.n().synthetic {
		return "", false
	}
	return c.u.path, true
}

func (c Cursor) Location() cursor.Position { return c.n().loc }
func (c Cursor) Extent() cursor.Extent     { return c.n().ext }
func (c Cursor) Kind() cursor.Kind         { return c.n().kind }
func (c Cursor) TypeKind() string          { return c.n().typeKind }
func (c Cursor) Spelling() string          { return c.n().spelling }
func (c Cursor) DisplayName() string       { return c.n().display }
func (c Cursor) IsDefinition() bool        { return c.n().isDef }
func (c Cursor) IsStaticMethod() bool      { return c.n().isStatic }
func (c Cursor) USR() string               { return c.n().usr }

// Definition returns the definition of the entity the cursor declares or
// refers to, when this unit contains one.
func (c Cursor) Definition() (cursor.Cursor, bool) {
	key := c.n().usr
	if key == "" {
		key = c.n().ref
	}
	if key == "" {
		return nil, false
	}
	idx, ok := c.u.defs[key]
	if !ok {
		return nil, false
	}
	return Cursor{u: c.u, i: idx}, true
}

// Referenced returns the declaration the cursor names. A declaration
// references itself.
func (c Cursor) Referenced() (cursor.Cursor, bool) {
	n := c.n()
	if n.usr != "" {
		return c, true
	}
	if n.ref == "" {
		return nil, false
	}
	idx, ok := c.u.decls[n.ref]
	if !ok {
		return nil, false
	}
	return Cursor{u: c.u, i: idx}, true
}

func (c Cursor) Children() []cursor.Cursor {
	kids := c.n().children
	if len(kids) == 0 {
		return nil
	}
	out := make([]cursor.Cursor, len(kids))
	for i, k := range kids {
		out[i] = Cursor{u: c.u, i: k}
	}
	return out
}

func (c Cursor) Equal(other cursor.Cursor) bool {
	o, ok := other.(Cursor)
	return ok && o.u == c.u && o.i == c.i
}

func (c Cursor) Handle() cursor.Handle {
	return cursor.Handle{Unit: c.u.id, Node: uint64(c.i)}
}
