package parse

import (
	"path/filepath"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/breadchris/crange/internal/cursor"
)

// symbol is a declared name visible in some scope.
type symbol struct {
	usr      string
	typeKind string
	result   string // function return type kind
	record   string // aggregate USR of the declared object's type
	isType   bool   // typedef, tag or class name
	static   bool
}

// scope holds the names declared in one lexical region. Named scopes
// (namespaces, classes) contribute to the USR of what they contain.
type scope struct {
	usr      string // "" for blocks and the file scope
	qual     string // "ns::Cls::" for named scopes
	record   bool
	ordinary map[string]symbol
	tags     map[string]symbol
}

func newScope(usr, qual string) *scope {
	return &scope{
		usr:      usr,
		qual:     qual,
		ordinary: make(map[string]symbol),
		tags:     make(map[string]symbol),
	}
}

// function tracks the function body being lowered, for local USRs and labels.
type function struct {
	name   string
	labels map[string]symbol
}

// nameSpace selects which table a pending reference resolves against.
type nameSpace int

const (
	ordinaryNS nameSpace = iota
	tagNS
	labelNS
	memberNS
	qualifiedNS
)

// fixup is a reference that could not be resolved at the point of use
// because the name may be declared later at file scope (or later in the
// function, for labels).
type fixup struct {
	node   int32
	call   int32 // enclosing CALL_EXPR to patch along with node, or -1
	name   string
	ns     nameSpace
	callee bool // an unresolved callee implicitly declares a function
	labels map[string]symbol
	record string
	scopes []*scope // named scopes visible at the point of use, innermost first
}

// pushScope enters a block or named scope.
func (b *builder) pushScope(s *scope) { b.scopes = append(b.scopes, s) }

func (b *builder) popScope() { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *builder) top() *scope { return b.scopes[len(b.scopes)-1] }

// named returns the innermost namespace or class scope; the file scope when
// there is none.
func (b *builder) named() *scope {
	for i := len(b.scopes) - 1; i > 0; i-- {
		if b.scopes[i].usr != "" {
			return b.scopes[i]
		}
	}
	return b.scopes[0]
}

func (b *builder) atFileScope() bool {
	return len(b.fns) == 0
}

// usrPrefix is the USR every named entity in the current named scope starts with.
func (b *builder) usrPrefix() string {
	if s := b.named(); s.usr != "" {
		return s.usr
	}
	return b.lang.USRPrefix
}

// fileUSR prefixes entities with internal linkage with the file name, the way
// clang distinguishes statics of different translation units.
func (b *builder) fileUSR() string {
	return b.lang.USRPrefix + filepath.Base(b.u.path)
}

// localUSR names a block-scope entity: file, offset and enclosing function.
func (b *builder) localUSR(offset int, name string) string {
	fn := ""
	if len(b.fns) > 0 {
		fn = b.fns[len(b.fns)-1].name
	}
	return b.fileUSR() + "@" + strconv.Itoa(offset) + "@F@" + fn + "@" + name
}

func (b *builder) anonUSR(n *sitter.Node) string {
	return b.usrPrefix() + "@SA@" + strconv.Itoa(int(n.StartByte()))
}

// declare binds name in s and records the node as a declaration (and a
// definition when isDef) of usr.
func (b *builder) declare(s *scope, ns nameSpace, name string, sym symbol, idx int32, isDef bool) {
	if name != "" {
		switch ns {
		case tagNS:
			s.tags[name] = sym
		default:
			s.ordinary[name] = sym
		}
		if s.qual != "" {
			b.qualified[s.qual+name] = sym
		}
	}
	b.register(sym.usr, idx, isDef)
}

// register records idx as a declaration of usr, and as its definition when
// isDef. The first of each wins.
func (b *builder) register(usr string, idx int32, isDef bool) {
	if usr == "" || idx < 0 {
		return
	}
	if _, ok := b.u.decls[usr]; !ok {
		b.u.decls[usr] = idx
	}
	if isDef {
		if _, ok := b.u.defs[usr]; !ok {
			b.u.defs[usr] = idx
		}
	}
}

func (b *builder) lookup(name string) (symbol, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if sym, ok := b.scopes[i].ordinary[name]; ok {
			return sym, true
		}
	}
	return symbol{}, false
}

func (b *builder) lookupTag(name string) (symbol, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if sym, ok := b.scopes[i].tags[name]; ok {
			return sym, true
		}
	}
	return symbol{}, false
}

// lookupType resolves a type_identifier: typedef names first, then (in C++)
// class and enum names, which need no tag keyword there.
func (b *builder) lookupType(name string) (symbol, bool) {
	if sym, ok := b.lookup(name); ok && sym.isType {
		return sym, true
	}
	if b.cpp {
		return b.lookupTag(name)
	}
	return symbol{}, false
}

// namedChain returns the named scopes currently open, innermost first,
// ending with the file scope.
func (b *builder) namedChain() []*scope {
	var chain []*scope
	for i := len(b.scopes) - 1; i > 0; i-- {
		if b.scopes[i].usr != "" {
			chain = append(chain, b.scopes[i])
		}
	}
	return append(chain, b.scopes[0])
}

// lookupMember finds field or method name of record, falling back to the only
// member of that name in the unit when the record is unknown.
func (b *builder) lookupMember(record, name string) (symbol, bool) {
	if s, ok := b.records[record]; ok {
		if sym, ok := s.ordinary[name]; ok {
			return sym, true
		}
	}
	if cands := b.members[name]; len(cands) == 1 {
		return cands[0], true
	}
	return symbol{}, false
}

// implicit creates a file-less declaration for an entity the unit uses but
// never declares, like clang's implicit function declarations.
func (b *builder) implicit(kind cursor.Kind, name, usr, typeKind string) {
	if _, ok := b.u.decls[usr]; ok {
		return
	}
	idx := b.add(-1, node{
		kind:      kind,
		typeKind:  typeKind,
		spelling:  name,
		display:   name,
		usr:       usr,
		synthetic: true,
	})
	b.u.decls[usr] = idx
}

// resolve settles every pending reference once the whole unit is known.
func (b *builder) resolve() {
	for _, f := range b.fixups {
		var (
			sym symbol
			ok  bool
		)
		switch f.ns {
		case ordinaryNS:
			for _, s := range f.scopes {
				if sym, ok = s.ordinary[f.name]; ok {
					break
				}
			}
			if !ok && f.callee {
				sym = symbol{usr: b.lang.USRPrefix + "@F@" + f.name, typeKind: noProtoType, result: intType}
				b.implicit(cursor.FunctionDecl, f.name, sym.usr, sym.typeKind)
				ok = true
			}
		case tagNS:
			for _, s := range f.scopes {
				if sym, ok = s.tags[f.name]; ok {
					break
				}
			}
		case labelNS:
			sym, ok = f.labels[f.name]
		case memberNS:
			sym, ok = b.lookupMember(f.record, f.name)
		case qualifiedNS:
			sym, ok = b.qualified[f.name]
		}
		if !ok {
			continue
		}
		b.link(f.node, sym)
		if f.call >= 0 {
			b.linkCall(f.call, sym)
		}
	}
	b.fixups = nil
}

// link points a reference node at sym.
func (b *builder) link(idx int32, sym symbol) {
	n := &b.u.nodes[idx]
	n.ref = sym.usr
	if sym.typeKind != "" && (n.typeKind == "" || n.typeKind == invalidType) {
		n.typeKind = sym.typeKind
	}
}

// linkCall points a CALL_EXPR at the called function and types it with the
// function's result.
func (b *builder) linkCall(idx int32, sym symbol) {
	n := &b.u.nodes[idx]
	n.ref = sym.usr
	if sym.result != "" {
		n.typeKind = sym.result
	} else if n.typeKind == "" {
		n.typeKind = sym.typeKind
	}
}

// reference resolves name now when a visible declaration exists, and defers
// it otherwise.
func (b *builder) reference(idx, call int32, ns nameSpace, name string, callee bool) {
	var (
		sym symbol
		ok  bool
	)
	switch ns {
	case ordinaryNS:
		if sym, ok = b.macros[name]; !ok {
			sym, ok = b.lookup(name)
		}
	case tagNS:
		sym, ok = b.lookupTag(name)
	case qualifiedNS:
		if sym, ok = b.qualified[b.named().qual+name]; !ok {
			sym, ok = b.qualified[name]
		}
	}
	if ok {
		b.link(idx, sym)
		if call >= 0 {
			b.linkCall(call, sym)
		}
		return
	}
	b.fixups = append(b.fixups, fixup{
		node:   idx,
		call:   call,
		name:   name,
		ns:     ns,
		callee: callee,
		scopes: b.namedChain(),
	})
}
