package parse

import (
	"regexp"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/breadchris/crange/internal/cursor"
	"github.com/breadchris/crange/internal/lang"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// builder lowers one tree-sitter tree into the arena of a Unit.
type builder struct {
	u    *Unit
	src  []byte
	lang *lang.Language
	cpp  bool

	scopes    []*scope
	fns       []*function
	qualified map[string]symbol // "ns::Cls::name" -> symbol
	byName    map[string]*scope // "ns::Cls" -> its scope, for out-of-line members
	records   map[string]*scope // record USR -> member scope
	members   map[string][]symbol
	macros    map[string]symbol
	fixups    []fixup
}

func newBuilder(u *Unit, src []byte) *builder {
	return &builder{
		u:         u,
		src:       src,
		lang:      u.lang,
		cpp:       u.lang.CPlusPlus,
		scopes:    []*scope{newScope("", "")},
		qualified: make(map[string]symbol),
		byName:    make(map[string]*scope),
		records:   make(map[string]*scope),
		members:   make(map[string][]symbol),
		macros:    make(map[string]symbol),
	}
}

func (b *builder) build(root *sitter.Node) {
	tu := b.newNode(cursor.TranslationUnitKind, root)
	tu.spelling = b.u.path
	tu.display = b.u.path
	tu.synthetic = true
	idx := b.add(-1, tu)
	b.visitChildren(root, idx)
	b.resolve()
	b.deriveTypes()
}

// add appends n to the arena as the last child of parent. A negative parent
// leaves the node detached.
func (b *builder) add(parent int32, n node) int32 {
	idx := int32(len(b.u.nodes))
	b.u.nodes = append(b.u.nodes, n)
	if parent >= 0 {
		p := &b.u.nodes[parent]
		p.children = append(p.children, idx)
	}
	return idx
}

func (b *builder) text(n *sitter.Node) string {
	return n.Content(b.src)
}

func (b *builder) newNode(kind cursor.Kind, ts *sitter.Node) node {
	ext := extentOf(ts)
	return node{kind: kind, typeKind: invalidType, loc: ext.Start, ext: ext}
}

func position(p sitter.Point, offset uint32) cursor.Position {
	return cursor.Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Offset: int(offset)}
}

func extentOf(n *sitter.Node) cursor.Extent {
	return cursor.Extent{
		Start: position(n.StartPoint(), n.StartByte()),
		End:   position(n.EndPoint(), n.EndByte()),
	}
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil &&
		a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (b *builder) visitChildren(ts *sitter.Node, parent int32) {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		b.visit(ts.NamedChild(i), parent)
	}
}

// ignored nodes contribute no cursors and hide their subtrees.
var ignored = map[string]bool{
	"comment":                 true,
	"access_specifier":        true,
	"attribute_specifier":     true,
	"attribute_declaration":   true,
	"preproc_call":            true,
	"preproc_params":          true,
	"parameter_list":          true,
	"template_parameter_list": true,
	"using_declaration":       true,
	"friend_declaration":      true,
	"field_identifier":        true,
	"namespace_identifier":    true,
	"statement_identifier":    true,
	"ms_declspec_modifier":    true,
	"gnu_asm_expression":      true,
}

var statementKinds = map[string]cursor.Kind{
	"return_statement":   cursor.ReturnStmt,
	"if_statement":       cursor.IfStmt,
	"while_statement":    cursor.WhileStmt,
	"do_statement":       cursor.DoStmt,
	"for_statement":      cursor.ForStmt,
	"for_range_loop":     cursor.ForRangeStmt,
	"switch_statement":   cursor.SwitchStmt,
	"case_statement":     cursor.CaseStmt,
	"break_statement":    cursor.BreakStmt,
	"continue_statement": cursor.ContinueStmt,
	"try_statement":      cursor.UnexposedStmt,
	"throw_statement":    cursor.UnexposedStmt,
}

func (b *builder) visit(ts *sitter.Node, parent int32) {
	if ts == nil || ts.IsMissing() || !ts.IsNamed() {
		return
	}
	t := ts.Type()
	if ignored[t] {
		return
	}
	switch t {
	case "function_definition":
		b.functionDefinition(ts, parent)
	case "declaration":
		b.declaration(ts, parent)
	case "field_declaration":
		b.fieldDeclaration(ts, parent)
	case "type_definition":
		b.typeDefinition(ts, parent)
	case "struct_specifier", "union_specifier", "enum_specifier", "class_specifier":
		if ts.ChildByFieldName("body") != nil {
			b.tagDecl(ts, parent)
		} else {
			b.typeRef(ts, parent)
		}
	case "namespace_definition":
		b.namespace(ts, parent)
	case "preproc_include":
		b.include(ts, parent)
	case "preproc_def", "preproc_function_def":
		b.macro(ts, parent)
	case "preproc_if", "preproc_ifdef", "preproc_elif", "preproc_elifdef", "preproc_else":
		b.conditional(ts, parent)
	case "compound_statement":
		b.compound(ts, parent)
	case "labeled_statement":
		b.label(ts, parent)
	case "goto_statement":
		b.gotoStmt(ts, parent)
	case "expression_statement":
		if ts.NamedChildCount() == 0 {
			b.add(parent, b.newNode(cursor.NullStmt, ts))
			return
		}
		b.visitChildren(ts, parent)
	case "call_expression":
		b.call(ts, parent)
	case "identifier":
		b.declRef(ts, parent)
	case "qualified_identifier":
		b.qualifiedRef(ts, parent)
	case "field_expression":
		b.memberRef(ts, parent, -1)
	case "type_identifier", "template_type":
		b.typeRef(ts, parent)
	case "cast_expression":
		b.cast(ts, parent)
	default:
		if b.literal(ts, parent) {
			return
		}
		if k, ok := statementKinds[t]; ok {
			b.statement(ts, parent, k)
			return
		}
		if b.expression(ts, parent) {
			return
		}
		b.visitChildren(ts, parent)
	}
}

// Declarations.

// declaratorTypes are the node types that can sit in a declarator position.
var declaratorTypes = map[string]bool{
	"identifier":                    true,
	"field_identifier":              true,
	"type_identifier":               true,
	"qualified_identifier":          true,
	"destructor_name":               true,
	"operator_name":                 true,
	"template_function":             true,
	"init_declarator":               true,
	"pointer_declarator":            true,
	"array_declarator":              true,
	"function_declarator":           true,
	"parenthesized_declarator":      true,
	"reference_declarator":          true,
	"attributed_declarator":         true,
	"abstract_pointer_declarator":   true,
	"abstract_array_declarator":     true,
	"abstract_function_declarator":  true,
	"abstract_reference_declarator": true,
}

// declarators returns the declarator children of a declaration-like node,
// skipping its type specifier and any in-class default value.
func declarators(n *sitter.Node) []*sitter.Node {
	typ := n.ChildByFieldName("type")
	dv := n.ChildByFieldName("default_value")
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if sameNode(c, typ) || sameNode(c, dv) {
			continue
		}
		if declaratorTypes[c.Type()] {
			out = append(out, c)
		}
	}
	return out
}

// unwrap walks a declarator down to the declared name. It returns the
// type-changing layers passed on the way, outermost first, and the
// initializer when there is one.
func unwrap(d *sitter.Node) (name *sitter.Node, layers []*sitter.Node, value *sitter.Node) {
	for d != nil {
		switch d.Type() {
		case "init_declarator":
			value = d.ChildByFieldName("value")
			d = d.ChildByFieldName("declarator")
		case "pointer_declarator", "array_declarator", "function_declarator",
			"reference_declarator", "parenthesized_declarator", "attributed_declarator",
			"abstract_pointer_declarator", "abstract_array_declarator",
			"abstract_function_declarator", "abstract_reference_declarator":
			layers = append(layers, d)
			d = innerDeclarator(d)
		default:
			return d, layers, value
		}
	}
	return nil, layers, value
}

func innerDeclarator(d *sitter.Node) *sitter.Node {
	if c := d.ChildByFieldName("declarator"); c != nil {
		return c
	}
	for i := 0; i < int(d.NamedChildCount()); i++ {
		if c := d.NamedChild(i); declaratorTypes[c.Type()] {
			return c
		}
	}
	return nil
}

// funcLayer returns the function declarator that makes the declared entity a
// function, or nil when it is an object (possibly a function pointer).
func funcLayer(layers []*sitter.Node) *sitter.Node {
	for i := len(layers) - 1; i >= 0; i-- {
		switch layers[i].Type() {
		case "parenthesized_declarator", "attributed_declarator":
			continue
		case "function_declarator":
			return layers[i]
		}
		return nil
	}
	return nil
}

func (b *builder) hasStorage(ts *sitter.Node, class string) bool {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		c := ts.NamedChild(i)
		if c.Type() == "storage_class_specifier" && strings.TrimSpace(b.text(c)) == class {
			return true
		}
	}
	return false
}

// splitName splits a possibly qualified declarator name into its last
// component and the qualifier before it ("ns::Cls::m" -> "m", "ns::Cls").
func (b *builder) splitName(n *sitter.Node) (name, qualifier string) {
	full := whitespaceRe.ReplaceAllString(b.text(n), "")
	if n.Type() == "template_function" {
		if nn := n.ChildByFieldName("name"); nn != nil {
			full = b.text(nn)
		}
	}
	if i := strings.LastIndex(full, "::"); i >= 0 {
		return full[i+2:], full[:i]
	}
	return full, ""
}

// scopeFor finds the class or namespace scope a qualifier names, relative to
// the current named scope first.
func (b *builder) scopeFor(qualifier string) (*scope, bool) {
	cur := strings.TrimSuffix(b.named().qual, "::")
	if cur != "" {
		if s, ok := b.byName[cur+"::"+qualifier]; ok {
			return s, true
		}
	}
	s, ok := b.byName[qualifier]
	return s, ok
}

func recordName(s *scope) string {
	q := strings.TrimSuffix(s.qual, "::")
	if i := strings.LastIndex(q, "::"); i >= 0 {
		return q[i+2:]
	}
	return q
}

func (b *builder) functionDefinition(ts *sitter.Node, parent int32) {
	d := ts.ChildByFieldName("declarator")
	if d == nil {
		b.visitChildren(ts, parent)
		return
	}
	b.functionDecl(ts, parent, ts.ChildByFieldName("type"), d, ts.ChildByFieldName("body"))
}

// functionDecl lowers a function or method, defined when body is non-nil.
func (b *builder) functionDecl(ts *sitter.Node, parent int32, typ, d, body *sitter.Node) {
	nameNode, layers, _ := unwrap(d)
	if nameNode == nil {
		return
	}
	spelling, qualifier := b.splitName(nameNode)
	owner := b.named()
	if qualifier != "" {
		if s, ok := b.scopeFor(qualifier); ok {
			owner = s
		}
	}
	static := b.hasStorage(ts, "static")

	kind := cursor.FunctionDecl
	switch {
	case owner.record && strings.HasPrefix(spelling, "~"):
		kind = cursor.Destructor
	case owner.record && spelling == recordName(owner):
		kind = cursor.Constructor
	case owner.record:
		kind = cursor.CXXMethod
	}

	var usr string
	switch {
	case static && !owner.record && owner.usr == "":
		usr = b.fileUSR() + "@F@" + spelling
	case owner.usr != "":
		usr = owner.usr + "@F@" + spelling
	default:
		usr = b.lang.USRPrefix + "@F@" + spelling
	}

	dt := b.typeOf(typ, layers)
	if typ == nil && kind != cursor.FunctionDecl {
		dt.result = voidType
	}
	if dt.kind != protoType && dt.kind != noProtoType {
		dt.kind = protoType
	}
	// An out-of-line definition inherits static from the in-class declaration.
	if prev, ok := owner.ordinary[spelling]; ok && prev.usr == usr {
		static = static || prev.static
	}
	sym := symbol{usr: usr, typeKind: dt.kind, result: dt.result, record: dt.record, static: static}

	n := b.newNode(kind, ts)
	n.loc = position(nameNode.StartPoint(), nameNode.StartByte())
	if body == nil && ts.Type() != "function_definition" {
		n.ext.End = position(d.EndPoint(), d.EndByte())
	}
	n.spelling = spelling
	n.usr = usr
	n.typeKind = dt.kind
	n.isDef = body != nil
	n.isStatic = kind == cursor.CXXMethod && static
	fl := funcLayer(layers)
	n.display = spelling + "(" + b.paramTypes(fl) + ")"
	idx := b.add(parent, n)

	b.declare(owner, ordinaryNS, spelling, sym, idx, body != nil)
	if owner.record {
		b.addMember(spelling, sym)
	}
	b.typeRef(typ, idx)

	b.fns = append(b.fns, &function{name: spelling, labels: make(map[string]symbol)})
	pushed := 0
	if qualifier != "" && owner != b.named() {
		b.pushScope(owner)
		pushed++
	}
	b.pushScope(newScope("", ""))
	pushed++
	if fl != nil {
		if params := fl.ChildByFieldName("parameters"); params != nil {
			for i := 0; i < int(params.NamedChildCount()); i++ {
				b.param(params.NamedChild(i), idx, body != nil)
			}
		}
	}
	if init := childOfType(ts, "field_initializer_list"); init != nil {
		b.visitChildren(init, idx)
	}
	if body != nil {
		b.visit(body, idx)
	}
	for ; pushed > 0; pushed-- {
		b.popScope()
	}
	b.fns = b.fns[:len(b.fns)-1]
}

func childOfType(ts *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		if c := ts.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func (b *builder) addMember(name string, sym symbol) {
	for _, m := range b.members[name] {
		if m.usr == sym.usr {
			return
		}
	}
	b.members[name] = append(b.members[name], sym)
}

// paramTypes renders the parameter types of a function declarator the way a
// display name lists them. "(void)" lists nothing.
func (b *builder) paramTypes(fl *sitter.Node) string {
	if fl == nil {
		return ""
	}
	params := fl.ChildByFieldName("parameters")
	if params == nil {
		return ""
	}
	var types []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
			if isVoidParam(b, p) {
				continue
			}
			types = append(types, b.paramType(p))
		case "variadic_parameter", "variadic_parameter_declaration":
			types = append(types, "...")
		}
	}
	return strings.Join(types, ", ")
}

func isVoidParam(b *builder, p *sitter.Node) bool {
	typ := p.ChildByFieldName("type")
	return p.ChildByFieldName("declarator") == nil && typ != nil && b.text(typ) == "void"
}

// paramType is the parameter's text with its name and default value removed.
func (b *builder) paramType(p *sitter.Node) string {
	start, end := p.StartByte(), p.EndByte()
	d := p.ChildByFieldName("declarator")
	if p.ChildByFieldName("default_value") != nil && d != nil {
		end = d.EndByte()
	}
	text := string(b.src[start:end])
	if d != nil {
		if name, _, _ := unwrap(d); name != nil && name.EndByte() <= end {
			text = string(b.src[start:name.StartByte()]) + string(b.src[name.EndByte():end])
		}
	}
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	return strings.ReplaceAll(text, " )", ")")
}

func (b *builder) param(p *sitter.Node, fn int32, isDef bool) {
	if p.Type() != "parameter_declaration" && p.Type() != "optional_parameter_declaration" {
		return
	}
	if isVoidParam(b, p) {
		return
	}
	typ := p.ChildByFieldName("type")
	var (
		name   *sitter.Node
		layers []*sitter.Node
	)
	if d := p.ChildByFieldName("declarator"); d != nil {
		name, layers, _ = unwrap(d)
	}
	dt := b.typeOf(typ, layers)
	// Array and function parameters decay to pointers.
	if dt.kind == constArrayType || dt.kind == incompleteArray {
		dt.kind = pointerType
	}

	n := b.newNode(cursor.ParmDecl, p)
	if name != nil {
		n.spelling = b.text(name)
		n.loc = position(name.StartPoint(), name.StartByte())
		n.usr = b.localUSR(int(p.StartByte()), n.spelling)
	}
	n.display = n.spelling
	n.typeKind = dt.kind
	n.isDef = isDef
	idx := b.add(fn, n)
	b.declare(b.top(), ordinaryNS, n.spelling, symbol{usr: n.usr, typeKind: dt.kind, record: dt.record}, idx, isDef)
	b.typeRef(typ, idx)
	if dv := p.ChildByFieldName("default_value"); dv != nil {
		b.visit(dv, idx)
	}
}

func isTagSpecifier(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "struct_specifier", "union_specifier", "enum_specifier", "class_specifier":
		return true
	}
	return false
}

func (b *builder) declaration(ts *sitter.Node, parent int32) {
	typ := ts.ChildByFieldName("type")
	ds := declarators(ts)

	holder := parent
	if !b.atFileScope() {
		holder = b.add(parent, b.newNode(cursor.DeclStmt, ts))
	}
	if isTagSpecifier(typ) && (typ.ChildByFieldName("body") != nil || len(ds) == 0) {
		b.tagDecl(typ, holder)
	}
	for _, d := range ds {
		name, layers, value := unwrap(d)
		if name == nil {
			continue
		}
		if funcLayer(layers) != nil {
			b.functionDecl(ts, holder, typ, d, nil)
			continue
		}
		b.variable(ts, holder, typ, d, name, layers, value)
	}
}

// variable lowers one declarator of an object declaration.
func (b *builder) variable(ts *sitter.Node, parent int32, typ, d, nameNode *sitter.Node, layers []*sitter.Node, value *sitter.Node) {
	spelling, qualifier := b.splitName(nameNode)
	owner := b.top()
	if qualifier != "" {
		if s, ok := b.scopeFor(qualifier); ok {
			owner = s
		}
	}
	static := b.hasStorage(ts, "static")
	extern := b.hasStorage(ts, "extern")

	var usr string
	switch {
	case !b.atFileScope() && !extern:
		usr = b.localUSR(int(ts.StartByte()), spelling)
	case static && owner.usr == "":
		usr = b.fileUSR() + "@" + spelling
	case owner.usr != "":
		usr = owner.usr + "@" + spelling
	default:
		usr = b.lang.USRPrefix + "@" + spelling
	}
	isDef := !extern || value != nil
	dt := b.typeOf(typ, layers)

	n := b.newNode(cursor.VarDecl, ts)
	n.loc = position(nameNode.StartPoint(), nameNode.StartByte())
	n.ext.End = position(d.EndPoint(), d.EndByte())
	n.spelling = spelling
	n.display = spelling
	n.usr = usr
	n.typeKind = dt.kind
	n.isDef = isDef
	idx := b.add(parent, n)

	b.declare(owner, ordinaryNS, spelling, symbol{usr: usr, typeKind: dt.kind, record: dt.record, static: static}, idx, isDef)
	if !isTagSpecifier(typ) || typ.ChildByFieldName("body") == nil {
		b.typeRef(typ, idx)
	}
	if value != nil {
		b.visit(value, idx)
	}
}

func (b *builder) fieldDeclaration(ts *sitter.Node, parent int32) {
	typ := ts.ChildByFieldName("type")
	ds := declarators(ts)
	if isTagSpecifier(typ) && typ.ChildByFieldName("body") != nil {
		b.tagDecl(typ, parent)
	}
	owner := b.top()
	for _, d := range ds {
		name, layers, _ := unwrap(d)
		if name == nil {
			continue
		}
		if funcLayer(layers) != nil {
			b.functionDecl(ts, parent, typ, d, nil)
			continue
		}
		spelling := b.text(name)
		static := b.hasStorage(ts, "static")
		kind := cursor.FieldDecl
		usr := owner.usr + "@FI@" + spelling
		if static && b.cpp {
			kind = cursor.VarDecl
			usr = owner.usr + "@" + spelling
		}
		dt := b.typeOf(typ, layers)

		n := b.newNode(kind, ts)
		n.loc = position(name.StartPoint(), name.StartByte())
		n.ext.End = position(d.EndPoint(), d.EndByte())
		n.spelling = spelling
		n.display = spelling
		n.usr = usr
		n.typeKind = dt.kind
		n.isDef = true
		idx := b.add(parent, n)

		sym := symbol{usr: usr, typeKind: dt.kind, record: dt.record, static: static}
		b.declare(owner, ordinaryNS, spelling, sym, idx, true)
		b.addMember(spelling, sym)
		if !isTagSpecifier(typ) || typ.ChildByFieldName("body") == nil {
			b.typeRef(typ, idx)
		}
	}
	if bf := childOfType(ts, "bitfield_clause"); bf != nil {
		b.visitChildren(bf, parent)
	}
	if dv := ts.ChildByFieldName("default_value"); dv != nil {
		b.visit(dv, parent)
	}
}

var tagKinds = map[string]struct {
	kind   cursor.Kind
	letter string
}{
	"struct_specifier": {cursor.StructDecl, "S"},
	"class_specifier":  {cursor.ClassDecl, "S"},
	"union_specifier":  {cursor.UnionDecl, "U"},
	"enum_specifier":   {cursor.EnumDecl, "E"},
}

// tagDecl lowers a struct, union, class or enum declaration and returns the
// symbol its name binds.
func (b *builder) tagDecl(ts *sitter.Node, parent int32) symbol {
	tk := tagKinds[ts.Type()]
	nameNode := ts.ChildByFieldName("name")
	body := ts.ChildByFieldName("body")
	name := ""
	if nameNode != nil {
		name, _ = b.splitName(nameNode)
	}

	usr := b.anonUSR(ts)
	if name != "" {
		usr = b.usrPrefix() + "@" + tk.letter + "@" + name
	}
	typeKind := recordType
	if tk.kind == cursor.EnumDecl {
		typeKind = enumType
	}
	sym := symbol{usr: usr, typeKind: typeKind, isType: true}
	if tk.kind != cursor.EnumDecl {
		sym.record = usr
	}

	n := b.newNode(tk.kind, ts)
	if nameNode != nil {
		n.loc = position(nameNode.StartPoint(), nameNode.StartByte())
	}
	n.spelling = name
	n.display = name
	n.usr = usr
	n.typeKind = typeKind
	n.isDef = body != nil
	idx := b.add(parent, n)
	b.declare(b.top(), tagNS, name, sym, idx, body != nil)
	if body == nil {
		return sym
	}

	if tk.kind == cursor.EnumDecl {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			if e := body.NamedChild(i); e.Type() == "enumerator" {
				b.enumerator(e, idx, usr)
			}
		}
		return sym
	}

	qual := ""
	if name != "" {
		qual = b.named().qual + name + "::"
	}
	s := newScope(usr, qual)
	s.record = true
	b.records[usr] = s
	if qual != "" {
		b.byName[strings.TrimSuffix(qual, "::")] = s
	}
	if bases := childOfType(ts, "base_class_clause"); bases != nil {
		b.visitChildren(bases, idx)
	}
	b.pushScope(s)
	b.visitChildren(body, idx)
	b.popScope()
	return sym
}

func (b *builder) enumerator(e *sitter.Node, parent int32, enumUSR string) {
	nameNode := e.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)
	typeKind := intType
	if b.cpp {
		typeKind = enumType
	}
	n := b.newNode(cursor.EnumConstantDecl, e)
	n.loc = position(nameNode.StartPoint(), nameNode.StartByte())
	n.spelling = name
	n.display = name
	n.usr = enumUSR + "@" + name
	n.typeKind = typeKind
	n.isDef = true
	idx := b.add(parent, n)
	b.declare(b.top(), ordinaryNS, name, symbol{usr: n.usr, typeKind: typeKind}, idx, true)
	if v := e.ChildByFieldName("value"); v != nil {
		b.visit(v, idx)
	}
}

func (b *builder) typeDefinition(ts *sitter.Node, parent int32) {
	typ := ts.ChildByFieldName("type")
	inline := isTagSpecifier(typ) && typ.ChildByFieldName("body") != nil
	if inline {
		b.tagDecl(typ, parent)
	}
	for _, d := range declarators(ts) {
		name, layers, _ := unwrap(d)
		if name == nil {
			continue
		}
		spelling := b.text(name)
		dt := b.typeOf(typ, layers)

		n := b.newNode(cursor.TypedefDecl, ts)
		n.loc = position(name.StartPoint(), name.StartByte())
		n.spelling = spelling
		n.display = spelling
		n.usr = b.usrPrefix() + "@T@" + spelling
		n.typeKind = typedefType
		n.isDef = true
		idx := b.add(parent, n)
		sym := symbol{usr: n.usr, typeKind: typedefType, record: dt.record, isType: true}
		b.declare(b.top(), ordinaryNS, spelling, sym, idx, true)
		if !inline {
			b.typeRef(typ, idx)
		}
	}
}

func (b *builder) namespace(ts *sitter.Node, parent int32) {
	nameNode := ts.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = b.text(nameNode)
	}
	usr := b.usrPrefix() + "@aN"
	if name != "" {
		usr = b.usrPrefix() + "@N@" + name
	}
	n := b.newNode(cursor.Namespace, ts)
	if nameNode != nil {
		n.loc = position(nameNode.StartPoint(), nameNode.StartByte())
	}
	n.spelling = name
	n.display = name
	n.usr = usr
	n.isDef = true
	idx := b.add(parent, n)
	b.register(usr, idx, true)

	qual := b.named().qual + name + "::"
	key := strings.TrimSuffix(qual, "::")
	s, ok := b.byName[key]
	if !ok {
		s = newScope(usr, qual)
		b.byName[key] = s
	}
	if body := ts.ChildByFieldName("body"); body != nil {
		b.pushScope(s)
		b.visitChildren(body, idx)
		b.popScope()
	}
}

// Preprocessor.

func (b *builder) include(ts *sitter.Node, parent int32) {
	path := ts.ChildByFieldName("path")
	if path == nil {
		return
	}
	n := b.newNode(cursor.InclusionDirective, ts)
	n.ext.End = position(path.EndPoint(), path.EndByte())
	n.spelling = strings.Trim(b.text(path), `"<>`)
	n.display = n.spelling
	b.add(parent, n)
}

func (b *builder) macro(ts *sitter.Node, parent int32) {
	nameNode := ts.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)
	end := nameNode
	for _, f := range []string{"parameters", "value"} {
		if c := ts.ChildByFieldName(f); c != nil {
			end = c
		}
	}
	n := b.newNode(cursor.MacroDefinition, ts)
	n.loc = position(nameNode.StartPoint(), nameNode.StartByte())
	n.ext.End = position(end.EndPoint(), end.EndByte())
	n.spelling = name
	n.display = name
	n.usr = b.fileUSR() + "@" + strconv.Itoa(int(nameNode.StartByte())) + "@macro@" + name
	idx := b.add(parent, n)
	b.macros[name] = symbol{usr: n.usr}
	// Macro definitions are not definitions in the declaration sense, but
	// their uses still resolve to them.
	b.register(n.usr, idx, true)
}

// conditional keeps the groups of a preprocessor conditional and drops the
// condition itself.
func (b *builder) conditional(ts *sitter.Node, parent int32) {
	skip := []*sitter.Node{ts.ChildByFieldName("name"), ts.ChildByFieldName("condition")}
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		c := ts.NamedChild(i)
		if sameNode(c, skip[0]) || sameNode(c, skip[1]) {
			continue
		}
		b.visit(c, parent)
	}
}

// Statements.

func (b *builder) compound(ts *sitter.Node, parent int32) {
	idx := b.add(parent, b.newNode(cursor.CompoundStmt, ts))
	b.pushScope(newScope("", ""))
	b.visitChildren(ts, idx)
	b.popScope()
}

func (b *builder) statement(ts *sitter.Node, parent int32, kind cursor.Kind) {
	if kind == cursor.CaseStmt && ts.ChildByFieldName("value") == nil {
		kind = cursor.DefaultStmt
	}
	idx := b.add(parent, b.newNode(kind, ts))
	b.pushScope(newScope("", ""))
	defer b.popScope()

	if kind == cursor.ForRangeStmt {
		typ := ts.ChildByFieldName("type")
		if d := ts.ChildByFieldName("declarator"); d != nil {
			if name, layers, _ := unwrap(d); name != nil {
				b.variable(ts, idx, typ, d, name, layers, nil)
			}
		}
		b.visit(ts.ChildByFieldName("right"), idx)
		b.visit(ts.ChildByFieldName("body"), idx)
		return
	}

	cond := ts.ChildByFieldName("condition")
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		c := ts.NamedChild(i)
		if sameNode(c, cond) && (c.Type() == "parenthesized_expression" || c.Type() == "condition_clause") {
			b.visitChildren(c, idx)
			continue
		}
		b.visit(c, idx)
	}
}

func (b *builder) label(ts *sitter.Node, parent int32) {
	lbl := ts.ChildByFieldName("label")
	if lbl == nil || len(b.fns) == 0 {
		b.visitChildren(ts, parent)
		return
	}
	name := b.text(lbl)
	n := b.newNode(cursor.LabelStmt, ts)
	n.loc = position(lbl.StartPoint(), lbl.StartByte())
	n.spelling = name
	n.display = name
	n.usr = b.localUSR(int(ts.StartByte()), name)
	idx := b.add(parent, n)
	fn := b.fns[len(b.fns)-1]
	if _, ok := fn.labels[name]; !ok {
		fn.labels[name] = symbol{usr: n.usr}
	}
	b.register(n.usr, idx, true)
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		if c := ts.NamedChild(i); !sameNode(c, lbl) {
			b.visit(c, idx)
		}
	}
}

func (b *builder) gotoStmt(ts *sitter.Node, parent int32) {
	idx := b.add(parent, b.newNode(cursor.GotoStmt, ts))
	lbl := ts.ChildByFieldName("label")
	if lbl == nil || len(b.fns) == 0 {
		return
	}
	r := b.newNode(cursor.LabelRef, lbl)
	r.spelling = b.text(lbl)
	r.display = r.spelling
	ridx := b.add(idx, r)
	b.fixups = append(b.fixups, fixup{
		node:   ridx,
		call:   -1,
		name:   r.spelling,
		ns:     labelNS,
		labels: b.fns[len(b.fns)-1].labels,
	})
}

// Expressions.

// call lowers a call. A plain callee becomes an implicit UNEXPOSED_EXPR
// carrying the reference, so the call itself is the one reference row.
func (b *builder) call(ts *sitter.Node, parent int32) {
	fn := ts.ChildByFieldName("function")
	args := ts.ChildByFieldName("arguments")
	n := b.newNode(cursor.CallExpr, ts)
	idx := b.add(parent, n)

	if fn != nil {
		switch fn.Type() {
		case "identifier", "template_function":
			name, _ := b.splitName(fn)
			b.setSpelling(idx, name)
			c := b.newNode(cursor.UnexposedExpr, fn)
			c.spelling = name
			c.display = name
			c.typeKind = pointerType
			cidx := b.add(idx, c)
			b.reference(cidx, idx, ordinaryNS, name, true)
		case "qualified_identifier":
			name, _ := b.splitName(fn)
			b.setSpelling(idx, name)
			c := b.newNode(cursor.UnexposedExpr, fn)
			c.spelling = name
			c.display = name
			c.typeKind = pointerType
			cidx := b.add(idx, c)
			b.reference(cidx, idx, qualifiedNS, whitespaceRe.ReplaceAllString(b.text(fn), ""), false)
		case "field_expression":
			if field := fn.ChildByFieldName("field"); field != nil {
				b.setSpelling(idx, b.text(field))
			}
			b.memberRef(fn, idx, idx)
		default:
			b.visit(fn, idx)
		}
	}
	if args != nil {
		b.visitChildren(args, idx)
	}
}

func (b *builder) setSpelling(idx int32, name string) {
	b.u.nodes[idx].spelling = name
	b.u.nodes[idx].display = name
}

func (b *builder) declRef(ts *sitter.Node, parent int32) {
	name := b.text(ts)
	kind := cursor.DeclRefExpr
	if _, ok := b.macros[name]; ok {
		kind = cursor.MacroInstantiation
	}
	n := b.newNode(kind, ts)
	n.spelling = name
	n.display = name
	idx := b.add(parent, n)
	b.reference(idx, -1, ordinaryNS, name, false)
}

func (b *builder) qualifiedRef(ts *sitter.Node, parent int32) {
	name, _ := b.splitName(ts)
	n := b.newNode(cursor.DeclRefExpr, ts)
	n.spelling = name
	n.display = name
	idx := b.add(parent, n)
	b.reference(idx, -1, qualifiedNS, whitespaceRe.ReplaceAllString(b.text(ts), ""), false)
}

// memberRef lowers obj.field and ptr->field. When the member is called, call
// is the enclosing CALL_EXPR to link along with it.
func (b *builder) memberRef(ts *sitter.Node, parent, call int32) {
	arg := ts.ChildByFieldName("argument")
	field := ts.ChildByFieldName("field")
	n := b.newNode(cursor.MemberRefExpr, ts)
	if field != nil {
		n.spelling, _ = b.splitName(field)
		n.display = n.spelling
		n.loc = position(field.StartPoint(), field.StartByte())
	}
	idx := b.add(parent, n)
	if n.spelling != "" {
		b.fixups = append(b.fixups, fixup{
			node:   idx,
			call:   call,
			name:   n.spelling,
			ns:     memberNS,
			record: b.recordOfExpr(arg),
		})
	}
	if arg != nil {
		b.visit(arg, idx)
	}
}

// recordOfExpr guesses the aggregate an expression evaluates to, from the
// declared type of the variable it starts at.
func (b *builder) recordOfExpr(e *sitter.Node) string {
	for e != nil {
		switch e.Type() {
		case "identifier":
			if sym, ok := b.lookup(b.text(e)); ok {
				return sym.record
			}
			return ""
		case "this":
			if s := b.named(); s.record {
				return s.usr
			}
			return ""
		case "parenthesized_expression":
			e = e.NamedChild(0)
		case "pointer_expression", "subscript_expression":
			e = e.ChildByFieldName("argument")
		default:
			return ""
		}
	}
	return ""
}

// typeRef emits a TYPE_REF for a named type specifier.
func (b *builder) typeRef(typ *sitter.Node, parent int32) {
	if typ == nil {
		return
	}
	switch typ.Type() {
	case "type_identifier":
		name := b.text(typ)
		n := b.newNode(cursor.TypeRef, typ)
		n.spelling = name
		n.display = name
		idx := b.add(parent, n)
		if sym, ok := b.lookupType(name); ok {
			b.link(idx, sym)
		}
	case "template_type":
		if name := typ.ChildByFieldName("name"); name != nil {
			b.typeRef(name, parent)
		}
		if args := typ.ChildByFieldName("arguments"); args != nil {
			b.visitChildren(args, parent)
		}
	case "qualified_identifier":
		name, _ := b.splitName(typ)
		n := b.newNode(cursor.TypeRef, typ)
		n.spelling = name
		n.display = name
		idx := b.add(parent, n)
		b.reference(idx, -1, qualifiedNS, whitespaceRe.ReplaceAllString(b.text(typ), ""), false)
	case "struct_specifier", "union_specifier", "enum_specifier", "class_specifier":
		if typ.ChildByFieldName("body") != nil {
			return
		}
		nameNode := typ.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name, _ := b.splitName(nameNode)
		keyword := strings.TrimSuffix(typ.Type(), "_specifier")
		n := b.newNode(cursor.TypeRef, nameNode)
		n.spelling = keyword + " " + name
		n.display = n.spelling
		idx := b.add(parent, n)
		sym, ok := b.lookupTag(name)
		if !ok {
			// First mention of an undeclared tag declares it.
			tk := tagKinds[typ.Type()]
			sym = symbol{usr: b.lang.USRPrefix + "@" + tk.letter + "@" + name, typeKind: recordType, isType: true}
			if tk.kind == cursor.EnumDecl {
				sym.typeKind = enumType
			} else {
				sym.record = sym.usr
			}
			b.scopes[0].tags[name] = sym
			b.implicit(tk.kind, name, sym.usr, sym.typeKind)
		}
		b.link(idx, sym)
	}
}

func (b *builder) cast(ts *sitter.Node, parent int32) {
	n := b.newNode(cursor.CStyleCastExpr, ts)
	desc := ts.ChildByFieldName("type")
	var typ *sitter.Node
	if desc != nil {
		typ = desc.ChildByFieldName("type")
		var layers []*sitter.Node
		if d := desc.ChildByFieldName("declarator"); d != nil {
			_, layers, _ = unwrap(d)
		}
		n.typeKind = b.typeOf(typ, layers).kind
	}
	idx := b.add(parent, n)
	b.typeRef(typ, idx)
	b.visit(ts.ChildByFieldName("value"), idx)
}

// literal lowers constants. It reports false for anything that is not one.
func (b *builder) literal(ts *sitter.Node, parent int32) bool {
	var n node
	switch ts.Type() {
	case "number_literal":
		kind, typeKind := numberKind(b.text(ts))
		n = b.newNode(kind, ts)
		n.typeKind = typeKind
	case "string_literal", "concatenated_string", "raw_string_literal":
		n = b.newNode(cursor.StringLiteral, ts)
		n.typeKind = constArrayType
	case "char_literal":
		n = b.newNode(cursor.CharacterLiteral, ts)
		n.typeKind = intType
		if b.cpp {
			n.typeKind = "CHAR_S"
		}
	case "true", "false":
		if b.cpp {
			n = b.newNode(cursor.BoolLiteralExpr, ts)
			n.typeKind = boolType
		} else {
			n = b.newNode(cursor.UnexposedExpr, ts)
			n.typeKind = intType
		}
	case "null", "nullptr":
		if b.text(ts) == "nullptr" {
			n = b.newNode(cursor.NullPtrLiteralExpr, ts)
			n.typeKind = nullPtrType
		} else {
			n = b.newNode(cursor.UnexposedExpr, ts)
			n.typeKind = pointerType
		}
	case "this":
		n = b.newNode(cursor.ThisExpr, ts)
		n.typeKind = pointerType
	default:
		return false
	}
	n.spelling = b.text(ts)
	n.display = n.spelling
	b.add(parent, n)
	return true
}

func numberKind(text string) (cursor.Kind, string) {
	lower := strings.ToLower(text)
	hex := strings.HasPrefix(lower, "0x")
	isFloat := strings.Contains(lower, ".") || (hex && strings.Contains(lower, "p")) ||
		(!hex && strings.Contains(lower, "e"))
	if isFloat {
		if strings.HasSuffix(lower, "f") {
			return cursor.FloatingLiteral, floatType
		}
		if strings.HasSuffix(lower, "l") {
			return cursor.FloatingLiteral, "LONGDOUBLE"
		}
		return cursor.FloatingLiteral, doubleType
	}
	suffix := strings.TrimLeft(lower, "0123456789abcdefx'")
	if hex {
		suffix = strings.TrimLeft(strings.TrimPrefix(lower, "0x"), "0123456789abcdef'")
	}
	unsigned := strings.Contains(suffix, "u")
	longs := strings.Count(suffix, "l")
	switch {
	case longs >= 2 && unsigned:
		return cursor.IntegerLiteral, "ULONGLONG"
	case longs >= 2:
		return cursor.IntegerLiteral, "LONGLONG"
	case longs == 1 && unsigned:
		return cursor.IntegerLiteral, ulongType
	case longs == 1:
		return cursor.IntegerLiteral, "LONG"
	case unsigned:
		return cursor.IntegerLiteral, uintType
	}
	return cursor.IntegerLiteral, intType
}

// typeRule says how an operator expression takes its type from its operands
// once every reference is resolved.
type typeRule uint8

const (
	ruleFixed typeRule = iota
	ruleFirst
	ruleSecond
	ruleLast
)

var truthOperators = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "!": true,
}

// expression lowers operator expressions. It reports false for anything
// that is not one.
func (b *builder) expression(ts *sitter.Node, parent int32) bool {
	var (
		kind     cursor.Kind
		rule     = ruleFirst
		typeKind = ""
	)
	op := ""
	if o := ts.ChildByFieldName("operator"); o != nil {
		op = b.text(o)
	}
	switch ts.Type() {
	case "binary_expression":
		kind = cursor.BinaryOperator
	case "comma_expression":
		kind, rule = cursor.BinaryOperator, ruleLast
	case "assignment_expression":
		kind = cursor.BinaryOperator
		if op != "=" {
			kind = cursor.CompoundAssignOp
		}
	case "unary_expression", "update_expression":
		kind = cursor.UnaryOperator
	case "pointer_expression":
		kind, rule = cursor.UnaryOperator, ruleFixed
		typeKind = unexposedType
		if op == "&" {
			typeKind = pointerType
		}
	case "parenthesized_expression":
		kind = cursor.ParenExpr
	case "conditional_expression":
		kind, rule = cursor.ConditionalOp, ruleSecond
	case "subscript_expression":
		kind, rule, typeKind = cursor.ArraySubscriptExpr, ruleFixed, unexposedType
	case "sizeof_expression", "alignof_expression":
		kind, rule, typeKind = cursor.UnaryExpr, ruleFixed, ulongType
	case "initializer_list":
		kind, rule, typeKind = cursor.InitListExpr, ruleFixed, unexposedType
	case "compound_literal_expression":
		kind, rule = cursor.CompoundLiteral, ruleFixed
		typeKind = b.baseKind(ts.ChildByFieldName("type"))
	case "new_expression":
		kind, rule, typeKind = cursor.NewExpr, ruleFixed, pointerType
	case "delete_expression":
		kind, rule, typeKind = cursor.DeleteExpr, ruleFixed, voidType
	case "lambda_expression", "generic_expression":
		kind, rule, typeKind = cursor.UnexposedExpr, ruleFixed, unexposedType
	default:
		return false
	}
	if truthOperators[op] {
		rule, typeKind = ruleFixed, intType
		if b.cpp {
			typeKind = boolType
		}
	}
	n := b.newNode(kind, ts)
	if typeKind != "" {
		n.typeKind = typeKind
	}
	n.rule = rule
	idx := b.add(parent, n)
	b.visitChildren(ts, idx)
	return true
}

// deriveTypes types operator expressions from their operands. Children
// always follow their parent in the arena, so a reverse sweep sees every
// operand before the operator using it.
func (b *builder) deriveTypes() {
	nodes := b.u.nodes
	for i := len(nodes) - 1; i >= 0; i-- {
		n := &nodes[i]
		if n.rule == ruleFixed {
			continue
		}
		var operands []int32
		for _, c := range n.children {
			if nodes[c].kind != cursor.TypeRef {
				operands = append(operands, c)
			}
		}
		pick := -1
		switch n.rule {
		case ruleFirst:
			pick = 0
		case ruleSecond:
			pick = 1
		case ruleLast:
			pick = len(operands) - 1
		}
		if pick < 0 || pick >= len(operands) {
			n.typeKind = unexposedType
			continue
		}
		n.typeKind = nodes[operands[pick]].typeKind
	}
}
