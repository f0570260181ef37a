package parse

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/breadchris/crange/internal/cursor"
	"github.com/breadchris/crange/internal/lang"
)

func setup(t *testing.T, langName string) func(source string) *Unit {
	t.Helper()
	l := lang.Languages[langName]
	if l == nil {
		t.Fatalf("language %q not registered", langName)
	}
	ext := l.Extensions[0]
	return func(source string) *Unit {
		t.Helper()
		u, err := Parse(context.Background(), l, l.NewParser(), []byte(source), "test"+ext)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		return u
	}
}

// walk returns every cursor under root in pre-order, root included.
func walk(root cursor.Cursor) []cursor.Cursor {
	out := []cursor.Cursor{root}
	for _, c := range root.Children() {
		out = append(out, walk(c)...)
	}
	return out
}

func ofKind(u *Unit, kind cursor.Kind) []cursor.Cursor {
	var out []cursor.Cursor
	for _, c := range walk(u.Root()) {
		if c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

func findOne(t *testing.T, u *Unit, kind cursor.Kind, spelling string) cursor.Cursor {
	t.Helper()
	var found []cursor.Cursor
	for _, c := range ofKind(u, kind) {
		if c.Spelling() == spelling {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		t.Fatalf("found %d %s %q cursors, want 1", len(found), kind, spelling)
	}
	return found[0]
}

func refUSR(c cursor.Cursor) string {
	r, ok := c.Referenced()
	if !ok {
		return ""
	}
	return r.USR()
}

func defUSR(c cursor.Cursor) string {
	d, ok := c.Definition()
	if !ok {
		return ""
	}
	return d.USR()
}

func TestRootHasNoFile(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int x;\n")
	root := u.Root()
	if root.Kind() != cursor.TranslationUnitKind {
		t.Errorf("root kind = %s", root.Kind())
	}
	if _, ok := root.File(); ok {
		t.Error("translation unit should have no file")
	}
	if u.Path() != "test.c" || u.Language().Name != "c" {
		t.Errorf("unit = %s/%s", u.Path(), u.Language().Name)
	}
	for _, c := range root.Children() {
		if f, ok := c.File(); !ok || f != "test.c" {
			t.Errorf("%s file = %q, %v", c.Kind(), f, ok)
		}
	}
}

func TestCallLinksToDefinition(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int B(void) { return 1; }\nint A(void) { return B(); }\n")

	b := findOne(t, u, cursor.FunctionDecl, "B")
	if b.USR() != "c:@F@B" {
		t.Errorf("B usr = %q", b.USR())
	}
	if !b.IsDefinition() {
		t.Error("B should be a definition")
	}
	if b.DisplayName() != "B()" {
		t.Errorf("B display = %q", b.DisplayName())
	}
	if b.TypeKind() != "FUNCTIONPROTO" {
		t.Errorf("B type = %q", b.TypeKind())
	}
	if got := b.Location(); got.Line != 1 || got.Column != 5 || got.Offset != 4 {
		t.Errorf("B location = %+v", got)
	}
	if refUSR(b) != "c:@F@B" || defUSR(b) != "c:@F@B" {
		t.Errorf("B ref/def = %q/%q", refUSR(b), defUSR(b))
	}

	call := findOne(t, u, cursor.CallExpr, "B")
	if call.Location().Line != 2 {
		t.Errorf("call line = %d", call.Location().Line)
	}
	if call.USR() != "" {
		t.Errorf("call usr = %q", call.USR())
	}
	if refUSR(call) != "c:@F@B" || defUSR(call) != "c:@F@B" {
		t.Errorf("call ref/def = %q/%q", refUSR(call), defUSR(call))
	}
	if call.TypeKind() != "INT" {
		t.Errorf("call type = %q", call.TypeKind())
	}

	// The callee carries the reference without adding another reference row.
	kids := call.Children()
	if len(kids) != 1 || kids[0].Kind() != cursor.UnexposedExpr {
		t.Fatalf("callee children = %v", kinds(kids))
	}
	if len(ofKind(u, cursor.DeclRefExpr)) != 0 {
		t.Error("callee should not produce a DECL_REF_EXPR")
	}
}

func kinds(cs []cursor.Cursor) []cursor.Kind {
	out := make([]cursor.Kind, len(cs))
	for i, c := range cs {
		out[i] = c.Kind()
	}
	return out
}

func TestForwardCallResolvesLater(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int A(void) { return B(); }\nint B(void) { return 1; }\n")
	call := findOne(t, u, cursor.CallExpr, "B")
	if refUSR(call) != "c:@F@B" {
		t.Errorf("call ref = %q", refUSR(call))
	}
	if d, ok := call.Definition(); !ok || d.Location().Line != 2 {
		t.Errorf("definition = %v, %v", d, ok)
	}
}

func TestImplicitFunctionHasNoFile(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int main(void) { return puts(\"hi\"); }\n")
	call := findOne(t, u, cursor.CallExpr, "puts")
	r, ok := call.Referenced()
	if !ok {
		t.Fatal("implicit declaration not referenced")
	}
	if r.USR() != "c:@F@puts" {
		t.Errorf("usr = %q", r.USR())
	}
	if _, ok := r.File(); ok {
		t.Error("implicit declaration should have no file")
	}
	if _, ok := call.Definition(); ok {
		t.Error("undefined function should have no definition")
	}
}

func TestPrototypeThenDefinition(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int add(int a, int b);\nint add(int a, int b) { return a + b; }\n")
	decls := ofKind(u, cursor.FunctionDecl)
	if len(decls) != 2 {
		t.Fatalf("got %d FUNCTION_DECLs", len(decls))
	}
	proto, def := decls[0], decls[1]
	if proto.IsDefinition() || !def.IsDefinition() {
		t.Errorf("is_def = %v/%v", proto.IsDefinition(), def.IsDefinition())
	}
	if proto.USR() != def.USR() {
		t.Errorf("usrs differ: %q %q", proto.USR(), def.USR())
	}
	if d, ok := proto.Definition(); !ok || !d.Equal(def) {
		t.Error("prototype should lead to the definition")
	}
	if proto.DisplayName() != "add(int, int)" {
		t.Errorf("display = %q", proto.DisplayName())
	}
}

func TestLocalsAndParams(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int f(int n) {\n  int total = n;\n  return total;\n}\n")
	n := findOne(t, u, cursor.ParmDecl, "n")
	if n.USR() != "c:test.c@6@F@f@n" {
		t.Errorf("param usr = %q", n.USR())
	}
	total := findOne(t, u, cursor.VarDecl, "total")
	if total.USR() != "c:test.c@17@F@f@total" {
		t.Errorf("local usr = %q", total.USR())
	}
	if total.TypeKind() != "INT" {
		t.Errorf("local type = %q", total.TypeKind())
	}

	refs := ofKind(u, cursor.DeclRefExpr)
	if len(refs) != 2 {
		t.Fatalf("got %d DECL_REF_EXPRs", len(refs))
	}
	if refUSR(refs[0]) != n.USR() || refUSR(refs[1]) != total.USR() {
		t.Errorf("refs = %q, %q", refUSR(refs[0]), refUSR(refs[1]))
	}
	if refs[0].USR() != "" {
		t.Error("references carry no usr")
	}

	stmts := ofKind(u, cursor.DeclStmt)
	if len(stmts) != 1 {
		t.Errorf("got %d DECL_STMTs", len(stmts))
	}
}

func TestShadowingPicksInnermost(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int x;\nint f(void) {\n  int x = 1;\n  return x;\n}\nint g(void) { return x; }\n")
	refs := ofKind(u, cursor.DeclRefExpr)
	if len(refs) != 2 {
		t.Fatalf("got %d refs", len(refs))
	}
	if got := refUSR(refs[0]); got != "c:test.c@23@F@f@x" {
		t.Errorf("inner ref = %q", got)
	}
	if got := refUSR(refs[1]); got != "c:@x" {
		t.Errorf("outer ref = %q", got)
	}
}

func TestStaticLinkage(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("static int helper(void) { return 0; }\nstatic int counter;\nint shared;\n")
	if got := findOne(t, u, cursor.FunctionDecl, "helper").USR(); got != "c:test.c@F@helper" {
		t.Errorf("static function usr = %q", got)
	}
	if got := findOne(t, u, cursor.VarDecl, "counter").USR(); got != "c:test.c@counter" {
		t.Errorf("static var usr = %q", got)
	}
	if got := findOne(t, u, cursor.VarDecl, "shared").USR(); got != "c:@shared" {
		t.Errorf("global usr = %q", got)
	}
}

func TestExternIsNotDefinition(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("extern int limit;\n")
	v := findOne(t, u, cursor.VarDecl, "limit")
	if v.IsDefinition() {
		t.Error("extern declaration should not be a definition")
	}
	if _, ok := v.Definition(); ok {
		t.Error("no definition in this unit")
	}
}

func TestStructFieldsAndMembers(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	src := `struct point { int x; int y; };
int norm(struct point *p) { return p->x + p->y; }
`
	u := parse(src)
	s := findOne(t, u, cursor.StructDecl, "point")
	if s.USR() != "c:@S@point" || s.TypeKind() != "RECORD" {
		t.Errorf("struct = %q %q", s.USR(), s.TypeKind())
	}
	x := findOne(t, u, cursor.FieldDecl, "x")
	if x.USR() != "c:@S@point@FI@x" {
		t.Errorf("field usr = %q", x.USR())
	}

	var got []string
	for _, m := range ofKind(u, cursor.MemberRefExpr) {
		got = append(got, m.Spelling()+"="+refUSR(m))
	}
	want := []string{"x=c:@S@point@FI@x", "y=c:@S@point@FI@y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("member refs (-want +got):\n%s", diff)
	}

	tr := findOne(t, u, cursor.TypeRef, "struct point")
	if !tr.Kind().IsReference() || refUSR(tr) != "c:@S@point" {
		t.Errorf("type ref = %q", refUSR(tr))
	}
	p := findOne(t, u, cursor.ParmDecl, "p")
	if p.TypeKind() != "POINTER" {
		t.Errorf("param type = %q", p.TypeKind())
	}
}

func TestTypedefAndEnum(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	src := `typedef int size;
enum color { RED, GREEN = 2 };
size pick(enum color c) { return c == GREEN ? 1 : 0; }
`
	u := parse(src)
	td := findOne(t, u, cursor.TypedefDecl, "size")
	if td.USR() != "c:@T@size" || td.TypeKind() != "TYPEDEF" {
		t.Errorf("typedef = %q %q", td.USR(), td.TypeKind())
	}
	if got := findOne(t, u, cursor.EnumDecl, "color").USR(); got != "c:@E@color" {
		t.Errorf("enum usr = %q", got)
	}
	green := findOne(t, u, cursor.EnumConstantDecl, "GREEN")
	if green.USR() != "c:@E@color@GREEN" {
		t.Errorf("constant usr = %q", green.USR())
	}
	if got := refUSR(findOne(t, u, cursor.DeclRefExpr, "GREEN")); got != green.USR() {
		t.Errorf("constant ref = %q", got)
	}
	if got := refUSR(findOne(t, u, cursor.TypeRef, "size")); got != td.USR() {
		t.Errorf("typedef ref = %q", got)
	}
	if got := findOne(t, u, cursor.FunctionDecl, "pick").DisplayName(); got != "pick(enum color)" {
		t.Errorf("display = %q", got)
	}
	if got := findOne(t, u, cursor.BinaryOperator, "").TypeKind(); got != "INT" {
		t.Errorf("comparison type = %q", got)
	}
}

func TestMacros(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("#include <stdio.h>\n#define LIMIT 10\nint cap(void) { return LIMIT; }\n")
	inc := findOne(t, u, cursor.InclusionDirective, "stdio.h")
	if inc.USR() != "" {
		t.Errorf("include usr = %q", inc.USR())
	}
	m := findOne(t, u, cursor.MacroDefinition, "LIMIT")
	if m.USR() != "c:test.c@27@macro@LIMIT" {
		t.Errorf("macro usr = %q", m.USR())
	}
	if m.IsDefinition() {
		t.Error("macro definitions do not report is_definition")
	}
	use := findOne(t, u, cursor.MacroInstantiation, "LIMIT")
	if refUSR(use) != m.USR() || defUSR(use) != m.USR() {
		t.Errorf("macro use ref/def = %q/%q", refUSR(use), defUSR(use))
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("void f(void) {\n  goto done;\ndone:\n  return;\n}\n")
	lbl := findOne(t, u, cursor.LabelStmt, "done")
	ref := findOne(t, u, cursor.LabelRef, "done")
	if !ref.Kind().IsReference() {
		t.Error("LABEL_REF is a reference kind")
	}
	if refUSR(ref) != lbl.USR() || lbl.USR() == "" {
		t.Errorf("label ref = %q, label usr = %q", refUSR(ref), lbl.USR())
	}
}

func TestStatementsAndLiterals(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	src := `double f(int n) {
  for (int i = 0; i < n; i++) {
    if (i) continue;
    ;
  }
  while (n) break;
  return 1.5;
}
`
	u := parse(src)
	for _, k := range []cursor.Kind{
		cursor.ForStmt, cursor.IfStmt, cursor.ContinueStmt, cursor.NullStmt,
		cursor.WhileStmt, cursor.BreakStmt, cursor.ReturnStmt, cursor.CompoundStmt,
	} {
		if len(ofKind(u, k)) == 0 {
			t.Errorf("no %s cursor", k)
		}
	}
	lit := ofKind(u, cursor.FloatingLiteral)
	if len(lit) != 1 || lit[0].TypeKind() != "DOUBLE" || lit[0].Spelling() != "1.5" {
		t.Errorf("floating literal = %v", lit)
	}
	ints := ofKind(u, cursor.IntegerLiteral)
	if len(ints) != 1 || ints[0].TypeKind() != "INT" {
		t.Errorf("integer literals = %v", ints)
	}
}

func TestNumberKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		kind cursor.Kind
		typ  string
	}{
		{"42", cursor.IntegerLiteral, "INT"},
		{"42u", cursor.IntegerLiteral, "UINT"},
		{"42UL", cursor.IntegerLiteral, "ULONG"},
		{"42ll", cursor.IntegerLiteral, "LONGLONG"},
		{"0xff", cursor.IntegerLiteral, "INT"},
		{"0xffu", cursor.IntegerLiteral, "UINT"},
		{"1.0", cursor.FloatingLiteral, "DOUBLE"},
		{"1e9", cursor.FloatingLiteral, "DOUBLE"},
		{"2.5f", cursor.FloatingLiteral, "FLOAT"},
	}
	for _, tt := range tests {
		kind, typ := numberKind(tt.text)
		if kind != tt.kind || typ != tt.typ {
			t.Errorf("numberKind(%q) = %s %s, want %s %s", tt.text, kind, typ, tt.kind, tt.typ)
		}
	}
}

func TestSizedKind(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unsigned":           "UINT",
		"long":               "LONG",
		"unsigned long":      "ULONG",
		"long long":          "LONGLONG",
		"unsigned long long": "ULONGLONG",
		"short":              "SHORT",
		"unsigned char":      "UCHAR",
		"long double":        "LONGDOUBLE",
	}
	for text, want := range tests {
		if got := sizedKind(text); got != want {
			t.Errorf("sizedKind(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestDiagnostics(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	clean := parse("int ok(void) { return 0; }\n")
	if len(clean.Diagnostics()) != 0 {
		t.Errorf("clean source has diagnostics: %v", clean.Diagnostics())
	}

	broken := parse("int bad(void) { return 0 }\n")
	diags := broken.Diagnostics()
	if len(diags) == 0 {
		t.Fatal("expected diagnostics for a missing semicolon")
	}
	for _, d := range diags {
		if d.Severity != cursor.Error || d.File != "test.c" {
			t.Errorf("diagnostic = %+v", d)
		}
		if d.Location.Line != 1 {
			t.Errorf("line = %d", d.Location.Line)
		}
	}
}

func TestCursorEqualityAndHandles(t *testing.T) {
	t.Parallel()
	parse := setup(t, "c")

	u := parse("int a;\nint b;\n")
	v := u.Root().Children()
	again := u.Root().Children()
	if !v[0].Equal(again[0]) || v[0].Equal(v[1]) {
		t.Error("Equal should compare identity")
	}
	h0 := v[0].(cursor.Handler).Handle()
	h1 := v[1].(cursor.Handler).Handle()
	if h0 == h1 || h0 != again[0].(cursor.Handler).Handle() {
		t.Errorf("handles = %v %v", h0, h1)
	}

	other := parse("int a;\nint b;\n")
	if other.Root().Children()[0].Equal(v[0]) {
		t.Error("cursors of different units are never equal")
	}
	if other.Root().Children()[0].(cursor.Handler).Handle() == h0 {
		t.Error("handles of different units collide")
	}
}

func TestCPlusPlus(t *testing.T) {
	t.Parallel()
	parse := setup(t, "cpp")

	src := `namespace geo {
class Shape {
public:
  Shape();
  int area() const;
  static int count();
  int w;
};
int Shape::area() const { return w * w; }
}
int use(geo::Shape &s) { return s.area(); }
`
	u := parse(src)
	ns := findOne(t, u, cursor.Namespace, "geo")
	if ns.USR() != "c:@N@geo" {
		t.Errorf("namespace usr = %q", ns.USR())
	}
	cls := findOne(t, u, cursor.ClassDecl, "Shape")
	if cls.USR() != "c:@N@geo@S@Shape" {
		t.Errorf("class usr = %q", cls.USR())
	}
	if got := findOne(t, u, cursor.Constructor, "Shape").USR(); got != "c:@N@geo@S@Shape@F@Shape" {
		t.Errorf("constructor usr = %q", got)
	}
	if !findOne(t, u, cursor.CXXMethod, "count").IsStaticMethod() {
		t.Error("count should be a static method")
	}

	areas := ofKind(u, cursor.CXXMethod)
	var decl, def cursor.Cursor
	for _, m := range areas {
		if m.Spelling() != "area" {
			continue
		}
		if m.IsDefinition() {
			def = m
		} else {
			decl = m
		}
	}
	if decl == nil || def == nil {
		t.Fatalf("area declaration/definition missing: %v", kinds(areas))
	}
	if decl.USR() != def.USR() || decl.USR() != "c:@N@geo@S@Shape@F@area" {
		t.Errorf("area usrs = %q %q", decl.USR(), def.USR())
	}
	if def.IsStaticMethod() {
		t.Error("area is not static")
	}

	// w inside the out-of-line body resolves to the member.
	for _, r := range ofKind(u, cursor.DeclRefExpr) {
		if r.Spelling() == "w" && refUSR(r) != "c:@N@geo@S@Shape@FI@w" {
			t.Errorf("w ref = %q", refUSR(r))
		}
	}

	call := findOne(t, u, cursor.CallExpr, "area")
	if refUSR(call) != def.USR() {
		t.Errorf("method call ref = %q", refUSR(call))
	}
	if got := findOne(t, u, cursor.MemberRefExpr, "area"); refUSR(got) != def.USR() {
		t.Errorf("member ref = %q", refUSR(got))
	}
}
