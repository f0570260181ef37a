// Package cursor describes the capability crange consumes from an AST provider:
// translation units made of cursors with kinds, types, locations and
// definition/reference linkage.
package cursor

// Kind is the syntactic category of a cursor, named the way libclang names
// cursor kinds (FUNCTION_DECL, CALL_EXPR, ...).
type Kind string

const (
	TranslationUnitKind Kind = "TRANSLATION_UNIT"

	StructDecl       Kind = "STRUCT_DECL"
	UnionDecl        Kind = "UNION_DECL"
	ClassDecl        Kind = "CLASS_DECL"
	EnumDecl         Kind = "ENUM_DECL"
	FieldDecl        Kind = "FIELD_DECL"
	EnumConstantDecl Kind = "ENUM_CONSTANT_DECL"
	FunctionDecl     Kind = "FUNCTION_DECL"
	VarDecl          Kind = "VAR_DECL"
	ParmDecl         Kind = "PARM_DECL"
	TypedefDecl      Kind = "TYPEDEF_DECL"
	CXXMethod        Kind = "CXX_METHOD"
	Namespace        Kind = "NAMESPACE"
	Constructor      Kind = "CONSTRUCTOR"
	Destructor       Kind = "DESTRUCTOR"

	TypeRef   Kind = "TYPE_REF"
	MemberRef Kind = "MEMBER_REF"
	LabelRef  Kind = "LABEL_REF"

	UnexposedExpr      Kind = "UNEXPOSED_EXPR"
	DeclRefExpr        Kind = "DECL_REF_EXPR"
	MemberRefExpr      Kind = "MEMBER_REF_EXPR"
	CallExpr           Kind = "CALL_EXPR"
	IntegerLiteral     Kind = "INTEGER_LITERAL"
	FloatingLiteral    Kind = "FLOATING_LITERAL"
	StringLiteral      Kind = "STRING_LITERAL"
	CharacterLiteral   Kind = "CHARACTER_LITERAL"
	ParenExpr          Kind = "PAREN_EXPR"
	UnaryOperator      Kind = "UNARY_OPERATOR"
	ArraySubscriptExpr Kind = "ARRAY_SUBSCRIPT_EXPR"
	BinaryOperator     Kind = "BINARY_OPERATOR"
	CompoundAssignOp   Kind = "COMPOUND_ASSIGNMENT_OPERATOR"
	ConditionalOp      Kind = "CONDITIONAL_OPERATOR"
	CStyleCastExpr     Kind = "CSTYLE_CAST_EXPR"
	InitListExpr       Kind = "INIT_LIST_EXPR"
	UnaryExpr          Kind = "CXX_UNARY_EXPR"
	BoolLiteralExpr    Kind = "CXX_BOOL_LITERAL_EXPR"
	NullPtrLiteralExpr Kind = "CXX_NULL_PTR_LITERAL_EXPR"
	ThisExpr           Kind = "CXX_THIS_EXPR"
	NewExpr            Kind = "CXX_NEW_EXPR"
	DeleteExpr         Kind = "CXX_DELETE_EXPR"
	CompoundLiteral    Kind = "COMPOUND_LITERAL_EXPR"

	UnexposedStmt Kind = "UNEXPOSED_STMT"
	LabelStmt     Kind = "LABEL_STMT"
	CompoundStmt  Kind = "COMPOUND_STMT"
	CaseStmt      Kind = "CASE_STMT"
	DefaultStmt   Kind = "DEFAULT_STMT"
	IfStmt        Kind = "IF_STMT"
	SwitchStmt    Kind = "SWITCH_STMT"
	WhileStmt     Kind = "WHILE_STMT"
	DoStmt        Kind = "DO_STMT"
	ForStmt       Kind = "FOR_STMT"
	ForRangeStmt  Kind = "CXX_FOR_RANGE_STMT"
	GotoStmt      Kind = "GOTO_STMT"
	ContinueStmt  Kind = "CONTINUE_STMT"
	BreakStmt     Kind = "BREAK_STMT"
	ReturnStmt    Kind = "RETURN_STMT"
	NullStmt      Kind = "NULL_STMT"
	DeclStmt      Kind = "DECL_STMT"

	MacroDefinition    Kind = "MACRO_DEFINITION"
	MacroInstantiation Kind = "MACRO_INSTANTIATION"
	InclusionDirective Kind = "INCLUSION_DIRECTIVE"
)

// IsReference reports whether the kind is itself a reference kind, as opposed to
// an expression that happens to refer to something.
func (k Kind) IsReference() bool {
	switch k {
	case TypeRef, MemberRef, LabelRef:
		return true
	}
	return false
}

// IsDeclaration reports whether the kind declares a named entity.
func (k Kind) IsDeclaration() bool {
	switch k {
	case StructDecl, UnionDecl, ClassDecl, EnumDecl, FieldDecl, EnumConstantDecl,
		FunctionDecl, VarDecl, ParmDecl, TypedefDecl, CXXMethod, Namespace,
		Constructor, Destructor:
		return true
	}
	return false
}

// Position is a 1-based line/column pair plus a 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Extent is the full source range of a cursor. End is exclusive.
type Extent struct {
	Start Position
	End   Position
}

// Cursor is one node of a parsed translation unit.
type Cursor interface {
	// File returns the source file the cursor lives in. Synthesized cursors
	// (the translation unit itself, builtins) report false.
	File() (string, bool)
	Location() Position
	Extent() Extent
	Kind() Kind
	// TypeKind names the resolved type's kind (INT, POINTER, FUNCTIONPROTO, ...).
	TypeKind() string
	Spelling() string
	DisplayName() string
	IsDefinition() bool
	IsStaticMethod() bool
	// Definition returns the defining cursor of the entity this cursor declares
	// or refers to, when the provider knows it.
	Definition() (Cursor, bool)
	// Referenced returns the declaration this cursor refers to. Declarations
	// refer to themselves.
	Referenced() (Cursor, bool)
	// USR is the stable unique identifier of the entity declared here, or "".
	USR() string
	Children() []Cursor
	Equal(other Cursor) bool
}

// Handle is a stable per-node identity assigned by a provider.
type Handle struct {
	Unit uint64
	Node uint64
}

// Handler is implemented by cursors whose provider assigns stable handles.
// Identity caches prefer it over equality scans.
type Handler interface {
	Handle() Handle
}

// TranslationUnit is one parsed source file together with what it pulled in.
type TranslationUnit interface {
	Path() string
	Root() Cursor
	Diagnostics() []Diagnostic
}
