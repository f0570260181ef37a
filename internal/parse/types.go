package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Type kind names, as libclang spells CXTypeKind.
const (
	invalidType     = "INVALID"
	unexposedType   = "UNEXPOSED"
	voidType        = "VOID"
	boolType        = "BOOL"
	intType         = "INT"
	uintType        = "UINT"
	ulongType       = "ULONG"
	doubleType      = "DOUBLE"
	floatType       = "FLOAT"
	pointerType     = "POINTER"
	recordType      = "RECORD"
	enumType        = "ENUM"
	typedefType     = "TYPEDEF"
	elaboratedType  = "ELABORATED"
	protoType       = "FUNCTIONPROTO"
	noProtoType     = "FUNCTIONNOPROTO"
	constArrayType  = "CONSTANTARRAY"
	incompleteArray = "INCOMPLETEARRAY"
	nullPtrType     = "NULLPTR"
)

var primitiveTypes = map[string]string{
	"void":     voidType,
	"char":     "CHAR_S",
	"int":      intType,
	"float":    floatType,
	"double":   doubleType,
	"bool":     boolType,
	"_Bool":    boolType,
	"short":    "SHORT",
	"long":     "LONG",
	"signed":   intType,
	"unsigned": uintType,
	"wchar_t":  "WCHAR",
	"char16_t": "CHAR16",
	"char32_t": "CHAR32",
	"auto":     "AUTO",
}

// primitiveKind maps a primitive_type token. tree-sitter-c also treats the
// standard typedefs (size_t, uint8_t, ...) as primitives; those are typedefs.
func primitiveKind(text string) string {
	if k, ok := primitiveTypes[text]; ok {
		return k
	}
	return typedefType
}

// sizedKind maps sized_type_specifier text such as "unsigned long long".
func sizedKind(text string) string {
	fields := strings.Fields(text)
	unsigned := false
	longs := 0
	base := ""
	for _, f := range fields {
		switch f {
		case "unsigned":
			unsigned = true
		case "long":
			longs++
		case "short", "char", "double":
			base = f
		}
	}
	switch {
	case base == "double":
		return "LONGDOUBLE"
	case base == "char" && unsigned:
		return "UCHAR"
	case base == "char":
		return "SCHAR"
	case base == "short" && unsigned:
		return "USHORT"
	case base == "short":
		return "SHORT"
	case longs >= 2 && unsigned:
		return "ULONGLONG"
	case longs >= 2:
		return "LONGLONG"
	case longs == 1 && unsigned:
		return ulongType
	case longs == 1:
		return "LONG"
	case unsigned:
		return uintType
	}
	return intType
}

// wrapperKind returns the type kind a declarator layer contributes, or "" for
// layers that do not change the type (parentheses, initializers).
func (b *builder) wrapperKind(d *sitter.Node) string {
	switch d.Type() {
	case "pointer_declarator", "abstract_pointer_declarator":
		return pointerType
	case "array_declarator", "abstract_array_declarator":
		if d.ChildByFieldName("size") != nil {
			return constArrayType
		}
		return incompleteArray
	case "function_declarator", "abstract_function_declarator":
		if b.cpp {
			return protoType
		}
		params := d.ChildByFieldName("parameters")
		if params != nil && params.NamedChildCount() == 0 {
			return noProtoType
		}
		return protoType
	case "reference_declarator", "abstract_reference_declarator":
		if strings.HasPrefix(b.text(d), "&&") {
			return "RVALUEREFERENCE"
		}
		return "LVALUEREFERENCE"
	}
	return ""
}

// baseKind maps the type specifier of a declaration.
func (b *builder) baseKind(typ *sitter.Node) string {
	if typ == nil {
		return intType
	}
	switch typ.Type() {
	case "primitive_type":
		return primitiveKind(b.text(typ))
	case "sized_type_specifier":
		return sizedKind(b.text(typ))
	case "type_identifier":
		if sym, ok := b.lookupType(b.text(typ)); ok && sym.typeKind != "" {
			return sym.typeKind
		}
		return typedefType
	case "struct_specifier", "union_specifier", "class_specifier", "enum_specifier":
		if b.cpp && typ.ChildByFieldName("body") != nil {
			if typ.Type() == "enum_specifier" {
				return enumType
			}
			return recordType
		}
		return elaboratedType
	case "placeholder_type_specifier", "auto":
		return "AUTO"
	}
	return elaboratedType
}

// declType describes the type of one declarator.
type declType struct {
	kind   string // type of the declared entity
	result string // for functions: the return type
	record string // USR of the struct/class the base type names, if any
}

// typeOf combines the base type with the declarator layers. Layers closest
// to the name bind tightest, so they give the entity's own type kind and
// the next layer out gives a function's result type.
func (b *builder) typeOf(typ *sitter.Node, layers []*sitter.Node) declType {
	base := b.baseKind(typ)
	var kinds []string
	for i := len(layers) - 1; i >= 0; i-- {
		if k := b.wrapperKind(layers[i]); k != "" {
			kinds = append(kinds, k)
		}
	}
	dt := declType{kind: base, result: base, record: b.recordOf(typ)}
	if len(kinds) > 0 {
		dt.kind = kinds[0]
		if len(kinds) > 1 {
			dt.result = kinds[1]
		}
	}
	return dt
}

// recordOf returns the USR of the aggregate a type specifier names.
func (b *builder) recordOf(typ *sitter.Node) string {
	if typ == nil {
		return ""
	}
	switch typ.Type() {
	case "struct_specifier", "union_specifier", "class_specifier":
		name := typ.ChildByFieldName("name")
		if name == nil {
			if typ.ChildByFieldName("body") != nil {
				return b.anonUSR(typ)
			}
			return ""
		}
		if sym, ok := b.lookupTag(b.text(name)); ok {
			return sym.usr
		}
	case "qualified_identifier":
		sym, ok := b.qualified[b.named().qual+b.text(typ)]
		if !ok {
			sym, ok = b.qualified[b.text(typ)]
		}
		if ok {
			return sym.record
		}
	case "type_identifier":
		if sym, ok := b.lookupType(b.text(typ)); ok {
			if sym.record != "" {
				return sym.record
			}
			if sym.typeKind == recordType {
				return sym.usr
			}
		}
	}
	return ""
}
