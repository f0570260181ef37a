package lang

import "github.com/smacker/go-tree-sitter/cpp"

func init() {
	Languages["cpp"] = &Language{
		Name:       "cpp",
		Extensions: []string{".cc", ".cpp", ".cxx", ".c++", ".hh", ".hpp", ".hxx", ".h++", ".inl"},
		USRPrefix:  "c:",
		CPlusPlus:  true,
		lang:       cpp.GetLanguage(),
	}
}
