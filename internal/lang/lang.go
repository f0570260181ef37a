// Package lang provides a language registry mapping file extensions to
// tree-sitter grammars for the C family.
package lang

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	// USRPrefix starts every synthesized USR, mirroring clang ("c:").
	USRPrefix string
	// CPlusPlus enables C++-only constructs (classes, namespaces, methods).
	CPlusPlus bool
	lang      *sitter.Language
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// Names returns the registered language names, sorted.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForFile picks the language for path, letting compile arguments override the
// extension the way a compiler driver does: "-x c", "-x c++", "-xc++" and
// "-std=c++17" style flags win over the file name. It returns nil when
// neither the arguments nor the extension name a supported language.
func ForFile(path string, args []string) *Language {
	if name := fromArgs(args); name != "" {
		return Languages[name]
	}
	return Languages[ForExtension(filepath.Ext(path))]
}

func fromArgs(args []string) string {
	var name string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-x" && i+1 < len(args):
			i++
			name = languageForDriverName(args[i])
		case strings.HasPrefix(a, "-x") && len(a) > 2:
			name = languageForDriverName(a[2:])
		case strings.HasPrefix(a, "-std="):
			if name == "" {
				std := strings.TrimPrefix(a, "-std=")
				if strings.Contains(std, "++") {
					name = "cpp"
				} else {
					name = "c"
				}
			}
		}
	}
	return name
}

func languageForDriverName(x string) string {
	switch x {
	case "c", "c-header":
		return "c"
	case "c++", "c++-header":
		return "cpp"
	}
	return ""
}
