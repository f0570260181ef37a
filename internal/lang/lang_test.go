package lang

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".c", "c"},
		{".h", "c"},
		{".cpp", "cpp"},
		{".CC", "cpp"},
		{".hpp", "cpp"},
		{".py", ""},
		{".go", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			got := ForExtension(tt.ext)
			if got != tt.want {
				t.Errorf("ForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		args []string
		want string
	}{
		{"extension c", "main.c", nil, "c"},
		{"extension cpp", "main.cpp", nil, "cpp"},
		{"header as c++", "api.h", []string{"-x", "c++"}, "cpp"},
		{"joined -x", "api.h", []string{"-xc++"}, "cpp"},
		{"std selects cpp", "api.h", []string{"-std=c++17", "-Iinclude"}, "cpp"},
		{"std selects c", "api.hpp", []string{"-std=c11"}, "c"},
		{"-x beats -std", "a.c", []string{"-x", "c", "-std=c++20"}, "c"},
		{"unsupported", "main.rs", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := ForFile(tt.path, tt.args)
			got := ""
			if l != nil {
				got = l.Name
			}
			if got != tt.want {
				t.Errorf("ForFile(%q, %v) = %q, want %q", tt.path, tt.args, got, tt.want)
			}
		})
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff([]string{"c", "cpp"}, Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
	for _, name := range Names() {
		l := Languages[name]
		if l.GetLanguage() == nil {
			t.Errorf("%s language is nil", name)
		}
		if l.NewParser() == nil {
			t.Errorf("%s NewParser returned nil", name)
		}
	}
	if !Languages["cpp"].CPlusPlus || Languages["c"].CPlusPlus {
		t.Error("CPlusPlus flag mismatch")
	}
}
