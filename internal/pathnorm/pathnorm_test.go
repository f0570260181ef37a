package pathnorm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeInsideWorkdir(t *testing.T) {
	t.Parallel()

	wd := t.TempDir()
	n := NewAt(wd)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"absolute", filepath.Join(wd, "src", "main.c"), filepath.Join("src", "main.c")},
		{"relative", filepath.Join("src", "main.c"), filepath.Join("src", "main.c")},
		{"dotted", filepath.Join(wd, "src", "..", "lib", "util.h"), filepath.Join("lib", "util.h")},
		{"dot prefix", "./a.c", "a.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := n.Normalize(tt.in)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if escapes(got) {
				t.Errorf("Normalize(%q) = %q contains a parent segment", tt.in, got)
			}
		})
	}
}

func TestNormalizeOutsideWorkdirIsCanonical(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	wd := filepath.Join(base, "work")
	outside := filepath.Join(base, "outside")
	if err := os.MkdirAll(wd, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(outside, "lib.h")
	if err := os.WriteFile(file, []byte("int x;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	n := NewAt(wd)
	realFile, err := filepath.EvalSymlinks(file)
	if err != nil {
		t.Fatal(err)
	}

	first := n.Normalize(filepath.Join(link, "lib.h"))
	if first != realFile {
		t.Errorf("Normalize via symlink = %q, want %q", first, realFile)
	}
	if !filepath.IsAbs(first) {
		t.Errorf("expected absolute path, got %q", first)
	}

	// A fresh normalizer bypasses the memo, so this checks the function itself.
	second := NewAt(wd).Normalize(first)
	if second != first {
		t.Errorf("not idempotent: %q then %q", first, second)
	}

	relative := n.Normalize(filepath.Join("..", "outside", "lib.h"))
	if relative != realFile {
		t.Errorf("Normalize(../outside/lib.h) = %q, want %q", relative, realFile)
	}
}

func TestNormalizeMissingFileOutsideWorkdir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	n := NewAt(filepath.Join(base, "work"))
	got := n.Normalize(filepath.Join(base, "gone", "x.c"))
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute fallback, got %q", got)
	}
	if strings.Contains(got, "..") {
		t.Errorf("fallback %q is not clean", got)
	}
}

func TestEscapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"a/b.c", false},
		{"../a.c", true},
		{"a/../../b.c", true},
		{"foo..c", false},
		{"..", true},
	}
	for _, tt := range tests {
		if got := escapes(filepath.FromSlash(tt.in)); got != tt.want {
			t.Errorf("escapes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewAtMakesDirAbsolute(t *testing.T) {
	t.Parallel()

	n := NewAt(filepath.Join("src", ".."))
	if !filepath.IsAbs(n.Dir()) {
		t.Fatalf("Dir = %q, want an absolute path", n.Dir())
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if n.Dir() != filepath.Clean(wd) {
		t.Errorf("Dir = %q, want %q", n.Dir(), wd)
	}
}
