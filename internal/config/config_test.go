package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/breadchris/crange/internal/extract"
	"github.com/breadchris/crange/internal/indexer"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", t.TempDir(), env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadLayers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yml := `database: out/tags.db
max_depth: 3
jobs: 2
args: ["-x", "c++", "-DDEBUG"]
languages: [cpp]
include: ["src/**"]
exclude: ["**/test/**"]
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", dir, env(map[string]string{
		"CRANGE_JOBS":     "8",
		"CRANGE_SHOW_IDS": "true",
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Database:    "out/tags.db",
		MaxDepth:    extract.Depth(3),
		ShowIDs:     true,
		Jobs:        8,
		Args:        []string{"-x", "c++", "-DDEBUG"},
		Languages:   []string{"cpp"},
		Include:     []string{"src/**"},
		Exclude:     []string{"**/test/**"},
		MaxFileSize: indexer.DefaultMaxFileSize,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}

	opts := cfg.Indexer("/src")
	if opts.Root != "/src" || opts.Jobs != 8 || !opts.Extract.ShowIDs || *opts.Extract.MaxDepth != 3 {
		t.Errorf("indexer options = %+v", opts)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("database: custom.db\nverbose: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, t.TempDir(), env(map[string]string{"CRANGE_DB": "env.db"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database != "env.db" || !cfg.Verbose {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml"), dir, env(nil)); err == nil {
		t.Error("a named config file that does not exist should fail")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad yaml", yaml: "jobs: [\n"},
		{name: "bad jobs", env: map[string]string{"CRANGE_JOBS": "many"}},
		{name: "bad depth", env: map[string]string{"CRANGE_MAX_DEPTH": "deep"}},
		{name: "bad bool", env: map[string]string{"CRANGE_VERBOSE": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			if tt.yaml != "" {
				if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.yaml), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := Load("", dir, env(tt.env)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"depth zero", func(c *Config) { c.MaxDepth = extract.Depth(0) }, true},
		{"negative depth", func(c *Config) { c.MaxDepth = extract.Depth(-1) }, false},
		{"negative jobs", func(c *Config) { c.Jobs = -2 }, false},
		{"negative size", func(c *Config) { c.MaxFileSize = -1 }, false},
		{"empty database", func(c *Config) { c.Database = "" }, false},
		{"known languages", func(c *Config) { c.Languages = []string{"c", "cpp"} }, true},
		{"unknown language", func(c *Config) { c.Languages = []string{"rust"} }, false},
		{"bad glob", func(c *Config) { c.Include = []string{"[x"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
