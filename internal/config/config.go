// Package config loads crange settings from defaults, a YAML file and the
// environment. Command-line flags are layered on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/breadchris/crange/internal/discover"
	"github.com/breadchris/crange/internal/extract"
	"github.com/breadchris/crange/internal/indexer"
	"github.com/breadchris/crange/internal/lang"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".crange.yaml"

// DefaultDatabase is the store path used when nothing else names one.
const DefaultDatabase = "tags.db"

// Config is the in-memory representation of .crange.yaml.
type Config struct {
	Database    string   `yaml:"database"`
	MaxDepth    *int     `yaml:"max_depth,omitempty"`
	ShowIDs     bool     `yaml:"show_ids,omitempty"`
	Verbose     bool     `yaml:"verbose,omitempty"`
	Jobs        int      `yaml:"jobs,omitempty"`
	Args        []string `yaml:"args,omitempty"`
	Languages   []string `yaml:"languages,omitempty"`
	Include     []string `yaml:"include,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
	MaxFileSize int64    `yaml:"max_file_size,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Database:    DefaultDatabase,
		MaxFileSize: indexer.DefaultMaxFileSize,
	}
}

// Load returns the defaults overlaid with the config file and then the
// environment. An empty path looks for FileName in dir and tolerates its
// absence; an explicit path must exist.
func Load(path, dir string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("CRANGE_DB"); v != "" {
		c.Database = v
	}
	if v := getenv("CRANGE_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRANGE_JOBS: %w", err)
		}
		c.Jobs = n
	}
	if v := getenv("CRANGE_MAX_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRANGE_MAX_DEPTH: %w", err)
		}
		c.MaxDepth = &n
	}
	for name, dst := range map[string]*bool{
		"CRANGE_VERBOSE":  &c.Verbose,
		"CRANGE_SHOW_IDS": &c.ShowIDs,
	} {
		if v := getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("database path is empty")
	}
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0, got %d", *c.MaxDepth)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be >= 0, got %d", c.Jobs)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	}
	for _, name := range c.Languages {
		if _, ok := lang.Languages[name]; !ok {
			return fmt.Errorf("unsupported language %q (known: %s)", name, strings.Join(lang.Names(), ", "))
		}
	}
	return c.Discover().Validate()
}

// Extract returns the extractor settings.
func (c *Config) Extract() extract.Config {
	return extract.Config{Verbose: c.Verbose, ShowIDs: c.ShowIDs, MaxDepth: c.MaxDepth}
}

// Discover returns the file selection settings.
func (c *Config) Discover() discover.Options {
	return discover.Options{Languages: c.Languages, Include: c.Include, Exclude: c.Exclude}
}

// Indexer returns the pipeline settings for a run rooted at root.
func (c *Config) Indexer(root string) indexer.Options {
	return indexer.Options{
		Root:        root,
		Args:        c.Args,
		Jobs:        c.Jobs,
		MaxFileSize: c.MaxFileSize,
		Extract:     c.Extract(),
	}
}
