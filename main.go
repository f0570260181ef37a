// crange builds a searchable tag index from the syntax trees of C-family
// sources and answers symbol and reference queries against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/breadchris/crange/internal/config"
	"github.com/breadchris/crange/internal/discover"
	"github.com/breadchris/crange/internal/indexer"
	"github.com/breadchris/crange/internal/pathnorm"
	"github.com/breadchris/crange/internal/store"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := runContext(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	return runContext(context.Background(), args, stdout, stderr)
}

func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	stdout, stderr io.Writer

	configPath string
	format     string

	// Flag values; only flags that were set override the loaded config.
	db          string
	verbose     bool
	maxDepth    int
	showIDs     bool
	jobs        int
	languages   []string
	include     []string
	exclude     []string
	maxFileSize int64

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "crange",
		Short: "Tag index and symbol queries for C and C++ sources",
		Long: `crange parses C and C++ translation units, flattens their syntax trees into
tag records and stores them in SQLite. The query commands find symbols by
name, list the use sites of a symbol and group records by kind or type.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("crange {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ./"+config.FileName+")")
	pf.StringVar(&a.db, "db", config.DefaultDatabase, "tag store path")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log every recorded node and diagnostic")
	pf.StringVar(&a.format, "format", "toon", "output format: toon or table")

	root.AddCommand(
		a.indexCmd(),
		a.findCmd(),
		a.refsCmd(),
		a.kindsCmd(),
		a.typesCmd(),
		a.dumpCmd(),
		a.initCmd(),
	)
	return root
}

// load layers the flags that were set on top of the config file and the
// environment, validates the result and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	if a.format != "toon" && a.format != "table" {
		return fmt.Errorf("unknown format %q (want toon or table)", a.format)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	cfg, err := config.Load(a.configPath, wd, os.Getenv)
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	if fs.Changed("db") {
		cfg.Database = a.db
	}
	if fs.Changed("verbose") {
		cfg.Verbose = a.verbose
	}
	if fs.Changed("max-depth") {
		d := a.maxDepth
		cfg.MaxDepth = &d
	}
	if fs.Changed("show-ids") {
		cfg.ShowIDs = a.showIDs
	}
	if fs.Changed("jobs") {
		cfg.Jobs = a.jobs
	}
	if fs.Changed("langs") {
		cfg.Languages = a.languages
	}
	if fs.Changed("include") {
		cfg.Include = a.include
	}
	if fs.Changed("exclude") {
		cfg.Exclude = a.exclude
	}
	if fs.Changed("max-file-size") {
		cfg.MaxFileSize = a.maxFileSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// splitArgs separates positional arguments from compile arguments given
// after "--".
func splitArgs(cmd *cobra.Command, args []string) (positional, compile []string) {
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		return args[:dash], args[dash:]
	}
	return args, nil
}

func (a *app) indexCmd() *cobra.Command {
	var appendRows, strict bool

	cmd := &cobra.Command{
		Use:   "index [root] [-- compile args]",
		Short: "Parse every translation unit under root and rebuild the tag store",
		Example: `  crange index
  crange index src -j 8 --exclude '**/test/**'
  crange index . -- -x c++ -std=c++17`,
		RunE: func(cmd *cobra.Command, args []string) error {
			positional, compile := splitArgs(cmd, args)
			if len(positional) > 1 {
				return fmt.Errorf("index takes at most one root, got %d", len(positional))
			}
			if err := a.load(cmd); err != nil {
				return err
			}
			root := "."
			if len(positional) == 1 {
				root = positional[0]
			}
			opts := a.cfg.Indexer("")
			opts.Args = append(append([]string(nil), opts.Args...), compile...)
			opts.Append = appendRows
			opts.Strict = strict
			return a.runIndex(cmd.Context(), root, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&a.maxDepth, "max-depth", 0, "stop descending below this depth (default unbounded)")
	f.BoolVar(&a.showIDs, "show-ids", false, "number node identities in verbose output")
	f.IntVarP(&a.jobs, "jobs", "j", 0, "parallel workers (default GOMAXPROCS)")
	f.BoolVar(&appendRows, "append", false, "keep existing rows instead of rebuilding")
	f.BoolVar(&strict, "strict", false, "fail on error diagnostics")
	f.StringSliceVarP(&a.languages, "langs", "l", nil, "comma-separated languages to include (c, cpp)")
	f.StringArrayVar(&a.include, "include", nil, "only index paths matching this glob (repeatable)")
	f.StringArrayVar(&a.exclude, "exclude", nil, "skip paths matching this glob (repeatable)")
	f.Int64Var(&a.maxFileSize, "max-file-size", indexer.DefaultMaxFileSize, "skip files larger than this many bytes")
	return cmd
}

func (a *app) runIndex(ctx context.Context, root string, opts indexer.Options) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}
	opts.Root = root

	files, err := discover.Files(root, a.cfg.Discover())
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return errors.New("no parseable files found")
	}

	norm, err := pathnorm.New()
	if err != nil {
		return err
	}
	st, err := store.OpenWriter(a.cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := indexer.New(opts, norm, a.log).Index(ctx, st, files)
	if err != nil {
		return err
	}
	if err := st.Close(); err != nil {
		return err
	}

	t := table("index", "files", "parsed", "skipped", "records", "diagnostics")
	t.AddRow(stats.Files, stats.Parsed, stats.Skipped, stats.Records, stats.Diagnostics)
	return a.print(t)
}
