// Package indexer turns a set of discovered files into tag records and
// persists them.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/breadchris/crange/internal/cursor"
	"github.com/breadchris/crange/internal/discover"
	"github.com/breadchris/crange/internal/extract"
	"github.com/breadchris/crange/internal/lang"
	"github.com/breadchris/crange/internal/model"
	"github.com/breadchris/crange/internal/parse"
	"github.com/breadchris/crange/internal/pathnorm"
	"github.com/breadchris/crange/internal/store"
)

// DefaultMaxFileSize is the size above which files are skipped.
const DefaultMaxFileSize = 1_000_000 // 1 MB

var (
	ErrNothingParsed = errors.New("no files could be parsed")
	ErrDiagnostics   = errors.New("translation unit has errors")
)

// Options configures an indexing run.
type Options struct {
	// Root is the directory discovered paths are relative to.
	Root string
	// Args are compile arguments; -x and -std= override the extension.
	Args []string
	// Jobs bounds the worker pool. Zero means GOMAXPROCS.
	Jobs int
	// MaxFileSize skips larger files. Zero means DefaultMaxFileSize.
	MaxFileSize int64
	// Strict turns error diagnostics into a failed run.
	Strict bool
	// Append keeps existing rows instead of rebuilding the table.
	Append  bool
	Extract extract.Config
}

// Stats summarizes a run.
type Stats struct {
	Files       int
	Parsed      int
	Skipped     int
	Records     int
	Diagnostics int
	Elapsed     time.Duration
}

// Indexer parses and extracts translation units in a bounded worker pool.
type Indexer struct {
	opts Options
	norm *pathnorm.Normalizer
	log  *slog.Logger
}

// New returns an Indexer. A nil logger discards output.
func New(opts Options, norm *pathnorm.Normalizer, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Indexer{opts: opts, norm: norm, log: logger}
}

// fragment is what one worker hands the collector for one file.
type fragment struct {
	ast   model.AST
	diags int
}

// worker is the per-goroutine state: parsers are not safe for concurrent use
// and identity caches are never shared.
type worker struct {
	ix      *Indexer
	parsers map[string]*sitter.Parser
	ext     *extract.Extractor
}

func (ix *Indexer) newWorker() *worker {
	return &worker{
		ix:      ix,
		parsers: make(map[string]*sitter.Parser),
		ext:     extract.New(ix.opts.Extract, ix.norm, ix.log),
	}
}

// Build parses and extracts files and merges the fragments into one mapping.
// Unreadable or oversized files are logged and skipped; the run fails only
// when none of the files could be parsed, or on the first error diagnostic in
// strict mode.
func (ix *Indexer) Build(ctx context.Context, files []discover.FileEntry) (model.AST, Stats, error) {
	start := time.Now()
	stats := Stats{Files: len(files)}
	if len(files) == 0 {
		return nil, stats, ErrNothingParsed
	}

	jobs := min(ix.opts.Jobs, len(files))
	idle := make(chan *worker, jobs)
	for range jobs {
		idle <- ix.newWorker()
	}

	results := make(chan fragment)
	ast := make(model.AST)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for frag := range results {
			ast.Merge(frag.ast)
			stats.Parsed++
			stats.Diagnostics += frag.diags
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			w := <-idle
			defer func() { idle <- w }()

			frag, ok, err := w.index(gctx, f)
			if err != nil || !ok {
				return err
			}
			select {
			case results <- frag:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	err := g.Wait()
	close(results)
	<-collected

	stats.Skipped = stats.Files - stats.Parsed
	stats.Records = ast.Len()
	stats.Elapsed = time.Since(start)

	if err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	if stats.Parsed == 0 {
		return nil, stats, ErrNothingParsed
	}
	return ast, stats, nil
}

// index handles one file. It reports false for files that were skipped.
func (w *worker) index(ctx context.Context, f discover.FileEntry) (fragment, bool, error) {
	log := w.ix.log
	abs := filepath.Join(w.ix.opts.Root, f.Path)

	info, err := os.Stat(abs)
	if err != nil {
		log.Warn("index.skip", "path", f.Path, "err", err)
		return fragment{}, false, nil
	}
	if info.Size() > w.ix.opts.MaxFileSize {
		log.Warn("index.skip", "path", f.Path, "size", info.Size(), "max", w.ix.opts.MaxFileSize)
		return fragment{}, false, nil
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		log.Warn("index.skip", "path", f.Path, "err", err)
		return fragment{}, false, nil
	}

	l := lang.ForFile(f.Path, w.ix.opts.Args)
	if l == nil {
		l = lang.Languages[f.Language]
	}
	if l == nil {
		log.Warn("index.skip", "path", f.Path, "language", f.Language)
		return fragment{}, false, nil
	}
	p, ok := w.parsers[l.Name]
	if !ok {
		p = l.NewParser()
		w.parsers[l.Name] = p
	}

	u, err := parse.Parse(ctx, l, p, source, abs)
	if err != nil {
		if ctx.Err() != nil {
			return fragment{}, false, ctx.Err()
		}
		log.Warn("index.skip", "path", f.Path, "err", err)
		return fragment{}, false, nil
	}

	errs := 0
	for _, d := range u.Diagnostics() {
		if d.Severity >= cursor.Error {
			errs++
		}
	}
	if errs > 0 && w.ix.opts.Strict {
		return fragment{}, false, fmt.Errorf("%s: %d errors: %w", f.Path, errs, ErrDiagnostics)
	}

	frag := fragment{ast: make(model.AST), diags: len(u.Diagnostics())}
	frag.ast.Merge(w.ext.ExtractUnit(u))
	w.ext.Release()

	log.Debug("index.file", "path", f.Path, "language", l.Name, "records", frag.ast.Len(), "errors", errs)
	return frag, true, nil
}

// Index builds the mapping for files and writes it to st in one batch,
// replacing the previous contents unless Append is set.
func (ix *Indexer) Index(ctx context.Context, st *store.Store, files []discover.FileEntry) (Stats, error) {
	ix.log.Info("index.start", "root", ix.opts.Root, "workdir", ix.norm.Dir(), "files", len(files), "jobs", ix.opts.Jobs, "db", st.Path())

	ast, stats, err := ix.Build(ctx, files)
	if err != nil {
		return stats, err
	}
	write := st.Replace
	if ix.opts.Append {
		write = st.Insert
	}
	if err := write(ctx, ast); err != nil {
		return stats, err
	}
	ast.Clear()

	ix.log.Info("index.done",
		"parsed", stats.Parsed,
		"skipped", stats.Skipped,
		"records", stats.Records,
		"diagnostics", stats.Diagnostics,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
	)
	return stats, nil
}
