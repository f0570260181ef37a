// Package extract flattens cursor trees into tag records grouped by file.
package extract

import (
	"log/slog"

	"github.com/breadchris/crange/internal/cursor"
	"github.com/breadchris/crange/internal/model"
	"github.com/breadchris/crange/internal/pathnorm"
)

// Config controls one extraction run.
type Config struct {
	// Verbose logs every recorded node at debug level.
	Verbose bool
	// ShowIDs numbers node identities so records that print alike can be told apart.
	ShowIDs bool
	// MaxDepth bounds the walk: children of a node at depth d are visited only
	// while d < *MaxDepth. Nil means unbounded.
	MaxDepth *int
}

// Depth returns a MaxDepth value for d.
func Depth(d int) *int { return &d }

// Extractor accumulates tag records across any number of roots. It is not
// safe for concurrent use; give each worker its own.
type Extractor struct {
	cfg   Config
	norm  *pathnorm.Normalizer
	log   *slog.Logger
	ast   model.AST
	ids   map[string][]int
	cache *IDCache
}

// New returns an Extractor. A nil logger discards output.
func New(cfg Config, norm *pathnorm.Normalizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Extractor{
		cfg:  cfg,
		norm: norm,
		log:  logger,
		ast:  make(model.AST),
	}
	if cfg.ShowIDs {
		e.ids = make(map[string][]int)
		e.cache = NewIDCache()
	}
	return e
}

// Extract walks each root in pre-order and appends a record for every node
// that has a file. Depth restarts at 0 for every root. It returns the
// accumulated mapping.
func (e *Extractor) Extract(roots ...cursor.Cursor) model.AST {
	for _, r := range roots {
		e.walk(r, 0)
	}
	return e.ast
}

// ExtractUnit walks the root of tu. Diagnostics are logged, never fatal.
func (e *Extractor) ExtractUnit(tu cursor.TranslationUnit) model.AST {
	for _, d := range tu.Diagnostics() {
		e.log.Debug("extract.diagnostic", "unit", tu.Path(), "diagnostic", d.String())
	}
	ast := e.Extract(tu.Root())
	if e.cfg.Verbose {
		attrs := []any{"unit", tu.Path(), "records", ast.Len()}
		if e.cache != nil {
			attrs = append(attrs, "ids", e.cache.Len())
		}
		e.log.Debug("extract.unit", attrs...)
	}
	return ast
}

func (e *Extractor) walk(c cursor.Cursor, depth int) {
	if file, ok := c.File(); ok {
		rec := Record(c, e.norm.Normalize(file))
		e.ast.Append(rec)
		id, hasID := e.CursorID(c)
		if hasID {
			e.ids[rec.Location] = append(e.ids[rec.Location], id)
		}
		if e.cfg.Verbose {
			attrs := []any{
				"location", rec.Location,
				"line", rec.Line,
				"kind", rec.Kind,
				"spelling", rec.Spelling,
				"depth", depth,
			}
			if c.Kind().IsDeclaration() {
				attrs = append(attrs, "decl", true)
			}
			if hasID {
				attrs = append(attrs, "id", id)
			}
			e.log.Debug("extract.node", attrs...)
		}
	}
	if e.cfg.MaxDepth != nil && depth >= *e.cfg.MaxDepth {
		return
	}
	for _, child := range c.Children() {
		e.walk(child, depth+1)
	}
}

// Record derives the tag record of c, stored under location.
func Record(c cursor.Cursor, location string) model.TagRecord {
	loc := c.Location()
	ext := c.Extent()
	rec := model.TagRecord{
		Location:  location,
		Line:      loc.Line,
		Column:    loc.Column,
		Offset:    loc.Offset,
		StartLine: ext.Start.Line,
		StartCol:  ext.Start.Column,
		EndLine:   ext.End.Line,
		EndCol:    ext.End.Column,
		Kind:      string(c.Kind()),
		Type:      c.TypeKind(),
		Spelling:  c.Spelling(),
		Display:   c.DisplayName(),
		IsDef:     c.IsDefinition(),
		IsStatic:  c.IsStaticMethod(),
		IsRef:     c.Kind().IsReference(),
		USR:       c.USR(),
	}
	if d, ok := c.Definition(); ok && d != nil {
		rec.Def = d.USR()
	}
	if r, ok := c.Referenced(); ok && r != nil {
		rec.Ref = r.USR()
	}
	return rec
}

// CursorID returns the identity number of c. It reports false unless the
// extractor was configured with ShowIDs.
func (e *Extractor) CursorID(c cursor.Cursor) (int, bool) {
	if e.cache == nil {
		return 0, false
	}
	return e.cache.ID(c), true
}

// AST returns the records accumulated so far.
func (e *Extractor) AST() model.AST { return e.ast }

// IDs returns, per file, the identity numbers parallel to that file's
// records. It is nil unless ShowIDs is set.
func (e *Extractor) IDs() map[string][]int { return e.ids }

// Release drops the accumulated mapping and identities. The extractor can be
// reused afterwards.
func (e *Extractor) Release() {
	e.ast.Clear()
	if e.cache != nil {
		clear(e.ids)
		e.cache.Reset()
	}
}
