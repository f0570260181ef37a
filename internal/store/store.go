// Package store persists tag records in SQLite and answers symbol queries.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/breadchris/crange/internal/model"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	ErrSchemaMismatch = errors.New("tags table does not match the expected schema")
	ErrLocked         = errors.New("tag store is locked by another writer")
	ErrClosed         = errors.New("tag store is closed")
)

// columns is the tags table layout, in declaration order.
var columns = []string{
	"location", "line", "column", "offset",
	"start_line", "start_col", "end_line", "end_col",
	"kind_name", "type_name", "spelling", "display",
	"is_def", "def", "is_static", "is_ref", "ref", "usr",
}

// Row is one query result. Find fills USR, FindRefs fills Ref; the kind
// and type listings fill neither.
type Row struct {
	Location string
	Line     int
	Kind     string
	Type     string
	Spelling string
	Display  string
	USR      string
	Ref      string
}

// Store is an open tag database.
type Store struct {
	conn   *sql.DB
	mu     sync.RWMutex
	path   string
	lock   *flock.Flock
	closed bool
}

// Open opens the store at path for queries, creating it if absent.
func Open(path string) (*Store, error) {
	return open(path, nil)
}

// OpenWriter opens the store at path for writing. Only one writer may hold a
// store at a time; a second one fails with ErrLocked.
func OpenWriter(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	s, err := open(path, lock)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}
	return nil
}

func open(path string, lock *flock.Flock) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// Pragmas are per connection.
	conn.SetMaxOpenConns(1)

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	// An existing table is checked before the indexes touch its columns.
	if err := checkSchema(conn, true); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	if err := checkSchema(conn, false); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{conn: conn, path: path, lock: lock}, nil
}

// checkSchema compares the column names of the tags table with the expected
// layout. There is no migration. A missing table passes when allowMissing.
func checkSchema(conn *sql.DB, allowMissing bool) error {
	rows, err := conn.Query(`PRAGMA table_info(tags)`)
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("reading schema: %w", err)
		}
		got = append(got, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	if len(got) == 0 && allowMissing {
		return nil
	}
	if !slices.Equal(got, columns) {
		return fmt.Errorf("%w: have columns %v", ErrSchemaMismatch, got)
	}
	return nil
}

// Path returns the database file the store was opened on.
func (s *Store) Path() string { return s.path }

// Close closes the database and releases the writer lock, if held, removing
// its lock file. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.conn.Close()
	if s.lock != nil {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
		if rerr := os.Remove(s.lock.Path()); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) && err == nil {
			err = rerr
		}
	}
	return err
}

func (s *Store) db() (*sql.DB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.conn, nil
}

const insertSQL = `INSERT INTO tags (
	location, line, "column", "offset", start_line, start_col, end_line, end_col,
	kind_name, type_name, spelling, display, is_def, def, is_static, is_ref, ref, usr
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Insert writes every record of ast in one transaction: files in sorted
// order, records of a file in traversal order.
func (s *Store) Insert(ctx context.Context, ast model.AST) error {
	return s.write(ctx, ast, false)
}

// Replace swaps the whole table for the records of ast. The delete and the
// inserts share one transaction, so a failed or cancelled rebuild leaves the
// previous rows in place.
func (s *Store) Replace(ctx context.Context, ast model.AST) error {
	return s.write(ctx, ast, true)
}

func (s *Store) write(ctx context.Context, ast model.AST, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, err := s.db()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags`); err != nil {
			return fmt.Errorf("clearing tags: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, file := range ast.Files() {
		for _, r := range ast[file] {
			_, err := stmt.ExecContext(ctx,
				r.Location, r.Line, r.Column, r.Offset,
				r.StartLine, r.StartCol, r.EndLine, r.EndCol,
				r.Kind, r.Type, r.Spelling, r.Display,
				boolInt(r.IsDef), r.Def, boolInt(r.IsStatic), boolInt(r.IsRef), r.Ref, r.USR,
			)
			if err != nil {
				return fmt.Errorf("inserting %s:%d: %w", r.Location, r.Line, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Clear deletes every row.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, err := s.db()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	return nil
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, err := s.db()
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tags: %w", err)
	}
	return n, nil
}

// Find returns every record spelled exactly name, in storage order.
func (s *Store) Find(ctx context.Context, name string) ([]Row, error) {
	return s.query(ctx, scanUSR,
		`SELECT location, line, kind_name, type_name, spelling, display, usr
		 FROM tags WHERE spelling = ? ORDER BY rowid`, name)
}

// FindRefs returns the use sites of whatever is spelled name: records whose
// ref is the def of some record spelled name, that declare nothing themselves,
// are not definitions and are not implicit conversions.
func (s *Store) FindRefs(ctx context.Context, name string) ([]Row, error) {
	return s.query(ctx, scanRef,
		`SELECT location, line, kind_name, type_name, spelling, display, ref
		 FROM tags
		 WHERE ref IN (SELECT def FROM tags WHERE spelling = ?)
		   AND ref <> ''
		   AND usr = ''
		   AND kind_name <> 'UNEXPOSED_EXPR'
		   AND is_def = 0
		 ORDER BY rowid`, name)
}

// Kinds returns the distinct cursor kinds in the store, sorted.
func (s *Store) Kinds(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT kind_name FROM tags ORDER BY kind_name ASC`)
}

// FindKind returns every record of the given kind.
func (s *Store) FindKind(ctx context.Context, kind string) ([]Row, error) {
	return s.query(ctx, scanPlain,
		`SELECT location, line, kind_name, type_name, spelling, display
		 FROM tags WHERE kind_name = ? ORDER BY rowid`, kind)
}

// Types returns the distinct type kinds in the store, sorted.
func (s *Store) Types(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT type_name FROM tags ORDER BY type_name ASC`)
}

// FindType returns every record of the given type kind.
func (s *Store) FindType(ctx context.Context, typ string) ([]Row, error) {
	return s.query(ctx, scanPlain,
		`SELECT location, line, kind_name, type_name, spelling, display
		 FROM tags WHERE type_name = ? ORDER BY rowid`, typ)
}

type scanner func(rows *sql.Rows, r *Row) error

func scanPlain(rows *sql.Rows, r *Row) error {
	return rows.Scan(&r.Location, &r.Line, &r.Kind, &r.Type, &r.Spelling, &r.Display)
}

func scanUSR(rows *sql.Rows, r *Row) error {
	return rows.Scan(&r.Location, &r.Line, &r.Kind, &r.Type, &r.Spelling, &r.Display, &r.USR)
}

func scanRef(rows *sql.Rows, r *Row) error {
	return rows.Scan(&r.Location, &r.Line, &r.Kind, &r.Type, &r.Spelling, &r.Display, &r.Ref)
}

func (s *Store) query(ctx context.Context, scan scanner, q string, args ...any) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := scan(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	return out, nil
}

func (s *Store) distinct(ctx context.Context, q string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	return out, nil
}
