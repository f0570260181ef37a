// Package model defines core data structures for crange.
package model

import "sort"

// TagRecord is the flattened form of one AST node with a concrete file location.
// Empty Def, Ref and USR mean the provider reported no such linkage.
type TagRecord struct {
	Location  string
	Line      int
	Column    int
	Offset    int
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
	Kind      string
	Type      string
	Spelling  string
	Display   string
	IsDef     bool
	Def       string
	IsStatic  bool
	IsRef     bool
	Ref       string
	USR       string
}

// AST maps a normalized file path to its records in pre-order traversal order.
type AST map[string][]TagRecord

// Append adds rec under its own location.
func (a AST) Append(rec TagRecord) {
	a[rec.Location] = append(a[rec.Location], rec)
}

// Merge appends every record of other, file by file, preserving order within each file.
func (a AST) Merge(other AST) {
	for loc, recs := range other {
		a[loc] = append(a[loc], recs...)
	}
}

// Files returns the mapping keys in sorted order.
func (a AST) Files() []string {
	files := make([]string, 0, len(a))
	for f := range a {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Len returns the total number of records across all files.
func (a AST) Len() int {
	n := 0
	for _, recs := range a {
		n += len(recs)
	}
	return n
}

// Clear drops every entry. The mapping stays usable afterwards.
func (a AST) Clear() {
	for k := range a {
		delete(a, k)
	}
}
