package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/breadchris/crange/internal/extract"
	"github.com/breadchris/crange/internal/lang"
	"github.com/breadchris/crange/internal/parse"
	"github.com/breadchris/crange/internal/pathnorm"
)

func (a *app) dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dump <file> [-- compile args]",
		Short:   "Print the tag records and diagnostics of one file without storing them",
		Example: "  crange dump src/main.c --max-depth 2 -- -x c++",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positional, compile := splitArgs(cmd, args)
			if len(positional) != 1 {
				return fmt.Errorf("dump takes exactly one file, got %d", len(positional))
			}
			if err := a.load(cmd); err != nil {
				return err
			}
			return a.runDump(cmd, positional[0], append(append([]string(nil), a.cfg.Args...), compile...))
		},
	}
	f := cmd.Flags()
	f.IntVar(&a.maxDepth, "max-depth", 0, "stop descending below this depth (default unbounded)")
	f.BoolVar(&a.showIDs, "show-ids", false, "add a node identity column")
	return cmd
}

func (a *app) runDump(cmd *cobra.Command, path string, args []string) error {
	l := lang.ForFile(path, args)
	if l == nil {
		return fmt.Errorf("%s: unsupported language", path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	u, err := parse.Parse(cmd.Context(), l, l.NewParser(), source, path)
	if err != nil {
		return err
	}
	norm, err := pathnorm.New()
	if err != nil {
		return err
	}

	e := extract.New(a.cfg.Extract(), norm, a.log)
	ast := e.ExtractUnit(u)
	defer e.Release()

	cols := []string{"location", "line", "column", "kind", "type", "spelling", "display", "is_def", "def", "ref", "usr"}
	if a.cfg.ShowIDs {
		cols = append([]string{"id"}, cols...)
	}
	records := table("records", cols...)
	ids := e.IDs()
	for _, file := range ast.Files() {
		for i, r := range ast[file] {
			cells := []any{r.Location, r.Line, r.Column, r.Kind, r.Type, r.Spelling, r.Display, r.IsDef, r.Def, r.Ref, r.USR}
			if a.cfg.ShowIDs {
				cells = append([]any{ids[file][i]}, cells...)
			}
			records.AddRow(cells...)
		}
	}

	diags := table("diagnostics", "location", "line", "column", "severity", "message", "fixits")
	for _, d := range u.Diagnostics() {
		diags.AddRow(norm.Normalize(d.File), d.Location.Line, d.Location.Column, d.Severity, d.Spelling, len(d.FixIts))
	}
	return a.print(records, diags)
}
