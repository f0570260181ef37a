package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/breadchris/crange/internal/store"
)

// withStore opens the configured store for queries and closes it when fn
// returns. A store that was never built is an error, not an empty result.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	if err := a.load(cmd); err != nil {
		return err
	}
	if _, err := os.Stat(a.cfg.Database); err != nil {
		return fmt.Errorf("no tag store at %s (run crange index first): %w", a.cfg.Database, err)
	}
	st, err := store.Open(a.cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

func (a *app) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "find <name>",
		Short:   "List every record spelled exactly name",
		Example: "  crange find parse_header",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				rows, err := st.Find(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(rowTable("find", "usr", rows))
			})
		},
	}
}

func (a *app) refsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "refs <name>",
		Short:   "List the use sites of the symbols spelled name",
		Example: "  crange refs parse_header --format table",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				rows, err := st.FindRefs(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(rowTable("refs", "ref", rows))
			})
		},
	}
}

// groupCmd builds the kinds and types commands: without an argument they
// list the distinct values, with one they list the matching records.
func (a *app) groupCmd(name, short, example string,
	list func(*store.Store, context.Context) ([]string, error),
	find func(*store.Store, context.Context, string) ([]store.Row, error),
) *cobra.Command {
	return &cobra.Command{
		Use:     name + " [value]",
		Short:   short,
		Example: "  crange " + name + "\n  crange " + name + " " + example,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(ctx context.Context, st *store.Store) error {
				if len(args) == 0 {
					values, err := list(st, ctx)
					if err != nil {
						return err
					}
					return a.printList(name, values)
				}
				rows, err := find(st, ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(rowTable(name, "", rows))
			})
		},
	}
}

func (a *app) kindsCmd() *cobra.Command {
	return a.groupCmd("kinds", "List cursor kinds, or the records of one kind", "FUNCTION_DECL",
		(*store.Store).Kinds, (*store.Store).FindKind)
}

func (a *app) typesCmd() *cobra.Command {
	return a.groupCmd("types", "List type kinds, or the records of one type kind", "POINTER",
		(*store.Store).Types, (*store.Store).FindType)
}
