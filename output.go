package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/breadchris/crange/internal/store"
	"github.com/breadchris/crange/internal/toon"
)

func table(name string, columns ...string) toon.Table {
	return toon.Table{Name: name, Columns: columns}
}

// rowTable lays out query rows; extra names the linkage column filled by the
// query (usr, ref), or is empty.
func rowTable(name, extra string, rows []store.Row) toon.Table {
	cols := []string{"location", "line", "kind", "type", "spelling", "display"}
	if extra != "" {
		cols = append(cols, extra)
	}
	t := table(name, cols...)
	for _, r := range rows {
		cells := []any{r.Location, r.Line, r.Kind, r.Type, r.Spelling, r.Display}
		switch extra {
		case "usr":
			cells = append(cells, r.USR)
		case "ref":
			cells = append(cells, r.Ref)
		}
		t.AddRow(cells...)
	}
	return t
}

// print writes tables in the selected format.
func (a *app) print(tables ...toon.Table) error {
	if a.format == "table" {
		tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		for i, t := range tables {
			if i > 0 {
				fmt.Fprintln(tw)
			}
			fmt.Fprintln(tw, strings.ToUpper(strings.Join(t.Columns, "\t")))
			for _, row := range t.Rows {
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
		}
		return tw.Flush()
	}
	_, err := fmt.Fprintln(a.stdout, toon.Encode(tables...))
	return err
}

// printList writes a flat list of values.
func (a *app) printList(name string, values []string) error {
	if a.format == "table" {
		for _, v := range values {
			if _, err := fmt.Fprintln(a.stdout, v); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := fmt.Fprintln(a.stdout, toon.EncodeList(name, values))
	return err
}
