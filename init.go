package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	sentinelStart = "<!-- crange:start -->"
	sentinelEnd   = "<!-- crange:end -->"
)

func (a *app) initCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "init [path-to-CLAUDE.md]",
		Short: "Write a crange usage section to a CLAUDE.md file",
		Long: `Write a crange usage section to a CLAUDE.md file. The section lists every
command with its flags and examples and is wrapped in marker comments, so a
later run replaces it in place. The file is created if it does not exist.

path-to-CLAUDE.md defaults to ./CLAUDE.md.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section := usageSection(cmd.Root(), cmd.Name())
			if dryRun && len(args) == 0 {
				_, err := fmt.Fprintln(a.stdout, section)
				return err
			}
			path := "CLAUDE.md"
			if len(args) == 1 {
				path = args[0]
			}
			return a.writeSection(path, section, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resulting file instead of writing it")
	return cmd
}

// writeSection merges section into the file at path. With dryRun the merged
// content goes to stdout and the file is left alone.
func (a *app) writeSection(path, section string, dryRun bool) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	merged := applySection(string(existing), section)
	if dryRun {
		_, err := fmt.Fprint(a.stdout, merged)
		return err
	}
	if err := os.WriteFile(path, []byte(merged), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(a.stderr, "wrote crange section to %s\n", path)
	return nil
}

// usageSection renders the command tree under root as markdown between the
// markers. Commands named in skip are left out.
func usageSection(root *cobra.Command, skip ...string) string {
	var b strings.Builder
	b.WriteString(sentinelStart + "\n")
	fmt.Fprintf(&b, "## %s: %s\n\n", root.Name(), root.Short)
	fmt.Fprintf(&b, "Run `%s` through the Bash tool instead of grepping when asking where a\n", root.Name())
	b.WriteString("C or C++ symbol is defined or who uses it. Check `" + root.Name() + " --version` first\n")
	b.WriteString("and skip this section if it is not installed.\n")

	for _, cmd := range root.Commands() {
		if !cmd.IsAvailableCommand() || cmd.Name() == "completion" || slices.Contains(skip, cmd.Name()) {
			continue
		}
		fmt.Fprintf(&b, "\n### %s %s\n\n%s.\n", root.Name(), cmd.Use, cmd.Short)
		if flags := flagLines(cmd.LocalFlags()); flags != "" {
			b.WriteString("\n" + flags)
		}
		if cmd.Example != "" {
			b.WriteString("\n```bash\n")
			for _, line := range strings.Split(cmd.Example, "\n") {
				b.WriteString(strings.TrimSpace(line) + "\n")
			}
			b.WriteString("```\n")
		}
	}

	b.WriteString("\n### Flags of every command\n\n")
	b.WriteString(flagLines(root.PersistentFlags()))
	b.WriteString(sentinelEnd)
	return b.String()
}

// flagLines lists one flag per markdown bullet. The help flag is omitted.
func flagLines(set *pflag.FlagSet) string {
	var b strings.Builder
	set.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		name := "--" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", " + name
		}
		fmt.Fprintf(&b, "- `%s`: %s", name, f.Usage)
		switch f.DefValue {
		case "", "false", "0", "[]":
		default:
			fmt.Fprintf(&b, " (default %s)", f.DefValue)
		}
		b.WriteString("\n")
	})
	return b.String()
}

// applySection replaces the marked block in content with section, or appends
// section after a blank line when content has no complete block.
func applySection(content, section string) string {
	if before, rest, ok := strings.Cut(content, sentinelStart); ok {
		if _, after, ok := strings.Cut(rest, sentinelEnd); ok {
			return before + section + after
		}
	}
	if content == "" {
		return section + "\n"
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
