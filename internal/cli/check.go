package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flexschema/internal/catalog"
)

// CheckResult holds the outcome of loading a set of declarations.
type CheckResult struct {
	Valid    bool                   `json:"valid"`
	Schemas  []SchemaSummary        `json:"schemas,omitempty"`
	Warnings []catalog.CycleWarning `json:"warnings,omitempty"`
}

// SchemaSummary describes one compiled schema.
type SchemaSummary struct {
	Name        string   `json:"name"`
	Persistable bool     `json:"persistable"`
	Collection  string   `json:"collection,omitempty"`
	Fields      []string `json:"fields"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [schemas-path]",
		Short: "Compile schema declarations and report problems",
		Long: `Compile CUE or YAML schema declarations without touching a backend.

Reports the first definition error with its position, and lists reference
cycles between schemas as warnings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rootOpts.Config.Schemas = args[0]
			}
			return runCheck(rootOpts, cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cat, err := opts.loadCatalog(f)
	if err != nil {
		return err
	}

	result := CheckResult{Valid: true, Warnings: cat.Warnings}
	for _, s := range cat.Schemas() {
		summary := SchemaSummary{Name: s.Name(), Persistable: s.Identity(), Fields: s.Names()}
		if s.Identity() {
			summary.Collection = cat.CollectionName(s)
		}
		result.Schemas = append(result.Schemas, summary)
	}
	return f.Success(checkText(result), result)
}

func checkText(r CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %d schema(s) valid\n", len(r.Schemas))
	for _, s := range r.Schemas {
		kind := "transient"
		if s.Persistable {
			kind = "collection " + s.Collection
		}
		fmt.Fprintf(&b, "  %s (%s): %s\n", s.Name, kind, strings.Join(s.Fields, ", "))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "%s: %s\n", w.Level, w.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}
