package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flexschema/internal/model"
	"github.com/roach88/flexschema/internal/schema"
)

// EvalResult is the validation outcome of one record.
type EvalResult struct {
	Index      int               `json:"index"`
	Valid      bool              `json:"valid"`
	Violations schema.Violations `json:"violations,omitempty"`
	Record     map[string]any    `json:"record"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <schema> <records-file|->",
		Short: "Validate records against a schema",
		Long: `Build each record of a YAML or JSON file as an instance of a schema
and report every violation, keyed by field path. Defaults are applied and
nested records are validated recursively. Nothing is stored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runEval(opts *RootOptions, name, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cat, err := opts.loadCatalog(f)
	if err != nil {
		return err
	}
	s, err := lookupSchema(f, cat, name)
	if err != nil {
		return err
	}
	records, err := readRecords(path, cmd.InOrStdin())
	if err != nil {
		return invalidInput(f, err)
	}

	results := make([]EvalResult, 0, len(records))
	invalid := 0
	for i, rec := range records {
		inst := model.New(s, rec)
		violations := inst.Evaluate()
		if len(violations) > 0 {
			invalid++
		}
		results = append(results, EvalResult{
			Index:      i,
			Valid:      len(violations) == 0,
			Violations: violations,
			Record:     inst.ToSerializable(false),
		})
	}

	text := evalText(results)
	if invalid > 0 {
		msg := fmt.Sprintf("%d of %d record(s) invalid", invalid, len(results))
		if err := f.Failure(text, results, ErrCodeInvalidRecord, msg); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return f.Success(text, results)
}

func evalText(results []EvalResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(&b, "✓ record %d valid\n", r.Index)
			continue
		}
		fmt.Fprintf(&b, "✗ record %d invalid\n", r.Index)
		errs := r.Violations.Errors()
		for _, path := range r.Violations.Paths() {
			fmt.Fprintf(&b, "  %s: %s\n", errs[path].Code, errs[path].Error())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
