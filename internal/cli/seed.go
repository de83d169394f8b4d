package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flexschema/internal/schema"
)

// SeedRecord is the commit outcome of one record.
type SeedRecord struct {
	Index      int               `json:"index"`
	ID         string            `json:"id,omitempty"`
	Committed  bool              `json:"committed"`
	Violations schema.Violations `json:"violations,omitempty"`
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	Collection string       `json:"collection"`
	Committed  int          `json:"committed"`
	Refused    int          `json:"refused"`
	Records    []SeedRecord `json:"records"`
}

type seedOptions struct {
	truncate bool
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed <schema> <records-file|->",
		Short: "Validate and store records",
		Long: `Build each record of a YAML or JSON file as an instance of a persistable
schema and commit it to the configured backend. Nested persistable records
are committed first. Invalid records are refused and reported; the valid
ones are still stored.`,
		Example: `  flexschema seed Post posts.yaml --backend sqlite --sqlite-path blog.db`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.truncate, "truncate", false, "remove every stored record of the schema first")
	return cmd
}

func runSeed(rootOpts *RootOptions, opts *seedOptions, name, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := rootOpts.formatter(cmd)
	cat, err := rootOpts.loadCatalog(f)
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

	db, err := rootOpts.openDB(ctx, f, cat)
	if err != nil {
		return err
	}
	defer db.Close()
	coll, err := collection(f, db, s)
	if err != nil {
		return err
	}
	if opts.truncate {
		f.VerboseLog("Truncating %s", coll.Name())
		if err := coll.Truncate(ctx); err != nil {
			_ = f.Error(ErrCodeBackend, err.Error(), nil)
			return WrapExitError(ExitCommandError, "truncate", err)
		}
	}

	result := SeedResult{Collection: coll.Name(), Records: make([]SeedRecord, 0, len(records))}
	for i, rec := range records {
		inst := coll.New(ctx, rec)
		ok, err := coll.Commit(ctx, inst, true)
		if err != nil {
			_ = f.Error(ErrCodeBackend, err.Error(), result)
			return WrapExitError(ExitCommandError, fmt.Sprintf("commit record %d", i), err)
		}
		entry := SeedRecord{Index: i, Committed: ok}
		if ok {
			result.Committed++
			entry.ID = inst.ID()
		} else {
			result.Refused++
			entry.Violations = inst.Evaluate()
		}
		result.Records = append(result.Records, entry)
	}
	rootOpts.Logger.Info("seeded records",
		"collection", result.Collection, "committed", result.Committed, "refused", result.Refused)

	text := seedText(result)
	if result.Refused > 0 {
		msg := fmt.Sprintf("%d of %d record(s) refused", result.Refused, len(records))
		if err := f.Failure(text, result, ErrCodeInvalidRecord, msg); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return f.Success(text, result)
}

func seedText(r SeedResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d committed, %d refused in %s\n", r.Committed, r.Refused, r.Collection)
	for _, rec := range r.Records {
		if rec.Committed {
			fmt.Fprintf(&b, "  ✓ record %d → %s\n", rec.Index, rec.ID)
			continue
		}
		fmt.Fprintf(&b, "  ✗ record %d refused\n", rec.Index)
		errs := rec.Violations.Errors()
		for _, path := range rec.Violations.Paths() {
			fmt.Fprintf(&b, "    %s: %s\n", errs[path].Code, errs[path].Error())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
