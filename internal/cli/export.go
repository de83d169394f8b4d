package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/schema/jsonschema"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <schema>",
		Short: "Print a schema as JSON Schema (draft-07)",
		Long: `Export a declared schema as a JSON Schema document describing its
stored shape. Nested schemas appear under "definitions".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runExport(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cat, err := opts.loadCatalog(f)
	if err != nil {
		return err
	}
	s, err := lookupSchema(f, cat, name)
	if err != nil {
		return err
	}

	exported := jsonschema.Export(s)
	text, err := doc.MarshalCanonicalIndent(exported, "  ")
	if err != nil {
		return WrapExitError(ExitFailure, "export", err)
	}
	return f.Success(string(text), exported)
}
