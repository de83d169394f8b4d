package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/flexschema/internal/config"
)

// RootOptions holds global flags and the configuration resolved from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	viper  *viper.Viper
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// configFlags maps configuration keys to the persistent flags that set them.
var configFlags = map[string]string{
	"backend":        "backend",
	"sqlite.path":    "sqlite-path",
	"mongo.uri":      "mongo-uri",
	"mongo.database": "mongo-database",
	"schemas":        "schemas",
	"page_size":      "page-size",
	"log_level":      "log-level",
	"document_guard": "document-guard",
}

// NewRootCommand creates the root command for the flexschema CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "flexschema",
		Short: "flexschema - declarative schemas for document records",
		Long: `Declare schemas in CUE or YAML, validate records against them, and
store and query them in SQLite, MongoDB or memory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default flexschema.yaml in . or $HOME/.config/flexschema)")
	pf.String("backend", config.BackendSQLite, "storage backend (sqlite|memory|mongo)")
	pf.String("sqlite-path", "flexschema.db", "SQLite database file")
	pf.String("mongo-uri", "", "MongoDB connection URI")
	pf.String("mongo-database", "flexschema", "MongoDB database name")
	pf.String("schemas", "schemas", "schema declarations: a .cue/.yaml file or a directory")
	pf.Int("page-size", 10, "records per page")
	pf.String("log-level", "info", "log level (debug|info|warn|error)")
	pf.Bool("document-guard", false, "check stored documents against the exported JSON Schema on load")
	for key, flag := range configFlags {
		_ = opts.viper.BindPFlag(key, pf.Lookup(flag))
	}

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

// load resolves the configuration and installs the logger.
func (o *RootOptions) load(cmd *cobra.Command) error {
	c, err := config.Load(o.viper, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	level, err := c.Level()
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Config = c
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
