package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flexschema/internal/catalog"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/orm"
	"github.com/roach88/flexschema/internal/schema"
)

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadCatalog loads declarations from the configured schemas path.
// Declaration errors exit with ExitFailure, missing paths with
// ExitCommandError.
func (o *RootOptions) loadCatalog(f *OutputFormatter) (*catalog.Catalog, error) {
	f.VerboseLog("Loading schemas from %s", o.Config.Schemas)
	cat, err := catalog.Load(o.Config.Schemas)
	if err != nil {
		return nil, catalogFailure(f, err)
	}
	return cat, nil
}

func catalogFailure(f *OutputFormatter, err error) error {
	var ce *catalog.Error
	if !errors.As(err, &ce) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load schemas", err)
	}
	_ = f.Error(ce.Code, ce.Error(), ce)
	if ce.Code == catalog.ErrNotFound || ce.Code == catalog.ErrUnsupportedFile {
		return WrapExitError(ExitCommandError, "load schemas", err)
	}
	return WrapExitError(ExitFailure, "load schemas", err)
}

// lookupSchema finds a schema by name.
func lookupSchema(f *OutputFormatter, cat *catalog.Catalog, name string) (*schema.Schema, error) {
	s, ok := cat.Schema(name)
	if !ok {
		msg := fmt.Sprintf("unknown schema %q (declared: %s)", name, strings.Join(cat.Names(), ", "))
		_ = f.Error(ErrCodeNotFound, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	return s, nil
}

// openDB opens the configured backend and attaches every persistable
// schema of cat. The caller closes the DB.
func (o *RootOptions) openDB(ctx context.Context, f *OutputFormatter, cat *catalog.Catalog) (*orm.DB, error) {
	f.VerboseLog("Opening %s backend", o.Config.Backend)
	b, err := o.Config.OpenBackend(ctx)
	if err != nil {
		_ = f.Error(ErrCodeBackend, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "open backend", err)
	}
	db := orm.Open(b, o.Config.ORMOptions(o.Logger)...)
	if _, err := cat.Attach(db); err != nil {
		_ = db.Close()
		_ = f.Error(ErrCodeBackend, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "attach schemas", err)
	}
	return db, nil
}

// collection returns the attached collection of a persistable schema.
func collection(f *OutputFormatter, db *orm.DB, s *schema.Schema) (*orm.Collection, error) {
	c, err := db.Collection(s)
	if err != nil {
		msg := fmt.Sprintf("schema %s is not persistable", s.Name())
		_ = f.Error(ErrCodeInvalidInput, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	return c, nil
}

// parseSort parses sort flags: "field", "field:asc", "field:desc" or
// "-field".
func parseSort(specs []string) ([]filter.SortKey, error) {
	keys := make([]filter.SortKey, 0, len(specs))
	for _, spec := range specs {
		field, dir, hasDir := strings.Cut(spec, ":")
		key := filter.SortKey{Field: field, Dir: filter.Ascending}
		if strings.HasPrefix(field, "-") && !hasDir {
			key.Field = strings.TrimPrefix(field, "-")
			key.Dir = filter.Descending
		}
		switch strings.ToLower(dir) {
		case "", "asc", "1":
		case "desc", "-1":
			key.Dir = filter.Descending
		default:
			return nil, fmt.Errorf("sort %q: direction must be asc or desc", spec)
		}
		if key.Field == "" {
			return nil, fmt.Errorf("sort %q: missing field", spec)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// invalidInput reports a malformed argument.
func invalidInput(f *OutputFormatter, err error) error {
	_ = f.Error(ErrCodeInvalidInput, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid input", err)
}
