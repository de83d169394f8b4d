package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/orm"
)

type queryOptions struct {
	where string
	sort  []string
	page  int
	size  int
	count bool
}

// QueryCount is the output of query --count.
type QueryCount struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <schema>",
		Short: "Query stored records",
		Long: `Run a native filter against the stored records of a schema and print one
page of results with its pagination metadata. Referenced records are
resolved from their own collections.`,
		Example: `  flexschema query Post --where '{"tags": "go"}' --sort -views --page 2
  flexschema query Author --where '{"name": {"$regex": "^a", "$options": "i"}}' --count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.where, "where", "w", "", "native filter as JSON")
	cmd.Flags().StringSliceVarP(&opts.sort, "sort", "s", nil, "sort keys (field, field:desc or -field)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.size, "size", 0, "records per page (default: configured page_size)")
	cmd.Flags().BoolVar(&opts.count, "count", false, "print only the number of matching records")
	return cmd
}

func runQuery(rootOpts *RootOptions, opts *queryOptions, name string, cmd *cobra.Command) error {
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
	native, err := parseWhere(opts.where)
	if err != nil {
		return invalidInput(f, err)
	}
	keys, err := parseSort(opts.sort)
	if err != nil {
		return invalidInput(f, err)
	}
	n, err := filter.Parse(native)
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

	q := coll.Select().Where(n).Sort(keys...)
	for _, field := range filter.Fields(n) {
		q.Field(field)
	}
	for _, k := range keys {
		q.Field(k.Field)
	}
	f.VerboseLog("Filter: %s", filter.String(q.Filter()))

	if opts.count {
		total, err := q.Count(ctx)
		if err != nil {
			return queryFailure(f, err)
		}
		result := QueryCount{Collection: coll.Name(), Count: total}
		return f.Success(fmt.Sprintf("%d record(s) in %s", total, coll.Name()), result)
	}

	size := opts.size
	if size < 1 {
		size = rootOpts.Config.PageSize
	}
	p, err := q.FetchAll(ctx, opts.page, size)
	if err != nil {
		return queryFailure(f, err)
	}
	page := p.ToSerializable()
	text, err := doc.MarshalCanonicalIndent(page, "  ")
	if err != nil {
		return queryFailure(f, err)
	}
	return f.Success(strings.TrimRight(string(text), "\n"), page)
}

func queryFailure(f *OutputFormatter, err error) error {
	if orm.HasCode(err, orm.ErrCodeInvalidQuery) {
		return invalidInput(f, err)
	}
	_ = f.Error(ErrCodeBackend, err.Error(), nil)
	return WrapExitError(ExitCommandError, "query", err)
}
