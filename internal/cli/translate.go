package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flexschema/internal/backend/memory"
	"github.com/roach88/flexschema/internal/doc"
	"github.com/roach88/flexschema/internal/filter"
	"github.com/roach88/flexschema/internal/orm"
	"github.com/roach88/flexschema/internal/translate"
)

// TranslateResult shows one query in every target form.
type TranslateResult struct {
	Collection string         `json:"collection"`
	Native     map[string]any `json:"native"`
	Debug      string         `json:"debug"`
	SQL        string         `json:"sql"`
	Params     []any          `json:"params"`
}

type translateOptions struct {
	where string
	sort  []string
	page  int
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &translateOptions{}

	cmd := &cobra.Command{
		Use:   "translate <schema>",
		Short: "Show a query as a native filter and as SQL",
		Long: `Parse a native filter and render it for every backend: the document-store
filter, a human-readable SQL rendering, and the parameterized SQLite query
the relational backend would run for one page. Nothing is executed.`,
		Example: `  flexschema translate Post --where '{"views": {"$gt": 100}}' --sort -views`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.where, "where", "w", "", "native filter as JSON")
	cmd.Flags().StringSliceVarP(&opts.sort, "sort", "s", nil, "sort keys (field, field:desc or -field)")
	cmd.Flags().IntVar(&opts.page, "page", 1, "page to compile the relational query for")
	return cmd
}

func runTranslate(rootOpts *RootOptions, opts *translateOptions, name string, cmd *cobra.Command) error {
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

	// A scratch attachment gives the query the schema's field checks.
	db := orm.Open(memory.New(), orm.WithLogger(rootOpts.Logger))
	defer db.Close()
	coll, err := db.Attach(s, cat.CollectionName(s))
	if err != nil {
		return invalidInput(f, err)
	}
	n, err := filter.Parse(native)
	if err != nil {
		return invalidInput(f, err)
	}
	q := coll.Select().Where(n).Sort(keys...)
	for _, field := range filter.Fields(n) {
		q.Field(field)
	}
	for _, k := range keys {
		q.Field(k.Field)
	}

	result := TranslateResult{Collection: coll.Name()}
	if result.Native, err = q.Native(); err != nil {
		return invalidInput(f, err)
	}
	if result.Debug, err = q.SQL(); err != nil {
		return invalidInput(f, err)
	}

	page, size := max(opts.page, 1), rootOpts.Config.PageSize
	result.SQL, result.Params, err = translate.NewJSONCompiler().Select(translate.FindQuery{
		Table:  coll.Name(),
		Filter: q.Filter(),
		Sort:   filter.NewSort(keys...).Keys(),
		Skip:   (page - 1) * size,
		Limit:  size,
	})
	if err != nil {
		return invalidInput(f, err)
	}
	return f.Success(translateText(result), result)
}

func translateText(r TranslateResult) string {
	native, err := doc.MarshalCanonical(r.Native)
	if err != nil {
		native = []byte(err.Error())
	}
	params, err := doc.MarshalCanonical(r.Params)
	if err != nil {
		params = []byte(err.Error())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "native: %s\n", native)
	fmt.Fprintf(&b, "debug:  %s\n", r.Debug)
	fmt.Fprintf(&b, "sql:    %s\n", r.SQL)
	fmt.Fprintf(&b, "params: %s", params)
	return b.String()
}
