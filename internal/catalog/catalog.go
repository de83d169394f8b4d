package catalog

import (
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/flexschema/internal/orm"
	"github.com/roach88/flexschema/internal/schema"
)

// Catalog is a set of compiled Schemas that may reference each other.
type Catalog struct {
	schemas     []*schema.Schema
	byName      map[string]*schema.Schema
	collections map[*schema.Schema]string

	// Warnings lists the reference cycles found while building.
	Warnings []CycleWarning
}

// Build resolves declarations into Schemas.
//
// Schema and field names must be NFC-normalized. Stored text is never
// normalized, so a decomposed name would never equal the composed key a
// record or filter spells.
//
// Schemas are created first and populated second, so a field may name a
// schema declared later in the same set or the schema itself. The first
// error stops the build.
func Build(decls []Declaration) (*Catalog, error) {
	c := &Catalog{
		byName:      make(map[string]*schema.Schema, len(decls)),
		collections: make(map[*schema.Schema]string),
	}

	for _, d := range decls {
		if _, exists := c.byName[d.Name]; exists {
			return nil, &Error{Code: ErrDuplicateSchema, Path: d.path(), Message: "schema is already declared", Pos: d.Pos}
		}
		if !norm.NFC.IsNormalString(d.Name) {
			return nil, attrError(d.path(), "schema name must be in Unicode NFC form", d.Pos)
		}
		s, err := newSchema(d)
		if err != nil {
			return nil, err
		}
		c.schemas = append(c.schemas, s)
		c.byName[d.Name] = s
		if d.Collection != "" {
			c.collections[s] = d.Collection
		}
	}

	for _, d := range decls {
		s := c.byName[d.Name]
		for _, fd := range d.Fields {
			f, err := c.field(d, fd)
			if err != nil {
				return nil, err
			}
			if err := s.AddField(fd.Name, f); err != nil {
				return nil, wrapDefinition(d, fd, err)
			}
		}
	}

	c.Warnings = AnalyzeCycles(c.schemas)
	return c, nil
}

func newSchema(d Declaration) (*schema.Schema, error) {
	var (
		s   *schema.Schema
		err error
	)
	if d.Identity {
		s, err = schema.NewIdent(d.Name)
	} else {
		s, err = schema.New(d.Name)
	}
	if err != nil {
		return nil, &Error{Code: ErrAttributeValue, Path: d.path(), Message: err.Error(), Pos: d.Pos, Err: err}
	}
	return s, nil
}

func (c *Catalog) field(d Declaration, fd FieldDecl) (*schema.Field, error) {
	path := d.path() + ".fields." + fd.Name
	if !norm.NFC.IsNormalString(fd.Name) {
		return nil, attrError(path, "field name must be in Unicode NFC form", fd.Pos)
	}
	if fd.Type == "" {
		return nil, attrError(path+".type", "is required", fd.Pos)
	}
	if fd.Required && fd.Nullable != nil && *fd.Nullable {
		return nil, attrError(path, "required and nullable contradict each other", fd.Pos)
	}

	typ, err := c.resolveType(path+".type", fd.Type, fd.Pos)
	if err != nil {
		return nil, err
	}
	opts := []schema.FieldOption{
		schema.Length(fd.MinLength, fd.MaxLength),
		schema.MinOccurs(fd.MinOccurs),
	}
	if fd.Items != "" {
		item, err := c.resolveType(path+".items", fd.Items, fd.Pos)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.Items(item))
	}
	if fd.Required || (fd.Nullable != nil && !*fd.Nullable) {
		opts = append(opts, schema.Required())
	}
	if fd.Default != nil {
		opts = append(opts, schema.Default(fd.Default))
	}
	if fd.Pattern != "" {
		opts = append(opts, schema.Pattern(fd.Pattern))
	}
	return schema.NewField(fd.Name, typ, opts...), nil
}

// resolveType maps a type name to a builtin or a declared schema.
func (c *Catalog) resolveType(path, name string, pos Pos) (schema.Type, error) {
	if t, ok := schema.ParseType(name); ok {
		return t, nil
	}
	if s, ok := c.byName[name]; ok {
		return schema.ModelOf(s), nil
	}
	return schema.Type{}, &Error{Code: ErrUnknownType, Path: path, Message: fmt.Sprintf("unknown type %q", name), Pos: pos}
}

// wrapDefinition attaches the field's position to a schema definition
// error, keeping its code.
func wrapDefinition(d Declaration, fd FieldDecl, err error) error {
	var de *schema.DefinitionError
	if !errors.As(err, &de) {
		return err
	}
	return &Error{
		Code:    de.Code,
		Path:    d.path() + ".fields." + fd.Name,
		Message: de.Message,
		Pos:     fd.Pos,
		Err:     err,
	}
}

// Schemas returns the schemas in declaration order.
func (c *Catalog) Schemas() []*schema.Schema {
	out := make([]*schema.Schema, len(c.schemas))
	copy(out, c.schemas)
	return out
}

// Schema looks a schema up by name.
func (c *Catalog) Schema(name string) (*schema.Schema, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Names returns the schema names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.schemas))
	for i, s := range c.schemas {
		out[i] = s.Name()
	}
	return out
}

// CollectionName returns the declared collection of s, or the default
// collection name when none was declared.
func (c *Catalog) CollectionName(s *schema.Schema) string {
	if name, ok := c.collections[s]; ok {
		return name
	}
	return orm.DefaultCollectionName(s)
}

// Attach attaches every persistable schema to db under its collection
// name and returns the collections in declaration order.
func (c *Catalog) Attach(db *orm.DB) ([]*orm.Collection, error) {
	var out []*orm.Collection
	for _, s := range c.schemas {
		if !s.Identity() {
			continue
		}
		coll, err := db.Attach(s, c.CollectionName(s))
		if err != nil {
			return nil, err
		}
		out = append(out, coll)
	}
	return out, nil
}
