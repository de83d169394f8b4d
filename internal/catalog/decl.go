package catalog

import (
	"fmt"

	"github.com/roach88/flexschema/internal/doc"
)

// Catalog error codes (E300-E399). Definition errors raised by the schema
// package keep their own E1xx codes.
const (
	ErrSyntax           = "E301" // file could not be parsed
	ErrUnknownAttribute = "E302" // attribute name not recognized
	ErrAttributeValue   = "E303" // attribute has the wrong kind of value
	ErrUnknownType      = "E304" // type names neither a builtin nor a declared schema
	ErrDuplicateSchema  = "E305" // schema declared twice
	ErrUnsupportedFile  = "E306" // file extension is neither .cue nor .yaml
	ErrNotFound         = "E307" // path does not exist
)

// Pos is a position in a declaration file.
type Pos struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is a declaration error with its source position.
type Error struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Pos     Pos    `json:"pos"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Pos.IsValid() || e.Pos.File != "" {
		return fmt.Sprintf("%s: [%s] %s: %s", e.Pos, e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Unwrap returns the underlying definition error, if any.
func (e *Error) Unwrap() error { return e.Err }

// Declaration is one parsed schema declaration, before type resolution.
type Declaration struct {
	Name       string
	Identity   bool
	Collection string
	Fields     []FieldDecl
	Pos        Pos
}

// FieldDecl is one parsed field declaration.
type FieldDecl struct {
	Name      string
	Type      string
	Items     string
	Required  bool
	Nullable  *bool
	MinOccurs int
	Default   any
	MinLength float64
	MaxLength float64
	Pattern   string
	Pos       Pos
}

func (d *Declaration) path() string { return "schema." + d.Name }

// setSchemaAttr applies one schema-level scalar attribute.
func (d *Declaration) setSchemaAttr(key string, value any, pos Pos) error {
	switch key {
	case "identity":
		b, ok := value.(bool)
		if !ok {
			return attrError(d.path()+".identity", "must be a boolean", pos)
		}
		d.Identity = b
	case "collection":
		s, ok := value.(string)
		if !ok || s == "" {
			return attrError(d.path()+".collection", "must be a non-empty string", pos)
		}
		d.Collection = s
	default:
		return &Error{Code: ErrUnknownAttribute, Path: d.path() + "." + key, Message: "unknown schema attribute", Pos: pos}
	}
	return nil
}

// set applies one field attribute. Values arrive normalized.
func (f *FieldDecl) set(path, key string, value any, pos Pos) error {
	path = path + "." + key
	switch key {
	case "type", "items", "pattern":
		s, ok := value.(string)
		if !ok {
			return attrError(path, "must be a string", pos)
		}
		switch key {
		case "type":
			f.Type = s
		case "items":
			f.Items = s
		default:
			f.Pattern = s
		}
	case "required":
		b, ok := value.(bool)
		if !ok {
			return attrError(path, "must be a boolean", pos)
		}
		f.Required = b
	case "nullable":
		switch v := value.(type) {
		case bool:
			f.Nullable = &v
		case int64:
			// An integer threshold keeps the field nullable unless it is zero.
			nullable := v != 0
			f.Nullable = &nullable
			f.MinOccurs = int(v)
		default:
			return attrError(path, "must be a boolean or an integer", pos)
		}
	case "min_occurs":
		n, ok := value.(int64)
		if !ok {
			return attrError(path, "must be an integer", pos)
		}
		f.MinOccurs = int(n)
	case "min_length", "max_length":
		n, ok := doc.ToFloat(value)
		if !ok {
			return attrError(path, "must be a number", pos)
		}
		if key == "min_length" {
			f.MinLength = n
		} else {
			f.MaxLength = n
		}
	case "default":
		f.Default = value
	default:
		return &Error{Code: ErrUnknownAttribute, Path: path, Message: "unknown field attribute", Pos: pos}
	}
	return nil
}

func attrError(path, msg string, pos Pos) *Error {
	return &Error{Code: ErrAttributeValue, Path: path, Message: msg, Pos: pos}
}
