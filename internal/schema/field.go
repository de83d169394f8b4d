package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/roach88/flexschema/internal/doc"
)

// Constraint bounds a Field's values.
//
// MinLength and MaxLength are dual-purpose: they bound the length of
// strings (in code points) and lists (in items), and the value of numbers.
// A bound of zero is inert. Pattern applies to string values only and is
// anchored at the start of the value. ItemType is required for lists.
type Constraint struct {
	ItemType  Type
	MinLength float64
	MaxLength float64
	Pattern   string
}

// Field is one typed, constrained attribute of a Schema.
type Field struct {
	name       string
	Type       Type
	Default    any
	Nullable   bool
	MinOccurs  int
	Transform  func(any) any
	Constraint Constraint

	pattern *regexp.Regexp
}

// FieldOption configures a Field.
type FieldOption func(*Field)

// NewField creates a nullable field of type t. The name is bound when the
// field is registered with a Schema.
func NewField(name string, t Type, opts ...FieldOption) *Field {
	f := &Field{name: name, Type: t, Nullable: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Required makes null an invalid value.
func Required() FieldOption {
	return func(f *Field) { f.Nullable = false }
}

// Default sets the value used when a record omits the field.
func Default(v any) FieldOption {
	return func(f *Field) { f.Default = doc.Normalize(v) }
}

// MinOccurs records a minimum-occurrence threshold for collection fields.
// The threshold is metadata: it is validated at definition time and exported,
// but values are not checked against it.
func MinOccurs(n int) FieldOption {
	return func(f *Field) { f.MinOccurs = n }
}

// Transform sets the callback applied to the field's value on serialization.
func Transform(fn func(any) any) FieldOption {
	return func(f *Field) { f.Transform = fn }
}

// Length bounds string/list length or numeric value. Zero disables a side.
func Length(min, max float64) FieldOption {
	return func(f *Field) {
		f.Constraint.MinLength = min
		f.Constraint.MaxLength = max
	}
}

// MinLength sets only the lower bound.
func MinLength(min float64) FieldOption {
	return func(f *Field) { f.Constraint.MinLength = min }
}

// MaxLength sets only the upper bound.
func MaxLength(max float64) FieldOption {
	return func(f *Field) { f.Constraint.MaxLength = max }
}

// Pattern requires string values to match re from their first character.
func Pattern(re string) FieldOption {
	return func(f *Field) { f.Constraint.Pattern = re }
}

// Items sets the item type of a list field.
func Items(t Type) FieldOption {
	return func(f *Field) { f.Constraint.ItemType = t }
}

// Name returns the registered field name.
func (f *Field) Name() string { return f.name }

// compile checks the field's shape and prepares its pattern.
// Returns the first violation found; definitions fail fast.
func (f *Field) compile() (code, msg string) {
	if !validFieldName(f.name) {
		return ErrInvalidFieldName, fmt.Sprintf("invalid field name %q", f.name)
	}
	if !f.Type.Valid() {
		return ErrInvalidType, fmt.Sprintf("invalid field type %q", f.Type)
	}

	c := f.Constraint
	if f.Type.Kind() == KindList {
		if c.ItemType.IsZero() {
			return ErrMissingItemType, "list fields require an item type"
		}
		if !c.ItemType.Valid() {
			return ErrInvalidType, fmt.Sprintf("invalid item type %q", c.ItemType)
		}
	}
	if f.MinOccurs < 0 {
		return ErrNegativeOccurrence, fmt.Sprintf("min occurrence must not be negative, got %d", f.MinOccurs)
	}
	if c.MinLength > 0 && c.MaxLength > 0 && c.MinLength > c.MaxLength {
		return ErrInvertedBounds, fmt.Sprintf("min_length %s exceeds max_length %s", formatBound(c.MinLength), formatBound(c.MaxLength))
	}

	if c.Pattern != "" {
		switch f.Type.Kind() {
		case KindString, KindInt, KindFloat:
		default:
			return ErrPatternType, fmt.Sprintf("pattern is only allowed on string or number fields, not %s", f.Type)
		}
		re, err := regexp.Compile(`^(?:` + c.Pattern + `)`)
		if err != nil {
			return ErrInvalidPattern, fmt.Sprintf("invalid pattern %q: %v", c.Pattern, err)
		}
		f.pattern = re
	}

	if f.Default != nil {
		if !f.Type.accepts(f.Default) {
			return ErrDefaultType, fmt.Sprintf("default must be of type %s, got '%s' instead", f.Type, typeName(f.Default))
		}
		if verr := f.Evaluate(f.Default); verr != nil {
			return ErrDefaultConstraint, "default " + verr.Message
		}
	}
	return "", ""
}

func validFieldName(name string) bool {
	if name == "" || name[0] == '$' {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return false
		}
	}
	return true
}

// Evaluate checks one value against the field: nullability, type, item
// types, bounds and pattern. It returns nil when the value is valid.
// Nested model fields are only type-checked here; Schema.EvaluateAll
// descends into them.
func (f *Field) Evaluate(value any) *ValidationError {
	return f.evaluate(f.name, doc.Normalize(value))
}

func (f *Field) evaluate(path string, value any) *ValidationError {
	if value == nil {
		if f.Nullable {
			return nil
		}
		return &ValidationError{Path: path, Code: ErrRequired, Message: "is required and cannot be null."}
	}

	if ref, ok := value.(Ref); ok && f.Type.Kind() == KindModel {
		if f.Nullable {
			return nil
		}
		return &ValidationError{
			Path:    path,
			Code:    ErrUnresolvedRecord,
			Message: fmt.Sprintf("references a missing '%s' record: %s", f.Type, ref.ID),
		}
	}

	if !f.Type.accepts(value) {
		return &ValidationError{
			Path:    path,
			Code:    ErrTypeMismatch,
			Message: fmt.Sprintf("must be of type %s, got '%s' instead.", f.Type, typeName(value)),
		}
	}

	switch v := value.(type) {
	case string:
		if err := f.checkLength(path, utf8.RuneCountInString(v), "characters"); err != nil {
			return err
		}
		if f.pattern != nil && !f.pattern.MatchString(v) {
			return &ValidationError{
				Path:    path,
				Code:    ErrPatternMismatch,
				Message: fmt.Sprintf("must match the pattern: '%s'", f.Constraint.Pattern),
			}
		}
	case int64, float64:
		return f.checkRange(path, v)
	case []any:
		if err := f.checkLength(path, len(v), "items"); err != nil {
			return err
		}
		return f.checkItems(path, v)
	}
	return nil
}

func (f *Field) checkLength(path string, n int, unit string) *ValidationError {
	c := f.Constraint
	if c.MinLength > 0 && float64(n) < c.MinLength {
		return &ValidationError{
			Path:    path,
			Code:    ErrTooShort,
			Message: fmt.Sprintf("must have at least: %s %s", formatBound(c.MinLength), unit),
		}
	}
	if c.MaxLength > 0 && float64(n) > c.MaxLength {
		return &ValidationError{
			Path:    path,
			Code:    ErrTooLong,
			Message: fmt.Sprintf("must have at most: %s %s", formatBound(c.MaxLength), unit),
		}
	}
	return nil
}

func (f *Field) checkRange(path string, v any) *ValidationError {
	n, _ := doc.ToFloat(v)
	c := f.Constraint
	if c.MinLength > 0 && n < c.MinLength {
		return &ValidationError{
			Path:    path,
			Code:    ErrBelowMinimum,
			Message: fmt.Sprintf("must be greater than or equal to: %s", formatBound(c.MinLength)),
		}
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return &ValidationError{
			Path:    path,
			Code:    ErrAboveMaximum,
			Message: fmt.Sprintf("must be less than or equal to: %s", formatBound(c.MaxLength)),
		}
	}
	return nil
}

// checkItems reports the first item that does not match the item type.
func (f *Field) checkItems(path string, items []any) *ValidationError {
	item := f.Constraint.ItemType
	for i, v := range items {
		if v == nil {
			continue
		}
		if _, ok := v.(Ref); ok && item.Kind() == KindModel {
			continue
		}
		if !item.accepts(v) {
			return &ValidationError{
				Path:    indexPath(path, i),
				Code:    ErrItemType,
				Message: fmt.Sprintf("must be of type %s, got '%s' instead.", item, typeName(v)),
			}
		}
	}
	return nil
}

// accepts reports whether a normalized value has the runtime shape of t.
func (t Type) accepts(v any) bool {
	switch t.kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindInt:
		_, ok := v.(int64)
		return ok
	case KindFloat:
		return doc.IsNumber(v)
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindList:
		_, ok := v.([]any)
		return ok
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	case KindModel:
		switch rv := v.(type) {
		case Record:
			return rv.Schema() == t.model
		case map[string]any:
			return true
		}
	}
	return false
}

func typeName(v any) string {
	if rec, ok := v.(Record); ok {
		return rec.Schema().Name()
	}
	return doc.KindOf(v)
}

func formatBound(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
