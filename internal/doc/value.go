package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Normalize converts a Go value into its normalized document shape.
//
// Integer kinds become int64, float kinds become float64, slices and arrays
// become []any, and maps keyed by strings become map[string]any. Containers
// are copied, never aliased. Values with no document shape (structs,
// non-nil pointers, functions) are returned unchanged so callers can carry
// richer values, such as nested model instances, through a document tree.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, int64, float64:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return normalizeUint(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return normalizeUint(val)
	case float32:
		return float64(val)
	case json.Number:
		return numberValue(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Normalize(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Normalize(elem)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

// numberValue converts a json.Number into int64 when it is written as an
// integer that fits, and into float64 otherwise.
func numberValue(n json.Number) any {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return f
}

// Decode parses a JSON object into a normalized document.
func Decode(data []byte) (map[string]any, error) {
	v, err := DecodeValue(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must be a JSON object, got %s", KindOf(v))
	}
	return m, nil
}

// DecodeValue parses any JSON value into its normalized shape.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return Normalize(raw), nil
}

// Clone returns a deep copy of a normalized value.
func Clone(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return val
	}
}

// KindOf names the document shape of v, for messages.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int64, int, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		return "int"
	case float64, float32:
		return "float"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsNumber reports whether v is an int64 or float64 (after normalization).
func IsNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// ToFloat returns the numeric value of v as float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Lookup resolves a dotted path ("address.city") inside a document.
// Only objects are traversed; a path through a list or scalar is missing.
func Lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// bracket groups values that may be ordered against each other.
type bracket int

const (
	bracketNull bracket = iota
	bracketNumber
	bracketString
	bracketBool
	bracketList
	bracketObject
	bracketOther
)

func bracketOf(v any) bracket {
	switch v.(type) {
	case nil:
		return bracketNull
	case int64, float64:
		return bracketNumber
	case string:
		return bracketString
	case bool:
		return bracketBool
	case []any:
		return bracketList
	case map[string]any:
		return bracketObject
	default:
		return bracketOther
	}
}

// Compare orders two scalars of the same bracket. ok is false when the
// values cannot be ordered (different brackets, compound values, nulls).
func Compare(a, b any) (cmp int, ok bool) {
	a, b = Normalize(a), Normalize(b)
	ba, bb := bracketOf(a), bracketOf(b)
	if ba != bb {
		return 0, false
	}

	switch ba {
	case bracketNumber:
		return compareNumbers(a, b), true
	case bracketString:
		return strings.Compare(a.(string), b.(string)), true
	case bracketBool:
		return compareBools(a.(bool), b.(bool)), true
	default:
		return 0, false
	}
}

func compareNumbers(a, b any) int {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}

	af, _ := ToFloat(a)
	bf, _ := ToFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// Equal reports deep equality of two normalized values. Numbers compare by
// value across int64 and float64.
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	ba, bb := bracketOf(a), bracketOf(b)
	if ba != bb {
		return false
	}

	switch ba {
	case bracketNull:
		return true
	case bracketNumber, bracketString, bracketBool:
		c, _ := Compare(a, b)
		return c == 0
	case bracketList:
		al, bl := a.([]any), b.([]any)
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !Equal(al[i], bl[i]) {
				return false
			}
		}
		return true
	case bracketObject:
		am, bm := a.(map[string]any), b.(map[string]any)
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// sortRank places missing and null values first, then numbers and
// booleans, then strings and compound values (compared by their canonical
// JSON text). This matches how SQLite orders json_extract results.
func sortRank(v any) int {
	switch bracketOf(v) {
	case bracketNull:
		return 0
	case bracketNumber, bracketBool:
		return 1
	default:
		return 2
	}
}

// SortCompare is a total order over normalized values used for sorting
// query results.
func SortCompare(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	ra, rb := sortRank(a), sortRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		return compareNumbers(numericSortValue(a), numericSortValue(b))
	default:
		return strings.Compare(sortText(a), sortText(b))
	}
}

func numericSortValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func sortText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
