package filter

// Direction is a sort direction.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// SortKey orders results by one field path.
type SortKey struct {
	Field string
	Dir   Direction
}

// Sort is an ordered field → direction mapping. Setting a field again
// changes its direction but keeps its position.
type Sort struct {
	keys []SortKey
}

// NewSort builds a Sort from keys, applying them in order.
func NewSort(keys ...SortKey) Sort {
	var s Sort
	s.Add(keys...)
	return s
}

// Add applies keys in order; the last write for a field wins.
func (s *Sort) Add(keys ...SortKey) {
	for _, k := range keys {
		if k.Dir != Descending {
			k.Dir = Ascending
		}
		replaced := false
		for i := range s.keys {
			if s.keys[i].Field == k.Field {
				s.keys[i].Dir = k.Dir
				replaced = true
				break
			}
		}
		if !replaced {
			s.keys = append(s.keys, k)
		}
	}
}

// Keys returns the sort keys in order.
func (s Sort) Keys() []SortKey {
	out := make([]SortKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keys.
func (s Sort) Len() int { return len(s.keys) }

// Clear removes every key.
func (s *Sort) Clear() { s.keys = nil }
