// Package doc defines the normalized value shapes every other flexschema
// package exchanges: documents are map[string]any trees whose leaves are
// nil, bool, string, int64 or float64, and whose containers are []any and
// map[string]any.
//
// The package is the foundational layer. It imports nothing internal, so
// schema validation, model serialization, filter evaluation and every
// backend agree on one representation of a stored document.
//
// # Canonical JSON
//
// MarshalCanonical is the single serializer used for JSON export and for
// backend write payloads. Object keys are sorted by UTF-16 code units
// (RFC 8785), strings are NFC normalized, HTML characters are not escaped,
// and integral floats are written without a fractional part. Two documents
// with equal normalized values always produce byte-identical output.
//
// # Comparison
//
// Compare and Equal implement type-bracketed comparison: numbers compare
// with numbers (int64 and float64 interchangeably), strings with strings,
// booleans with booleans. Values from different brackets are never ordered
// against each other. SortCompare extends this to a total order used to
// sort query results the same way in every backend.
package doc
