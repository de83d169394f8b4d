// Package schema describes the shape of flexschema records.
//
// A Schema is an insertion-ordered, name-unique set of Fields. Each Field
// carries a closed type tag (string, int, float, bool, list, object or a
// nested model Schema), a nullability flag, an optional default, an
// optional transform applied on serialization, and a Constraint with
// length/range bounds, a pattern and, for lists, an item type.
//
// Two kinds of failure are kept strictly apart:
//
//   - DefinitionError is returned (or panicked by the Must variants) the
//     moment a Field is added with an illegal shape. Nothing is deferred to
//     first use.
//   - ValidationError describes a value that does not satisfy a Field. It is
//     never raised; EvaluateAll returns every failure as data in a
//     Violations map keyed by field path so callers can both block a write
//     and render complete feedback.
//
// Identity schemas (NewIdent) reserve the "_id" and "_updated_at" fields.
// They have no static default: persistable models materialize them lazily,
// per instance.
package schema
