// Package filter provides the backend-agnostic filter tree used by
// flexschema queries.
//
// ARCHITECTURE:
//
// Conditions are built per field with a Statement and composed with the
// Match/AtLeast/NotMatch/NotAtLeast combinators:
//
//	[Statement] → [Node tree] → translate.Native   (document store)
//	                          → translate.DebugSQL (debug string)
//	                          → translate.JSON     (relational JSON column)
//	                          → Matches            (in process)
//
// SEALED INTERFACE:
//
// Node is sealed with a marker method; only Predicate, And, Or, Not and
// Computed implement it, so translators can switch exhaustively.
//
// Leaves always bind exactly one field path. An empty And is the inert
// filter: it matches every document.
//
// WIRE FORMAT:
//
// Parse reads the document-store filter vocabulary ($eq, $ne, $lt, $lte,
// $gt, $gte, $in, $nin, $and, $or, $nor, $not, $exists, $regex with
// $options, $all). A bare {field: value} pair is sugar for $eq, and
// several operators on one field fold into a conjunction.
//
// MATCHING SEMANTICS:
//
// Matches follows document-store rules, which every backend reproduces:
//   - a field predicate matches when the value, or any element of an array
//     value, satisfies it
//   - comparisons are type-bracketed (numbers with numbers, strings with
//     strings, booleans with booleans)
//   - $ne and $nin are the negations of $eq and $in, so they match
//     documents missing the field
//   - $eq null matches null or missing values
//   - ordering operators with a null operand match nothing
//   - $all with an empty list matches nothing
//
// Computed leaves run client-side functions over the record and compare
// the result; they can only be evaluated in process.
package filter
