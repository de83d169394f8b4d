// Package translate maps filter trees to backend representations.
//
// Every function here is pure and deterministic:
//
//   - Native renders the document-store filter document (MongoDB
//     vocabulary). It is the inverse of filter.Parse.
//   - DebugSQL renders an SQL-like string for logs and the CLI.
//     CRITICAL: it interpolates literals and must never be executed.
//   - JSONCompiler renders a parameterized SQLite predicate evaluated
//     against a document column holding the serialized record, plus the
//     SELECT and COUNT statements built on it.
//
// Computed filter leaves run client-side code and cannot be expressed by
// any target; every translator rejects them with ErrUnsupported.
package translate

import "errors"

// ErrUnsupported is returned (wrapped) for nodes a target cannot express.
var ErrUnsupported = errors.New("unsupported filter node")
