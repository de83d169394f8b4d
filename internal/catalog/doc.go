// Package catalog compiles declarative schema files into Schemas.
//
// Declarations are written in CUE or YAML with the same shape:
//
//	schema: Post: {
//		identity:   true
//		collection: "posts"
//		fields: {
//			title:  {type: "string", required: true, min_length: 5}
//			author: "Author"
//			tags:   {type: "list", items: "string"}
//		}
//	}
//
// A field declared as a bare string is shorthand for {type: <string>}.
// Type names are the scalar and container names accepted by
// schema.ParseType; any other name must be a schema declared in the same
// catalog and yields a nested model field.
//
// Field order follows declaration order. Schemas may reference each other
// in any order, including cyclically; AnalyzeCycles reports such cycles.
package catalog
