package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flexschema/internal/doc"
)

// ParseYAML parses one YAML declaration file.
//
// The document is walked as a node tree rather than decoded into maps so
// that schema and field order survive and errors carry line numbers.
func ParseYAML(filename string, data []byte) ([]Declaration, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &Error{Code: ErrSyntax, Path: "yaml", Message: err.Error(), Pos: Pos{File: filename}, Err: err}
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, &Error{Code: ErrSyntax, Path: "yaml", Message: "document must be a mapping", Pos: yamlPos(filename, top)}
	}

	var decls []Declaration
	err := eachPair(top, func(key, val *yaml.Node) error {
		if key.Value != "schema" {
			return &Error{Code: ErrUnknownAttribute, Path: key.Value, Message: "unknown top-level key", Pos: yamlPos(filename, key)}
		}
		if val.Kind != yaml.MappingNode {
			return attrError("schema", "must be a mapping of schema names", yamlPos(filename, val))
		}
		return eachPair(val, func(name, body *yaml.Node) error {
			decl, err := parseSchemaYAML(filename, name, body)
			if err != nil {
				return err
			}
			decls = append(decls, *decl)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return decls, nil
}

func parseSchemaYAML(filename string, name, body *yaml.Node) (*Declaration, error) {
	decl := &Declaration{Name: name.Value, Pos: yamlPos(filename, name)}
	if body.Kind != yaml.MappingNode {
		return nil, attrError(decl.path(), "must be a mapping", yamlPos(filename, body))
	}

	err := eachPair(body, func(key, val *yaml.Node) error {
		if key.Value == "fields" {
			return parseFieldsYAML(filename, decl, val)
		}
		scalar, err := yamlValue(filename, val)
		if err != nil {
			return err
		}
		return decl.setSchemaAttr(key.Value, scalar, yamlPos(filename, val))
	})
	if err != nil {
		return nil, err
	}
	return decl, nil
}

func parseFieldsYAML(filename string, decl *Declaration, fields *yaml.Node) error {
	if fields.Kind != yaml.MappingNode {
		return attrError(decl.path()+".fields", "must be a mapping of field names", yamlPos(filename, fields))
	}
	return eachPair(fields, func(name, body *yaml.Node) error {
		fd := FieldDecl{Name: name.Value, Pos: yamlPos(filename, name)}
		path := decl.path() + ".fields." + name.Value

		switch body.Kind {
		case yaml.ScalarNode:
			fd.Type = body.Value
		case yaml.MappingNode:
			err := eachPair(body, func(key, val *yaml.Node) error {
				v, err := yamlValue(filename, val)
				if err != nil {
					return err
				}
				return fd.set(path, key.Value, v, yamlPos(filename, val))
			})
			if err != nil {
				return err
			}
		default:
			return attrError(path, "must be a type name or a mapping", yamlPos(filename, body))
		}
		decl.Fields = append(decl.Fields, fd)
		return nil
	})
}

// eachPair visits the key/value pairs of a mapping node in order.
func eachPair(m *yaml.Node, fn func(key, val *yaml.Node) error) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if err := fn(m.Content[i], m.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func yamlValue(filename string, n *yaml.Node) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, &Error{Code: ErrAttributeValue, Path: "yaml", Message: fmt.Sprintf("decode value: %v", err), Pos: yamlPos(filename, n), Err: err}
	}
	return doc.Normalize(v), nil
}

func yamlPos(filename string, n *yaml.Node) Pos {
	return Pos{File: filename, Line: n.Line, Column: n.Column}
}
