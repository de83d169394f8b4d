package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/flexschema/internal/doc"
)

// ParseCUE compiles one CUE source file and extracts its declarations.
func ParseCUE(filename string, src []byte) ([]Declaration, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileCUE(v)
}

// CompileCUE extracts declarations from the "schema" struct of a CUE
// value. A value without one declares nothing.
//
// Uses the CUE Go API directly, so unification and constraints written in
// CUE are resolved before extraction; every extracted attribute must be
// concrete.
func CompileCUE(v cue.Value) ([]Declaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	schemasVal := v.LookupPath(cue.ParsePath("schema"))
	if !schemasVal.Exists() {
		return nil, nil
	}

	iter, err := schemasVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var decls []Declaration
	for iter.Next() {
		decl, err := compileSchemaCUE(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, *decl)
	}
	return decls, nil
}

func compileSchemaCUE(name string, v cue.Value) (*Declaration, error) {
	decl := &Declaration{Name: name, Pos: cuePos(v.Pos())}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		key, val := iter.Label(), iter.Value()
		if key == "fields" {
			if err := compileFieldsCUE(decl, val); err != nil {
				return nil, err
			}
			continue
		}
		scalar, err := cueValue(val)
		if err != nil {
			return nil, err
		}
		if err := decl.setSchemaAttr(key, scalar, cuePos(val.Pos())); err != nil {
			return nil, err
		}
	}
	return decl, nil
}

func compileFieldsCUE(decl *Declaration, v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name, val := iter.Label(), iter.Value()
		fd := FieldDecl{Name: name, Pos: cuePos(val.Pos())}
		path := decl.path() + ".fields." + name

		if val.Kind() == cue.StringKind {
			typ, err := val.String()
			if err != nil {
				return formatCUEError(err)
			}
			fd.Type = typ
			decl.Fields = append(decl.Fields, fd)
			continue
		}

		attrs, err := val.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for attrs.Next() {
			attr, err := cueValue(attrs.Value())
			if err != nil {
				return err
			}
			if err := fd.set(path, attrs.Label(), attr, cuePos(attrs.Value().Pos())); err != nil {
				return err
			}
		}
		decl.Fields = append(decl.Fields, fd)
	}
	return nil
}

// cueValue converts a concrete CUE value into a normalized document value.
func cueValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			elem, err := cueValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			elem, err := cueValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = elem
		}
		return doc.Normalize(out), nil
	}
	return nil, &Error{
		Code:    ErrAttributeValue,
		Path:    v.Path().String(),
		Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
		Pos:     cuePos(v.Pos()),
	}
}

func cuePos(p token.Pos) Pos {
	if !p.IsValid() {
		return Pos{}
	}
	return Pos{File: p.Filename(), Line: p.Line(), Column: p.Column()}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: ErrSyntax, Path: "cue", Message: err.Error()}
	}

	first := errs[0]
	out := &Error{Code: ErrSyntax, Path: "cue", Message: first.Error(), Err: err}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = cuePos(positions[0])
	}
	return out
}
