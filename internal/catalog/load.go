package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Load reads declarations from a file or directory and builds a Catalog.
//
// A .cue file is compiled on its own. A .yaml or .yml file is parsed on
// its own. A directory loads its CUE files as one CUE package, so
// declarations may be split and unified across files, and then appends
// the declarations of every YAML file in it, in name order.
func Load(path string) (*Catalog, error) {
	decls, err := Declarations(path)
	if err != nil {
		return nil, err
	}
	return Build(decls)
}

// Declarations reads declarations from path without building them.
func Declarations(path string) ([]Declaration, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &Error{Code: ErrNotFound, Path: path, Message: "no such file or directory"}
	}
	if err != nil {
		return nil, &Error{Code: ErrNotFound, Path: path, Message: err.Error(), Err: err}
	}
	if info.IsDir() {
		return loadDir(path)
	}
	return loadFile(path)
}

func loadFile(path string) ([]Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".cue":
		return ParseCUE(path, data)
	case ".yaml", ".yml":
		return ParseYAML(path, data)
	}
	return nil, &Error{Code: ErrUnsupportedFile, Path: path, Message: "expected a .cue, .yaml or .yml file"}
}

func loadDir(dir string) ([]Declaration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var cueFiles, yamlFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".cue":
			cueFiles = append(cueFiles, e.Name())
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(yamlFiles)

	var decls []Declaration
	if len(cueFiles) > 0 {
		ctx := cuecontext.New()
		instances := load.Instances(cueFiles, &load.Config{Dir: dir})
		if len(instances) == 0 {
			return nil, &Error{Code: ErrSyntax, Path: dir, Message: "no CUE instances loaded"}
		}
		inst := instances[0]
		if inst.Err != nil {
			return nil, formatCUEError(inst.Err)
		}
		found, err := CompileCUE(ctx.BuildInstance(inst))
		if err != nil {
			return nil, err
		}
		decls = append(decls, found...)
	}

	for _, path := range yamlFiles {
		found, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		decls = append(decls, found...)
	}
	if len(decls) == 0 {
		return nil, &Error{Code: ErrNotFound, Path: dir, Message: "no schema declarations found"}
	}
	return decls, nil
}
