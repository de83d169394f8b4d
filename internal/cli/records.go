package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flexschema/internal/doc"
)

// readRecords reads records from a YAML or JSON file, or from stdin when
// path is "-". The document is either one mapping or a list of mappings.
// JSON is read by the YAML parser, which accepts it as a subset.
func readRecords(path string, stdin io.Reader) ([]map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse records %s: %w", path, err)
	}

	switch v := doc.Normalize(raw).(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("parse records %s: item %d is %s, not a mapping", path, i, doc.KindOf(item))
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("parse records %s: expected a mapping or a list of mappings", path)
}

// parseWhere parses a native filter given as JSON (or YAML flow syntax).
// An empty string is the match-all filter.
func parseWhere(where string) (map[string]any, error) {
	if where == "" {
		return map[string]any{}, nil
	}
	var raw any
	if err := yaml.Unmarshal([]byte(where), &raw); err != nil {
		return nil, fmt.Errorf("parse --where: %w", err)
	}
	m, ok := doc.Normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse --where: expected an object")
	}
	return m, nil
}
