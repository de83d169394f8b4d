package catalog

import (
	"fmt"
	"strings"

	"github.com/roach88/flexschema/internal/schema"
)

// Cycle levels.
const (
	// LevelInfo marks a cycle whose members are all persistable. Nested
	// persistable records are stored as references, so the cycle is bounded.
	LevelInfo = "info"
	// LevelWarning marks a cycle through at least one transient schema.
	// Transient records are embedded, so every stored document nests until
	// a null breaks the chain.
	LevelWarning = "warning"
)

// CycleWarning describes a reference cycle between schemas.
//
// Cycles are warnings, not errors: a Post referencing its parent Post or
// an Author listing their Posts are legitimate models.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// referenceGraph maps a schema name to the schema names its fields nest.
type referenceGraph map[string][]string

// AnalyzeCycles reports every reference cycle among schemas.
//
// Edges run from a schema to every schema its model fields and list item
// types nest. Each strongly connected component (Tarjan) with more than
// one member, or with an edge to itself, is one cycle.
//
// Schemas are visited in the given order, so output is deterministic.
func AnalyzeCycles(schemas []*schema.Schema) []CycleWarning {
	graph, order := buildReferenceGraph(schemas)
	identity := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		identity[s.Name()] = s.Identity()
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, sccToWarning(scc, graph, identity))
		}
	}
	return warnings
}

func buildReferenceGraph(schemas []*schema.Schema) (referenceGraph, []string) {
	graph := make(referenceGraph, len(schemas))
	order := make([]string, 0, len(schemas))
	for _, s := range schemas {
		order = append(order, s.Name())
		edges := []string{}
		seen := map[string]bool{}
		for _, f := range s.Fields() {
			nested := f.Type.Model()
			if f.Type.Kind() == schema.KindList {
				nested = f.Constraint.ItemType.Model()
			}
			if nested != nil && !seen[nested.Name()] {
				seen[nested.Name()] = true
				edges = append(edges, nested.Name())
			}
		}
		graph[s.Name()] = edges
	}
	return graph, order
}

func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components, starting from nodes in
// order. Single-node SCCs without self-loops are not cycles.
func tarjanSCC(graph referenceGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph referenceGraph, identity map[string]bool) CycleWarning {
	level := LevelInfo
	for _, name := range scc {
		if !identity[name] {
			level = LevelWarning
		}
	}

	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-referencing schema: %s → %s", name, name),
			Level:   level,
		}
	}

	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Reference cycle: %s", strings.Join(path, " → ")),
		Level:   level,
	}
}

// cyclePath walks edges inside the SCC from its last-popped member (the
// first one visited) until it returns to the start.
func cyclePath(scc []string, graph referenceGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
