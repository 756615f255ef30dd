// Package analysis builds the cross-unit symbol index and dependency graph
// and computes which units a set of top-level entry symbols actually needs.
// It operates on unit metadata only; trees are never touched, so the same
// analysis runs over freshly parsed units and over cached metadata alike.
package analysis

import (
	"fmt"
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/svtools/svpickle/internal/syntax"
)

// Index maps every declared symbol name to the index of the unit declaring
// it. Duplicate declarations are not an error: the last unit wins. Callers
// that need uniqueness must validate separately.
type Index map[string]int

// BuildIndex scans all units' declared symbols into one index.
func BuildIndex(units []syntax.Metadata) Index {
	idx := make(Index)
	for i, md := range units {
		for _, name := range md.Declared {
			idx[name] = i
		}
	}
	return idx
}

// Resolve returns the declaring unit of a symbol name.
func (idx Index) Resolve(name string) (int, bool) {
	i, ok := idx[name]
	return i, ok
}

// BuildGraph turns per-unit referenced-symbol lists into an adjacency list
// between units. Edges are deduplicated per source unit in first-reference
// order; references that resolve to no unit (built-ins, external names) are
// skipped. Self edges are kept; reachability marks before recursing, so
// they are harmless.
func BuildGraph(units []syntax.Metadata, idx Index) [][]int {
	deps := make([][]int, len(units))
	for i, md := range units {
		seen := make(map[int]struct{})
		for _, ref := range md.Referenced {
			j, ok := idx.Resolve(ref)
			if !ok {
				continue
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			deps[i] = append(deps[i], j)
		}
	}
	return deps
}

// UnresolvedTopError reports a top-level entry symbol that no parsed unit
// declares. Suggestion, when non-empty, is the closest declared name.
type UnresolvedTopError struct {
	Top        string
	Suggestion string
}

func (e *UnresolvedTopError) Error() string {
	msg := fmt.Sprintf("top module %q not found in any parsed source file", e.Top)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Reachable resolves the top names to their declaring units and returns the
// ascending indices of every unit reachable from them through the
// dependency graph. Any unresolved top fails the whole call; traversal is
// cycle-safe through visited-before-recurse marking.
func Reachable(units []syntax.Metadata, tops []string) ([]int, error) {
	idx := BuildIndex(units)
	deps := BuildGraph(units, idx)

	starts := make([]int, 0, len(tops))
	for _, top := range tops {
		i, ok := idx.Resolve(top)
		if !ok {
			return nil, &UnresolvedTopError{Top: top, Suggestion: closestName(top, idx)}
		}
		starts = append(starts, i)
	}

	visited := make([]bool, len(units))
	var stack []int
	for _, s := range starts {
		if !visited[s] {
			visited[s] = true
			stack = append(stack, s)
		}
	}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, v := range deps[u] {
			if !visited[v] {
				visited[v] = true
				stack = append(stack, v)
			}
		}
	}

	var result []int
	for i, ok := range visited {
		if ok {
			result = append(result, i)
		}
	}
	return result, nil
}

// closestName finds the declared name most similar to the missing top, for
// "did you mean" rendering. Nothing is suggested below half similarity.
func closestName(top string, idx Index) string {
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	sort.Strings(names)
	match, err := edlib.FuzzySearchThreshold(top, names, 0.5, edlib.Levenshtein)
	if err != nil {
		return ""
	}
	return match
}
