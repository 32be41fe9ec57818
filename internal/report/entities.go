package report

import (
	"strings"

	"github.com/quill-ocr/quill/internal/document"
)

// entityGroup collects the values of one entity type in order of
// appearance.
type entityGroup struct {
	Type   string
	Values []string
}

// groupEntities buckets entities by type, preserving first-appearance
// order. Types listed in order come first; dedupe removes repeated
// values within a type. Entities with neither type nor value are
// dropped.
func groupEntities(ents []document.NamedEntity, order []string, dedupe bool) []entityGroup {
	index := make(map[string]int)
	var groups []entityGroup

	for _, e := range ents {
		etype := strings.TrimSpace(e.Type)
		value := strings.TrimSpace(e.Value)
		if etype == "" && value == "" {
			continue
		}
		i, ok := index[etype]
		if !ok {
			i = len(groups)
			index[etype] = i
			groups = append(groups, entityGroup{Type: etype})
		}
		groups[i].Values = append(groups[i].Values, value)
	}

	if dedupe {
		for i := range groups {
			groups[i].Values = uniqueStrings(groups[i].Values)
		}
	}
	if len(order) > 0 {
		groups = reorderGroups(groups, order)
	}
	return groups
}

// uniqueStrings removes duplicates while keeping first occurrences.
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// reorderGroups moves the listed types to the front in the given
// order; unlisted types keep their appearance order behind them.
func reorderGroups(groups []entityGroup, order []string) []entityGroup {
	rank := make(map[string]int, len(order))
	for i, t := range order {
		rank[t] = i
	}

	out := make([]entityGroup, 0, len(groups))
	for _, t := range order {
		for _, g := range groups {
			if g.Type == t {
				out = append(out, g)
				break
			}
		}
	}
	for _, g := range groups {
		if _, listed := rank[g.Type]; !listed {
			out = append(out, g)
		}
	}
	return out
}
