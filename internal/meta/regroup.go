// Package meta post-processes annotations collected from every tool.
package meta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mewbotorg/bastet/internal/types"
)

// GroupCode is the code given to an annotation that merges several others.
const GroupCode = "group"

// Regroup merges annotations at or above min into one annotation per source.
// Identical findings on the same source count once. A source with a single
// finding keeps it unchanged; otherwise a "group" annotation with the worst
// status lists every finding in its description. The result is sorted.
func Regroup(annotations []types.Annotation, min types.Status) []types.Annotation {
	type identity struct {
		status  types.Status
		tool    string
		code    string
		message string
	}

	var order []types.Source
	groups := make(map[types.Source][]types.Annotation)
	seen := make(map[types.Source]map[identity]bool)
	for _, a := range annotations {
		if a.Status < min {
			continue
		}
		id := identity{a.Status, a.Tool, a.Code, a.Message}
		if seen[a.Source] == nil {
			seen[a.Source] = map[identity]bool{}
			order = append(order, a.Source)
		}
		if seen[a.Source][id] {
			continue
		}
		seen[a.Source][id] = true
		groups[a.Source] = append(groups[a.Source], a)
	}

	result := make([]types.Annotation, 0, len(order))
	for _, src := range order {
		issues := groups[src]
		if len(issues) == 1 {
			result = append(result, issues[0])
			continue
		}

		status := types.StatusPassed
		parts := make([]string, 0, len(issues))
		for _, issue := range issues {
			status = max(status, issue.Status)
			parts = append(parts, subIssue(issue))
		}
		group := types.NewAnnotation(status, src, GroupCode, fmt.Sprintf("%d issues on this line", len(issues)))
		group.Description = strings.Join(parts, "\n\n")
		result = append(result, group)
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Less(result[j]) })
	return result
}

func subIssue(a types.Annotation) string {
	header := fmt.Sprintf("- %s [%s] %s", a.Tool, a.Code, a.Message)
	if a.Description == "" {
		return header
	}
	return header + "\n" + indent(strings.TrimSpace(a.Description), "  ")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
