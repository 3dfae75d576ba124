package meta

import "github.com/mewbotorg/bastet/internal/types"

// Deduplicate drops annotations whose (status, tool, source, code) key was
// already seen, keeping the first occurrence and the input order.
func Deduplicate(annotations []types.Annotation) []types.Annotation {
	seen := make(map[types.Key]bool, len(annotations))
	result := make([]types.Annotation, 0, len(annotations))
	for _, a := range annotations {
		k := a.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		result = append(result, a)
	}
	return result
}
