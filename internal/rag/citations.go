package rag

import (
	"regexp"
	"strconv"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// MapCitations maps each distinct [n] marker in text to the metadata of the
// n-th retrieved chunk (1-based). Markers outside the list are ignored.
func MapCitations(text string, chunks []RetrievedChunk) map[string]map[string]any {
	out := map[string]map[string]any{}
	for _, m := range citationMarker.FindAllStringSubmatch(text, -1) {
		if _, seen := out[m[0]]; seen {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(chunks) {
			continue
		}
		out[m[0]] = chunks[n-1].Metadata
	}
	return out
}
