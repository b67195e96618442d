package rag

const (
	DefaultChunkSize    = 900
	DefaultChunkOverlap = 150
)

// Chunk splits content into windows of size runes, each starting
// size-overlap runes after the previous one. The last window may be shorter.
// Non-empty content always yields at least one window.
func Chunk(content string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	r := []rune(content)
	if len(r) == 0 {
		return nil
	}

	stride := size - overlap
	out := make([]string, 0, len(r)/stride+1)
	for start := 0; ; start += stride {
		end := min(start+size, len(r))
		out = append(out, string(r[start:end]))
		if end >= len(r) {
			break
		}
	}
	return out
}
