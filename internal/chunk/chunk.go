// Package chunk splits extracted document text into overlapping windows.
package chunk

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Split cuts text into windows of at most size runes. Consecutive windows
// share overlap runes; the last window ends at the end of the text. Invalid
// parameters fall back to DefaultSize and DefaultOverlap.
func Split(text string, size, overlap int) []string {
	if size <= 0 || overlap < 0 || overlap >= size {
		size, overlap = DefaultSize, DefaultOverlap
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []string{}
	}

	step := size - overlap
	out := make([]string, 0, Count(len(runes), size, overlap))
	for start := 0; ; start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// Count returns how many windows Split produces for a text of n runes.
func Count(n, size, overlap int) int {
	if size <= 0 || overlap < 0 || overlap >= size {
		size, overlap = DefaultSize, DefaultOverlap
	}
	if n <= 0 {
		return 0
	}
	if n <= size {
		return 1
	}
	step := size - overlap
	return (n - overlap + step - 1) / step
}
