package detection

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'", "`", "'")

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// Normalize prepares text for matching: NFKC, case-folded, typographic
// apostrophes straightened, whitespace collapsed and trimmed.
func Normalize(text string) string {
	s := norm.NFKC.String(text)
	// Casers are stateful, so one per call.
	s = cases.Fold().String(s)
	s = apostrophes.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// word is a token of normalised text with its byte range.
type word struct {
	text       string
	start, end int
}

func tokenize(text string) []word {
	idx := wordPattern.FindAllStringIndex(text, -1)
	words := make([]word, len(idx))
	for i, r := range idx {
		words[i] = word{text: strings.Trim(text[r[0]:r[1]], "'"), start: r[0], end: r[1]}
	}
	return words
}

// span locates the first and last word overlapping the byte range [start, end).
func span(words []word, start, end int) (first, last int) {
	first, last = -1, -1
	for i, w := range words {
		if w.end <= start {
			continue
		}
		if w.start >= end {
			break
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		// Match without word characters; anchor to the nearest following word.
		for i, w := range words {
			if w.start >= start {
				return i, i
			}
		}
		return len(words) - 1, len(words) - 1
	}
	return first, last
}
