package changedetect

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Similarity computes the normalized edit-distance ratio between two texts
// in [0,1]. Inputs are normalized first so whitespace differences score as
// identical. 1.0 means identical content, 0.0 means nothing in common.
func Similarity(oldText, newText string) float64 {
	oldNorm := Normalize(oldText)
	newNorm := Normalize(newText)

	if oldNorm == newNorm {
		return 1.0
	}

	maxLen := utf8.RuneCountInString(oldNorm)
	if n := utf8.RuneCountInString(newNorm); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldNorm, newNorm, false)
	distance := dmp.DiffLevenshtein(diffs)

	ratio := 1.0 - float64(distance)/float64(maxLen)
	if ratio < 0 {
		return 0
	}
	return ratio
}
