// Package admission decides whether a message is worth embedding at all.
// Reaction-only and punctuation-only messages ("ok", a lone emoji) add index
// noise and embedding cost without any retrieval value, so they are skipped
// before the pipeline spends an embedding call on them.
package admission

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// alnumRE matches Latin letters/digits plus the Hebrew block, the scripts the
// chat population writes in.
var alnumRE = regexp.MustCompile(`[0-9A-Za-z\x{0590}-\x{05FF}]`)

// Filter gates text admission by three signal counts: stripped length,
// non-whitespace count, and count of letters/digits in the allowed scripts.
type Filter struct {
	minChars    int
	minNonspace int
	minAlnum    int
}

// NewFilter creates a filter with the given thresholds. Non-positive values
// fall back to the defaults (8, 6, 3).
func NewFilter(minChars, minNonspace, minAlnum int) *Filter {
	if minChars <= 0 {
		minChars = 8
	}
	if minNonspace <= 0 {
		minNonspace = 6
	}
	if minAlnum <= 0 {
		minAlnum = 3
	}
	return &Filter{minChars: minChars, minNonspace: minNonspace, minAlnum: minAlnum}
}

// ShouldSkip reports whether text is too low-signal to embed, with a
// machine-readable reason encoding the three counts for diagnostics.
func (f *Filter) ShouldSkip(text string) (bool, string) {
	l, ns, an := SignalCounts(text)
	if l < f.minChars || ns < f.minNonspace || an < f.minAlnum {
		return true, fmt.Sprintf("too_short(L=%d,NS=%d,AN=%d)", l, ns, an)
	}
	return false, ""
}

// SignalCounts returns the stripped length, non-whitespace count, and
// allowed-script alphanumeric count of text.
func SignalCounts(text string) (length, nonspace, alnum int) {
	stripped := strings.TrimSpace(text)
	length = len([]rune(stripped))
	for _, r := range stripped {
		if !unicode.IsSpace(r) {
			nonspace++
		}
	}
	alnum = len(alnumRE.FindAllString(stripped, -1))
	return length, nonspace, alnum
}
