// Package classifier reads client replies for confirmation intent,
// frustration and hedging using a phrase lexicon.
package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Intent is what a client reply says about the appointment.
type Intent string

const (
	IntentNone        Intent = "none"
	IntentAffirmative Intent = "affirmative"
	IntentNegative    Intent = "negative"
)

// Result is the reading of one inbound message.
type Result struct {
	Intent     Intent `json:"intent"`
	Frustrated bool   `json:"frustrated"`
}

// Classifier matches whole words and phrases, ignoring case, accents and punctuation.
type Classifier struct {
	affirmative   []string
	negative      []string
	frustration   []string
	lowConfidence []string
}

func New(lex *Lexicon) *Classifier {
	return &Classifier{
		affirmative:   normalizeAll(lex.Affirmative),
		negative:      normalizeAll(lex.Negative),
		frustration:   normalizeAll(lex.Frustration),
		lowConfidence: normalizeAll(lex.LowConfidence),
	}
}

// Classify reads an inbound reply. When both affirmative and negative
// phrases match, the longer phrase decides; an even match is IntentNone and
// left to the operator.
func (c *Classifier) Classify(text string) Result {
	norm := normalize(text)
	res := Result{Intent: IntentNone, Frustrated: containsAny(norm, c.frustration)}
	neg, aff := longestMatch(norm, c.negative), longestMatch(norm, c.affirmative)
	switch {
	case neg > aff:
		res.Intent = IntentNegative
	case aff > neg:
		res.Intent = IntentAffirmative
	}
	return res
}

// IsLowConfidence reports whether an automated reply hedges.
func (c *Classifier) IsLowConfidence(text string) bool {
	return containsAny(normalize(text), c.lowConfidence)
}

// longestMatch returns the word count of the longest phrase found in norm, or 0.
func longestMatch(norm string, phrases []string) int {
	best := 0
	for _, p := range phrases {
		if !strings.Contains(norm, p) {
			continue
		}
		if n := len(strings.Fields(p)); n > best {
			best = n
		}
	}
	return best
}

func containsAny(norm string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

// normalize lowercases, strips accents, turns everything but letters and
// digits into single spaces and pads both ends so phrases match on word
// boundaries.
func normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func normalizeAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := normalize(p); strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return out
}
