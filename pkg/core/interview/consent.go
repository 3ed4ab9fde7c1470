package interview

import "strings"

// consentVerdict is the outcome of one consent reply.
type consentVerdict int

const (
	consentUnclear consentVerdict = iota
	consentGranted
	consentDeclined
)

var affirmativeWords = []string{
	"yes", "yeah", "yep", "sure", "okay", "ok", "fine",
	"agree", "consent", "go ahead", "sounds good", "absolutely", "of course",
}

var negativeWords = []string{
	"no", "nope", "don't", "do not", "stop", "decline", "refuse",
	"not comfortable", "rather not", "disagree",
}

// evaluateConsent classifies a spoken consent reply by keyword. Negative
// markers win over affirmative ones: "no, I don't agree" contains
// "agree" but must decline.
func evaluateConsent(reply string) consentVerdict {
	text := strings.ToLower(strings.TrimSpace(reply))
	if text == "" {
		return consentUnclear
	}
	for _, w := range negativeWords {
		if containsWord(text, w) {
			return consentDeclined
		}
	}
	for _, w := range affirmativeWords {
		if containsWord(text, w) {
			return consentGranted
		}
	}
	return consentUnclear
}

// containsWord matches on word boundaries so "no" does not match "know".
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isAlpha(text[start-1])
		afterOK := end == len(text) || !isAlpha(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlpha(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '\''
}
