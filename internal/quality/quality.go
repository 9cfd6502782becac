// Package quality decides whether extracted article text is worth keeping.
package quality

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reason names the rule that rejected a text.
type Reason string

// Rejection reasons, in evaluation order.
const (
	ReasonNone      Reason = ""
	ReasonNoContent Reason = "no content"
	ReasonTooShort  Reason = "too short"
	ReasonTruncated Reason = "appears truncated"
	ReasonPaywall   Reason = "paywall detected"
)

const (
	MinLength = 500

	truncationTail      = 50
	truncationMaxLength = 3000
	minLastWord         = 3
	warnLength          = 2000
	paywallTail         = 200
)

// PaywallPhrases are matched against the lowercased tail of the text.
var PaywallPhrases = []string{
	"subscribe to continue reading",
	"this content is for subscribers",
	"sign up to read more",
	"become a member to",
	"subscribe for full access",
	"continue reading for",
}

// Result is the outcome of Validate. Warning is informational and never
// affects Accepted.
type Result struct {
	Accepted bool
	Reason   Reason
	Warning  string
}

// Validate classifies text. Lengths are counted in characters. The first
// failing rule decides the reason.
func Validate(text string) Result {
	if text == "" {
		return Result{Reason: ReasonNoContent}
	}

	n := utf8.RuneCountInString(text)
	if n < MinLength {
		return Result{Reason: ReasonTooShort}
	}

	var res Result
	tail := strings.TrimSpace(lastRunes(text, truncationTail))
	if last, _ := utf8.DecodeLastRuneInString(tail); tail != "" && isAlnum(last) {
		words := strings.Fields(tail)
		lastWord := words[len(words)-1]
		if utf8.RuneCountInString(lastWord) < minLastWord && n < truncationMaxLength {
			return Result{Reason: ReasonTruncated}
		}
		if n < warnLength {
			res.Warning = "short text without terminal punctuation"
		}
	}

	paywall := strings.ToLower(lastRunes(text, paywallTail))
	for _, phrase := range PaywallPhrases {
		if strings.Contains(paywall, phrase) {
			return Result{Reason: ReasonPaywall}
		}
	}

	res.Accepted = true
	return res
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
