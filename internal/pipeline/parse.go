package pipeline

import (
	"regexp"
	"strconv"
)

// DefaultFilterScore is assumed when the relevance pre-filter gives no
// usable answer, so ingestion fails open.
const DefaultFilterScore = 3

var (
	filterScoreRe = regexp.MustCompile(`\b([1-5])\b`)
	impactScoreRe = regexp.MustCompile(`\b([1-9]|10)\b`)
)

// ParseFilterScore returns the first standalone digit 1-5 in text, or
// DefaultFilterScore.
func ParseFilterScore(text string) int {
	m := filterScoreRe.FindStringSubmatch(text)
	if m == nil {
		return DefaultFilterScore
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// ParseImpactScore returns the first standalone integer 1-10 in text.
// Numbers such as 15 or 0 never match.
func ParseImpactScore(text string) (int, bool) {
	m := impactScoreRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
