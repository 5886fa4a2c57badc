// Package matcher counts keyword occurrences in page text and extracts
// example sentences for each match.
package matcher

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// MaxSnippets caps the excerpts collected per keyword.
const MaxSnippets = 3

// sentenceBoundary matches terminal punctuation followed by whitespace.
// Abbreviations and decimals followed by a space split too.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Match returns one result per keyword, in input order. Counting is
// case-insensitive and non-overlapping, and a keyword may match inside a
// larger word.
func Match(text string, keywords []string) []tracker.MatchResult {
	lowerText := strings.ToLower(text)
	sentences := Sentences(text)
	lowerSentences := make([]string, len(sentences))
	for i, s := range sentences {
		lowerSentences[i] = strings.ToLower(s)
	}

	results := make([]tracker.MatchResult, 0, len(keywords))
	for _, kw := range keywords {
		result := tracker.MatchResult{Keyword: kw, Snippets: []string{}}
		needle := strings.ToLower(kw)
		if needle != "" {
			result.Count = strings.Count(lowerText, needle)
		}
		if result.Count > 0 {
			result.Snippets = snippets(sentences, lowerSentences, needle)
		}
		results = append(results, result)
	}
	return results
}

// Sentences splits text on '.', '!' or '?' followed by whitespace. The
// punctuation stays with its sentence, and empty fragments are dropped.
func Sentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func snippets(sentences, lowerSentences []string, needle string) []string {
	out := make([]string, 0, MaxSnippets)
	seen := make(map[string]struct{}, MaxSnippets)
	for i, sentence := range sentences {
		if !strings.Contains(lowerSentences[i], needle) {
			continue
		}
		if _, dup := seen[sentence]; dup {
			continue
		}
		seen[sentence] = struct{}{}
		out = append(out, sentence)
		if len(out) == MaxSnippets {
			break
		}
	}
	return out
}
