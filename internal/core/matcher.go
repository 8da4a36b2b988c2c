package core

import (
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// Pattern matching and confidence scoring primitives for the rule-based
// classifier. All functions are pure: absent or malformed input yields a
// "no match" result, never an error.

var foldCaser = cases.Fold()

// fold lowercases a string using Unicode case folding so that matching is
// case-insensitive beyond ASCII.
func fold(s string) string {
	return foldCaser.String(s)
}

// ExtractSenderAddress parses a From header of the form "Name <addr>" or a
// bare address and returns the address part.
func ExtractSenderAddress(from string) (string, bool) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", false
	}
	if open := strings.LastIndex(from, "<"); open >= 0 {
		end := strings.Index(from[open:], ">")
		if end < 0 {
			return "", false
		}
		from = from[open+1 : open+end]
	}
	from = strings.TrimSpace(from)
	if from == "" || !strings.Contains(from, "@") {
		return "", false
	}
	return fold(from), true
}

// ExtractSenderName returns the display name portion of a From header, or
// the bare address when no display name is present.
func ExtractSenderName(from string) string {
	from = strings.TrimSpace(from)
	if open := strings.LastIndex(from, "<"); open > 0 {
		name := strings.Trim(strings.TrimSpace(from[:open]), `"`)
		if name != "" {
			return name
		}
	}
	return from
}

// ExtractSenderDomain parses a From header and returns the sender domain.
func ExtractSenderDomain(from string) (string, bool) {
	addr, ok := ExtractSenderAddress(from)
	if !ok {
		return "", false
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return "", false
	}
	return addr[at+1:], true
}

// MatchesDomainPattern reports whether a domain matches a pattern. Patterns
// are matched exactly (case-insensitive) unless they contain "*", which
// matches any substring with the pattern anchored at both ends. A leading
// "*." also matches the bare apex: "*.example.com" covers "example.com".
func MatchesDomainPattern(domain, pattern string) bool {
	domain = fold(strings.TrimSpace(domain))
	pattern = fold(strings.TrimSpace(pattern))
	if domain == "" || pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "*") {
		return domain == pattern
	}
	if strings.HasPrefix(pattern, "*.") && domain == pattern[2:] {
		return true
	}
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(domain)
}

// MatchesNamePattern reports whether a sender name contains a pattern,
// case-insensitively.
func MatchesNamePattern(name, pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if name == "" || pattern == "" {
		return false
	}
	return strings.Contains(fold(name), fold(pattern))
}

// KeywordMatch is the outcome of matching a keyword list against a text.
type KeywordMatch struct {
	Count   int
	Score   float64
	Matched []string
}

// CountKeywordMatches counts case-insensitive word-boundary occurrences of
// each keyword. Keywords longer than five characters score 1.5 per match,
// shorter ones 1.0.
func CountKeywordMatches(text string, keywords []string) KeywordMatch {
	var m KeywordMatch
	if text == "" || len(keywords) == 0 {
		return m
	}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil {
			continue
		}
		hits := len(re.FindAllStringIndex(text, -1))
		if hits == 0 {
			continue
		}
		weight := 1.0
		if len(kw) > 5 {
			weight = 1.5
		}
		m.Count += hits
		m.Score += float64(hits) * weight
		m.Matched = append(m.Matched, kw)
	}
	return m
}

// CountPhraseMatches counts case-insensitive substring occurrences of each
// phrase. Phrases weigh 2.0 per match.
func CountPhraseMatches(text string, phrases []string) KeywordMatch {
	var m KeywordMatch
	if text == "" || len(phrases) == 0 {
		return m
	}
	folded := fold(text)
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		hits := strings.Count(folded, fold(phrase))
		if hits == 0 {
			continue
		}
		m.Count += hits
		m.Score += float64(hits) * 2.0
		m.Matched = append(m.Matched, phrase)
	}
	return m
}

// CalculateConfidence boosts a base confidence by the match score. The
// boost is score*0.02 capped at 0.15, the total capped at 0.95, rounded to
// two decimals.
func CalculateConfidence(base, score float64) float64 {
	boost := score * 0.02
	if boost > 0.15 {
		boost = 0.15
	}
	confidence := base + boost
	if confidence > 0.95 {
		confidence = 0.95
	}
	return math.Round(confidence*100) / 100
}
