// Package scoring provides the lexical and embedding similarity scorers.
// Both scorers report similarity on a shared [0,100] scale so callers can
// swap them without changing downstream consumers.
package scoring

import (
	"regexp"
	"strings"
)

// Phrase match base points by phrase length. Each constituent word adds its
// tier weight on top of the base.
const (
	phraseBase2 = 7.0
	phraseBase3 = 10.0

	// normFactor scales the token-count-normalized raw score into the
	// [0,100] range.
	normFactor = 10.0

	// partialMinLen is the minimum token length considered for substring
	// matching. Shorter tokens produce too many accidental matches.
	partialMinLen = 4
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Keyword scores a message against an issue using weighted keyword and
// phrase matching. The issue title is passed separately because title
// matches earn a boost: titles concentrate intent.
//
// Returns a score in [0,100] and the matched terms, phrase matches (quoted)
// first, with phrase-covered tokens excluded from the standalone list. An
// empty-after-filtering message yields 0 and no matches.
func Keyword(message, issueTitle, issueBody string) (float64, []string) {
	msgTokens := Tokenize(message)
	if len(msgTokens) == 0 {
		return 0, nil
	}

	issueTokens := Tokenize(issueTitle + " " + issueBody)
	if len(issueTokens) == 0 {
		return 0, nil
	}

	issueSet := variantSet(issueTokens)
	titleSet := variantSet(Tokenize(issueTitle))
	issuePhrases := phraseSet(issueTokens)

	var raw, titleBonus float64
	covered := make([]bool, len(msgTokens))
	var matchedPhrases, matchedTokens []string
	seenPhrase := make(map[string]bool)
	seenToken := make(map[string]bool)

	// Longer phrases first so a 3-word match claims its tokens before the
	// 2-word sub-phrases are considered.
	for _, size := range []int{3, 2} {
		base := phraseBase2
		if size == 3 {
			base = phraseBase3
		}
		for i := 0; i+size <= len(msgTokens); i++ {
			words := msgTokens[i : i+size]
			if degenerate(words) || anyCovered(covered, i, size) {
				continue
			}
			phrase := strings.Join(words, " ")
			if !issuePhrases[phrase] {
				continue
			}
			raw += base
			for j, w := range words {
				raw += tierWeight(w)
				covered[i+j] = true
			}
			if !seenPhrase[phrase] {
				seenPhrase[phrase] = true
				matchedPhrases = append(matchedPhrases, `"`+phrase+`"`)
			}
		}
	}

	for i, tok := range msgTokens {
		if covered[i] || seenToken[tok] {
			continue
		}
		weight := tierWeight(tok)

		if matchesAny(tok, issueSet) {
			raw += weight
			seenToken[tok] = true
			matchedTokens = append(matchedTokens, tok)
			if matchesAny(tok, titleSet) {
				titleBonus += weight
			}
			continue
		}

		if partialMatch(tok, issueTokens) {
			raw += weight / 2
			seenToken[tok] = true
			matchedTokens = append(matchedTokens, tok)
		}
	}

	score := raw/float64(len(msgTokens))*normFactor + titleBonus
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	matched := make([]string, 0, len(matchedPhrases)+len(matchedTokens))
	matched = append(matched, matchedPhrases...)
	matched = append(matched, matchedTokens...)
	if len(matched) == 0 {
		matched = nil
	}
	return score, matched
}

// KeywordSimilarity is the symmetric lexical similarity of two texts: the
// mean of scoring each side against the other. The correlator uses this so
// similarity(A,B) always equals similarity(B,A); the directional Keyword
// remains the classifier's message-vs-issue scorer.
func KeywordSimilarity(aTitle, aBody, bTitle, bBody string) float64 {
	aText := joinText(aTitle, aBody)
	bText := joinText(bTitle, bBody)
	ab, _ := Keyword(aText, bTitle, bBody)
	ba, _ := Keyword(bText, aTitle, aBody)
	return (ab + ba) / 2
}

func joinText(title, body string) string {
	if title == "" {
		return body
	}
	return title + "\n" + body
}

// Tokenize lowercases and splits text on whitespace, strips URLs first,
// trims surrounding punctuation while preserving hyphen/underscore
// compounds, and drops stop words and tokens of two characters or fewer.
func Tokenize(text string) []string {
	text = urlPattern.ReplaceAllString(text, " ")
	fields := strings.Fields(strings.ToLower(text))

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return !isWordRune(r)
		})
		// Interior punctuation other than - and _ splits the token.
		for _, part := range strings.FieldsFunc(tok, func(r rune) bool {
			return !isWordRune(r) && r != '-' && r != '_'
		}) {
			part = strings.Trim(part, "-_")
			if len(part) <= 2 || stopWords[part] {
				continue
			}
			tokens = append(tokens, part)
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// splitCompound returns the hyphen/underscore-separated parts of a token,
// or nil for simple tokens.
func splitCompound(tok string) []string {
	if !strings.ContainsAny(tok, "-_") {
		return nil
	}
	parts := strings.FieldsFunc(tok, func(r rune) bool {
		return r == '-' || r == '_'
	})
	out := parts[:0]
	for _, p := range parts {
		if len(p) > 2 && !stopWords[p] {
			out = append(out, p)
		}
	}
	return out
}

// expandVariants expands a compound token into its hyphen, underscore, and
// concatenated forms plus its individual parts, so "trusted-origins" also
// matches "trustedorigins", "trusted_origins", "trusted", and "origins".
// Simple tokens expand to themselves.
func expandVariants(tok string) []string {
	parts := splitCompound(tok)
	if len(parts) == 0 {
		return []string{tok}
	}
	variants := []string{
		tok,
		strings.Join(parts, "-"),
		strings.Join(parts, "_"),
		strings.Join(parts, ""),
	}
	variants = append(variants, parts...)

	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// variantSet builds the lookup set of tokens and all their variants.
func variantSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens)*2)
	for _, tok := range tokens {
		for _, v := range expandVariants(tok) {
			set[v] = true
		}
	}
	return set
}

// matchesAny reports whether any variant of tok is present in the set.
func matchesAny(tok string, set map[string]bool) bool {
	for _, v := range expandVariants(tok) {
		if set[v] {
			return true
		}
	}
	return false
}

// partialMatch reports whether tok is a substring of any candidate token or
// vice versa. Both sides must meet the minimum length.
func partialMatch(tok string, candidates []string) bool {
	if len(tok) < partialMinLen {
		return false
	}
	for _, c := range candidates {
		if len(c) < partialMinLen {
			continue
		}
		if strings.Contains(c, tok) || strings.Contains(tok, c) {
			return true
		}
	}
	return false
}

// phraseSet builds the set of 2-word and 3-word contiguous phrases,
// skipping degenerate repeats.
func phraseSet(tokens []string) map[string]bool {
	set := make(map[string]bool)
	for _, size := range []int{2, 3} {
		for i := 0; i+size <= len(tokens); i++ {
			words := tokens[i : i+size]
			if degenerate(words) {
				continue
			}
			set[strings.Join(words, " ")] = true
		}
	}
	return set
}

// degenerate reports whether a phrase repeats the same word back to back.
func degenerate(words []string) bool {
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] {
			return true
		}
	}
	return false
}

// anyCovered reports whether any token in [start, start+size) was already
// claimed by a longer phrase match.
func anyCovered(covered []bool, start, size int) bool {
	for i := start; i < start+size; i++ {
		if covered[i] {
			return true
		}
	}
	return false
}
