package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kljensen/snowball/english"
	"github.com/sirupsen/logrus"
)

const (
	maxKeywords      = 20
	maxKeyPhrases    = 5
	minPhraseWords   = 2
	maxPhraseWords   = 5
	minKeywordLength = 4
)

// Extractor computes keyword frequency tables and key-phrase lists from raw
// transcript text. It is stateless apart from its configuration, so repeated
// runs on the same text produce identical output.
type Extractor struct {
	logger    *logrus.Entry
	stopWords map[string]bool

	nonWordPattern  *regexp.Regexp
	sentencePattern *regexp.Regexp
}

// NewExtractor creates a keyword and phrase extractor with the built-in
// English stop-word set.
func NewExtractor(logger *logrus.Logger) *Extractor {
	stopWords := make(map[string]bool)
	for _, word := range []string{
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
		"is", "are", "was", "were", "be", "been", "being", "have", "has", "had", "do", "does", "did",
		"will", "would", "could", "should", "may", "might", "can", "must", "shall",
		"i", "you", "he", "she", "it", "we", "they", "me", "him", "her", "us", "them",
		"this", "that", "these", "those", "what", "which", "who", "where", "when", "why", "how",
		"there", "here", "then", "than", "from", "into", "about", "just", "also", "very",
		"your", "yours", "our", "ours", "their", "theirs", "some", "any", "okay", "yeah",
		"well", "like", "know", "think", "going", "really", "right", "want", "need",
	} {
		stopWords[word] = true
	}

	return &Extractor{
		logger:          logger.WithField("component", "keyword_extractor"),
		stopWords:       stopWords,
		nonWordPattern:  regexp.MustCompile(`[^a-z0-9\s]+`),
		sentencePattern: regexp.MustCompile(`[.!?]+`),
	}
}

// KeywordFrequency returns up to 20 (representative keyword, count) pairs
// sorted by descending count. Tokens are lowercased, stripped of punctuation,
// filtered against length and stop words, then grouped by Porter stem; the
// surface form occurring most often in the original text represents each
// group.
func (e *Extractor) KeywordFrequency(text string) []KeywordCount {
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	// stem -> surface form -> occurrence count
	groups := make(map[string]map[string]int)
	for _, token := range tokens {
		if len(token) < minKeywordLength || e.stopWords[token] {
			continue
		}
		stem := english.Stem(token, false)
		if groups[stem] == nil {
			groups[stem] = make(map[string]int)
		}
		groups[stem][token]++
	}

	counts := make([]KeywordCount, 0, len(groups))
	for _, surfaces := range groups {
		total := 0
		representative := ""
		best := 0
		for surface, n := range surfaces {
			total += n
			if n > best || (n == best && (representative == "" || surface < representative)) {
				best = n
				representative = surface
			}
		}
		counts = append(counts, KeywordCount{Word: representative, Count: total})
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})

	if len(counts) > maxKeywords {
		counts = counts[:maxKeywords]
	}
	return counts
}

// KeyPhrases returns up to 5 salient multi-word phrases: recurring n-grams,
// or n-grams of 3+ words even when seen once. Longer and more frequent
// phrases win, and no selected phrase is a substring of another.
func (e *Extractor) KeyPhrases(text string) []string {
	phraseCounts := make(map[string]int)

	for _, sentence := range e.sentencePattern.Split(strings.ToLower(text), -1) {
		words := strings.Fields(e.nonWordPattern.ReplaceAllString(sentence, " "))
		if len(words) < 3 {
			continue
		}
		for n := minPhraseWords; n <= maxPhraseWords && n <= len(words); n++ {
			for i := 0; i+n <= len(words); i++ {
				phraseCounts[strings.Join(words[i:i+n], " ")]++
			}
		}
	}
	if len(phraseCounts) == 0 {
		return nil
	}

	candidates := make([]string, 0, len(phraseCounts))
	for phrase, count := range phraseCounts {
		// Stop-word table lookup on the whole n-gram; only single-word
		// entries could ever match, so this rarely triggers.
		if e.stopWords[phrase] {
			continue
		}
		if count > 1 || len(strings.Fields(phrase)) >= 3 {
			candidates = append(candidates, phrase)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := phraseCounts[candidates[i]], phraseCounts[candidates[j]]
		if ci != cj {
			return ci > cj
		}
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})

	selected := make([]string, 0, maxKeyPhrases)
	for _, candidate := range candidates {
		if len(selected) >= maxKeyPhrases {
			break
		}
		overlaps := false
		for _, chosen := range selected {
			if strings.Contains(chosen, candidate) || strings.Contains(candidate, chosen) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			selected = append(selected, candidate)
		}
	}

	for i := range selected {
		selected[i] = capitalize(selected[i])
	}
	return selected
}

func (e *Extractor) tokenize(text string) []string {
	cleaned := e.nonWordPattern.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Fields(cleaned)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
