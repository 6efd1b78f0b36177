package illustrate

import (
	"strings"
	"unicode"

	"github.com/mlenoir/illustrate/article"
)

// contextMaxLen is the approximate maximum character length for the article
// context handed to vision curation.
const contextMaxLen = 300

// slotContext builds a short excerpt of the article around the slot's
// target, so curation can judge candidates against what the text actually
// says. The excerpt is the 1-2 sentences most relevant to the search query;
// with no overlap at all, the start of the target text is used.
func slotContext(doc *article.Document, slot article.Slot) string {
	text, heading := targetText(doc, slot)
	if text == "" {
		return ""
	}

	query := slot.SearchQuery + " " + heading
	if snippet := extractSnippet(text, significantWords(query)); snippet != "" {
		return snippet
	}
	if len(text) > contextMaxLen {
		if cut := strings.LastIndex(text[:contextMaxLen], " "); cut > 0 {
			text = text[:cut]
		}
	}
	return text
}

// targetText returns the slot's paragraph text when it targets one, else
// the joined text of its section.
func targetText(doc *article.Document, slot article.Slot) (string, string) {
	for _, sec := range doc.Sections {
		if slot.ParagraphID != "" {
			for _, p := range sec.Paragraphs {
				if p.ID == slot.ParagraphID {
					return p.Text, sec.Heading
				}
			}
		}
		if sec.ID == slot.SectionID && slot.ParagraphID == "" {
			parts := make([]string, 0, len(sec.Paragraphs))
			for _, p := range sec.Paragraphs {
				parts = append(parts, p.Text)
			}
			return strings.Join(parts, " "), sec.Heading
		}
	}
	return "", ""
}

// extractSnippet returns the 1-2 most relevant sentences from content based
// on word overlap with queryWords. Returns empty string if no good match
// found.
func extractSnippet(content string, queryWords map[string]bool) string {
	if len(queryWords) == 0 || content == "" {
		return ""
	}

	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return ""
	}

	// Score each sentence by overlap with query words.
	scores := make([]int, len(sentences))
	for i, s := range sentences {
		for w := range significantWords(s) {
			if queryWords[w] {
				scores[i]++
			}
		}
	}

	bestIdx := 0
	for i, score := range scores {
		if score > scores[bestIdx] {
			bestIdx = i
		}
	}
	if scores[bestIdx] == 0 {
		return ""
	}

	result := sentences[bestIdx]

	// Add the better-scoring adjacent sentence when it fits.
	if len(result) < contextMaxLen && len(sentences) > 1 {
		candidateIdx := -1
		candidateScore := 0
		for _, delta := range []int{1, -1} {
			adj := bestIdx + delta
			if adj >= 0 && adj < len(sentences) && scores[adj] > candidateScore {
				candidateScore = scores[adj]
				candidateIdx = adj
			}
		}
		if candidateIdx >= 0 && candidateScore > 0 {
			combined := result + " " + sentences[candidateIdx]
			if candidateIdx < bestIdx {
				combined = sentences[candidateIdx] + " " + result
			}
			if len(combined) <= contextMaxLen {
				result = combined
			}
		}
	}

	return result
}

// significantWords returns the set of lowercased words >= 4 characters,
// excluding common stop words.
func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) >= 4 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

// splitSentences splits text into sentences at period/question/exclamation
// boundaries followed by whitespace or end of string.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// stopWords is a set of common English stop words to exclude from matching.
var stopWords = map[string]bool{
	"that": true, "this": true, "with": true, "from": true,
	"have": true, "been": true, "were": true, "they": true,
	"their": true, "will": true, "would": true, "could": true,
	"should": true, "about": true, "which": true, "there": true,
	"these": true, "those": true, "then": true, "than": true,
	"them": true, "what": true, "when": true, "where": true,
	"your": true, "more": true, "some": true, "such": true,
	"only": true, "also": true, "very": true, "just": true,
	"into": true, "over": true, "each": true, "does": true,
	"most": true, "after": true, "before": true, "other": true,
	"being": true, "same": true, "both": true, "between": true,
}
