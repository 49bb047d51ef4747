package graph

import (
	"regexp"
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
)

var (
	gutenbergStartRe = regexp.MustCompile(`(?m)^[ \t]*\*\*\*[ \t]*START OF (?:THIS|THE) PROJECT GUTENBERG EBOOK[^\n]*$`)
	gutenbergEndRe   = regexp.MustCompile(`(?m)^[ \t]*\*\*\*[ \t]*END OF (?:THIS|THE) PROJECT GUTENBERG EBOOK[^\n]*$`)
	chapterHeaderRe  = regexp.MustCompile(`(?m)^[ \t]*(?:CHAPTER|Chapter)[ \t]+(?:[IVXLCDM]+|\d+)\b.*$`)
)

// Chapter is one numbered part of a book. Numbers are 1-based in reading
// order; a prologue before the first chapter header is part 1.
type Chapter struct {
	Number int
	Text   string
}

// hasGutenbergMarkers reports whether both Project Gutenberg boilerplate
// markers are present.
func hasGutenbergMarkers(text string) bool {
	return gutenbergStartRe.MatchString(text) && gutenbergEndRe.MatchString(text)
}

// stripGutenbergBoilerplate removes everything up to and including the
// START marker line and from the END marker line on. Missing markers leave
// that side untouched.
func stripGutenbergBoilerplate(text string) string {
	if loc := gutenbergStartRe.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}
	if loc := gutenbergEndRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}

// SplitIntoChapters splits book text on "CHAPTER I" / "Chapter 12" style
// header lines. Text without any header is a single chapter.
func SplitIntoChapters(text string) []Chapter {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := chapterHeaderRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []Chapter{{Number: 1, Text: text}}
	}

	parts := make([]string, 0, len(locs)+1)
	if prologue := strings.TrimSpace(text[:locs[0][0]]); prologue != "" {
		parts = append(parts, prologue)
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		parts = append(parts, strings.TrimSpace(text[loc[0]:end]))
	}

	chapters := make([]Chapter, len(parts))
	for i, p := range parts {
		chapters[i] = Chapter{Number: i + 1, Text: p}
	}
	return chapters
}

type processUnit struct {
	id      string
	chapter int
	start   int
	end     int
	text    string
}

// transformIntoUnits packs consecutive sentences of a chapter into units of
// at most maxTokens tokens. A single sentence longer than maxTokens becomes
// its own unit.
func transformIntoUnits(
	chapter Chapter,
	encoder string,
	maxTokens int,
) ([]processUnit, error) {
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}

	sentences := splitIntoSentences(chapter.Text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []processUnit
	chunkStart := -1
	chunkEnd := -1
	chunkTokens := 0

	flushChunk := func() error {
		if chunkStart < 0 || chunkEnd <= chunkStart {
			return nil
		}
		uID, err := gonanoid.New()
		if err != nil {
			return err
		}

		chunks = append(chunks, processUnit{
			id:      uID,
			chapter: chapter.Number,
			start:   chunkStart,
			end:     chunkEnd,
			text:    strings.Join(sentences[chunkStart:chunkEnd], " "),
		})
		chunkStart = -1
		chunkEnd = -1
		chunkTokens = 0
		return nil
	}

	for i, sentence := range sentences {
		// +1 for the joining space
		tokens := len(enc.Encode(sentence, nil, nil)) + 1

		if chunkStart >= 0 && chunkTokens+tokens > maxTokens {
			if err := flushChunk(); err != nil {
				return nil, err
			}
		}
		if chunkStart < 0 {
			chunkStart = i
		}
		chunkEnd = i + 1
		chunkTokens += tokens
	}

	if err := flushChunk(); err != nil {
		return nil, err
	}

	return chunks, nil
}

// splitIntoSentences joins wrapped lines into paragraphs and splits them
// into sentences. Blank lines always end a sentence.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		for _, part := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(part)
			if endsSentence(part) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func endsSentence(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), `"')]}’”»`)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

var abbreviations = map[string]struct{}{
	"Mr": {}, "Mrs": {}, "Ms": {}, "Dr": {}, "St": {}, "Mme": {}, "Mlle": {},
	"Messrs": {}, "Jr": {}, "Sr": {}, "Prof": {}, "Rev": {}, "Capt": {},
	"Col": {}, "Gen": {}, "Lt": {}, "Sgt": {}, "No": {},
}

// isAbbreviation reports whether the period at line[i] closes a title like
// "Mr." or an initial like "J.".
func isAbbreviation(line string, i int) bool {
	j := i
	for j > 0 && unicode.IsLetter(rune(line[j-1])) {
		j--
	}
	word := line[j:i]
	if word == "" {
		return false
	}
	if len(word) == 1 && word != "I" && unicode.IsUpper(rune(word[0])) {
		return true
	}
	_, ok := abbreviations[word]
	return ok
}

func closingQuote(s string) string {
	for _, q := range []string{"”", "’", "»"} {
		if strings.HasPrefix(s, q) {
			return q
		}
	}
	return ""
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			if line[i] == '.' && i > 0 && unicode.IsDigit(rune(line[i-1])) &&
				i+1 < len(line) && line[i+1] == ' ' {
				continue
			}
			if line[i] == '.' && isAbbreviation(line, i) {
				continue
			}

			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				current.WriteByte(line[j])
				j++
			}

			for j < len(line) {
				if line[j] == '"' || line[j] == '\'' || line[j] == ')' || line[j] == ']' || line[j] == '}' {
					current.WriteByte(line[j])
					j++
					continue
				}
				if q := closingQuote(line[j:]); q != "" {
					current.WriteString(q)
					j += len(q)
					continue
				}
				break
			}

			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			i = j - 1
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}
