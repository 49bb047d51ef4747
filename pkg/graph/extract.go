package graph

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	gUtil "github.com/bookrel/backend/internal/util"

	"golang.org/x/sync/errgroup"
)

// CoOccurType is the edge type emitted by CooccurrenceExtractor.
const CoOccurType = "CO_OCCUR"

// Fact is a candidate relationship between two named characters, evidenced
// in the chapter span [FromChapter, ToChapter]. Chapter numbers must come
// from the chapters the extractor was given.
type Fact struct {
	Source      string
	Target      string
	Type        string
	FromChapter int
	ToChapter   int
	Weight      *float64
}

// Extractor turns chapters into relationship facts. Node identity derives
// only from the names on the facts.
type Extractor interface {
	Extract(ctx context.Context, chapters []Chapter) ([]Fact, error)
}

var titles = map[string]struct{}{
	"Mr.": {}, "Mrs.": {}, "Ms.": {}, "Miss": {}, "Dr.": {}, "Sir": {}, "Lady": {}, "Lord": {},
	"Madame": {}, "Captain": {}, "Colonel": {}, "General": {}, "Lieutenant": {}, "Professor": {},
	"Mr": {}, "Mrs": {}, "Dr": {},
}

var stopwords = map[string]struct{}{
	"A": {}, "An": {}, "And": {}, "As": {}, "At": {}, "But": {}, "By": {}, "Do": {}, "For": {},
	"From": {}, "He": {}, "Her": {}, "Here": {}, "His": {}, "How": {}, "I": {}, "If": {}, "In": {},
	"Is": {}, "It": {}, "Its": {}, "My": {}, "No": {}, "Not": {}, "Now": {}, "Of": {}, "Oh": {},
	"On": {}, "Or": {}, "Our": {}, "She": {}, "So": {}, "That": {}, "The": {}, "Their": {},
	"Then": {}, "There": {}, "These": {}, "They": {}, "This": {}, "Those": {}, "To": {}, "We": {},
	"Well": {}, "What": {}, "When": {}, "Where": {}, "Which": {}, "Who": {}, "Why": {}, "With": {},
	"Yes": {}, "You": {}, "Your": {}, "After": {}, "Before": {}, "Upon": {}, "While": {}, "Chapter": {},
	"Monday": {}, "Tuesday": {}, "Wednesday": {}, "Thursday": {}, "Friday": {}, "Saturday": {}, "Sunday": {},
	"God": {}, "Heaven": {},
}

type mention struct {
	name string
	// initial is set for a single-word name that opens its sentence, where
	// capitalisation says nothing about whether it is a name.
	initial bool
}

// CooccurrenceExtractor finds capitalised names per sentence and relates
// every pair of characters that appear in the same sentence. Weights are the
// pair counts normalised by the largest count; spans run from the first to
// the last chapter of co-occurrence.
type CooccurrenceExtractor struct {
	// Parallel bounds how many chapters are scanned at once. 0 means 4.
	Parallel int
	// KnownNames are matched as plain substrings in addition to the
	// capitalisation heuristic, for scripts without letter case.
	KnownNames []string
}

func (x *CooccurrenceExtractor) Extract(ctx context.Context, chapters []Chapter) ([]Fact, error) {
	parallel := x.Parallel
	if parallel <= 0 {
		parallel = 4
	}

	known := make([]string, 0, len(x.KnownNames))
	for _, n := range x.KnownNames {
		if n = gUtil.CollapseWhitespace(n); n != "" {
			known = append(known, n)
		}
	}

	scanned := make([][][]mention, len(chapters))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i, ch := range chapters {
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			scanned[i] = scanChapter(ch.Text, known)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// A sentence-initial single word only counts when it also shows up
	// capitalised somewhere else.
	confirmed := make(map[string]struct{})
	for _, sentences := range scanned {
		for _, sentence := range sentences {
			for _, m := range sentence {
				if !m.initial {
					confirmed[m.name] = struct{}{}
				}
			}
		}
	}

	names := make([]string, 0, len(confirmed))
	for n := range confirmed {
		names = append(names, n)
	}
	sort.Strings(names)
	aliases := aliasMap(names)

	type pair struct{ a, b string }
	total := make(map[pair]int)
	first := make(map[pair]int)
	last := make(map[pair]int)

	for i, sentences := range scanned {
		number := chapters[i].Number
		for _, sentence := range sentences {
			present := make(map[string]struct{})
			for _, m := range sentence {
				if _, ok := confirmed[m.name]; !ok {
					continue
				}
				name := m.name
				if canonical, ok := aliases[name]; ok {
					name = canonical
				}
				present[name] = struct{}{}
			}
			uniq := make([]string, 0, len(present))
			for n := range present {
				uniq = append(uniq, n)
			}
			sort.Strings(uniq)

			for a := 0; a < len(uniq); a++ {
				for b := a + 1; b < len(uniq); b++ {
					p := pair{uniq[a], uniq[b]}
					total[p]++
					if _, ok := first[p]; !ok || number < first[p] {
						first[p] = number
					}
					if number > last[p] {
						last[p] = number
					}
				}
			}
		}
	}

	if len(total) == 0 {
		return nil, nil
	}

	maxCount := 0
	for _, c := range total {
		maxCount = max(maxCount, c)
	}

	pairs := make([]pair, 0, len(total))
	for p := range total {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	facts := make([]Fact, 0, len(pairs))
	for _, p := range pairs {
		w := math.Round(float64(total[p])/float64(maxCount)*10000) / 10000
		facts = append(facts, Fact{
			Source:      p.a,
			Target:      p.b,
			Type:        CoOccurType,
			FromChapter: first[p],
			ToChapter:   last[p],
			Weight:      &w,
		})
	}
	return facts, nil
}

// aliasMap folds a lone surname into the only multi-word name ending in it,
// so "Darcy" and "Mr. Darcy" become one character. Surnames shared by
// several names ("Bennet") stay ambiguous and are not folded.
func aliasMap(names []string) map[string]string {
	counts := make(map[string]int)
	full := make(map[string]string)
	for _, n := range names {
		words := strings.Fields(n)
		if len(words) < 2 {
			continue
		}
		surname := words[len(words)-1]
		counts[surname]++
		if _, ok := full[surname]; !ok {
			full[surname] = n
		}
	}

	aliases := make(map[string]string)
	for _, n := range names {
		if len(strings.Fields(n)) != 1 {
			continue
		}
		if counts[n] == 1 {
			aliases[n] = full[n]
		}
	}
	return aliases
}

func scanChapter(text string, known []string) [][]mention {
	sentences := splitIntoSentences(text)
	out := make([][]mention, 0, len(sentences))
	for _, s := range sentences {
		mentions := namesInSentence(s)
		for _, k := range known {
			if strings.Contains(s, k) {
				mentions = append(mentions, mention{name: k})
			}
		}
		if len(mentions) > 0 {
			out = append(out, mentions)
		}
	}
	return out
}

type token struct {
	word string
	// breaks is set when punctuation follows the word, ending any name.
	breaks bool
}

func tokenize(sentence string) []token {
	fields := strings.Fields(sentence)
	tokens := make([]token, 0, len(fields))
	for _, f := range fields {
		word := strings.TrimLeftFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if _, ok := titles[word]; ok {
			tokens = append(tokens, token{word: word})
			continue
		}
		trimmed := strings.TrimRightFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		// possessive
		trimmed = strings.TrimSuffix(strings.TrimSuffix(trimmed, "'s"), "’s")
		tokens = append(tokens, token{word: trimmed, breaks: trimmed != word})
	}
	return tokens
}

func isCapitalised(word string) bool {
	r, size := utf8.DecodeRuneInString(word)
	if size == 0 || !unicode.IsUpper(r) {
		return false
	}
	// all caps words are headings or roman numerals, not names
	if utf8.RuneCountInString(word) > 1 && strings.ToUpper(word) == word {
		return false
	}
	for _, c := range word {
		if !unicode.IsLetter(c) && c != '\'' && c != '-' && c != '’' {
			return false
		}
	}
	return true
}

func namesInSentence(sentence string) []mention {
	tokens := tokenize(sentence)
	var mentions []mention
	var run []string
	runStart := -1

	flush := func() {
		defer func() { run = nil; runStart = -1 }()
		for len(run) > 0 {
			if _, stop := stopwords[run[0]]; !stop {
				break
			}
			run = run[1:]
			runStart++
		}
		if len(run) == 0 {
			return
		}
		if _, ok := titles[run[len(run)-1]]; ok {
			return
		}
		mentions = append(mentions, mention{
			name:    strings.Join(run, " "),
			initial: runStart == 0 && len(run) == 1,
		})
	}

	for i, t := range tokens {
		_, isTitle := titles[t.word]
		if isTitle || isCapitalised(t.word) {
			if runStart < 0 {
				runStart = i
			}
			run = append(run, t.word)
			if t.breaks {
				flush()
			}
			continue
		}
		flush()
	}
	flush()

	return mentions
}
