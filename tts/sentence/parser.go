// Package sentence splits paragraph text into sentences for synthesis.
package sentence

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Sentence is one sentence of a paragraph. Start and End are byte offsets
// into the paragraph and Text == paragraph[Start:End].
type Sentence struct {
	Index int
	Text  string
	Start int
	End   int
}

// Parser finds sentence boundaries in plain text.
type Parser struct {
	// Fragments shorter than this join the previous sentence.
	minLength int

	// Common abbreviations that don't end sentences
	abbreviations map[string]bool

	initialismRegex  *regexp.Regexp
	numberRegex      *regexp.Regexp
	punctuationRegex *regexp.Regexp
}

// NewParser creates a new sentence parser.
func NewParser() *Parser {
	return &Parser{
		minLength:        3,
		abbreviations:    makeAbbreviationMap(),
		initialismRegex:  regexp.MustCompile(`^(\pL\.)+\pL$`),
		numberRegex:      regexp.MustCompile(`\d+`),
		punctuationRegex: regexp.MustCompile(`[,;:\-()]`),
	}
}

// Parse splits paragraph into sentences. Every non-space byte of the
// paragraph belongs to exactly one sentence.
func (p *Parser) Parse(paragraph string) []Sentence {
	runes := []rune(paragraph)
	offsets := byteOffsets(runes)

	var sentences []Sentence
	for _, b := range p.findBoundaries(runes) {
		start, end := trimSpan(paragraph, offsets[b.start], offsets[b.end])
		if start >= end {
			continue
		}

		// Short fragments ("a.", "?!") are folded into the previous sentence.
		if end-start < p.minLength && len(sentences) > 0 {
			last := &sentences[len(sentences)-1]
			last.End = end
			last.Text = paragraph[last.Start:last.End]
			continue
		}

		sentences = append(sentences, Sentence{
			Index: len(sentences),
			Text:  paragraph[start:end],
			Start: start,
			End:   end,
		})
	}
	return sentences
}

// EstimateDuration estimates the speaking duration for text.
func (p *Parser) EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}

	// Base rate: 150 words per minute, slower for complex text
	baseRate := 150.0
	adjustedRate := baseRate * (1.0 - p.calculateComplexity(text)*0.2)

	seconds := float64(words) * 60.0 / adjustedRate
	return time.Duration(seconds * float64(time.Second))
}

// findBoundaries returns sentence spans in rune positions.
func (p *Parser) findBoundaries(runes []rune) []boundary {
	var boundaries []boundary
	lastStart := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}

		// Collect all punctuation
		punctEnd := i + 1
		for punctEnd < len(runes) && isTerminator(runes[punctEnd]) {
			punctEnd++
		}

		// Handle quotes/parens after punctuation
		for punctEnd < len(runes) && isCloser(runes[punctEnd]) {
			punctEnd++
		}

		if !p.isSentenceEnd(runes, i, punctEnd) {
			i = punctEnd - 1
			continue
		}

		boundaries = append(boundaries, boundary{start: lastStart, end: punctEnd})
		for punctEnd < len(runes) && unicode.IsSpace(runes[punctEnd]) {
			punctEnd++
		}
		lastStart = punctEnd
		i = punctEnd - 1
	}

	if lastStart < len(runes) {
		boundaries = append(boundaries, boundary{start: lastStart, end: len(runes)})
	}
	return boundaries
}

// isSentenceEnd checks whether the punctuation run runes[pos:next] ends a
// sentence.
func (p *Parser) isSentenceEnd(runes []rune, pos, next int) bool {
	punct := runes[pos]

	if next >= len(runes) {
		return true
	}
	// Must have whitespace after punctuation
	if !unicode.IsSpace(runes[next]) {
		return false
	}

	if punct == '.' && next == pos+1 {
		word := wordBefore(runes, pos)
		if p.abbreviations[word] {
			return false
		}
		// Multi-part abbreviations like "Ph.D." or "U.S."
		if p.initialismRegex.MatchString(word) {
			return false
		}
		// Initials: "J. R. R. Tolkien"
		if len([]rune(word)) == 1 && unicode.IsUpper(runes[pos-1]) {
			return false
		}
	}

	// Skip whitespace and opening quotes to the next word
	after := next
	for after < len(runes) && (unicode.IsSpace(runes[after]) || isOpener(runes[after])) {
		after++
	}
	if after >= len(runes) {
		return true
	}

	if unicode.IsUpper(runes[after]) || unicode.IsDigit(runes[after]) {
		return true
	}

	// For exclamation and question marks, be more lenient
	return punct == '!' || punct == '?'
}

// calculateComplexity estimates text complexity for duration adjustment.
func (p *Parser) calculateComplexity(text string) float64 {
	complexity := 0.0

	// Numbers and punctuation slow reading down
	complexity += float64(len(p.numberRegex.FindAllString(text, -1))) * 0.02
	complexity += float64(len(p.punctuationRegex.FindAllString(text, -1))) * 0.01

	words := strings.Fields(text)
	longWords := 0
	for _, word := range words {
		if len(word) > 10 {
			longWords++
		}
	}
	complexity += float64(longWords) / float64(len(words)+1) * 0.1

	// Cap complexity at 0.5 (max 50% slowdown)
	if complexity > 0.5 {
		complexity = 0.5
	}
	return complexity
}

// wordBefore returns the lowercased word that ends just before pos, without
// the punctuation at pos and without leading quotes or brackets.
func wordBefore(runes []rune, pos int) string {
	start := pos - 1
	for start >= 0 && !unicode.IsSpace(runes[start]) {
		start--
	}
	word := string(runes[start+1 : pos])
	word = strings.TrimLeft(word, `"'([“‘`)
	return strings.ToLower(word)
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '»':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '“', '‘', '«':
		return true
	}
	return false
}

// byteOffsets maps rune positions to byte offsets, with one extra entry for
// the end of the text.
func byteOffsets(runes []rune) []int {
	offsets := make([]int, len(runes)+1)
	n := 0
	for i, r := range runes {
		offsets[i] = n
		n += len(string(r))
	}
	offsets[len(runes)] = n
	return offsets
}

// trimSpan narrows [start, end) of s to exclude surrounding whitespace.
func trimSpan(s string, start, end int) (int, int) {
	text := s[start:end]
	trimmedLeft := strings.TrimLeftFunc(text, unicode.IsSpace)
	start += len(text) - len(trimmedLeft)
	end = start + len(strings.TrimRightFunc(trimmedLeft, unicode.IsSpace))
	return start, end
}

// makeAbbreviationMap creates a map of common abbreviations.
func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "mt",
		"gen", "capt", "lt", "sgt", "gov", "rev",
		"inc", "ltd", "co", "corp", "llc",
		"etc", "vs", "cf", "al", "approx", "dept", "est", "fig", "vol", "no", "pp", "ch",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri", "sat", "sun",
		"rd", "ave", "blvd", "ln", "ct",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "min", "mins", "sec", "secs",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, abbrev := range abbrevs {
		m[abbrev] = true
	}
	return m
}

// boundary is a sentence span in rune positions.
type boundary struct {
	start int
	end   int
}
