package normalize

import (
	"strings"
	"unicode"
)

// Expansions returns the word sequences a synthesizer may speak for a single
// display word. The first alternative is always the word itself.
func Expansions(word string) [][]string {
	alts := [][]string{{word}}
	core := trimPunct(word)
	if core == "" {
		return append(alts, symbolReading(word)...)
	}
	lower := strings.ToLower(core)

	if readings, ok := abbreviations[strings.ReplaceAll(lower, ".", "")]; ok {
		for _, r := range readings {
			alts = append(alts, strings.Fields(r))
		}
	}

	alts = append(alts, contractionReadings(lower)...)
	alts = append(alts, numberReadings(signedCore(word, core))...)
	alts = append(alts, slashReadings(core)...)
	alts = append(alts, acronymReadings(core)...)

	if hasSymbol(core) {
		alts = append(alts, symbolReading(core)...)
	}
	return alts
}

// Expand returns the most likely spoken form of text, word by word.
// Words without a known reading are kept as they are.
func Expand(text string) string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, strings.Join(preferredReading(w), " "))
	}
	return strings.Join(out, " ")
}

func preferredReading(word string) []string {
	core := trimPunct(word)
	if core == "" {
		return []string{word}
	}
	key := strings.ReplaceAll(strings.ToLower(core), ".", "")
	if readings, ok := abbreviations[key]; ok && strings.HasSuffix(word, ".") && !ambiguousAbbreviations[key] {
		return strings.Fields(readings[0])
	}
	if n := numberReadings(signedCore(word, core)); n != nil {
		return n[0]
	}
	if s := slashReadings(core); s != nil {
		return s[0]
	}
	if hasSymbol(core) {
		if s := symbolReading(core); s != nil {
			return s[0]
		}
	}
	return []string{word}
}

func trimPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		if _, ok := symbols[r]; ok {
			return false
		}
		return unicode.IsPunct(r)
	})
}

// signedCore restores a leading minus sign that trimPunct removed.
func signedCore(word, core string) string {
	if strings.HasPrefix(strings.TrimLeft(word, "\"'(["), "-") && !strings.HasPrefix(core, "-") {
		return "-" + core
	}
	return core
}

func contractionReadings(lower string) [][]string {
	lower = strings.ReplaceAll(lower, "’", "'")
	if readings, ok := contractions[lower]; ok {
		out := make([][]string, 0, len(readings))
		for _, r := range readings {
			out = append(out, strings.Fields(r))
		}
		return out
	}

	if strings.HasSuffix(lower, "n't") && len(lower) > 3 {
		return [][]string{{lower[:len(lower)-3], "not"}}
	}

	i := strings.LastIndexByte(lower, '\'')
	if i <= 0 || i == len(lower)-1 {
		return nil
	}
	base, suffix := lower[:i], lower[i+1:]
	var out [][]string
	for _, r := range contractionSuffixes[suffix] {
		out = append(out, []string{base, r})
	}
	return out
}

func slashReadings(core string) [][]string {
	if !strings.Contains(core, "/") {
		return nil
	}
	parts := strings.Split(core, "/")
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}

	var spoken [][]string
	for _, p := range parts {
		switch {
		case isAcronym(p):
			spoken = append(spoken, spellLetters(p))
		default:
			if n := numberReadings(p); n != nil {
				spoken = append(spoken, n[0])
			} else {
				spoken = append(spoken, []string{p})
			}
		}
	}

	var out [][]string
	for _, sep := range []string{"slash", "or", ""} {
		var seq []string
		for i, words := range spoken {
			if i > 0 && sep != "" {
				seq = append(seq, sep)
			}
			seq = append(seq, words...)
		}
		out = append(out, seq)
	}
	return out
}

func acronymReadings(core string) [][]string {
	if !isAcronym(core) || len(core) < 2 {
		return nil
	}
	return [][]string{spellLetters(core)}
}

// isAcronym reports whether s is a short run of uppercase letters and
// digits with at least one letter.
func isAcronym(s string) bool {
	if len(s) == 0 || len(s) > 6 {
		return false
	}
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			letters++
		case unicode.IsDigit(r):
		default:
			return false
		}
	}
	return letters > 0
}

func spellLetters(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range strings.ToLower(s) {
		out = append(out, string(r))
	}
	return out
}

func hasSymbol(s string) bool {
	for _, r := range s {
		if _, ok := symbols[r]; ok {
			return true
		}
	}
	return false
}

// symbolReading splits s into runs of digits, letters and symbols and
// speaks each run. Currency signs are read after the amount.
func symbolReading(s string) [][]string {
	type run struct {
		text   string
		symbol rune
	}
	var runs []run
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		if _, ok := symbols[r]; ok {
			runs = append(runs, run{symbol: r})
			i++
			continue
		}
		j := i
		numeric := unicode.IsDigit(r)
		for j < len(rs) {
			if _, ok := symbols[rs[j]]; ok {
				break
			}
			if numeric != (unicode.IsDigit(rs[j]) || numeric && (rs[j] == '.' || rs[j] == ',') && j+1 < len(rs) && unicode.IsDigit(rs[j+1])) {
				break
			}
			j++
		}
		runs = append(runs, run{text: string(rs[i:j])})
		i = j
	}

	var words []string
	var pendingCurrency []string
	for _, rn := range runs {
		if rn.symbol != 0 {
			if currencies[rn.symbol] {
				pendingCurrency = strings.Fields(symbols[rn.symbol][0])
				continue
			}
			words = append(words, strings.Fields(symbols[rn.symbol][0])...)
			continue
		}
		text := trimPunct(rn.text)
		if text == "" {
			continue
		}
		if n := numberReadings(text); n != nil {
			words = append(words, n[0]...)
			if pendingCurrency != nil {
				words = append(words, pendingCurrency...)
				pendingCurrency = nil
			}
			continue
		}
		words = append(words, text)
	}
	words = append(words, pendingCurrency...)
	if len(words) == 0 {
		return nil
	}
	return [][]string{words}
}
