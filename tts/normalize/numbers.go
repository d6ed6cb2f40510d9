package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ones = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tens = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

	scales = []struct {
		value int64
		name  string
	}{
		{1_000_000_000_000, "trillion"},
		{1_000_000_000, "billion"},
		{1_000_000, "million"},
		{1_000, "thousand"},
	}

	ordinalIrregular = map[string]string{
		"one":    "first",
		"two":    "second",
		"three":  "third",
		"five":   "fifth",
		"eight":  "eighth",
		"nine":   "ninth",
		"twelve": "twelfth",
	}

	numberPattern  = regexp.MustCompile(`^([-+]?)(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?$`)
	ordinalPattern = regexp.MustCompile(`^(\d+)(?i:st|nd|rd|th)$`)
)

// NumberWords spells out n in English words, without "and".
func NumberWords(n int64) []string {
	if n < 0 {
		return append([]string{"minus"}, NumberWords(-n)...)
	}
	if n < 20 {
		return []string{ones[n]}
	}
	return spell(n, false)
}

// numberWordsWithAnd spells n with the British "and" after hundreds.
func numberWordsWithAnd(n int64) []string {
	if n < 20 {
		return NumberWords(n)
	}
	return spell(n, true)
}

func spell(n int64, and bool) []string {
	var words []string
	for _, s := range scales {
		if n >= s.value {
			words = append(words, spellHundreds(n/s.value, and)...)
			words = append(words, s.name)
			n %= s.value
		}
	}
	if n > 0 {
		if and && len(words) > 0 && n < 100 {
			words = append(words, "and")
		}
		words = append(words, spellHundreds(n, and)...)
	}
	return words
}

// spellHundreds spells 1..999.
func spellHundreds(n int64, and bool) []string {
	var words []string
	if n >= 100 {
		words = append(words, ones[n/100], "hundred")
		n %= 100
		if n > 0 && and {
			words = append(words, "and")
		}
	}
	switch {
	case n == 0:
	case n < 20:
		words = append(words, ones[n])
	default:
		words = append(words, tens[n/10])
		if n%10 > 0 {
			words = append(words, ones[n%10])
		}
	}
	return words
}

// yearWords reads n the way years are spoken ("nineteen ninety nine").
func yearWords(n int64) []string {
	if n < 1100 || n > 2099 || n%1000 < 10 && n >= 2000 {
		return nil
	}
	hi, lo := n/100, n%100
	words := spellHundreds(hi, false)
	switch {
	case lo == 0:
		words = append(words, "hundred")
	case lo < 10:
		words = append(words, "oh", ones[lo])
	default:
		words = append(words, spellHundreds(lo, false)...)
	}
	return words
}

// OrdinalWords spells out the ordinal form of n ("twenty third").
func OrdinalWords(n int64) []string {
	words := NumberWords(n)
	last := words[len(words)-1]
	switch {
	case ordinalIrregular[last] != "":
		last = ordinalIrregular[last]
	case strings.HasSuffix(last, "y"):
		last = strings.TrimSuffix(last, "y") + "ieth"
	default:
		last += "th"
	}
	words[len(words)-1] = last
	return words
}

// numberReadings returns the spoken alternatives of a numeric token, or nil
// when the token is not a number.
func numberReadings(token string) [][]string {
	if m := ordinalPattern.FindStringSubmatch(token); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil
		}
		return [][]string{OrdinalWords(n)}
	}

	m := numberPattern.FindStringSubmatch(token)
	if m == nil {
		return nil
	}
	sign, whole, frac := m[1], strings.ReplaceAll(m[2], ",", ""), m[3]
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return nil
	}

	var readings [][]string
	add := func(words []string) {
		if sign == "-" {
			readings = append(readings,
				append([]string{"minus"}, words...),
				append([]string{"negative"}, words...))
			return
		}
		readings = append(readings, words)
	}

	if frac != "" {
		digits := make([]string, 0, len(frac))
		for _, d := range frac {
			digits = append(digits, ones[d-'0'])
		}
		add(append(append(NumberWords(n), "point"), digits...))
		return readings
	}

	add(NumberWords(n))
	if n >= 100 {
		add(numberWordsWithAnd(n))
	}
	if sign == "" && !strings.Contains(m[2], ",") {
		if y := yearWords(n); y != nil {
			add(y)
		}
	}
	return readings
}
