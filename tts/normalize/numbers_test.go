package normalize

import (
	"strings"
	"testing"
)

func TestNumberWords(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "zero"},
		{7, "seven"},
		{13, "thirteen"},
		{20, "twenty"},
		{42, "forty two"},
		{100, "one hundred"},
		{115, "one hundred fifteen"},
		{1000, "one thousand"},
		{1999, "one thousand nine hundred ninety nine"},
		{2_000_005, "two million five"},
		{-3, "minus three"},
	}

	for _, tt := range tests {
		got := strings.Join(NumberWords(tt.n), " ")
		if got != tt.expected {
			t.Errorf("NumberWords(%d): expected %q, got %q", tt.n, tt.expected, got)
		}
	}
}

func TestOrdinalWords(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{1, "first"},
		{2, "second"},
		{3, "third"},
		{5, "fifth"},
		{12, "twelfth"},
		{20, "twentieth"},
		{23, "twenty third"},
		{100, "one hundredth"},
	}

	for _, tt := range tests {
		got := strings.Join(OrdinalWords(tt.n), " ")
		if got != tt.expected {
			t.Errorf("OrdinalWords(%d): expected %q, got %q", tt.n, tt.expected, got)
		}
	}
}

func TestNumberReadings(t *testing.T) {
	tests := []struct {
		token    string
		contains []string
	}{
		{"1999", []string{"one thousand nine hundred ninety nine", "nineteen ninety nine"}},
		{"1905", []string{"nineteen oh five"}},
		{"1900", []string{"nineteen hundred"}},
		{"250", []string{"two hundred fifty", "two hundred and fifty"}},
		{"1,000", []string{"one thousand"}},
		{"3.14", []string{"three point one four"}},
		{"-4", []string{"minus four", "negative four"}},
		{"21st", []string{"twenty first"}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			readings := numberReadings(tt.token)
			if readings == nil {
				t.Fatalf("Expected readings for %q", tt.token)
			}
			joined := make(map[string]bool)
			for _, r := range readings {
				joined[strings.Join(r, " ")] = true
			}
			for _, want := range tt.contains {
				if !joined[want] {
					t.Errorf("Expected reading %q in %v", want, readings)
				}
			}
		})
	}
}

func TestNumberReadingsRejectsWords(t *testing.T) {
	for _, token := range []string{"", "abc", "12abc", "1,00", "--3"} {
		if r := numberReadings(token); r != nil {
			t.Errorf("Expected no readings for %q, got %v", token, r)
		}
	}
}

func TestYearWordsRange(t *testing.T) {
	if y := yearWords(2005); y != nil {
		t.Errorf("Expected 2005 to be read as a plain number, got %v", y)
	}
	if y := yearWords(950); y != nil {
		t.Errorf("Expected no year reading below 1100, got %v", y)
	}
	if got := strings.Join(yearWords(2024), " "); got != "twenty twenty four" {
		t.Errorf("Expected %q, got %q", "twenty twenty four", got)
	}
}
