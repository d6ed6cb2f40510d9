package normalize

import (
	"strings"

	"github.com/dgnsrekt/readalong/tts"
)

// MaxExpansion bounds how many synthesized words one display word may expand
// to, and how far the mapper looks ahead to resynchronize.
const MaxExpansion = 10

// BuildMapping pairs display words with the synthesized words that speak
// them. The result partitions both sequences in order. Synthesized words left
// over at the end are attached to the last mapping; display words the
// synthesizer skipped get a mapping with no synthesized indices.
//
// When display is empty there is nothing to attach synthesized words to and
// the result is empty. This is the only case in which synthesized words are
// dropped: a mapping needs at least one display word.
func BuildMapping(display, synthesized []string) []tts.WordMapping {
	if len(display) == 0 {
		return []tts.WordMapping{}
	}
	m := newMatcher(display, synthesized)
	return m.run()
}

type matcher struct {
	display []string
	synth   []string

	folder   *Folder
	dFold    []string
	sFold    []string
	readings [][]string // folded alternatives per display word, built lazily
}

func newMatcher(display, synth []string) *matcher {
	m := &matcher{
		display:  display,
		synth:    synth,
		folder:   NewFolder(),
		dFold:    make([]string, len(display)),
		sFold:    make([]string, len(synth)),
		readings: make([][]string, len(display)),
	}
	for i, w := range display {
		m.dFold[i] = m.folder.Fold(w)
	}
	for i, w := range synth {
		m.sFold[i] = m.folder.Fold(w)
	}
	return m
}

func (m *matcher) run() []tts.WordMapping {
	out := make([]tts.WordMapping, 0, len(m.display))
	d, s := 0, 0

	for d < len(m.display) && s < len(m.synth) {
		if k := m.consume(d, s); k > 0 {
			out = append(out, mapping([]int{d}, span(s, k)))
			d, s = d+1, s+k
			continue
		}

		if j := m.collapse(d, s); j > 0 {
			out = append(out, mapping(span(d, j), []int{s}))
			d, s = d+j, s+1
			continue
		}

		// The synthesizer skipped this display word.
		if d+1 < len(m.display) && m.consume(d+1, s) > 0 {
			out = append(out, mapping([]int{d}, nil))
			d++
			continue
		}

		k := m.resync(d, s)
		out = append(out, mapping([]int{d}, span(s, k)))
		d, s = d+1, s+k
	}

	for ; d < len(m.display); d++ {
		out = append(out, mapping([]int{d}, nil))
	}

	if s < len(m.synth) {
		last := &out[len(out)-1]
		last.SynthesizedIndices = append(last.SynthesizedIndices, span(s, len(m.synth)-s)...)
	}
	return out
}

// consume returns the fewest synthesized words starting at s whose folded
// concatenation equals a reading of display word d, or 0.
func (m *matcher) consume(d, s int) int {
	readings := m.readingsOf(d)
	if len(readings) == 0 {
		return 0
	}

	var cat strings.Builder
	for k := 1; k <= MaxExpansion && s+k <= len(m.synth); k++ {
		cat.WriteString(m.sFold[s+k-1])
		c := cat.String()
		if c == "" {
			continue
		}
		prefix := false
		for _, r := range readings {
			if r == c {
				return k
			}
			if strings.HasPrefix(r, c) {
				prefix = true
			}
		}
		if !prefix {
			return 0
		}
	}
	return 0
}

// collapse handles several display words spoken as one synthesized word
// ("e. g." read as "eg"). It returns how many display words were used, or 0.
func (m *matcher) collapse(d, s int) int {
	target := m.sFold[s]
	if target == "" || m.dFold[d] == "" || !strings.HasPrefix(target, m.dFold[d]) {
		return 0
	}
	cat := m.dFold[d]
	for j := 2; j <= MaxExpansion && d+j <= len(m.display); j++ {
		cat += m.dFold[d+j-1]
		if cat == target {
			return j
		}
		if !strings.HasPrefix(target, cat) {
			return 0
		}
	}
	return 0
}

// resync returns how many synthesized words to give display word d when none
// of its readings matched: everything up to the point where the next display
// word matches again, all the rest for the last display word, or a single
// word when nothing lines up inside the lookahead window.
func (m *matcher) resync(d, s int) int {
	if d+1 >= len(m.display) {
		return len(m.synth) - s
	}
	for k := 1; k <= MaxExpansion && s+k < len(m.synth); k++ {
		if m.consume(d+1, s+k) > 0 {
			return k
		}
	}
	return 1
}

func (m *matcher) readingsOf(d int) []string {
	if m.readings[d] != nil {
		return m.readings[d]
	}
	seen := make(map[string]bool)
	readings := []string{}
	for _, alt := range Expansions(m.display[d]) {
		var b strings.Builder
		for _, w := range alt {
			b.WriteString(m.folder.Fold(w))
		}
		r := b.String()
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		readings = append(readings, r)
	}
	m.readings[d] = readings
	return readings
}

func mapping(display, synth []int) tts.WordMapping {
	return tts.WordMapping{DisplayIndices: display, SynthesizedIndices: synth}
}

func span(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}
