package ctc

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/readalong/tts"
)

// Options adjusts the CTC path constraints.
type Options struct {
	// SkipBlanks allows moving from one token directly to the next distinct
	// token without visiting the blank between them. Identical neighbours
	// always need the blank. Off by default: every token pair is separated
	// by at least one blank frame.
	SkipBlanks bool
}

// Trellis holds cumulative log scores, one row per frame and 2*len(Tokens)+1
// states per row. Even states are blanks, odd state 2k+1 is token k.
type Trellis struct {
	Scores [][]float64
	Tokens []int
	Blank  int
	opts   Options
}

// States returns the number of states per frame.
func (tr *Trellis) States() int {
	return 2*len(tr.Tokens) + 1
}

// label returns the vocabulary index emitted in state s.
func (tr *Trellis) label(s int) int {
	if s%2 == 0 {
		return tr.Blank
	}
	return tr.Tokens[s/2]
}

// canSkip reports whether state s may be entered from s-2.
func (tr *Trellis) canSkip(s int) bool {
	if !tr.opts.SkipBlanks || s%2 == 0 || s < 3 {
		return false
	}
	return tr.Tokens[s/2] != tr.Tokens[s/2-1]
}

// BuildTrellis runs the CTC forward recurrence over emissions (log domain,
// frames x vocabulary) for the given token sequence. Each cell keeps the best
// score reaching that state by that frame.
func BuildTrellis(emissions [][]float64, tokens []int, blank int, opts Options) (*Trellis, error) {
	if len(emissions) == 0 {
		return nil, fmt.Errorf("%w: empty emission matrix", tts.ErrAlignmentFailed)
	}
	width := len(emissions[0])
	if blank < 0 || blank >= width {
		return nil, fmt.Errorf("%w: blank index %d outside %d labels", tts.ErrVocabulary, blank, width)
	}
	for t, row := range emissions {
		if len(row) != width {
			return nil, fmt.Errorf("%w: frame %d has %d scores, want %d", tts.ErrAlignmentFailed, t, len(row), width)
		}
	}
	for i, tok := range tokens {
		if tok < 0 || tok >= width {
			return nil, fmt.Errorf("%w: token %d has label %d outside %d labels", tts.ErrVocabulary, i, tok, width)
		}
	}

	tr := &Trellis{
		Tokens: tokens,
		Blank:  blank,
		opts:   opts,
	}
	numStates := tr.States()
	negInf := math.Inf(-1)

	tr.Scores = make([][]float64, len(emissions))
	for t := range tr.Scores {
		row := make([]float64, numStates)
		for s := range row {
			row[s] = negInf
		}
		tr.Scores[t] = row
	}

	tr.Scores[0][0] = emissions[0][blank]
	if numStates > 1 {
		tr.Scores[0][1] = emissions[0][tokens[0]]
	}

	for t := 1; t < len(emissions); t++ {
		prev, cur := tr.Scores[t-1], tr.Scores[t]
		for s := 0; s < numStates; s++ {
			best := prev[s]
			if s >= 1 && prev[s-1] > best {
				best = prev[s-1]
			}
			if tr.canSkip(s) && prev[s-2] > best {
				best = prev[s-2]
			}
			if math.IsInf(best, -1) {
				continue
			}
			cur[s] = best + emissions[t][tr.label(s)]
		}
	}
	return tr, nil
}
