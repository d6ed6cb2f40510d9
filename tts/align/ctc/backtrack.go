package ctc

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/readalong/tts"
)

// Backtrack recovers the best path through tr and returns the inclusive
// frame span of every token, in transcript order. The path ends in the last
// token or the trailing blank, whichever scores higher.
func Backtrack(tr *Trellis) ([]tts.TokenSpan, error) {
	if len(tr.Tokens) == 0 {
		return []tts.TokenSpan{}, nil
	}

	frames := len(tr.Scores)
	last := tr.Scores[frames-1]
	trailing := tr.States() - 1

	s := trailing
	if last[trailing-1] > last[trailing] {
		s = trailing - 1
	}
	if math.IsInf(last[s], -1) {
		return nil, fmt.Errorf("%w: %w: %d frames for %d tokens",
			tts.ErrAlignmentFailed, tts.ErrEmissionsTooShort, frames, len(tr.Tokens))
	}

	path := make([]int, frames)
	path[frames-1] = s
	for t := frames - 1; t > 0; t-- {
		prev := tr.Scores[t-1]
		best := s
		if s >= 1 && prev[s-1] > prev[best] {
			best = s - 1
		}
		if tr.canSkip(s) && prev[s-2] > prev[best] {
			best = s - 2
		}
		if math.IsInf(prev[best], -1) {
			return nil, fmt.Errorf("%w: broken path at frame %d", tts.ErrAlignmentFailed, t)
		}
		s = best
		path[t-1] = s
	}

	spans := make([]tts.TokenSpan, len(tr.Tokens))
	for i := range spans {
		spans[i] = tts.TokenSpan{TokenIndex: i, StartFrame: -1, EndFrame: -1}
	}
	for t, state := range path {
		if state%2 == 0 {
			continue
		}
		sp := &spans[state/2]
		if sp.StartFrame < 0 {
			sp.StartFrame = t
		}
		sp.EndFrame = t
	}

	for _, sp := range spans {
		if sp.StartFrame < 0 {
			return nil, fmt.Errorf("%w: token %d was never visited", tts.ErrAlignmentFailed, sp.TokenIndex)
		}
	}
	return spans, nil
}
