package mock

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align/ctc"
)

// Recognizer implements tts.Recognizer for audio made by Synthesizer. Each
// frame favors the label encoded in the sample at its center.
type Recognizer struct {
	FrameRate float64 // frames per second, 100 when zero
	Floor     float64 // log score of labels not heard, -10 when zero

	tokenizer *ctc.Tokenizer
}

// NewRecognizer creates a recognizer over the default CTC vocabulary.
func NewRecognizer() *Recognizer {
	return &Recognizer{FrameRate: 100, Floor: -10, tokenizer: ctc.DefaultTokenizer()}
}

// Emissions implements tts.Recognizer.
func (r *Recognizer) Emissions(ctx context.Context, audio []byte, format tts.AudioFormat) (*tts.Emissions, error) {
	if format.BytesPerSample != 2 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: mock recognizer needs 16-bit PCM", tts.ErrAlignmentFailed)
	}
	tok := r.tokenizer
	if tok == nil {
		tok = ctc.DefaultTokenizer()
	}
	rate := r.FrameRate
	if rate <= 0 {
		rate = 100
	}
	floor := r.Floor
	if floor == 0 {
		floor = -10
	}

	frameBytes := 2 * max(format.Channels, 1)
	samples := len(audio) / frameBytes
	seconds := float64(samples) / float64(format.SampleRate)
	frames := int(math.Floor(seconds * rate))

	matrix := make([][]float64, frames)
	for f := range matrix {
		if f%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		center := int((float64(f) + 0.5) / rate * float64(format.SampleRate))
		if center >= samples {
			center = samples - 1
		}
		v := int16(binary.LittleEndian.Uint16(audio[center*frameBytes:]))
		label := int(v)/labelScale - 1
		if label < 0 || label >= tok.Size() {
			label = tok.Blank()
		}

		row := make([]float64, tok.Size())
		for i := range row {
			row[i] = floor
		}
		row[label] = 0
		matrix[f] = row
	}
	return &tts.Emissions{Matrix: matrix, FrameRate: rate}, nil
}
