package piper_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/align"
	"github.com/dgnsrekt/readalong/tts/engines/piper"
)

// oneSecond is a second of 16-bit mono audio at 22.05kHz.
const oneSecond = 44100

// fakePiper writes a shell script standing in for the piper binary. The
// script records its arguments in $PIPER_ARGS.
func fakePiper(t *testing.T, body string) *piper.Synthesizer {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "piper")
	script := "#!/bin/sh\necho \"$@\" > \"$PIPER_ARGS\"\n" + body + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write fake piper: %v", err)
	}
	t.Setenv("PIPER_ARGS", filepath.Join(dir, "args"))

	s, err := piper.New(tts.PiperConfig{Binary: bin, Model: "voice.onnx", SampleRate: 22050}, nil)
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}
	return s
}

func recordedArgs(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(os.Getenv("PIPER_ARGS"))
	if err != nil {
		t.Fatalf("Failed to read recorded args: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func sumDurations(phonemes []tts.Phoneme) float64 {
	var sum float64
	for _, p := range phonemes {
		sum += p.Duration
	}
	return sum
}

func TestSynthesizeStreams(t *testing.T) {
	s := fakePiper(t, "cat > /dev/null\nhead -c 44100 /dev/zero")

	var got int
	var chunks int
	res, err := s.Synthesize(context.Background(),
		tts.SynthesisRequest{Text: "Hello there world.", Voice: "3", Speed: 2},
		func(b []byte) bool {
			if len(b)%2 != 0 {
				t.Errorf("Expected whole frames, got %d bytes", len(b))
			}
			got += len(b)
			chunks++
			return true
		})
	if err != nil {
		t.Fatalf("Failed to synthesize: %v", err)
	}
	if got != oneSecond {
		t.Errorf("Expected %d bytes, got %d", oneSecond, got)
	}
	if len(res.Audio) != 0 {
		t.Errorf("Expected streamed audio to be left out of the result, got %d bytes", len(res.Audio))
	}
	if d := sumDurations(res.Phonemes); math.Abs(d-1) > 1e-9 {
		t.Errorf("Expected phonemes to sum to 1s, got %f", d)
	}

	args := recordedArgs(t)
	for _, want := range []string{"--model voice.onnx", "--output-raw", "--length_scale 0.500", "--speaker 3"} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected args to contain %q, got %q", want, args)
		}
	}
}

func TestSynthesizeOneShot(t *testing.T) {
	s := fakePiper(t, "cat > /dev/null\nhead -c 44100 /dev/zero")

	res, err := s.Synthesize(context.Background(), tts.SynthesisRequest{Text: "Hi.", Speed: 1}, nil)
	if err != nil {
		t.Fatalf("Failed to synthesize: %v", err)
	}
	if len(res.Audio) != oneSecond {
		t.Errorf("Expected %d bytes of audio, got %d", oneSecond, len(res.Audio))
	}
	if strings.Contains(recordedArgs(t), "--length_scale") {
		t.Errorf("Expected no length scale at normal speed")
	}
}

func TestSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		text    string
		want    error
		message string
	}{
		{"process fails", "echo 'model not found' >&2\nexit 1", "Hello.", tts.ErrSynthesisFailed, "model not found"},
		{"no audio", "cat > /dev/null", "Hello.", tts.ErrSynthesisFailed, "no audio"},
		{"empty text", "cat > /dev/null", "  ", tts.ErrEmptyText, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fakePiper(t, tt.script)
			_, err := s.Synthesize(context.Background(), tts.SynthesisRequest{Text: tt.text}, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected error to mention %q, got %v", tt.message, err)
			}
		})
	}
}

func TestSynthesizeReportsExitCode(t *testing.T) {
	s := fakePiper(t, "exit 3")

	_, err := s.Synthesize(context.Background(), tts.SynthesisRequest{Text: "Hello."}, nil)
	var ttsErr *tts.TTSError
	if !errors.As(err, &ttsErr) {
		t.Fatalf("Expected a TTSError, got %v", err)
	}
	if ttsErr.Component != "piper" || ttsErr.Context["exit_code"] != 3 {
		t.Errorf("Expected piper exit code 3, got %s %v", ttsErr.Component, ttsErr.Context)
	}
	if !ttsErr.IsRecoverable() {
		t.Errorf("Expected a failed sentence to be recoverable")
	}
}

func TestSynthesizeCanceledByConsumer(t *testing.T) {
	s := fakePiper(t, "cat > /dev/null\nhead -c 441000 /dev/zero")

	_, err := s.Synthesize(context.Background(), tts.SynthesisRequest{Text: "Stop me."},
		func([]byte) bool { return false })
	if !errors.Is(err, tts.ErrCanceled) {
		t.Errorf("Expected cancellation, got %v", err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := piper.New(tts.PiperConfig{Binary: "sh"}, nil); !errors.Is(err, tts.ErrInvalidConfig) {
		t.Errorf("Expected invalid config without a model, got %v", err)
	}
	_, err := piper.New(tts.PiperConfig{Binary: "/nonexistent/piper", Model: "m.onnx"}, nil)
	if !errors.Is(err, tts.ErrInvalidConfig) {
		t.Errorf("Expected invalid config for a missing binary, got %v", err)
	}
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		total float64
		words int
	}{
		{"plain", "Hello big world.", 1.5, 3},
		{"normalized", "Dr. Smith paid $5.", 2.0, 4},
		{"unicode", "Café crème.", 0.8, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := piper.Estimate(tt.text, tt.total)
			if d := sumDurations(res.Phonemes); math.Abs(d-tt.total) > 1e-9 {
				t.Errorf("Expected phonemes to sum to %f, got %f", tt.total, d)
			}
			for _, p := range res.Phonemes {
				if p.TextRange.Location < 0 || p.TextRange.End() > len(res.NormalizedText) {
					t.Errorf("Phoneme %q range %+v outside %q", p.Symbol, p.TextRange, res.NormalizedText)
				}
			}

			result, err := align.NewPhonemeStrategy(nil).Align(context.Background(),
				align.Input{Text: tt.text, Synthesis: res})
			if err != nil {
				t.Fatalf("Failed to align: %v", err)
			}
			if len(result.WordTimings) != tt.words {
				t.Errorf("Expected %d timings, got %d", tt.words, len(result.WordTimings))
			}
			if err := result.Validate(); err != nil {
				t.Errorf("Expected valid timings: %v", err)
			}
		})
	}

	if res := piper.Estimate("   ", 1); len(res.Phonemes) != 0 {
		t.Errorf("Expected no phonemes for blank text, got %d", len(res.Phonemes))
	}
}
