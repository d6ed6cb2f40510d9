package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/audio"
	"github.com/dgnsrekt/readalong/tts/engines/mock"
)

func TestStallTimeout(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Pipeline.SynthesisTimeout = 2 * time.Second
	synth := mock.New(cfg.Mock)
	p, err := New(Options{Config: cfg, Synthesizer: synth, Sink: audio.NewMemorySink(synth.Format())})
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	defer p.Close()

	// 150 words take about a minute to speak.
	long := strings.Repeat("word ", 150)

	tests := []struct {
		name  string
		text  string
		speed float64
		min   time.Duration
		max   time.Duration
	}{
		{"short sentence uses the configured timeout", "Hello there.", 1, 2 * time.Second, 2 * time.Second},
		{"long sentence gets its speaking time", long, 1, 55 * time.Second, 65 * time.Second},
		{"faster speech shortens it", long, 2, 27 * time.Second, 33 * time.Second},
		{"zero speed counts as normal", long, 0, 55 * time.Second, 65 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.stallTimeout(tt.text, tt.speed)
			if got < tt.min || got > tt.max {
				t.Errorf("Expected a timeout between %v and %v, got %v", tt.min, tt.max, got)
			}
		})
	}
}
