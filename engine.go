package main

import (
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/engines/mock"
	"github.com/dgnsrekt/readalong/tts/engines/piper"
)

// synthesizer is a tts.Synthesizer with a fixed output format.
type synthesizer interface {
	tts.Synthesizer
	Format() tts.AudioFormat
}

// newSynthesizer creates the configured engine. The mock engine comes with
// a recognizer for its own audio; piper has none, so ctc alignment is only
// available with the mock engine.
func newSynthesizer(logger *log.Logger) (synthesizer, tts.Recognizer, error) {
	switch cfg.Engine {
	case tts.EnginePiper:
		s, err := piper.New(cfg.Piper, logger)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("using piper", "model", cfg.Piper.Model)
		return s, nil, nil
	default:
		s := mock.New(cfg.Mock, mock.WithChunkSize(cfg.Pipeline.ChunkSize), mock.WithLogger(logger))
		return s, mock.NewRecognizer(), nil
	}
}
