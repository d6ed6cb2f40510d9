// Package piper runs the Piper speech synthesizer as a subprocess, one
// process per sentence, and streams its raw PCM output.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/mitchellh/go-homedir"
)

// readSize is how much PCM is read from piper at a time.
const readSize = 8192

// Synthesizer implements tts.Synthesizer with the piper binary. Piper does
// not report phoneme durations, so they are estimated from the length of
// the audio.
type Synthesizer struct {
	binary string
	model  string
	format tts.AudioFormat
	logger *log.Logger
}

// New checks that the binary and model exist and creates a synthesizer.
func New(cfg tts.PiperConfig, logger *log.Logger) (*Synthesizer, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: piper model not set", tts.ErrInvalidConfig)
	}
	model, err := homedir.Expand(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("expanding piper model path: %w", err)
	}

	binary := cfg.Binary
	if binary == "" {
		binary = "piper"
	}
	binary, err = homedir.Expand(binary)
	if err != nil {
		return nil, fmt.Errorf("expanding piper binary path: %w", err)
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: piper binary %q not found: %w", tts.ErrInvalidConfig, binary, err)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = tts.DefaultAudioFormat.SampleRate
	}
	return &Synthesizer{
		binary: path,
		model:  model,
		format: tts.AudioFormat{SampleRate: rate, Channels: 1, BytesPerSample: 2},
		logger: logger.WithPrefix("piper"),
	}, nil
}

// Format returns the audio format piper produces.
func (s *Synthesizer) Format() tts.AudioFormat { return s.format }

func (s *Synthesizer) args(req tts.SynthesisRequest) []string {
	args := []string{"--model", s.model, "--output-raw"}
	if req.Speed > 0 && req.Speed != 1 {
		args = append(args, "--length_scale", strconv.FormatFloat(1/req.Speed, 'f', 3, 64))
	}
	// Multi-speaker models take a numeric voice.
	if id, err := strconv.Atoi(req.Voice); err == nil && id >= 0 {
		args = append(args, "--speaker", strconv.Itoa(id))
	}
	return args
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.SynthesisRequest, onChunk func([]byte) bool) (*tts.SynthesisResult, error) {
	text := strings.Join(strings.Fields(req.Text), " ")
	if text == "" {
		return nil, tts.ErrEmptyText
	}

	cmd := exec.CommandContext(ctx, s.binary, s.args(req)...)
	cmd.Stdin = strings.NewReader(text + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting piper: %w", tts.ErrSynthesisFailed, err)
	}

	var (
		audio    []byte
		total    int
		pending  []byte
		canceled bool
	)
	frame := s.format.BytesPerSample * s.format.Channels
	emit := func(data []byte) bool {
		total += len(data)
		if onChunk == nil {
			audio = append(audio, data...)
			return true
		}
		return onChunk(data)
	}

	buf := make([]byte, readSize)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			// Whole frames only.
			whole := len(pending) - len(pending)%frame
			if whole > 0 {
				chunk := append([]byte(nil), pending[:whole]...)
				pending = pending[whole:]
				if !emit(chunk) {
					canceled = true
					_ = cmd.Process.Kill()
					break
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			err = readErr
			break
		}
	}
	// Drain so Wait does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	switch {
	case canceled:
		return nil, tts.ErrCanceled
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		return nil, fmt.Errorf("%w: reading piper output: %w", tts.ErrSynthesisFailed, err)
	case waitErr != nil:
		e := tts.NewTTSError(fmt.Errorf("%w: %w: %s", tts.ErrSynthesisFailed, waitErr, lastLine(stderr.String())),
			"piper", "synthesize")
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			e.WithContext("exit_code", exitErr.ExitCode())
		}
		return nil, e
	case total == 0:
		return nil, fmt.Errorf("%w: piper produced no audio", tts.ErrSynthesisFailed)
	}

	duration := s.format.Duration(total)
	s.logger.Debug("synthesized", "bytes", total, "duration", duration, "chars", len(text))

	result := Estimate(req.Text, duration.Seconds())
	result.Format = s.format
	result.Audio = audio
	return result, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}
