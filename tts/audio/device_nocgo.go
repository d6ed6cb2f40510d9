//go:build nocgo
// +build nocgo

package audio

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
)

var errNoAudio = errors.New("audio not available in nocgo build")

// DeviceSink stub for builds without CGO.
type DeviceSink struct{}

// NewDeviceSink always fails in nocgo builds.
func NewDeviceSink(format tts.AudioFormat, logger *log.Logger) (*DeviceSink, error) {
	return nil, errNoAudio
}

func (d *DeviceSink) Play(ctx context.Context, pcm []byte) error { return errNoAudio }

func (d *DeviceSink) Elapsed() time.Duration { return 0 }

func (d *DeviceSink) Queued() time.Duration { return 0 }

func (d *DeviceSink) IsPlaying() bool { return false }

func (d *DeviceSink) Pause() error { return errNoAudio }

func (d *DeviceSink) Resume() error { return errNoAudio }

func (d *DeviceSink) Flush() {}

func (d *DeviceSink) Close() error { return nil }
