//go:build !nocgo
// +build !nocgo

package audio

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/ebitengine/oto/v3"
)

// Only one oto context may exist per process.
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat tts.AudioFormat
	otoErr    error
)

func audioContext(format tts.AudioFormat, logger *log.Logger) (*oto.Context, error) {
	otoOnce.Do(func() {
		options := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		switch runtime.GOOS {
		case "darwin":
			options.BufferSize = 100 * time.Millisecond
		case "windows":
			options.BufferSize = 80 * time.Millisecond
		default:
			options.BufferSize = 50 * time.Millisecond
		}

		logger.Debug("Initializing audio context",
			"sample_rate", options.SampleRate,
			"channels", options.ChannelCount,
			"buffer_size", options.BufferSize)

		ctx, ready, err := oto.NewContext(options)
		if err != nil {
			otoErr = fmt.Errorf("failed to create audio context: %w", err)
			return
		}
		select {
		case <-ready:
			otoCtx = ctx
			otoFormat = format
		case <-time.After(5 * time.Second):
			otoErr = fmt.Errorf("audio context initialization timeout")
		}
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat != format {
		return nil, fmt.Errorf("audio context already opened with %d Hz x%d, requested %d Hz x%d",
			otoFormat.SampleRate, otoFormat.Channels, format.SampleRate, format.Channels)
	}
	return otoCtx, nil
}

// DeviceSink plays PCM on the system audio device.
type DeviceSink struct {
	format tts.AudioFormat
	player *oto.Player
	stream *stream
	logger *log.Logger

	mu     sync.Mutex
	paused bool
}

// NewDeviceSink opens the audio device. Only signed 16-bit little-endian
// PCM is supported.
func NewDeviceSink(format tts.AudioFormat, logger *log.Logger) (*DeviceSink, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("audio")

	if format.BytesPerSample != 2 {
		return nil, fmt.Errorf("%w: device output needs 16-bit samples, got %d bytes",
			tts.ErrInvalidConfig, format.BytesPerSample)
	}
	ctx, err := audioContext(format, logger)
	if err != nil {
		return nil, err
	}

	// A tenth of a second queued ahead of the device keeps Flush effective.
	s := newStream(format.BytesPerSecond() / 10)
	player := ctx.NewPlayer(s)
	player.Play()

	return &DeviceSink{
		format: format,
		player: player,
		stream: s,
		logger: logger,
	}, nil
}

// Play implements tts.AudioSink. It returns once pcm is queued for the
// device.
func (d *DeviceSink) Play(ctx context.Context, pcm []byte) error {
	if err := d.stream.write(ctx, pcm); err != nil {
		return err
	}
	if err := d.player.Err(); err != nil {
		return fmt.Errorf("audio device: %w", err)
	}
	return nil
}

// Elapsed implements tts.PlaybackClock.
func (d *DeviceSink) Elapsed() time.Duration {
	// Dropped bytes were never read, so they do not count.
	played := d.stream.readBytes() - int64(d.player.BufferedSize())
	if played < 0 {
		played = 0
	}
	return d.format.Duration(int(played))
}

// Queued returns how much written audio has not been heard yet.
func (d *DeviceSink) Queued() time.Duration {
	return d.format.Duration(d.stream.pending() + d.player.BufferedSize())
}

// IsPlaying implements tts.PlaybackClock.
func (d *DeviceSink) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.paused && d.player.IsPlaying()
}

// Pause implements tts.Pauser.
func (d *DeviceSink) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		return nil
	}
	d.player.Pause()
	d.paused = true
	return nil
}

// Resume implements tts.Pauser.
func (d *DeviceSink) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.paused {
		return nil
	}
	d.player.Play()
	d.paused = false
	return nil
}

// Flush drops audio queued but not yet read by the device.
func (d *DeviceSink) Flush() {
	n := d.stream.drop()
	d.logger.Debug("flushed queued audio", "bytes", n)
}

// Close stops output and releases the player.
func (d *DeviceSink) Close() error {
	d.stream.close()
	return d.player.Close()
}
