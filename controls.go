package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/dgnsrekt/readalong/tts/pipeline"
	"golang.org/x/term"
)

const controlsHelp = "space pause · n skip sentence · f/b next/previous paragraph · +/- speed · q quit"

const speedStep = 0.25

// startControls puts the terminal in raw mode and drives p from single key
// presses until ctx is done. The returned function restores the terminal.
func startControls(ctx context.Context, p *pipeline.Pipeline, speed float64, quit func()) (func(), error) {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("unable to set raw mode: %w", err)
	}
	restore := func() { _ = term.Restore(fd, state) }

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		k := keymap{p: p, speed: speed, quit: quit}
		for {
			select {
			case <-ctx.Done():
				return
			case key := <-keys:
				if err := k.handle(key); err != nil {
					log.Debug("key ignored", "key", string(key), "error", err)
				}
			}
		}
	}()
	return restore, nil
}

type keymap struct {
	p     *pipeline.Pipeline
	speed float64
	quit  func()
}

func (k *keymap) handle(key byte) error {
	switch key {
	case 'q', 3, 27: // q, ctrl-c, esc
		k.quit()
		return nil
	case ' ', 'p':
		if k.p.Snapshot().State.Phase == tts.PhasePaused {
			return k.p.Resume()
		}
		return k.p.Pause()
	case 'n':
		return k.p.Skip()
	case 'f':
		return k.jump(1)
	case 'b':
		return k.jump(-1)
	case '+', '=':
		return k.setSpeed(k.speed + speedStep)
	case '-', '_':
		return k.setSpeed(k.speed - speedStep)
	}
	return nil
}

func (k *keymap) jump(delta int) error {
	current := k.p.Snapshot().State.Paragraph
	if current < 0 {
		return tts.ErrInvalidPosition
	}
	return k.p.Play(current + delta)
}

func (k *keymap) setSpeed(speed float64) error {
	if err := k.p.SetSpeed(speed); err != nil {
		return err
	}
	k.speed = speed
	return nil
}
