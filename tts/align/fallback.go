package align

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
)

// FallbackStrategy uses the primary strategy and switches to the secondary
// when the primary fails. Cancellation is returned as is.
type FallbackStrategy struct {
	primary   Strategy
	secondary Strategy
	logger    *log.Logger
}

// NewFallbackStrategy creates a strategy that falls back from primary to
// secondary.
func NewFallbackStrategy(primary, secondary Strategy, logger *log.Logger) *FallbackStrategy {
	if logger == nil {
		logger = log.Default()
	}
	return &FallbackStrategy{
		primary:   primary,
		secondary: secondary,
		logger:    logger.WithPrefix("align"),
	}
}

// Name implements Strategy.
func (f *FallbackStrategy) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

// Align implements Strategy.
func (f *FallbackStrategy) Align(ctx context.Context, in Input) (*tts.AlignmentResult, error) {
	result, err := f.primary.Align(ctx, in)
	if err == nil {
		return result, nil
	}
	if tts.IsCancellation(err) || ctx.Err() != nil {
		return nil, err
	}

	f.logger.Warn("alignment failed, falling back",
		"strategy", f.primary.Name(),
		"fallback", f.secondary.Name(),
		"paragraph", in.ParagraphIndex,
		"error", err)
	return f.secondary.Align(ctx, in)
}
