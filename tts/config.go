package tts

import (
	"fmt"
	"strings"
	"time"
)

// DeviceTier describes how much memory the host can spend on buffered audio.
type DeviceTier string

const (
	TierLow    DeviceTier = "low"
	TierMedium DeviceTier = "medium"
	TierHigh   DeviceTier = "high"
)

// Budgets bound how far synthesis may run ahead of playback.
type Budgets struct {
	MaxBufferedBytes int64 // buffered-but-unplayed audio
	Lookahead        int   // sentences synthesized or buffered at once
	Workers          int   // concurrent synthesis calls
}

// BudgetsFor returns the default budgets of a device tier. Unknown tiers get
// the low tier's budgets.
func BudgetsFor(tier DeviceTier) Budgets {
	switch tier {
	case TierHigh:
		return Budgets{MaxBufferedBytes: 32 << 20, Lookahead: 5, Workers: 3}
	case TierMedium:
		return Budgets{MaxBufferedBytes: 8 << 20, Lookahead: 3, Workers: 2}
	default:
		return Budgets{MaxBufferedBytes: 2 << 20, Lookahead: 2, Workers: 1}
	}
}

// Config contains all read-aloud configuration options.
type Config struct {
	Engine     string     `yaml:"engine" env:"READALONG_ENGINE"`
	Voice      string     `yaml:"voice" env:"READALONG_VOICE"`
	Speed      float64    `yaml:"speed" env:"READALONG_SPEED"`
	DeviceTier DeviceTier `yaml:"device_tier" env:"READALONG_DEVICE_TIER"`

	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Alignment AlignmentConfig `yaml:"alignment"`
	Cache     CacheConfig     `yaml:"cache"`
	Highlight HighlightConfig `yaml:"highlight"`
	Mock      MockConfig      `yaml:"mock"`
	Piper     PiperConfig     `yaml:"piper"`
}

// PipelineConfig tunes the streaming synthesis pipeline. Zero budget values
// fall back to the device tier.
type PipelineConfig struct {
	MaxBufferedBytes int64         `yaml:"max_buffered_bytes" env:"READALONG_PIPELINE_MAX_BUFFERED_BYTES"`
	Lookahead        int           `yaml:"lookahead" env:"READALONG_PIPELINE_LOOKAHEAD"`
	Workers          int           `yaml:"workers" env:"READALONG_PIPELINE_WORKERS"`
	ChunkSize        int           `yaml:"chunk_size" env:"READALONG_PIPELINE_CHUNK_SIZE"`
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" env:"READALONG_PIPELINE_SYNTHESIS_TIMEOUT"`
	StaleParagraphs  int           `yaml:"stale_paragraphs" env:"READALONG_PIPELINE_STALE_PARAGRAPHS"`
}

// AlignmentConfig selects and tunes the word timing strategy.
type AlignmentConfig struct {
	Strategy          string `yaml:"strategy" env:"READALONG_ALIGNMENT_STRATEGY"`
	SkipBlanks        bool   `yaml:"skip_blanks" env:"READALONG_ALIGNMENT_SKIP_BLANKS"`
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"READALONG_ALIGNMENT_REQUESTS_PER_MINUTE"`
}

// CacheConfig configures the alignment cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" env:"READALONG_CACHE_ENABLED"`
	Dir              string `yaml:"dir" env:"READALONG_CACHE_DIR"`
	CompressionLevel int    `yaml:"compression_level" env:"READALONG_CACHE_COMPRESSION_LEVEL"`
	MemoryEntries    int    `yaml:"memory_entries" env:"READALONG_CACHE_MEMORY_ENTRIES"`
	Watch            bool   `yaml:"watch" env:"READALONG_CACHE_WATCH"`
}

// HighlightConfig tunes the word highlight scheduler.
type HighlightConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" env:"READALONG_HIGHLIGHT_POLL_INTERVAL"`
	Color        string        `yaml:"color" env:"READALONG_HIGHLIGHT_COLOR"`
}

// MockConfig contains settings of the built-in mock synthesizer.
type MockConfig struct {
	PhonemeDuration time.Duration `yaml:"phoneme_duration" env:"READALONG_MOCK_PHONEME_DURATION"`
	Latency         time.Duration `yaml:"latency" env:"READALONG_MOCK_LATENCY"`
}

// PiperConfig contains settings of the Piper subprocess synthesizer.
type PiperConfig struct {
	Binary     string `yaml:"binary" env:"READALONG_PIPER_BINARY"`
	Model      string `yaml:"model" env:"READALONG_PIPER_MODEL"`
	SampleRate int    `yaml:"sample_rate" env:"READALONG_PIPER_SAMPLE_RATE"`
}

// Synthesizer engines.
const (
	EngineMock  = "mock"
	EnginePiper = "piper"
)

// Alignment strategies.
const (
	StrategyPhoneme = "phoneme"
	StrategyCTC     = "ctc"
	StrategyAuto    = "auto"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:     EngineMock,
		Voice:      "default",
		Speed:      1.0,
		DeviceTier: TierMedium,
		Pipeline: PipelineConfig{
			ChunkSize:        4096,
			SynthesisTimeout: 30 * time.Second,
			StaleParagraphs:  2,
		},
		Alignment: AlignmentConfig{
			Strategy:          StrategyPhoneme,
			RequestsPerMinute: 120,
		},
		Cache: CacheConfig{
			Enabled:          true,
			CompressionLevel: 3,
			MemoryEntries:    64,
			Watch:            true,
		},
		Highlight: HighlightConfig{
			PollInterval: 15 * time.Millisecond,
			Color:        "yellow",
		},
		Mock: MockConfig{
			PhonemeDuration: 55 * time.Millisecond,
			Latency:         20 * time.Millisecond,
		},
		Piper: PiperConfig{
			Binary:     "piper",
			SampleRate: 22050,
		},
	}
}

// Budgets returns the tier budgets with explicit overrides applied.
func (c *Config) Budgets() Budgets {
	b := BudgetsFor(c.DeviceTier)
	if c.Pipeline.MaxBufferedBytes > 0 {
		b.MaxBufferedBytes = c.Pipeline.MaxBufferedBytes
	}
	if c.Pipeline.Lookahead > 0 {
		b.Lookahead = c.Pipeline.Lookahead
	}
	if c.Pipeline.Workers > 0 {
		b.Workers = c.Pipeline.Workers
	}
	if b.Workers > b.Lookahead {
		b.Workers = b.Lookahead
	}
	return b
}

// Validate checks if the configuration is valid. It normalizes the case of
// enumerated values.
func (c *Config) Validate() error {
	validEngines := []string{EngineMock, EnginePiper}
	engine, ok := oneOf(c.Engine, validEngines)
	if !ok {
		return fmt.Errorf("%w: invalid engine '%s': must be one of %v", ErrInvalidConfig, c.Engine, validEngines)
	}
	c.Engine = engine
	if engine == EnginePiper {
		if c.Piper.Model == "" {
			return fmt.Errorf("%w: piper engine needs piper.model", ErrInvalidConfig)
		}
		if c.Piper.SampleRate < 8000 || c.Piper.SampleRate > 48000 {
			return fmt.Errorf("%w: piper sample_rate must be between 8000 and 48000, got %d", ErrInvalidConfig, c.Piper.SampleRate)
		}
	}

	if c.Speed < 0.5 || c.Speed > 3.0 {
		return fmt.Errorf("%w: speed must be between 0.5 and 3.0, got %.2f", ErrInvalidConfig, c.Speed)
	}

	validTiers := []string{string(TierLow), string(TierMedium), string(TierHigh)}
	tier, ok := oneOf(string(c.DeviceTier), validTiers)
	if !ok {
		return fmt.Errorf("%w: invalid device tier '%s': must be one of %v", ErrInvalidConfig, c.DeviceTier, validTiers)
	}
	c.DeviceTier = DeviceTier(tier)

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := c.Alignment.Validate(); err != nil {
		return fmt.Errorf("alignment config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if c.Highlight.PollInterval < time.Millisecond || c.Highlight.PollInterval > time.Second {
		return fmt.Errorf("%w: highlight poll_interval must be between 1ms and 1s, got %v", ErrInvalidConfig, c.Highlight.PollInterval)
	}
	return nil
}

// Validate checks if the pipeline configuration is valid.
func (c *PipelineConfig) Validate() error {
	if c.MaxBufferedBytes < 0 {
		return fmt.Errorf("%w: max_buffered_bytes cannot be negative", ErrInvalidConfig)
	}
	if c.Lookahead < 0 || c.Lookahead > 32 {
		return fmt.Errorf("%w: lookahead must be between 0 and 32, got %d", ErrInvalidConfig, c.Lookahead)
	}
	if c.Workers < 0 || c.Workers > 16 {
		return fmt.Errorf("%w: workers must be between 0 and 16, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.ChunkSize < 256 {
		return fmt.Errorf("%w: chunk_size must be at least 256 bytes, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.SynthesisTimeout < time.Second {
		return fmt.Errorf("%w: synthesis_timeout must be at least 1 second, got %v", ErrInvalidConfig, c.SynthesisTimeout)
	}
	if c.StaleParagraphs < 1 {
		return fmt.Errorf("%w: stale_paragraphs must be at least 1, got %d", ErrInvalidConfig, c.StaleParagraphs)
	}
	return nil
}

// Validate checks if the alignment configuration is valid.
func (c *AlignmentConfig) Validate() error {
	validStrategies := []string{StrategyPhoneme, StrategyCTC, StrategyAuto}
	strategy, ok := oneOf(c.Strategy, validStrategies)
	if !ok {
		return fmt.Errorf("%w: invalid strategy '%s': must be one of %v", ErrInvalidConfig, c.Strategy, validStrategies)
	}
	c.Strategy = strategy
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("%w: requests_per_minute must be positive, got %d", ErrInvalidConfig, c.RequestsPerMinute)
	}
	return nil
}

// Validate checks if the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("%w: compression_level must be between 0 and 22, got %d", ErrInvalidConfig, c.CompressionLevel)
	}
	if c.MemoryEntries < 0 {
		return fmt.Errorf("%w: memory_entries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

func oneOf(value string, valid []string) (string, bool) {
	for _, v := range valid {
		if strings.EqualFold(value, v) {
			return v, true
		}
	}
	return value, false
}
