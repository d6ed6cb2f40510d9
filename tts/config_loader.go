package tts

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// LoadConfig builds the effective configuration: defaults, then the viper
// config (file and bound flags), then environment variables.
func LoadConfig() (Config, error) {
	cfg := LoadConfigFromViper()

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing environment: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfigFromViper loads configuration values that are set in viper on
// top of DefaultConfig. It does not validate.
func LoadConfigFromViper() Config {
	cfg := DefaultConfig()

	if viper.IsSet("engine") {
		cfg.Engine = viper.GetString("engine")
	}
	if viper.IsSet("voice") {
		cfg.Voice = viper.GetString("voice")
	}
	if viper.IsSet("speed") {
		cfg.Speed = viper.GetFloat64("speed")
	}
	if viper.IsSet("device_tier") {
		cfg.DeviceTier = DeviceTier(viper.GetString("device_tier"))
	}

	cfg.Pipeline = loadPipelineConfig(cfg.Pipeline)
	cfg.Alignment = loadAlignmentConfig(cfg.Alignment)
	cfg.Cache = loadCacheConfig(cfg.Cache)

	if viper.IsSet("highlight.poll_interval") {
		cfg.Highlight.PollInterval = viper.GetDuration("highlight.poll_interval")
	}
	if viper.IsSet("highlight.color") {
		cfg.Highlight.Color = viper.GetString("highlight.color")
	}

	if viper.IsSet("mock.phoneme_duration") {
		cfg.Mock.PhonemeDuration = viper.GetDuration("mock.phoneme_duration")
	}
	if viper.IsSet("mock.latency") {
		cfg.Mock.Latency = viper.GetDuration("mock.latency")
	}

	if viper.IsSet("piper.binary") {
		cfg.Piper.Binary = viper.GetString("piper.binary")
	}
	if viper.IsSet("piper.model") {
		cfg.Piper.Model = viper.GetString("piper.model")
	}
	if viper.IsSet("piper.sample_rate") {
		cfg.Piper.SampleRate = viper.GetInt("piper.sample_rate")
	}

	return cfg
}

func loadPipelineConfig(cfg PipelineConfig) PipelineConfig {
	if viper.IsSet("pipeline.max_buffered_bytes") {
		cfg.MaxBufferedBytes = viper.GetInt64("pipeline.max_buffered_bytes")
	}
	if viper.IsSet("pipeline.lookahead") {
		cfg.Lookahead = viper.GetInt("pipeline.lookahead")
	}
	if viper.IsSet("pipeline.workers") {
		cfg.Workers = viper.GetInt("pipeline.workers")
	}
	if viper.IsSet("pipeline.chunk_size") {
		cfg.ChunkSize = viper.GetInt("pipeline.chunk_size")
	}
	if viper.IsSet("pipeline.synthesis_timeout") {
		cfg.SynthesisTimeout = viper.GetDuration("pipeline.synthesis_timeout")
	}
	if viper.IsSet("pipeline.stale_paragraphs") {
		cfg.StaleParagraphs = viper.GetInt("pipeline.stale_paragraphs")
	}
	return cfg
}

func loadAlignmentConfig(cfg AlignmentConfig) AlignmentConfig {
	if viper.IsSet("alignment.strategy") {
		cfg.Strategy = viper.GetString("alignment.strategy")
	}
	if viper.IsSet("alignment.skip_blanks") {
		cfg.SkipBlanks = viper.GetBool("alignment.skip_blanks")
	}
	if viper.IsSet("alignment.requests_per_minute") {
		cfg.RequestsPerMinute = viper.GetInt("alignment.requests_per_minute")
	}
	return cfg
}

func loadCacheConfig(cfg CacheConfig) CacheConfig {
	if viper.IsSet("cache.enabled") {
		cfg.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.dir") {
		cfg.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("cache.compression_level")
	}
	if viper.IsSet("cache.memory_entries") {
		cfg.MemoryEntries = viper.GetInt("cache.memory_entries")
	}
	if viper.IsSet("cache.watch") {
		cfg.Watch = viper.GetBool("cache.watch")
	}
	return cfg
}
