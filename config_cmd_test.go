package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readalong/tts"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigRoundTrip(t *testing.T) {
	data, err := defaultConfig()
	if err != nil {
		t.Fatalf("Failed to render default config: %v", err)
	}

	var got tts.Config
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Failed to decode default config: %v", err)
	}
	if want := tts.DefaultConfig(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	text := string(data)
	for _, want := range []string{"# speaking rate", "synthesis_timeout: 30s", "poll_interval: 15ms"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected default config to contain %q:\n%s", want, text)
		}
	}
}

func TestDefaultConfigReadByViper(t *testing.T) {
	data, err := defaultConfig()
	if err != nil {
		t.Fatalf("Failed to render default config: %v", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	if got := v.GetDuration("pipeline.synthesis_timeout"); got != 30*time.Second {
		t.Errorf("Expected 30s, got %v", got)
	}
	if got := v.GetString("device_tier"); got != "medium" {
		t.Errorf("Expected medium, got %q", got)
	}
	if got := v.GetInt("cache.compression_level"); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
}

func TestEnsureConfigFile(t *testing.T) {
	old := configFile
	t.Cleanup(func() { configFile = old })

	configFile = filepath.Join(t.TempDir(), "nested", "readalong.yml")
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	if _, err := os.Stat(configFile); err != nil {
		t.Errorf("Expected config file to exist: %v", err)
	}

	// An existing file is left alone.
	if err := os.WriteFile(configFile, []byte("speed: 2\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("Failed to check config file: %v", err)
	}
	if data, _ := os.ReadFile(configFile); string(data) != "speed: 2\n" {
		t.Errorf("Expected config file to be kept, got %q", data)
	}

	configFile = filepath.Join(t.TempDir(), "readalong.toml")
	if err := ensureConfigFile(); err == nil {
		t.Error("Expected error for a non-yaml config file")
	}
}

func TestDefaultConfigDurations(t *testing.T) {
	data, err := defaultConfig()
	if err != nil {
		t.Fatalf("Failed to render default config: %v", err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	mock, _ := got["mock"].(map[string]any)
	want := map[string]any{"phoneme_duration": "55ms", "latency": "20ms"}
	if !reflect.DeepEqual(mock, want) {
		t.Errorf("Expected %v, got %v", want, mock)
	}
}
