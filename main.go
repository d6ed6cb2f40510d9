// Package main provides the entry point for the readalong CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/tts"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	logPath    string

	// cfg is the effective configuration, loaded before any command runs.
	cfg tts.Config

	rootCmd = &cobra.Command{
		Use:   "readalong [FILE|-]",
		Short: "Read documents aloud with word highlighting",
		Long: paragraph(
			fmt.Sprintf("\nRead documents aloud, %s as they are spoken.", keyword("highlighting every word")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: runSpeak,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}
	if err := configureLog(debug, logPath); err != nil {
		return err
	}

	loaded, err := tts.LoadConfig()
	if err != nil {
		return err
	}
	if loaded.Cache.Dir == "" {
		dir, err := defaultCacheDir()
		if err != nil {
			return err
		}
		loaded.Cache.Dir = dir
	}
	// Environment variables override the config file, flags override both.
	if err := applyFlags(cmd, &loaded); err != nil {
		return err
	}
	cfg = loaded
	log.Debug("configuration loaded", "engine", cfg.Engine, "speed", cfg.Speed,
		"tier", cfg.DeviceTier, "strategy", cfg.Alignment.Strategy, "cache", cfg.Cache.Dir)
	return nil
}

func applyFlags(cmd *cobra.Command, c *tts.Config) error {
	flags := cmd.Flags()
	if flags.Changed("speed") {
		c.Speed, _ = flags.GetFloat64("speed")
	}
	if flags.Changed("voice") {
		c.Voice, _ = flags.GetString("voice")
	}
	if flags.Changed("device-tier") {
		tier, _ := flags.GetString("device-tier")
		c.DeviceTier = tts.DeviceTier(tier)
	}
	if flags.Changed("strategy") {
		c.Alignment.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("cache-dir") {
		c.Cache.Dir, _ = flags.GetString("cache-dir")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		c.Cache.Enabled = false
	}
	if flags.Changed("lookahead") {
		c.Pipeline.Lookahead, _ = flags.GetInt("lookahead")
	}
	if flags.Changed("workers") {
		c.Pipeline.Workers, _ = flags.GetInt("workers")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func defaultCacheDir() (string, error) {
	dir, err := gap.NewScope(gap.User, "readalong").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to get cache dir: %w", err)
	}
	return filepath.Join(dir, "alignments"), nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		if errors.Is(err, tts.ErrInvalidConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.BoolVar(&debug, "debug", false, "log debug messages")
	flags.StringVar(&logPath, "log-file", "", "write logs to this file")
	flags.Float64("speed", 1.0, "speaking rate (0.5 to 3.0)")
	flags.String("voice", "", "synthesizer voice")
	flags.String("device-tier", "", "memory budget tier: low, medium or high")
	flags.String("strategy", "", "word timing strategy: phoneme, ctc or auto")
	flags.String("cache-dir", "", "alignment cache directory")
	flags.Bool("no-cache", false, "do not read or write cached alignments")
	flags.Int("lookahead", 0, "sentences synthesized ahead of playback (0 uses the tier)")
	flags.Int("workers", 0, "concurrent synthesis calls (0 uses the tier)")

	// Config bindings
	_ = viper.BindPFlag("speed", flags.Lookup("speed"))
	_ = viper.BindPFlag("voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("device_tier", flags.Lookup("device-tier"))
	_ = viper.BindPFlag("alignment.strategy", flags.Lookup("strategy"))
	_ = viper.BindPFlag("cache.dir", flags.Lookup("cache-dir"))
	_ = viper.BindPFlag("pipeline.lookahead", flags.Lookup("lookahead"))
	_ = viper.BindPFlag("pipeline.workers", flags.Lookup("workers"))

	addSpeakFlags(rootCmd)

	rootCmd.AddCommand(speakCmd, alignCmd, mapCmd, cacheCmd, configCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readalong")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readalong")}, dirs...)
	}

	if c := os.Getenv("READALONG_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readalong")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "readalong.yml")
}
