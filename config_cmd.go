package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/readalong/tts"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configComments documents the keys of the default config file.
var configComments = map[string]string{
	"engine":                        "speech synthesizer: mock or piper",
	"speed":                         "speaking rate, 0.5 to 3.0",
	"device_tier":                   "memory budget tier: low, medium or high",
	"pipeline":                      "streaming synthesis; zero budgets use the device tier",
	"pipeline.max_buffered_bytes":   "audio bytes buffered ahead of playback",
	"pipeline.lookahead":            "sentences synthesized or buffered at once",
	"pipeline.synthesis_timeout":    "give up on a sentence after this long without audio",
	"pipeline.stale_paragraphs":     "paragraphs behind playback before buffered audio is dropped",
	"alignment":                     "word timing",
	"alignment.strategy":            "phoneme, ctc or auto",
	"alignment.skip_blanks":         "let ctc alignment skip blanks between distinct tokens",
	"alignment.requests_per_minute": "rate limit of recognizer calls",
	"cache":                         "alignment cache",
	"cache.dir":                     "empty uses the user cache directory",
	"cache.compression_level":       "zstd level, 0 stores plain JSON",
	"cache.memory_entries":          "records kept decoded in memory",
	"cache.watch":                   "drop in-memory records when other processes rewrite them",
	"highlight.color":               "color name or hex value of the spoken word",
	"piper.model":                   "path of the piper voice model (.onnx), required by the piper engine",
}

// defaultConfig renders DefaultConfig as commented YAML.
func defaultConfig() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(tts.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("unable to encode default config: %w", err)
	}
	annotate(&doc, "")

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("unable to encode default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// annotate adds configComments to the keys of node.
func annotate(node *yaml.Node, prefix string) {
	if node.Kind != yaml.MappingNode {
		for _, c := range node.Content {
			annotate(c, prefix)
		}
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		name := key.Value
		if prefix != "" {
			name = prefix + "." + name
		}
		if c, ok := configComments[name]; ok {
			key.HeadComment = c
		}
		if value.Kind == yaml.MappingNode {
			annotate(value, name)
		}
	}
}

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readalong config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readalong config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readalong config\nreadalong config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}
		if printPath, _ := cmd.Flags().GetBool("print"); printPath {
			fmt.Println(configFile)
			return nil
		}

		c, err := editor.Cmd("readalong", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func init() {
	configCmd.Flags().Bool("print", false, "create the config file if needed and print its path")
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		data, err := defaultConfig()
		if err != nil {
			return err
		}
		if err := os.WriteFile(configFile, data, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
