// Package document turns plain text and markdown files into the paragraphs
// read aloud by the pipeline.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// Format selects how a source is split into paragraphs.
type Format int

const (
	// FormatAuto picks markdown for .md and .markdown files and text
	// otherwise.
	FormatAuto Format = iota
	FormatText
	FormatMarkdown
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatMarkdown:
		return "markdown"
	default:
		return "auto"
	}
}

// ParseFormat converts a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text", "txt", "plain":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return FormatAuto, fmt.Errorf("unknown document format %q", s)
}

// Document is a readable source split into paragraphs.
type Document struct {
	// ID names the source and its contents. Editing a file gives it a new
	// ID, so alignments cached for the old text are not reused.
	ID         string
	Name       string
	Format     Format
	Paragraphs []string
}

// Words returns the number of whitespace separated words.
func (d *Document) Words() int {
	n := 0
	for _, p := range d.Paragraphs {
		n += len(strings.Fields(p))
	}
	return n
}

// Load reads a document from path. A leading ~ is expanded.
func Load(path string, format Format) (*Document, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if format == FormatAuto {
		format = formatOf(expanded)
	}
	name := expanded
	if abs, err := filepath.Abs(expanded); err == nil {
		name = abs
	}
	return Parse(name, data, format), nil
}

// Read reads a document from r, typically standard input.
func Read(name string, r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if format == FormatAuto {
		format = formatOf(name)
	}
	return Parse(name, data, format), nil
}

// Parse splits data into paragraphs.
func Parse(name string, data []byte, format Format) *Document {
	if format == FormatAuto {
		format = formatOf(name)
	}
	var paragraphs []string
	if format == FormatMarkdown {
		paragraphs = NewMarkdownExtractor().Paragraphs(data)
	} else {
		paragraphs = TextParagraphs(string(data))
	}

	sum := sha256.Sum256(data)
	return &Document{
		ID:         name + "#" + hex.EncodeToString(sum[:8]),
		Name:       name,
		Format:     format,
		Paragraphs: paragraphs,
	}
}

func formatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return FormatMarkdown
	}
	return FormatText
}

var (
	blankLines = regexp.MustCompile(`\n[ \t]*\n`)
	spaces     = regexp.MustCompile(`\s+`)
)

// TextParagraphs splits plain text at blank lines. Line breaks inside a
// paragraph become spaces.
func TextParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range blankLines.Split(text, -1) {
		if p := collapse(block); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
