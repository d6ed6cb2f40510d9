package document

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestMarkdownParagraphs(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     []string
	}{
		{
			name:     "heading and paragraph",
			markdown: "# Chapter One\n\nIt was a *dark* night.",
			want:     []string{"Chapter One.", "It was a dark night."},
		},
		{
			name:     "heading with punctuation",
			markdown: "## Why now?\n",
			want:     []string{"Why now?"},
		},
		{
			name:     "soft line breaks",
			markdown: "First line\nsecond line.",
			want:     []string{"First line second line."},
		},
		{
			name:     "tight list",
			markdown: "- apples\n- pears\n",
			want:     []string{"apples.", "pears."},
		},
		{
			name:     "blockquote",
			markdown: "> Quoted words.\n",
			want:     []string{"Quoted words."},
		},
		{
			name:     "links keep text",
			markdown: "Read [the guide](https://example.com) today.",
			want:     []string{"Read the guide today."},
		},
		{
			name:     "code span kept",
			markdown: "Run `make` first.",
			want:     []string{"Run make first."},
		},
		{
			name:     "code blocks skipped",
			markdown: "Before.\n\n```go\nfunc main() {}\n```\n\nAfter.",
			want:     []string{"Before.", "After."},
		},
		{
			name:     "html and rules skipped",
			markdown: "<div>\nhidden\n</div>\n\nShown.\n\n---\n",
			want:     []string{"Shown."},
		},
		{
			name:     "empty",
			markdown: "",
			want:     nil,
		},
	}

	e := NewMarkdownExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Paragraphs([]byte(tt.markdown))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMarkdownCodeBlocks(t *testing.T) {
	src := []byte("Intro.\n\n    indented code\n")
	got := NewMarkdownExtractor(WithCodeBlocks(true)).Paragraphs(src)
	want := []string{"Intro.", "indented code"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestTextParagraphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single", "One sentence.", []string{"One sentence."}},
		{"blank line split", "First.\n\nSecond.", []string{"First.", "Second."}},
		{"whitespace only separator", "First.\n  \t\nSecond.", []string{"First.", "Second."}},
		{"line breaks joined", "one\ntwo\r\nthree", []string{"one two three"}},
		{"crlf paragraphs", "A.\r\n\r\nB.", []string{"A.", "B."}},
		{"extra blank lines", "\n\n\nA.\n\n\n\nB.\n\n", []string{"A.", "B."}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TextParagraphs(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"auto", FormatAuto, false},
		{"TEXT", FormatText, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"pdf", FormatAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q): expected error %v, got %v", tt.in, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "notes.md")
	txt := filepath.Join(dir, "notes.txt")
	content := "# Title\n\nBody text here."
	for _, p := range []string{md, txt} {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
	}

	doc, err := Load(md, FormatAuto)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if doc.Format != FormatMarkdown {
		t.Errorf("Expected markdown, got %v", doc.Format)
	}
	if want := []string{"Title.", "Body text here."}; !reflect.DeepEqual(doc.Paragraphs, want) {
		t.Errorf("Expected %q, got %q", want, doc.Paragraphs)
	}
	if doc.Words() != 4 {
		t.Errorf("Expected 4 words, got %d", doc.Words())
	}

	plain, err := Load(txt, FormatAuto)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if plain.Format != FormatText || len(plain.Paragraphs) != 2 || plain.Paragraphs[0] != "# Title" {
		t.Errorf("Expected the heading marker kept in text mode, got %q", plain.Paragraphs)
	}

	if _, err := Load(filepath.Join(dir, "missing.md"), FormatAuto); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestDocumentID(t *testing.T) {
	a := Parse("book.txt", []byte("Same."), FormatText)
	b := Parse("book.txt", []byte("Same."), FormatText)
	c := Parse("book.txt", []byte("Edited."), FormatText)
	d := Parse("other.txt", []byte("Same."), FormatText)

	if a.ID != b.ID {
		t.Errorf("Expected stable IDs, got %q and %q", a.ID, b.ID)
	}
	if a.ID == c.ID {
		t.Error("Expected edited contents to change the ID")
	}
	if a.ID == d.ID {
		t.Error("Expected different names to change the ID")
	}
	if !strings.HasPrefix(a.ID, "book.txt#") {
		t.Errorf("Expected the ID to start with the name, got %q", a.ID)
	}
}

func TestRead(t *testing.T) {
	doc, err := Read("stdin", strings.NewReader("A.\n\nB."), FormatAuto)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if doc.Format != FormatText || len(doc.Paragraphs) != 2 {
		t.Errorf("Expected 2 text paragraphs, got %v %q", doc.Format, doc.Paragraphs)
	}
}
