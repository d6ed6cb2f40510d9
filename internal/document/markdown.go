package document

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor collects the readable paragraphs of a markdown document.
// Headings, paragraphs, list items and quotes each become one paragraph.
type MarkdownExtractor struct {
	skipCodeBlocks bool
	md             goldmark.Markdown
}

// ExtractorOption configures a MarkdownExtractor.
type ExtractorOption func(*MarkdownExtractor)

// WithCodeBlocks enables or disables code block inclusion.
func WithCodeBlocks(include bool) ExtractorOption {
	return func(e *MarkdownExtractor) {
		e.skipCodeBlocks = !include
	}
}

// NewMarkdownExtractor creates an extractor that skips code blocks.
func NewMarkdownExtractor(opts ...ExtractorOption) *MarkdownExtractor {
	e := &MarkdownExtractor{skipCodeBlocks: true, md: goldmark.New()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Paragraphs returns the readable paragraphs of source in document order.
func (e *MarkdownExtractor) Paragraphs(source []byte) []string {
	reader := text.NewReader(source)
	doc := e.md.Parser().Parse(reader)

	w := &walker{e: e, source: reader.Source()}
	w.block(doc)
	return w.paragraphs
}

type walker struct {
	e          *MarkdownExtractor
	source     []byte
	paragraphs []string
}

func (w *walker) emit(s string) {
	if s = collapse(s); s != "" {
		w.paragraphs = append(w.paragraphs, s)
	}
}

// block visits block-level nodes.
func (w *walker) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock:
		if w.e.skipCodeBlocks {
			return
		}
		var buf strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(w.source))
		}
		w.emit(buf.String())
		return

	case *ast.HTMLBlock, *ast.ThematicBreak:
		return

	case *ast.Heading:
		// Headings read as a sentence of their own.
		w.emit(terminate(w.inlineText(n)))
		return

	case *ast.Paragraph, *ast.TextBlock:
		w.emit(w.inlineText(n))
		return

	case *ast.ListItem:
		// Items with a single text block read as one paragraph; nested
		// lists keep their own items.
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if tb, ok := c.(*ast.TextBlock); ok {
				w.emit(terminate(w.inlineText(tb)))
				continue
			}
			w.block(c)
		}
		return
	}

	// Documents, lists and quotes
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c)
	}
}

// inlineText flattens the inline content of a block.
func (w *walker) inlineText(node ast.Node) string {
	var buf strings.Builder
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c, &buf)
	}
	return buf.String()
}

func (w *walker) inline(node ast.Node, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(w.source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(w.source))
			}
		}
		return

	case *ast.Image:
		// Alt text only.
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.inline(c, buf)
		}
		return

	case *ast.RawHTML, *ast.AutoLink:
		return
	}

	// Links, emphasis: keep the text, drop the markup.
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c, buf)
	}
}

// terminate ends s with a period unless it already ends a sentence.
func terminate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		return s
	}
	return s + "."
}
