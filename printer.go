package main

import (
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readalong/internal/document"
	"github.com/dgnsrekt/readalong/tts"
)

// printer writes the document as it is read, one word at a time, with the
// spoken word highlighted.
type printer struct {
	w     io.Writer
	doc   *document.Document
	style lipgloss.Style

	mu        sync.Mutex
	newline   string
	paragraph int // -1 before the first word
	offset    int // bytes of the paragraph already written
	words     int
}

func newPrinter(w io.Writer, doc *document.Document, style lipgloss.Style) *printer {
	return &printer{w: w, doc: doc, style: style, newline: "\n", paragraph: -1}
}

// setRaw switches line endings for a terminal in raw mode.
func (p *printer) setRaw(raw bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if raw {
		p.newline = "\r\n"
	} else {
		p.newline = "\n"
	}
}

func (p *printer) listener(logger *log.Logger) tts.Listener {
	return tts.ListenerFuncs{
		Progress: p.progress,
		State: func(s tts.PipelineState) {
			logger.Debug("state", "phase", s.Phase, "paragraph", s.Paragraph, "sentence", s.Sentence,
				"buffered", s.BufferedBytes, "processing", s.Processing)
		},
		Error: func(e tts.SentenceError) {
			kv := []any{"paragraph", e.Paragraph, "sentence", e.Sentence, "stage", e.Stage, "error", e.Err}
			var ttsErr *tts.TTSError
			if errors.As(e.Err, &ttsErr) {
				for k, v := range ttsErr.Context {
					kv = append(kv, k, v)
				}
			}
			logger.Warn("sentence skipped", kv...)
		},
	}
}

func (p *printer) progress(e tts.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.ParagraphIndex < 0 || e.ParagraphIndex >= len(p.doc.Paragraphs) {
		return
	}
	text := p.doc.Paragraphs[e.ParagraphIndex]
	start := min(max(e.WordRange.Location, 0), len(text))
	end := min(max(e.WordRange.End(), start), len(text))

	switch {
	case e.ParagraphIndex != p.paragraph:
		p.endParagraph()
		p.paragraph, p.offset = e.ParagraphIndex, 0
	case start < p.offset:
		// The paragraph restarted.
		io.WriteString(p.w, p.newline) //nolint:errcheck
		p.offset = 0
	}

	io.WriteString(p.w, text[p.offset:start])            //nolint:errcheck
	io.WriteString(p.w, p.style.Render(text[start:end])) //nolint:errcheck
	p.offset = end
	p.words++
}

// endParagraph writes what is left of the current paragraph. It must be
// called with the lock held.
func (p *printer) endParagraph() {
	if p.paragraph < 0 {
		return
	}
	io.WriteString(p.w, p.doc.Paragraphs[p.paragraph][p.offset:]+p.newline+p.newline) //nolint:errcheck
}

// flush finishes the last paragraph.
func (p *printer) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endParagraph()
	p.paragraph, p.offset = -1, 0
}

// spoken returns the number of words highlighted so far.
func (p *printer) spoken() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.words
}
