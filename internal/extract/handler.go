package extract

import (
	"html"
	"strings"

	"github.com/hyperjump/rmeta/internal/models"
)

// xhtmlOpen starts every markup content field.
const xhtmlOpen = `<html xmlns="http://www.w3.org/1999/xhtml">`

// contentHandler shapes decoder writes into a Sink.
type contentHandler interface {
	text(s *Sink, t string)
	endBlock(s *Sink)
	finish(s *Sink, md *models.Metadata) *string
}

func newContentHandler(mode HandlerMode) contentHandler {
	switch mode {
	case HandlerText:
		return &textHandler{}
	case HandlerIgnore:
		return ignoreHandler{}
	default:
		return &markupHandler{}
	}
}

// markupHandler wraps text in <p> elements of a minimal XHTML document. Only
// character data is charged to the budget.
type markupHandler struct {
	inBlock bool
}

func (h *markupHandler) text(s *Sink, t string) {
	t = s.grant(t)
	if t == "" {
		return
	}
	if !h.inBlock {
		s.markup("<p>")
		h.inBlock = true
	}
	s.markup(html.EscapeString(t))
}

func (h *markupHandler) endBlock(s *Sink) {
	if h.inBlock {
		s.markup("</p>\n")
		h.inBlock = false
	}
}

func (h *markupHandler) finish(s *Sink, md *models.Metadata) *string {
	h.endBlock(s)
	var b strings.Builder
	b.WriteString(xhtmlOpen)
	b.WriteString("\n<head>\n")
	for _, name := range md.Names() {
		for _, v := range md.Values(name) {
			b.WriteString(`<meta name="`)
			b.WriteString(html.EscapeString(name))
			b.WriteString(`" content="`)
			b.WriteString(html.EscapeString(v))
			b.WriteString("\"/>\n")
		}
	}
	if title := md.Get("dc:title"); title != "" {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(title))
		b.WriteString("</title>\n")
	} else {
		b.WriteString("<title/>\n")
	}
	b.WriteString("</head>\n<body>")
	b.WriteString(s.buf.String())
	b.WriteString("</body></html>")
	out := b.String()
	return &out
}

// textHandler emits text with a newline after each block; both are charged.
type textHandler struct {
	blockHasText bool
}

func (h *textHandler) text(s *Sink, t string) {
	h.blockHasText = true
	s.buf.WriteString(s.grant(t))
}

func (h *textHandler) endBlock(s *Sink) {
	if h.blockHasText {
		s.buf.WriteString(s.grant("\n"))
		h.blockHasText = false
	}
}

func (h *textHandler) finish(s *Sink, _ *models.Metadata) *string {
	out := s.buf.String()
	return &out
}

// ignoreHandler drops everything and never touches the budget.
type ignoreHandler struct{}

func (ignoreHandler) text(*Sink, string) {}

func (ignoreHandler) endBlock(*Sink) {}

func (ignoreHandler) finish(*Sink, *models.Metadata) *string { return nil }
