package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/rmeta/internal/models"
)

// Budget is the remaining content allowance of one request. It is shared by
// every Sink the Aggregator creates for that request.
type Budget struct {
	remaining int
	unbounded bool
	exhausted bool
}

// NewBudget returns a budget of limit characters; a negative limit is unbounded.
func NewBudget(limit int) *Budget {
	if limit < 0 {
		return &Budget{unbounded: true}
	}
	return &Budget{remaining: limit}
}

// Remaining returns the characters left, or -1 when unbounded.
func (b *Budget) Remaining() int {
	if b.unbounded {
		return -1
	}
	return b.remaining
}

// Exhausted reports whether a write has been cut short.
func (b *Budget) Exhausted() bool {
	return b.exhausted
}

// take grants up to n characters and reports whether the request was cut.
func (b *Budget) take(n int) (granted int, truncated bool) {
	if b.unbounded {
		return n, false
	}
	if n > b.remaining {
		granted = b.remaining
		b.remaining = 0
		b.exhausted = true
		return granted, true
	}
	b.remaining -= n
	return n, false
}

// Sink accumulates the content of exactly one unit. Decoders call WriteText
// for character data and EndBlock at paragraph, row and page boundaries.
// Writes past the request budget are dropped and flagged; a Sink never
// returns an error.
type Sink struct {
	budget       *Budget
	handler      contentHandler
	buf          strings.Builder
	limitReached bool
	closed       bool
}

// NewSink returns a sink drawing on budget and shaping text per mode.
func NewSink(budget *Budget, mode HandlerMode) *Sink {
	return &Sink{budget: budget, handler: newContentHandler(mode)}
}

// WriteText appends character data.
func (s *Sink) WriteText(text string) {
	if s.closed || text == "" {
		return
	}
	s.handler.text(s, text)
}

// EndBlock closes the current paragraph-like block.
func (s *Sink) EndBlock() {
	if s.closed {
		return
	}
	s.handler.endBlock(s)
}

// WriteString implements io.StringWriter; it is WriteText for callers that
// already hold an io.StringWriter.
func (s *Sink) WriteString(text string) (int, error) {
	s.WriteText(text)
	return len(text), nil
}

// LimitReached reports whether any write to this sink was cut short.
func (s *Sink) LimitReached() bool {
	return s.limitReached
}

// grant takes text against the budget and returns the part that fits,
// cut on a code point boundary. An empty result means nothing may be written.
func (s *Sink) grant(text string) string {
	n := utf8.RuneCountInString(text)
	granted, truncated := s.budget.take(n)
	if truncated {
		s.limitReached = true
	}
	if granted <= 0 {
		return ""
	}
	if granted < n {
		return prefixRunes(text, granted)
	}
	return text
}

// markup appends structure that is not charged to the budget.
func (s *Sink) markup(text string) {
	s.buf.WriteString(text)
}

// Close finalizes the sink and returns the content, or nil when the handler
// suppresses content. md feeds the markup head. Writes after Close are
// ignored.
func (s *Sink) Close(md *models.Metadata) *string {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.handler.finish(s, md)
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
