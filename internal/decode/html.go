package decode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
	"golang.org/x/net/html"
)

// htmlBlocks end a content block when closed.
var htmlBlocks = map[string]bool{
	"p": true, "div": true, "li": true, "td": true, "th": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "dt": true, "dd": true, "section": true,
	"article": true, "br": true,
}

// decodeHTML records the title and named meta tags, then writes the visible
// text of the body with one block per block-level element.
func decodeHTML(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	doc, err := html.Parse(bytes.NewReader(in.Data))
	if err != nil {
		return nil, extract.Malformed(fmt.Errorf("parse html: %w", err))
	}
	if title := findTitle(doc); title != "" {
		md.Set("dc:title", title)
	}
	collectMeta(doc, md)

	body := findBody(doc)
	if body == nil {
		body = doc
	}
	w := &htmlTextWriter{sink: sink}
	w.walk(body)
	w.flush()
	return nil, nil
}

// htmlTextWriter gathers the raw text of one block and collapses its
// whitespace when the block ends, so inline elements keep their spacing.
type htmlTextWriter struct {
	sink  *extract.Sink
	block strings.Builder
}

func (w *htmlTextWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.block.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "head":
			return
		}
		if htmlBlocks[n.Data] {
			w.flush()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if n.Type == html.ElementNode && htmlBlocks[n.Data] {
		w.flush()
	}
}

// flush writes the pending block, if it has any visible text.
func (w *htmlTextWriter) flush() {
	t := strings.Join(strings.Fields(w.block.String()), " ")
	w.block.Reset()
	if t == "" {
		return
	}
	w.sink.WriteText(t)
	w.sink.EndBlock()
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// collectMeta copies <meta name=... content=...> pairs in document order.
func collectMeta(n *html.Node, md *models.Metadata) {
	if n.Type == html.ElementNode && n.Data == "meta" {
		var name, content string
		for _, a := range n.Attr {
			switch strings.ToLower(a.Key) {
			case "name":
				name = a.Val
			case "content":
				content = a.Val
			}
		}
		if name != "" && content != "" && !strings.EqualFold(name, models.ContentType) {
			md.Add(name, content)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMeta(c, md)
	}
}
