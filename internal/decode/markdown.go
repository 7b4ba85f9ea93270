package decode

import (
	"fmt"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// decodeMarkdown writes the rendered text of a Markdown document, one block
// per paragraph, heading or code block. The first level-one heading becomes
// the title.
func decodeMarkdown(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	src := decodeText(in.Data)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading:
			if entering && node.Level == 1 && !md.Has("dc:title") {
				md.Set("dc:title", string(inlineText(node, src)))
			}
		case *ast.Text:
			if entering {
				sink.WriteText(string(node.Segment.Value(src)))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sink.WriteText(" ")
				}
			}
		case *ast.String:
			if entering {
				sink.WriteText(string(node.Value))
			}
		case *ast.AutoLink:
			if entering {
				sink.WriteText(string(node.Label(src)))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sink.WriteText(string(seg.Value(src)))
				}
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		if !entering && isMarkdownBlock(n) {
			sink.EndBlock()
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, extract.Malformed(fmt.Errorf("walk markdown: %w", err))
	}
	return nil, nil
}

func isMarkdownBlock(n ast.Node) bool {
	switch n.(type) {
	case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *ast.CodeBlock, *ast.FencedCodeBlock:
		return true
	}
	return false
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, src []byte) []byte {
	var out []byte
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			out = append(out, t.Segment.Value(src)...)
			continue
		}
		out = append(out, inlineText(c, src)...)
	}
	return out
}
