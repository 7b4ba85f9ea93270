package decode

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// decodeText returns content as UTF-8, dropping a byte order mark.
// Invalid UTF-8 sequences are replaced with the replacement character.
func decodeText(content []byte) []byte {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return content
}

// decodePlain writes text split into paragraphs at blank lines.
func decodePlain(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	text := strings.ReplaceAll(string(decodeText(in.Data)), "\r\n", "\n")
	lines := 0
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Trim(para, "\n")
		if para == "" {
			continue
		}
		lines += strings.Count(para, "\n") + 1
		sink.WriteText(para)
		sink.EndBlock()
	}
	md.Set("text:line-count", itoa(lines))
	return nil, nil
}
