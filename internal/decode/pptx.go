package decode

import (
	"regexp"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
const pptxSlidePathPrefix = "ppt/slides/slide"

// atTag matches <a:t>text</a:t> or <a:t xml:space="preserve">text</a:t> (and any other attributes).
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// apEnd splits slide XML into DrawingML paragraphs.
var apEnd = regexp.MustCompile(`</a:p>`)

// decodePPTX writes the <a:t> text of every slide in slide-number order, one
// block per DrawingML paragraph. Media and embedded objects become children.
func decodePPTX(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	zr, err := openZip(in.Data, "PPTX")
	if err != nil {
		return nil, err
	}
	if err := readPackageProperties(zr, md); err != nil {
		return nil, extract.Malformed(err)
	}
	for _, f := range numberedParts(zr, pptxSlidePathPrefix) {
		slide, err := readPart(f)
		if err != nil {
			return nil, extract.Malformed(err)
		}
		for _, para := range apEnd.Split(string(slide), -1) {
			for _, p := range atTag.FindAllStringSubmatch(para, -1) {
				sink.WriteText(xmlUnescape(p[1]))
			}
			sink.EndBlock()
		}
	}
	return embeddedParts(zr, "ppt/media/", "ppt/embeddings/"), nil
}
