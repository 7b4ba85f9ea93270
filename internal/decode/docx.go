package decode

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t> (and any other attributes).
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wpEnd splits a document body into paragraphs.
var wpEnd = regexp.MustCompile(`</w:p>`)

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, ok, err := readNamedPart(zr, contentTypesPath)
	if !ok || err != nil {
		return ""
	}
	content := string(data)
	// Try both attribute orders
	if matches := partNameRe.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	if matches := partNameRe2.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimPrefix(matches[1], "/")
	}
	return ""
}

// decodeDOCX writes one block per paragraph or table cell. The standard body
// part is read with go-docx; a main part stored elsewhere (word/document2.xml)
// falls back to scanning <w:t> runs. Media and embedded objects become
// children.
func decodeDOCX(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	zr, err := openZip(in.Data, "DOCX")
	if err != nil {
		return nil, err
	}
	if err := readPackageProperties(zr, md); err != nil {
		return nil, extract.Malformed(err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	if docPath == docxDocumentXMLPath {
		if findPart(zr, docPath) == nil {
			return nil, extract.Malformedf("DOCX: %s not found", docPath)
		}
		doc, err := docx.Parse(bytes.NewReader(in.Data), int64(len(in.Data)))
		if err != nil {
			return nil, extract.Malformed(fmt.Errorf("parse DOCX: %w", err))
		}
		writeDocxItems(sink, doc.Document.Body.Items)
	} else {
		body, ok, err := readNamedPart(zr, docPath)
		if err != nil {
			return nil, extract.Malformed(err)
		}
		if !ok {
			return nil, extract.Malformedf("DOCX: %s not found", docPath)
		}
		writeDocxRuns(sink, string(body))
	}

	return embeddedParts(zr, "word/media/", "word/embeddings/"), nil
}

func writeDocxItems(sink *extract.Sink, items []interface{}) {
	for _, item := range items {
		switch o := item.(type) {
		case *docx.Paragraph:
			writeDocxParagraph(sink, o)
		case *docx.Table:
			writeDocxTable(sink, o)
		}
	}
}

func writeDocxTable(sink *extract.Sink, t *docx.Table) {
	for _, row := range t.TableRows {
		for _, cell := range row.TableCells {
			for _, p := range cell.Paragraphs {
				writeDocxParagraph(sink, p)
			}
			for _, nested := range cell.Tables {
				writeDocxTable(sink, nested)
			}
		}
	}
}

func writeDocxParagraph(sink *extract.Sink, p *docx.Paragraph) {
	for _, child := range p.Children {
		switch o := child.(type) {
		case *docx.Run:
			writeDocxRun(sink, o)
		case *docx.Hyperlink:
			writeDocxRun(sink, &o.Run)
		}
	}
	sink.EndBlock()
}

func writeDocxRun(sink *extract.Sink, r *docx.Run) {
	for _, rc := range r.Children {
		switch t := rc.(type) {
		case *docx.Text:
			sink.WriteText(t.Text)
		case *docx.Tab:
			sink.WriteText("\t")
		case *docx.BarterRabbet:
			sink.WriteText("\n")
		}
	}
}

// writeDocxRuns is the fallback for bodies go-docx does not load: the
// inner text of every <w:t>, one block per paragraph.
func writeDocxRuns(sink *extract.Sink, body string) {
	for _, para := range wpEnd.Split(body, -1) {
		for _, p := range wtTag.FindAllStringSubmatch(para, -1) {
			sink.WriteText(xmlUnescape(p[1]))
		}
		sink.EndBlock()
	}
}

var xmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")

func xmlUnescape(s string) string {
	return xmlEntities.Replace(s)
}
