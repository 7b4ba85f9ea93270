package decode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// odfContentPath is the path to the main content inside an OpenDocument zip.
const odfContentPath = "content.xml"

// odfMetaPath holds the document properties.
const odfMetaPath = "meta.xml"

// nsText is the OpenDocument text namespace.
const nsText = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

// odfDecoder reads OpenDocument text, spreadsheets and presentations. They
// share one content model: text:p and text:h are blocks, and every text
// node inside them is content, in document order.
type odfDecoder struct {
	kind string
}

func (d odfDecoder) Decode(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	zr, err := openZip(in.Data, "ODF "+d.kind)
	if err != nil {
		return nil, err
	}
	if meta, ok, err := readNamedPart(zr, odfMetaPath); err != nil {
		return nil, extract.Malformed(err)
	} else if ok {
		if err := readODFMeta(meta, md); err != nil {
			return nil, extract.Malformed(err)
		}
	}
	content, ok, err := readNamedPart(zr, odfContentPath)
	if err != nil {
		return nil, extract.Malformed(err)
	}
	if !ok {
		return nil, extract.Malformedf("ODF %s: %s not found", d.kind, odfContentPath)
	}
	if err := writeODFContent(content, sink); err != nil {
		return nil, extract.Malformed(fmt.Errorf("ODF %s: %w", d.kind, err))
	}
	return embeddedParts(zr, "Pictures/"), nil
}

// isODFBlock matches text:p and text:h; a missing namespace declaration is
// tolerated by matching on the prefix the decoder leaves in Space.
func isODFBlock(name xml.Name) bool {
	if name.Local != "p" && name.Local != "h" {
		return false
	}
	return name.Space == nsText || name.Space == "text"
}

func writeODFContent(content []byte, sink *extract.Sink) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if isODFBlock(t.Name) {
				depth++
			}
			if depth > 0 && (t.Name.Local == "s" || t.Name.Local == "tab" || t.Name.Local == "line-break") {
				sink.WriteText(odfSpacing(t.Name.Local))
			}
		case xml.EndElement:
			if isODFBlock(t.Name) {
				depth--
				if depth == 0 {
					sink.EndBlock()
				}
			}
		case xml.CharData:
			if depth > 0 {
				sink.WriteText(string(t))
			}
		}
	}
}

func odfSpacing(local string) string {
	switch local {
	case "tab":
		return "\t"
	case "line-break":
		return "\n"
	default:
		return " "
	}
}

// odfMeta is the office:meta element of meta.xml.
type odfMeta struct {
	Meta struct {
		Title          string   `xml:"title"`
		Subject        string   `xml:"subject"`
		Description    string   `xml:"description"`
		Creator        string   `xml:"creator"`
		InitialCreator string   `xml:"initial-creator"`
		CreationDate   string   `xml:"creation-date"`
		Date           string   `xml:"date"`
		Language       string   `xml:"language"`
		Generator      string   `xml:"generator"`
		Keywords       []string `xml:"keyword"`
		Stats          struct {
			Pages  string `xml:"page-count,attr"`
			Words  string `xml:"word-count,attr"`
			Tables string `xml:"table-count,attr"`
		} `xml:"document-statistic"`
	} `xml:"meta"`
}

func readODFMeta(data []byte, md *models.Metadata) error {
	var m odfMeta
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("parse %s: %w", odfMetaPath, err)
	}
	setIfPresent(md, "dc:title", m.Meta.Title)
	setIfPresent(md, "dc:subject", m.Meta.Subject)
	setIfPresent(md, "dc:description", m.Meta.Description)
	creator := m.Meta.InitialCreator
	if creator == "" {
		creator = m.Meta.Creator
	}
	setIfPresent(md, "dc:creator", creator)
	if m.Meta.InitialCreator != "" {
		setIfPresent(md, "meta:last-author", m.Meta.Creator)
	}
	setIfPresent(md, "dcterms:created", m.Meta.CreationDate)
	setIfPresent(md, "dcterms:modified", m.Meta.Date)
	setIfPresent(md, "dc:language", m.Meta.Language)
	setIfPresent(md, "xmp:CreatorTool", m.Meta.Generator)
	for _, kw := range m.Meta.Keywords {
		if kw != "" {
			md.Add("meta:keyword", kw)
		}
	}
	setIfPresent(md, "meta:page-count", m.Meta.Stats.Pages)
	setIfPresent(md, "meta:word-count", m.Meta.Stats.Words)
	setIfPresent(md, "meta:table-count", m.Meta.Stats.Tables)
	return nil
}
