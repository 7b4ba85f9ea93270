package decode

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
	"github.com/ledongthuc/pdf"
)

// pdfInfoKeys maps Info dictionary entries to metadata names.
var pdfInfoKeys = []struct{ key, name string }{
	{"Title", "dc:title"},
	{"Author", "dc:creator"},
	{"Subject", "dc:subject"},
	{"Keywords", "meta:keyword"},
	{"Creator", "xmp:CreatorTool"},
	{"Producer", "pdf:producer"},
	{"CreationDate", "dcterms:created"},
	{"ModDate", "dcterms:modified"},
}

// decodePDF writes one block per page. Encrypted files are opened with the
// request password; a missing or wrong password is an encrypted-document
// failure. A page that cannot be read does not stop the others.
func decodePDF(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	r, err := pdf.NewReaderEncrypted(bytes.NewReader(in.Data), int64(len(in.Data)), passwordOnce(in.Password))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, extract.Encrypted(err)
		}
		return nil, extract.Malformed(fmt.Errorf("open PDF: %w", err))
	}

	trailer := r.Trailer()
	info := trailer.Key("Info")
	for _, k := range pdfInfoKeys {
		if v := info.Key(k.key); !v.IsNull() {
			setIfPresent(md, k.name, v.Text())
		}
	}
	if !trailer.Key("Encrypt").IsNull() {
		md.Set("pdf:encrypted", "true")
	}

	numPages := r.NumPage()
	md.Set("xmpTPg:NPages", strconv.Itoa(numPages))
	var firstErr error
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("extract page %d: %w", i+1, err)
			}
			continue
		}
		sink.WriteText(text)
		sink.EndBlock()
	}
	if firstErr != nil {
		return nil, extract.Malformed(firstErr)
	}
	return nil, nil
}

// passwordOnce yields password a single time; the reader stops asking when
// it gets the empty string.
func passwordOnce(password string) func() string {
	used := false
	return func() string {
		if used {
			return ""
		}
		used = true
		return password
	}
}
