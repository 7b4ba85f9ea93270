package decode

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// maxPartBytes caps a single decompressed package part.
const maxPartBytes = 256 << 20

// openZip opens data as a zip package, reporting a malformed unit otherwise.
func openZip(data []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, extract.Malformed(fmt.Errorf("%s: not a zip: %w", format, err))
	}
	return zr, nil
}

// readPart returns the decompressed bytes of f.
func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(rc, maxPartBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if n > maxPartBytes {
		return nil, fmt.Errorf("read %s: part exceeds %d bytes", f.Name, maxPartBytes)
	}
	return buf.Bytes(), nil
}

// findPart returns the named part, or nil.
func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// readNamedPart reads the named part; ok is false when it does not exist.
func readNamedPart(zr *zip.Reader, name string) (data []byte, ok bool, err error) {
	f := findPart(zr, name)
	if f == nil {
		return nil, false, nil
	}
	data, err = readPart(f)
	return data, true, err
}

// partsUnder returns the non-directory parts below any of the given folders,
// in archive order.
func partsUnder(zr *zip.Reader, folders ...string) []*zip.File {
	var out []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		for _, dir := range folders {
			if strings.HasPrefix(f.Name, dir) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// lazyPart returns a child that decompresses f only when it is visited.
func lazyPart(f *zip.File, name string) extract.Embedded {
	return extract.Embedded{Name: name, Open: func() ([]byte, error) { return readPart(f) }}
}

// embeddedParts turns the parts below folders into children named by their
// base name.
func embeddedParts(zr *zip.Reader, folders ...string) []extract.Embedded {
	var children []extract.Embedded
	for _, f := range partsUnder(zr, folders...) {
		children = append(children, lazyPart(f, path.Base(f.Name)))
	}
	return children
}

// numberedParts returns parts named prefix<N>.xml sorted by N.
func numberedParts(zr *zip.Reader, prefix string) []*zip.File {
	var out []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && strings.HasSuffix(f.Name, ".xml") {
			if _, ok := partNumber(f.Name, prefix); ok {
				out = append(out, f)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := partNumber(out[i].Name, prefix)
		b, _ := partNumber(out[j].Name, prefix)
		return a < b
	})
	return out
}

func partNumber(name, prefix string) (int, bool) {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xml")
	if digits == "" {
		return 0, false
	}
	n := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// coreProperties is docProps/core.xml of an OOXML package.
type coreProperties struct {
	Title          string `xml:"title"`
	Subject        string `xml:"subject"`
	Creator        string `xml:"creator"`
	Keywords       string `xml:"keywords"`
	Description    string `xml:"description"`
	LastModifiedBy string `xml:"lastModifiedBy"`
	Revision       string `xml:"revision"`
	Created        string `xml:"created"`
	Modified       string `xml:"modified"`
	Category       string `xml:"category"`
	Language       string `xml:"language"`
}

// appProperties is docProps/app.xml of an OOXML package.
type appProperties struct {
	Application string `xml:"Application"`
	AppVersion  string `xml:"AppVersion"`
	Company     string `xml:"Company"`
	Pages       string `xml:"Pages"`
	Words       string `xml:"Words"`
	Slides      string `xml:"Slides"`
}

// readPackageProperties copies core and extended properties into md.
// Missing parts are not an error.
func readPackageProperties(zr *zip.Reader, md *models.Metadata) error {
	if data, ok, err := readNamedPart(zr, "docProps/core.xml"); err != nil {
		return err
	} else if ok {
		var core coreProperties
		if err := xml.Unmarshal(data, &core); err != nil {
			return fmt.Errorf("parse docProps/core.xml: %w", err)
		}
		setCore(md, core)
	}
	if data, ok, err := readNamedPart(zr, "docProps/app.xml"); err != nil {
		return err
	} else if ok {
		var app appProperties
		if err := xml.Unmarshal(data, &app); err != nil {
			return fmt.Errorf("parse docProps/app.xml: %w", err)
		}
		setIfPresent(md, "extended-properties:Application", app.Application)
		setIfPresent(md, "extended-properties:AppVersion", app.AppVersion)
		setIfPresent(md, "extended-properties:Company", app.Company)
		setIfPresent(md, "meta:page-count", app.Pages)
		setIfPresent(md, "meta:word-count", app.Words)
		setIfPresent(md, "meta:slide-count", app.Slides)
	}
	return nil
}

func setCore(md *models.Metadata, core coreProperties) {
	setIfPresent(md, "dc:title", core.Title)
	setIfPresent(md, "dc:subject", core.Subject)
	setIfPresent(md, "dc:creator", core.Creator)
	setIfPresent(md, "meta:keyword", core.Keywords)
	setIfPresent(md, "dc:description", core.Description)
	setIfPresent(md, "meta:last-author", core.LastModifiedBy)
	setIfPresent(md, "cp:revision", core.Revision)
	setIfPresent(md, "dcterms:created", core.Created)
	setIfPresent(md, "dcterms:modified", core.Modified)
	setIfPresent(md, "cp:category", core.Category)
	setIfPresent(md, "dc:language", core.Language)
}

func setIfPresent(md *models.Metadata, name, value string) {
	if v := strings.TrimSpace(value); v != "" {
		md.Set(name, v)
	}
}
