// Package decode provides the format decoders used by the extraction
// aggregator, and a Registry that detects the type of each unit and
// dispatches to the matching decoder.
package decode

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
	"go.uber.org/zap"
)

// Content types handled by the default registry.
const (
	TypeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeXLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	TypePPTX      = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	TypeProtected = "application/x-tika-ooxml-protected"
	TypeODT       = "application/vnd.oasis.opendocument.text"
	TypeODS       = "application/vnd.oasis.opendocument.spreadsheet"
	TypeODP       = "application/vnd.oasis.opendocument.presentation"
	TypePDF       = "application/pdf"
	TypeZIP       = "application/zip"
	TypeHTML      = "text/html"
	TypeMarkdown  = "text/markdown"
	TypeCSV       = "text/csv"
	TypePlain     = "text/plain"
	TypePNG       = "image/png"
	TypeJPEG      = "image/jpeg"
	TypeGIF       = "image/gif"
	TypeOctet     = "application/octet-stream"
)

// generic types say little about a unit; a name extension is preferred.
var generic = map[string]bool{
	TypeZIP:           true,
	TypeOctet:         true,
	TypePlain:         true,
	"application/xml": true,
	"text/xml":        true,
}

// Registry detects unit types and dispatches to decoders. It is safe for
// concurrent use once built.
type Registry struct {
	decoders map[string]extract.Decoder
	byExt    map[string]string
	logger   *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a logger for detection debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns a Registry with every built-in decoder registered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		decoders: make(map[string]extract.Decoder),
		byExt:    make(map[string]string),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Register(TypeDOCX, extract.DecoderFunc(decodeDOCX), ".docx")
	r.Register(TypeXLSX, extract.DecoderFunc(decodeXLSX), ".xlsx")
	r.Register(TypePPTX, extract.DecoderFunc(decodePPTX), ".pptx")
	r.Register(TypeProtected, &protectedDecoder{registry: r})
	r.Register(TypeODT, odfDecoder{kind: "text"}, ".odt")
	r.Register(TypeODS, odfDecoder{kind: "spreadsheet"}, ".ods")
	r.Register(TypeODP, odfDecoder{kind: "presentation"}, ".odp")
	r.Register(TypePDF, extract.DecoderFunc(decodePDF), ".pdf")
	r.Register(TypeZIP, extract.DecoderFunc(decodeZIP), ".zip")
	r.Register(TypeHTML, extract.DecoderFunc(decodeHTML), ".html", ".htm", ".xhtml")
	r.Register(TypeMarkdown, extract.DecoderFunc(decodeMarkdown), ".md", ".markdown")
	r.Register(TypeCSV, extract.DecoderFunc(decodeCSV), ".csv")
	r.Register(TypePlain, extract.DecoderFunc(decodePlain), ".txt", ".rst", ".text", ".log")
	r.Register(TypePNG, extract.DecoderFunc(decodeImage), ".png")
	r.Register(TypeJPEG, extract.DecoderFunc(decodeImage), ".jpg", ".jpeg")
	r.Register(TypeGIF, extract.DecoderFunc(decodeImage), ".gif")
	return r
}

// Register adds or replaces the decoder for contentType and maps the given
// extensions (with leading dot) to it. Register is not safe to call while
// the registry is serving requests.
func (r *Registry) Register(contentType string, d extract.Decoder, exts ...string) {
	r.decoders[contentType] = d
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = contentType
	}
}

// Types returns the registered content types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.decoders))
	for ct := range r.decoders {
		out = append(out, ct)
	}
	return out
}

// Detect returns the content type of a unit. A registered hint wins, then
// password-protected OOXML. Textual data is typed by its name extension
// when one is registered; otherwise specific magic-number matches win over
// the extension, and generic ones come last.
func (r *Registry) Detect(in *extract.Input) string {
	if ct := baseType(in.ContentType); ct != "" {
		if _, ok := r.decoders[ct]; ok {
			return ct
		}
	}
	if isProtectedOOXML(in.Data) {
		return TypeProtected
	}
	detected := mimetype.Detect(in.Data)
	byName := r.byExt[strings.ToLower(filepath.Ext(in.Name))]
	if byName != "" && isText(detected) {
		return byName
	}
	for m := detected; m != nil; m = m.Parent() {
		ct := baseType(m.String())
		if generic[ct] {
			break
		}
		if _, ok := r.decoders[ct]; ok {
			return ct
		}
	}
	if byName != "" {
		return byName
	}
	for m := detected; m != nil; m = m.Parent() {
		ct := baseType(m.String())
		if _, ok := r.decoders[ct]; ok {
			return ct
		}
	}
	return baseType(detected.String())
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(TypePlain) {
			return true
		}
	}
	return false
}

// Decode implements extract.Decoder.
func (r *Registry) Decode(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	ct := r.Detect(in)
	md.Set(models.ContentType, ct)
	d, ok := r.decoders[ct]
	if !ok {
		r.logger.Debug("no decoder", zap.String("resource", in.Name), zap.String("content_type", ct))
		return nil, extract.Unsupported(ct)
	}
	r.logger.Debug("decoding unit",
		zap.String("resource", in.Name),
		zap.String("content_type", ct),
		zap.Int("bytes", len(in.Data)),
	)
	return d.Decode(in, sink, md)
}

// baseType strips parameters such as charset from a media type.
func baseType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
