package decode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// decodeImage records dimensions only; images carry no text.
func decodeImage(in *extract.Input, _ *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(in.Data))
	if err != nil {
		return nil, extract.Malformed(fmt.Errorf("decode image header: %w", err))
	}
	md.Set("tiff:ImageWidth", itoa(cfg.Width))
	md.Set("tiff:ImageLength", itoa(cfg.Height))
	md.Set("image:format", format)
	return nil, nil
}
