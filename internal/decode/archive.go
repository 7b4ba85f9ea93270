package decode

import (
	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// decodeZIP has no content of its own: every file entry becomes a child named
// by its path inside the archive. Entries are decompressed only when visited.
func decodeZIP(in *extract.Input, _ *extract.Sink, _ *models.Metadata) ([]extract.Embedded, error) {
	zr, err := openZip(in.Data, "ZIP")
	if err != nil {
		return nil, err
	}
	var children []extract.Embedded
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		children = append(children, lazyPart(f, f.Name))
	}
	return children, nil
}
