package watcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/jsonlist"
	"github.com/hyperjump/rmeta/internal/models"
	"go.uber.org/zap"
)

// Extractor turns a document stream into its record list.
type Extractor interface {
	ExtractNamed(r io.Reader, name string, cfg extract.Config) (*models.Result, error)
}

// Exporter is a Handler that writes each file's record list to
// <outDir>/<path relative to its root>.json and deletes it when the file goes.
type Exporter struct {
	extractor Extractor
	cfg       extract.Config
	roots     []string
	outDir    string
	logger    *zap.Logger
}

// NewExporter returns an Exporter for files under roots.
func NewExporter(extractor Extractor, cfg extract.Config, roots []string, outDir string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{extractor: extractor, cfg: cfg, roots: roots, outDir: outDir, logger: logger}
}

// Changed implements Handler.
func (e *Exporter) Changed(path string) {
	if err := e.Export(path); err != nil {
		e.logger.Warn("export failed", zap.String("path", path), zap.Error(err))
	}
}

// Removed implements Handler.
func (e *Exporter) Removed(path string) {
	out := e.OutputPath(path)
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("remove output failed", zap.String("path", out), zap.Error(err))
		return
	}
	e.logger.Debug("output removed", zap.String("path", out))
}

// Export extracts path and writes its output file.
func (e *Exporter) Export(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := e.extractor.ExtractNamed(f, filepath.Base(path), e.cfg)
	if err != nil {
		return err
	}
	body, err := jsonlist.Marshal(res)
	if err != nil {
		return err
	}

	out := e.OutputPath(path)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write output: %w", err)
	}
	e.logger.Info("exported",
		zap.String("path", path),
		zap.String("output", out),
		zap.Int("units", res.Len()),
		zap.Int("failures", len(res.Failures())),
	)
	return nil
}

// OutputPath maps a watched file to its output file. Files outside every
// root map to their base name.
func (e *Exporter) OutputPath(path string) string {
	clean := filepath.Clean(path)
	for _, root := range e.roots {
		root = filepath.Clean(root)
		if inDir(root, clean) {
			if rel, err := filepath.Rel(root, clean); err == nil && rel != "." {
				return filepath.Join(e.outDir, rel+".json")
			}
		}
	}
	return filepath.Join(e.outDir, filepath.Base(clean)+".json")
}
