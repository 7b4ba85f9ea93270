package decode

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
	"github.com/xuri/excelize/v2"
)

// decodeXLSX writes each sheet name and then each row as tab-separated cells,
// one block per row. Password-protected workbooks are opened with the
// request password.
func decodeXLSX(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	f, err := excelize.OpenReader(bytes.NewReader(in.Data), excelize.Options{Password: in.Password})
	if err != nil {
		if errors.Is(err, excelize.ErrWorkbookPassword) || errors.Is(err, excelize.ErrWorkbookFileFormat) && in.Password == "" {
			return nil, extract.Encrypted(fmt.Errorf("open Excel: %w", err))
		}
		return nil, extract.Malformed(fmt.Errorf("open Excel: %w", err))
	}
	defer f.Close()

	if props, err := f.GetDocProps(); err == nil {
		setCore(md, coreProperties{
			Title:          props.Title,
			Subject:        props.Subject,
			Creator:        props.Creator,
			Keywords:       props.Keywords,
			Description:    props.Description,
			LastModifiedBy: props.LastModifiedBy,
			Revision:       props.Revision,
			Created:        props.Created,
			Modified:       props.Modified,
			Category:       props.Category,
			Language:       props.Language,
		})
	}
	if app, err := f.GetAppProps(); err == nil {
		setIfPresent(md, "extended-properties:Application", app.Application)
		setIfPresent(md, "extended-properties:AppVersion", app.AppVersion)
		setIfPresent(md, "extended-properties:Company", app.Company)
	}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, extract.Malformed(fmt.Errorf("get rows for sheet %q: %w", sheet, err))
		}
		sink.WriteText(sheet)
		sink.EndBlock()
		for _, row := range rows {
			sink.WriteText(strings.Join(row, "\t"))
			sink.EndBlock()
		}
	}

	// Reopen the package to read media; excelize keeps parts private.
	plain := in.Data
	if isProtectedOOXML(plain) {
		if plain, err = decryptPackage(in.Data, in.Password); err != nil {
			return nil, err
		}
	}
	zr, err := openZip(plain, "XLSX")
	if err != nil {
		return nil, err
	}
	return embeddedParts(zr, "xl/media/", "xl/embeddings/"), nil
}
