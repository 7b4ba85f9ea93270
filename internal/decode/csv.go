package decode

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hyperjump/rmeta/internal/extract"
	"github.com/hyperjump/rmeta/internal/models"
)

// decodeCSV writes one block per record with cells separated by tabs. Rows
// written before a parse error are kept.
func decodeCSV(in *extract.Input, sink *extract.Sink, md *models.Metadata) ([]extract.Embedded, error) {
	data := decodeText(in.Data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if sniffDelimiter(data) == ';' {
		reader.Comma = ';'
	}

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			md.Set("csv:rows", itoa(rows))
			return nil, extract.Malformed(fmt.Errorf("parse csv: %w", err))
		}
		rows++
		sink.WriteText(strings.Join(record, "\t"))
		sink.EndBlock()
	}
	md.Set("csv:delimiter", delimiterName(reader.Comma))
	md.Set("csv:rows", itoa(rows))
	return nil, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func delimiterName(r rune) string {
	if r == ';' {
		return "semicolon"
	}
	return "comma"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
