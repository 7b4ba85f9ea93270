// Package cli provides output helpers for the rmeta command line.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/rmeta/internal/jsonlist"
	"github.com/hyperjump/rmeta/internal/models"
	"github.com/hyperjump/rmeta/internal/storage"
)

// OutputFormat is the format for extract output.
type OutputFormat string

const (
	// OutputJSON is the record list as a JSON array (default).
	OutputJSON OutputFormat = "json"
	// OutputText is a human-readable summary, one block per unit.
	OutputText OutputFormat = "text"
)

// ParseOutputFormat maps a flag value to a format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputJSON:
		return OutputJSON, nil
	case OutputText:
		return OutputText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json or text)", s)
}

// WriteResult writes res to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteResult(w io.Writer, res *models.Result, format OutputFormat) error {
	switch format {
	case OutputText:
		writeResultText(w, res)
		return nil
	default:
		if err := jsonlist.Write(w, res); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
}

func writeResultText(w io.Writer, res *models.Result) {
	fmt.Fprintf(w, "\n%d units, %d failed\n\n", res.Len(), len(res.Failures()))
	for _, u := range res.Units {
		writeOneUnit(w, u)
	}
}

func writeOneUnit(w io.Writer, u *models.Unit) {
	md := u.Metadata
	path := md.Get(models.EmbeddedResourcePath)
	if path == "" {
		path = "/"
	}
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%d] %s\n", u.Index, path)
	if name := md.Get(models.ResourceName); name != "" {
		fmt.Fprintf(w, "Name: %s\n", name)
	}
	fmt.Fprintf(w, "Type: %s | Chars: %d\n", md.Get(models.ContentType), u.ContentLength())
	if title := md.Get("dc:title"); title != "" {
		fmt.Fprintf(w, "Title: %s\n", title)
	}
	var flags []string
	if u.WriteLimitReached {
		flags = append(flags, jsonlist.FieldWriteLimitReached)
	}
	if u.EmbeddedLimitReached {
		flags = append(flags, jsonlist.FieldEmbeddedLimitReached)
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, "Flags: %s\n", strings.Join(flags, ", "))
	}
	if u.Failure != nil {
		fmt.Fprintf(w, "Error: %s\n", u.Failure)
	}
	if u.Content != nil && *u.Content != "" {
		fmt.Fprintf(w, "\n%s\n", TruncateWords(*u.Content, 40))
	}
	fmt.Fprintln(w)
}

// WriteEntries prints cached results as one line each: key prefix, units,
// size, hits, age and resource name.
func WriteEntries(w io.Writer, entries []*storage.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No cached results.")
		return
	}
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s  units=%d  bytes=%d  hits=%d  age=%s  %s\n",
			Truncate(e.Key, 12), e.Units, e.Size, e.Hits,
			now.Sub(e.CreatedAt).Truncate(time.Second), Truncate(name, 60))
	}
}

// Truncate cuts s to at most maxLen characters and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
