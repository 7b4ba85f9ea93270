// Package jsonlist renders extraction results as an ordered JSON array of
// records and reads that form back.
package jsonlist

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/hyperjump/rmeta/internal/models"
)

// Reserved record fields. Metadata names equal to one of these are dropped
// when writing; the unit field wins.
const (
	FieldContent              = "content"
	FieldWriteLimitReached    = "writeLimitReached"
	FieldEmbeddedLimitReached = "embeddedResourceLimitReached"
	FieldContainerException   = "containerException"
)

var reserved = map[string]bool{
	FieldContent:              true,
	FieldWriteLimitReached:    true,
	FieldEmbeddedLimitReached: true,
	FieldContainerException:   true,
}

// ErrNotArray is returned by Read when the input is not a JSON array of objects.
var ErrNotArray = errors.New("record list must be a JSON array of objects")

// Write renders result to w. Keys of each record follow metadata insertion
// order, then content, writeLimitReached, embeddedResourceLimitReached and
// containerException, each only when present.
func Write(w io.Writer, result *models.Result) error {
	bw := bufio.NewWriter(w)
	bw.WriteByte('[')
	for i, u := range result.Units {
		if i > 0 {
			bw.WriteByte(',')
		}
		if err := writeUnit(bw, u); err != nil {
			return err
		}
	}
	bw.WriteByte(']')
	return bw.Flush()
}

// Marshal is Write into a byte slice.
func Marshal(result *models.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, result); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeUnit(w *bufio.Writer, u *models.Unit) error {
	obj := objectWriter{w: w}
	if u.Metadata != nil {
		for _, name := range u.Metadata.Names() {
			if reserved[name] {
				continue
			}
			values := u.Metadata.Values(name)
			var v any = values
			if len(values) == 1 {
				v = values[0]
			}
			if err := obj.field(name, v); err != nil {
				return err
			}
		}
	}
	if u.Content != nil {
		if err := obj.field(FieldContent, *u.Content); err != nil {
			return err
		}
	}
	if u.WriteLimitReached {
		if err := obj.field(FieldWriteLimitReached, "true"); err != nil {
			return err
		}
	}
	if u.EmbeddedLimitReached {
		if err := obj.field(FieldEmbeddedLimitReached, "true"); err != nil {
			return err
		}
	}
	if u.Failure != nil {
		if err := obj.field(FieldContainerException, u.Failure.String()); err != nil {
			return err
		}
	}
	return obj.close()
}

// objectWriter emits one JSON object field by field.
type objectWriter struct {
	w      *bufio.Writer
	fields int
}

func (o *objectWriter) field(name string, value any) error {
	if o.fields == 0 {
		o.w.WriteByte('{')
	} else {
		o.w.WriteByte(',')
	}
	o.fields++
	key, err := marshal(name)
	if err != nil {
		return fmt.Errorf("encode key %q: %w", name, err)
	}
	val, err := marshal(value)
	if err != nil {
		return fmt.Errorf("encode value of %q: %w", name, err)
	}
	o.w.Write(key)
	o.w.WriteByte(':')
	o.w.Write(val)
	return nil
}

// marshal encodes v without HTML escaping so markup content stays readable.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (o *objectWriter) close() error {
	if o.fields == 0 {
		_, err := o.w.WriteString("{}")
		return err
	}
	return o.w.WriteByte('}')
}

// Read parses a record list. Every field, reserved ones included, becomes
// metadata in document order; arrays become multi-valued names.
func Read(r io.Reader) ([]*models.Metadata, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	var out []*models.Metadata
	for dec.More() {
		md, err := readRecord(dec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(out), err)
		}
		out = append(out, md)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return out, nil
}

func readRecord(dec *json.Decoder) (*models.Metadata, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	md := models.NewMetadata()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected key %v", ErrNotArray, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			md.Add(name, single)
			continue
		}
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, fmt.Errorf("field %q: want string or string array: %w", name, err)
		}
		for _, v := range many {
			md.Add(name, v)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return md, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrNotArray, want, tok)
	}
	return nil
}
