// Package extract recursively decomposes a container document into an ordered
// list of metadata-plus-content records while enforcing a cap on embedded
// units and a request-wide cap on extracted characters.
package extract

import "github.com/hyperjump/rmeta/internal/models"

// Input is one unit handed to a Decoder.
type Input struct {
	Data []byte
	// Name is the resource name, when known (file name or archive entry).
	Name string
	// ContentType is an optional hint from the container or the caller.
	ContentType string
	// Password is the request credential for encrypted containers.
	Password string
}

// Embedded is a child unit discovered by a Decoder. Containers that would
// have to decompress a child set Open instead of Data; the Aggregator calls
// it only when the child is actually visited, so children cut off by the
// embedded-unit cap cost nothing.
type Embedded struct {
	Name        string
	ContentType string
	Data        []byte
	Open        func() ([]byte, error)
}

// Decoder understands one or more formats. Decode writes text to sink,
// populates md, and returns the embedded children in document order. On
// failure it returns a *DecodeFailure; whatever was written to sink and md
// before the failure is kept, as are any children returned with the error.
type Decoder interface {
	Decode(in *Input, sink *Sink, md *models.Metadata) ([]Embedded, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(in *Input, sink *Sink, md *models.Metadata) ([]Embedded, error)

// Decode calls f.
func (f DecoderFunc) Decode(in *Input, sink *Sink, md *models.Metadata) ([]Embedded, error) {
	return f(in, sink, md)
}
