package extract

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/hyperjump/rmeta/internal/models"
	"go.uber.org/zap"
)

// Aggregator drives a Decoder over a document and its embedded units. It holds
// no per-request state, so one Aggregator may serve concurrent Extract calls.
type Aggregator struct {
	decoder Decoder
	logger  *zap.Logger
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets a logger for debug output (units visited, failures, limits).
func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// NewAggregator returns an Aggregator that decodes every unit with decoder.
func NewAggregator(decoder Decoder, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{decoder: decoder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// pending is a unit waiting on the work stack.
type pending struct {
	input Input
	open  func() ([]byte, error)
	depth int
	path  string
}

// walk is the mutable state of one Extract call.
type walk struct {
	cfg      Config
	budget   *Budget
	result   *models.Result
	embedded int
	stack    []pending
}

// Extract reads r completely and decodes it and its embedded units in
// pre-order. Decode failures, write-limit truncation and the embedded-unit
// cap are recorded in the result; the only error returned is a failure to
// read r.
func (a *Aggregator) Extract(r io.Reader, cfg Config) (*models.Result, error) {
	return a.ExtractNamed(r, "", cfg)
}

// ExtractNamed is Extract with a resource name for the root unit, used for
// type detection and recorded as resourceName.
func (a *Aggregator) ExtractNamed(r io.Reader, name string, cfg Config) (*models.Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read root stream: %w", err)
	}
	w := &walk{
		cfg:    cfg,
		budget: NewBudget(cfg.WriteLimit),
		result: &models.Result{},
	}
	w.stack = append(w.stack, pending{
		input: Input{Data: data, Name: name, Password: cfg.Password},
	})
	a.run(w)
	return w.result, nil
}

func (a *Aggregator) run(w *walk) {
	for len(w.stack) > 0 {
		p := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		if p.depth > 0 {
			if w.cfg.MaxEmbedded >= 0 && w.embedded >= w.cfg.MaxEmbedded {
				w.result.Root().EmbeddedLimitReached = true
				a.logger.Debug("embedded resource limit reached",
					zap.Int("max_embedded", w.cfg.MaxEmbedded),
					zap.String("skipped", p.path),
				)
				return
			}
			w.embedded++
		}

		unit, children := a.visit(w, p)
		w.result.Units = append(w.result.Units, unit)

		if unit.WriteLimitReached && w.cfg.StopOnWriteLimit {
			a.logger.Debug("write limit reached, stopping",
				zap.Int("unit", unit.Index),
				zap.Int("write_limit", w.cfg.WriteLimit),
			)
			return
		}

		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			name := child.Name
			if name == "" {
				name = "embedded-" + strconv.Itoa(i+1)
			}
			w.stack = append(w.stack, pending{
				input: Input{
					Data:        child.Data,
					Name:        name,
					ContentType: child.ContentType,
					Password:    w.cfg.Password,
				},
				open:  child.Open,
				depth: p.depth + 1,
				path:  p.path + "/" + name,
			})
		}
	}
}

// visit decodes one unit and finalizes its record.
func (a *Aggregator) visit(w *walk, p pending) (*models.Unit, []Embedded) {
	md := models.NewMetadata()
	unit := &models.Unit{Index: len(w.result.Units), Metadata: md}
	if p.input.Name != "" {
		md.Set(models.ResourceName, p.input.Name)
	}

	sink := NewSink(w.budget, w.cfg.Handler)
	var (
		children []Embedded
		failure  *models.Failure
	)
	if err := a.load(&p); err != nil {
		failure = failureFrom(Malformed(err))
	} else {
		children, failure = a.decode(&p.input, sink, md)
	}

	if p.depth > 0 {
		md.Set(models.EmbeddedDepth, strconv.Itoa(p.depth))
		md.Set(models.EmbeddedResourcePath, p.path)
	}
	switch w.cfg.Digest {
	case DigestMD5:
		sum := md5.Sum(p.input.Data)
		md.Set(models.DigestMD5, hex.EncodeToString(sum[:]))
	case DigestSHA256:
		sum := sha256.Sum256(p.input.Data)
		md.Set(models.DigestSHA256, hex.EncodeToString(sum[:]))
	}

	unit.Content = sink.Close(md)
	unit.WriteLimitReached = sink.LimitReached()
	unit.Failure = failure
	if failure != nil {
		a.logger.Debug("unit decode failed",
			zap.Int("unit", unit.Index),
			zap.String("path", p.path),
			zap.String("category", failure.Category),
			zap.String("message", failure.Message),
		)
	}
	return unit, children
}

// load materializes the bytes of a lazily opened child.
func (a *Aggregator) load(p *pending) (err error) {
	if p.open == nil {
		return nil
	}
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("open %s: %v", p.path, v)
		}
	}()
	data, err := p.open()
	if err != nil {
		return err
	}
	p.input.Data = data
	p.open = nil
	return nil
}

// decode runs the decoder, converting errors and panics into a Failure so
// that nothing crosses the unit boundary.
func (a *Aggregator) decode(in *Input, sink *Sink, md *models.Metadata) (children []Embedded, failure *models.Failure) {
	defer func() {
		if v := recover(); v != nil {
			a.logger.Warn("decoder panic", zap.String("resource", in.Name), zap.Any("panic", v))
			failure = failureFromPanic(v)
		}
	}()
	children, err := a.decoder.Decode(in, sink, md)
	if err != nil {
		failure = failureFrom(err)
	}
	return children, failure
}
