package extract

import (
	"errors"
	"fmt"
	"strings"
)

// Unlimited disables a bound.
const Unlimited = -1

// HandlerMode selects how extracted text is shaped.
type HandlerMode string

const (
	// HandlerMarkup wraps text in a minimal XHTML document.
	HandlerMarkup HandlerMode = "xml"
	// HandlerText emits plain text.
	HandlerText HandlerMode = "text"
	// HandlerIgnore discards all content.
	HandlerIgnore HandlerMode = "ignore"
)

// Digest algorithms for per-unit digests.
const (
	DigestNone   = ""
	DigestMD5    = "md5"
	DigestSHA256 = "sha256"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid extraction config")

// ParseHandlerMode maps a handler name to a mode. Unknown or empty names fall
// back to markup.
func ParseHandlerMode(name string) HandlerMode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text", "txt":
		return HandlerText
	case "ignore":
		return HandlerIgnore
	default:
		return HandlerMarkup
	}
}

// Config holds the per-request extraction settings. A Config is treated as
// immutable once passed to Extract.
type Config struct {
	Handler HandlerMode
	// MaxEmbedded caps the number of non-root units visited; 0 means root
	// only and Unlimited means no cap.
	MaxEmbedded int
	// WriteLimit caps the characters of content across the whole document.
	WriteLimit int
	// StopOnWriteLimit halts traversal after the unit that exhausted the
	// write limit. When false, later units are still visited and any that
	// try to write are flagged.
	StopOnWriteLimit bool
	// Password is handed to decoders of encrypted containers.
	Password string
	// Digest selects a per-unit digest of the raw bytes.
	Digest string
}

// DefaultConfig returns a markup config with no bounds.
func DefaultConfig() Config {
	return Config{
		Handler:          HandlerMarkup,
		MaxEmbedded:      Unlimited,
		WriteLimit:       Unlimited,
		StopOnWriteLimit: true,
	}
}

// Validate checks limits and the digest algorithm.
func (c Config) Validate() error {
	if c.MaxEmbedded < Unlimited {
		return fmt.Errorf("%w: max embedded resources must be >= 0, got %d", ErrInvalidConfig, c.MaxEmbedded)
	}
	if c.WriteLimit < Unlimited {
		return fmt.Errorf("%w: write limit must be >= 0, got %d", ErrInvalidConfig, c.WriteLimit)
	}
	switch c.Handler {
	case HandlerMarkup, HandlerText, HandlerIgnore:
	default:
		return fmt.Errorf("%w: unknown handler %q", ErrInvalidConfig, c.Handler)
	}
	switch c.Digest {
	case DigestNone, DigestMD5, DigestSHA256:
	default:
		return fmt.Errorf("%w: unknown digest %q", ErrInvalidConfig, c.Digest)
	}
	return nil
}

// Fingerprint renders the settings that affect the result, in a fixed order.
// The password is left out; callers that key on it must hash it themselves.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("handler=%s;embedded=%d;write=%d;stop=%t;digest=%s",
		c.Handler, c.MaxEmbedded, c.WriteLimit, c.StopOnWriteLimit, c.Digest)
}
