package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/rmeta/internal/extract"
)

// Request headers understood by the rmeta endpoints.
const (
	HeaderMaxEmbedded  = "maxEmbeddedResources"
	HeaderWriteLimit   = "writeLimit"
	HeaderPassword     = "Password"
	HeaderThrowOnLimit = "throwOnWriteLimitReached"
	HeaderDigest       = "digest"
)

// errBadRequest marks request errors that map to 400.
var errBadRequest = errors.New("bad request")

// requestConfig builds the extraction config for r from the server defaults,
// the {handler} path segment and the request headers.
func requestConfig(r *http.Request, defaults extract.Config) (extract.Config, error) {
	cfg := defaults
	if h := chi.URLParam(r, "handler"); h != "" {
		cfg.Handler = extract.ParseHandlerMode(h)
	}
	var err error
	if cfg.MaxEmbedded, err = intHeader(r, HeaderMaxEmbedded, cfg.MaxEmbedded); err != nil {
		return cfg, err
	}
	if cfg.WriteLimit, err = intHeader(r, HeaderWriteLimit, cfg.WriteLimit); err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderThrowOnLimit)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: %s must be true or false, got %q", errBadRequest, HeaderThrowOnLimit, v)
		}
		cfg.StopOnWriteLimit = b
	}
	if v := r.Header.Get(HeaderPassword); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderDigest)); v != "" {
		cfg.Digest = strings.ToLower(v)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return cfg, nil
}

// intHeader parses a non-negative integer header; an absent header keeps def.
func intHeader(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.Header.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", errBadRequest, name, v)
	}
	return n, nil
}

// resourceName takes the file name from Content-Disposition, if any.
func resourceName(r *http.Request) string {
	cd := r.Header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}
