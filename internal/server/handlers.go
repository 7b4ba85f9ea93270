package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/rmeta/internal/jsonlist"
	"github.com/hyperjump/rmeta/internal/storage"
	"go.uber.org/zap"
)

// handleRmeta extracts the raw request body.
func (s *Server) handleRmeta(w http.ResponseWriter, r *http.Request) {
	body, err := s.requestBody(w, r)
	if err != nil {
		s.respondBodyError(w, err)
		return
	}
	defer body.Close()
	s.extract(w, r, body, resourceName(r))
}

// handleRmetaForm extracts the first file part of a multipart upload.
func (s *Server) handleRmetaForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, "no file part in form")
			return
		}
		if err != nil {
			s.respondBodyError(w, err)
			return
		}
		if part.FileName() == "" {
			_ = part.Close()
			continue
		}
		defer part.Close()
		s.extract(w, r, part, part.FileName())
		return
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defaults := s.config.ExtractDefaults()
	resp := map[string]interface{}{
		"config": map[string]interface{}{
			"handler":                defaults.Handler,
			"max_embedded_resources": defaults.MaxEmbedded,
			"write_limit":            defaults.WriteLimit,
			"stop_on_write_limit":    defaults.StopOnWriteLimit,
			"max_upload_bytes":       s.config.Server.MaxUploadBytes,
			"database_path":          s.config.Storage.DatabasePath,
		},
	}
	if s.cache != nil {
		count, err := s.cache.Count(ctx)
		if err != nil {
			s.logger.Error("status: count results failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		hits, err := s.cache.Hits(ctx)
		if err != nil {
			s.logger.Error("status: count hits failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["cached_results"] = count
		resp["cache_hits"] = hits
		if diskBytes, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// requestBody wraps the body with the upload cap and gzip decoding.
func (s *Server) requestBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip body: %w", errBadRequest, err)
		}
		return &cappedReader{ReadCloser: gz, left: s.config.Server.MaxUploadBytes, limit: s.config.Server.MaxUploadBytes}, nil
	}
	return body, nil
}

// cappedReader fails with *http.MaxBytesError once more than limit bytes
// have been read. It bounds decompressed request bodies.
type cappedReader struct {
	io.ReadCloser
	left  int64
	limit int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, &http.MaxBytesError{Limit: c.limit}
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.ReadCloser.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, &http.MaxBytesError{Limit: c.limit}
	}
	return n, err
}

// extract runs one request end to end: config, cache lookup, extraction,
// serialization.
func (s *Server) extract(w http.ResponseWriter, r *http.Request, body io.Reader, name string) {
	ctx := r.Context()
	cfg, err := requestConfig(r, s.config.ExtractDefaults())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(body)
	if err != nil {
		s.respondBodyError(w, err)
		return
	}
	log := s.logger.With(
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("resource", name),
		zap.Int("bytes", len(data)),
	)

	var key string
	if s.cache != nil {
		key = storage.Key(data, cfg)
		cached, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			s.observeCache(true)
			log.Debug("cache hit", zap.String("key", key))
			s.respondRaw(w, http.StatusOK, cached)
			return
		case errors.Is(err, storage.ErrNotFound):
			s.observeCache(false)
		default:
			log.Warn("cache lookup failed", zap.Error(err))
		}
	}

	start := time.Now()
	res, err := s.extractor.ExtractNamed(bytes.NewReader(data), name, cfg)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveResult(res, elapsed)
	}
	out, err := jsonlist.Marshal(res)
	if err != nil {
		log.Error("serialize failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Debug("extracted",
		zap.Int("units", res.Len()),
		zap.Int("failures", len(res.Failures())),
		zap.Duration("elapsed", elapsed),
	)

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, name, res.Len(), out); err != nil {
			log.Warn("cache store failed", zap.Error(err))
		}
	}
	s.respondRaw(w, http.StatusOK, out)
}

func (s *Server) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCache(hit)
	}
}

// respondBodyError maps body read errors: 413 over the cap, 400 otherwise.
func (s *Server) respondBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
		return
	}
	s.respondError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) respondRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
