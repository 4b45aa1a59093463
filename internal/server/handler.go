/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kentakayama/nzcp-over-http/internal/domain"
	"github.com/kentakayama/nzcp-over-http/internal/domain/service"
	"github.com/kentakayama/nzcp-over-http/internal/nzcp"
)

const (
	maxRequestBodyBytes = 1 << 20 // 1 MiB is far above any pass payload.
	maxRecentLimit      = 100
)

// passVerifier is satisfied by *nzcp.Verifier.
type passVerifier interface {
	Verify(ctx context.Context, payload string) *nzcp.Result
}

type handler struct {
	verifier passVerifier
	audit    *service.Audit
	metrics  http.Handler
	logger   *log.Logger
	router   chi.Router
}

type responseSpec struct {
	status      int
	body        []byte
	contentType string
}

// badRequestBody is the 400 shape clients of the verify endpoint already parse.
type badRequestBody struct {
	StatusCode int      `json:"statusCode"`
	Message    []string `json:"message"`
	Error      string   `json:"error"`
}

func newHandler(verifier passVerifier, audit *service.Audit, metrics http.Handler, logger *log.Logger) (*handler, error) {
	if verifier == nil {
		return nil, errors.New("no verifier")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &handler{
		verifier: verifier,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Post("/nzcp/v1/verify", h.verify)
	r.Get("/healthz", h.healthz)
	if audit != nil {
		r.Get("/nzcp/v1/verifications", h.verifications)
		r.Get("/nzcp/v1/verifications/{id}", h.verification)
		r.Get("/nzcp/v1/incidents/{ref}", h.incident)
	}
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	h.router = r
	return h, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		h.logger.Printf("content type mismatch: expected application/json, actual %v", r.Header.Get("Content-Type"))
		http.Error(w, "This endpoint only accepts Content-Type: application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		h.logger.Printf("failed reading request body: %v", err)
		h.badRequest(w, msgInvalidRequestBody)
		return
	}
	if len(body) > maxRequestBodyBytes {
		h.logger.Printf("request body exceeds %d bytes", maxRequestBodyBytes)
		h.writeResponse(w, responseSpec{status: http.StatusRequestEntityTooLarge})
		return
	}

	var req verifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("failed to parse request body: %v", err)
		h.badRequest(w, msgInvalidRequestBody)
		return
	}
	if messages := req.validate(); messages != nil {
		h.badRequest(w, messages...)
		return
	}

	res := h.verifier.Verify(r.Context(), req.Payload)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeResponse(w, responseSpec{
		status:      http.StatusOK,
		body:        []byte("OK"),
		contentType: "text/plain",
	})
}

func (h *handler) verifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRecentLimit {
			h.badRequest(w, "limit must be between 1 and "+strconv.Itoa(maxRecentLimit))
			return
		}
		limit = n
	}

	summary, err := h.audit.Summarise(r.Context(), limit)
	if err != nil {
		h.logger.Printf("failed to summarise verifications: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *handler) verification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.badRequest(w, "id must be a positive integer")
		return
	}
	v, err := h.audit.Verification(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Printf("failed to look up verification %d: %v", id, err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

func (h *handler) incident(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	incident, err := h.audit.Incident(r.Context(), ref)
	if errors.Is(err, domain.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Printf("failed to look up incident %s: %v", ref, err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ref":        incident.Ref,
		"detail":     incident.Detail,
		"created_at": incident.CreatedAt,
	})
}

func (h *handler) badRequest(w http.ResponseWriter, messages ...string) {
	h.writeJSON(w, http.StatusBadRequest, badRequestBody{
		StatusCode: http.StatusBadRequest,
		Message:    messages,
		Error:      http.StatusText(http.StatusBadRequest),
	})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("failed to encode response: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeResponse(w, responseSpec{
		status:      status,
		body:        body,
		contentType: "application/json",
	})
}

func (h *handler) writeResponse(w http.ResponseWriter, spec responseSpec) {
	if len(spec.body) > 0 {
		for k, v := range defaultHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", spec.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(spec.body)))
		w.WriteHeader(spec.status)
		if _, err := w.Write(spec.body); err != nil {
			h.logger.Printf("failed writing response body: %v", err)
		}
		return
	}

	w.WriteHeader(spec.status)
}

var defaultHeaders = map[string]string{
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}
