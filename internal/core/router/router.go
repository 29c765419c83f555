package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/errs"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/observability"
	"github.com/mohammed-shakir/wfs-extractor/internal/jobs"
)

// caller identity set by the security proxy in front of the service
const (
	HeaderSecUsername = "sec-username"
	HeaderSecRoles    = "sec-roles"
)

const maxRequestBody = 1 << 20

// ExtractionService runs extraction requests and reports on their jobs.
type ExtractionService interface {
	Run(ctx context.Context, req model.ExtractionRequest) (model.ExtractionResult, error)
	Job(ctx context.Context, id string) (jobs.Job, error)
	Formats() []model.Format
}

// Routes mounts the extraction API.
func Routes(logger *slog.Logger, svc ExtractionService) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/extractions", HandleCreate(logger, svc))
		r.Get("/extractions/{id}", HandleGet(logger, svc))
		r.Get("/formats", HandleFormats(svc))
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HandleCreate decodes an extraction request and runs it synchronously.
func HandleCreate(logger *slog.Logger, svc ExtractionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/extractions", sw.code, time.Since(start).Seconds())
		}()

		var doc model.RequestDoc
		dec := json.NewDecoder(http.MaxBytesReader(sw, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			writeJSON(sw, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), Kind: "bad_request"})
			return
		}
		req, err := doc.ToRequest(SecurityFrom(r))
		if err != nil {
			writeJSON(sw, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: errs.Kind(err)})
			return
		}

		res, err := svc.Run(r.Context(), req)
		if err != nil {
			code := StatusFor(err)
			if code >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "extraction request failed", "job_id", res.JobID, "err", err)
			}
			writeJSON(sw, code, struct {
				errorBody
				JobID string `json:"job_id,omitempty"`
			}{errorBody{Error: err.Error(), Kind: errs.Kind(err)}, res.JobID})
			return
		}
		writeJSON(sw, http.StatusOK, res)
	}
}

// HandleGet returns the stored state of one job.
func HandleGet(logger *slog.Logger, svc ExtractionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/extractions/{id}", sw.code, time.Since(start).Seconds())
		}()

		id := strings.TrimSpace(chi.URLParam(r, "id"))
		job, err := svc.Job(r.Context(), id)
		if err != nil {
			code := StatusFor(err)
			if code >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "job lookup failed", "job_id", id, "err", err)
			}
			writeJSON(sw, code, errorBody{Error: err.Error(), Kind: errs.Kind(err)})
			return
		}
		writeJSON(sw, http.StatusOK, job)
	}
}

func HandleFormats(svc ExtractionService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]model.Format{"formats": svc.Formats()})
	}
}

// SecurityFrom reads the caller identity headers.
func SecurityFrom(r *http.Request) model.SecurityContext {
	return model.SecurityContext{
		Username: strings.TrimSpace(r.Header.Get(HeaderSecUsername)),
		Roles:    model.ParseRoles(r.Header.Get(HeaderSecRoles)),
	}
}

// StatusFor maps an extraction error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errs.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrUnsupportedFormat), errors.Is(err, errs.ErrUnsupportedGeometryType),
		errors.Is(err, errs.ErrUnsupportedProtocol), errors.Is(err, model.ErrInvalidJobID):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrReprojection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
