// Package rest exposes the suggest service over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/RediSearch/suggestd/index"
	"github.com/RediSearch/suggestd/suggest"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultMaxBodySize bounds update bodies when no limit is configured
const DefaultMaxBodySize = 1 << 20

type contextKey string

const contextKeyRequestID contextKey = "request_id"

type Handler struct {
	svc         *suggest.Service
	logger      *log.Logger
	maxBodySize int64
}

func NewHandler(svc *suggest.Service, maxBodySize int64, logger *log.Logger) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{svc: svc, logger: logger.WithPrefix("rest"), maxBodySize: maxBodySize}
}

// RegisterRoutes mounts every route, including the variants carrying an ignored type segment
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for _, prefix := range []string{"/{index}", "/{index}/{type}"} {
		mux.HandleFunc("GET "+prefix+"/_fsuggest", h.wrap(h.handleSuggest))
		mux.HandleFunc("GET "+prefix+"/_fsuggest/pwords", h.wrap(h.handlePopularWords))
		mux.HandleFunc("GET "+prefix+"/_famouskeys", h.wrap(h.handleFamousKeys))
		for _, method := range []string{http.MethodPost, http.MethodPut} {
			mux.HandleFunc(method+" "+prefix+"/_fsuggest/create", h.wrap(h.handleCreate))
			mux.HandleFunc(method+" "+prefix+"/_fsuggest/update/{mode}", h.wrap(h.maxBody(h.handleUpdate)))
		}
	}
	mux.HandleFunc("DELETE /{index}/_fsuggest", h.wrap(h.handleInvalidate))
	mux.HandleFunc("GET /_fsuggest/_stats", h.wrap(h.handleStats))
}

func (h *Handler) wrap(next http.HandlerFunc) http.HandlerFunc {
	return withRequestID(h.withRecover(h.withLogging(next)))
}

// withRequestID adds a request id to the context and response headers
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next(w, r.WithContext(context.WithValue(r.Context(), contextKeyRequestID, id)))
	}
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func (h *Handler) withRecover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				h.logger.Error("Panic recovered", "method", r.Method, "path", r.URL.Path, "err", p,
					"stack", string(debug.Stack()), "request_id", requestID(r.Context()))
				h.writeError(w, r, errors.New("internal error"))
			}
		}()
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		h.logger.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"duration_ms", time.Since(st).Milliseconds(), "request_id", requestID(r.Context()))
	}
}

func (h *Handler) maxBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
		}
		next(w, r)
	}
}

// writeResult waits for a query future and writes its outcome
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, f *suggest.Future[*index.Result]) {
	res, err := f.Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, translate(res))
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	p, err := decodeParams(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b := p.suggest(h.svc.Suggest(r.PathValue("index")))
	h.writeResult(w, r, b.Execute(r.Context()))
}

func (h *Handler) handlePopularWords(w http.ResponseWriter, r *http.Request) {
	p, err := decodeParams(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b := p.popularWords(h.svc.PopularWords(r.PathValue("index")))
	h.writeResult(w, r, b.Execute(r.Context()))
}

func (h *Handler) handleFamousKeys(w http.ResponseWriter, r *http.Request) {
	p, err := decodeParams(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b := p.famousKeys(h.svc.FamousKeys(r.PathValue("index")))
	h.writeResult(w, r, b.Execute(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Create(r.Context(), r.PathValue("index")).Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, createResponse{Acknowledged: res.Acknowledged})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req suggest.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var mbe *http.MaxBytesError
		if !errors.As(err, &mbe) {
			err = fmt.Errorf("%w: %v", suggest.ErrInvalidParameter, err)
		}
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.Update(r.Context(), r.PathValue("index"), r.PathValue("mode"), req).Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, updateResponse{Took: res.Took.Milliseconds(), Acknowledged: res.Acknowledged})
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	h.svc.Invalidate(r.PathValue("index"))
	h.writeJSON(w, r, http.StatusOK, createResponse{Acknowledged: true})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.svc.Stats())
}
