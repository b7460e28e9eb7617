// Package api serves the stored catalog over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/catalogsync/internal/export"
	"github.com/FranksOps/catalogsync/internal/metrics"
	"github.com/FranksOps/catalogsync/internal/notify"
	"github.com/FranksOps/catalogsync/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
)

// maxBodySize bounds PUT request bodies.
const maxBodySize = 1 << 20

// Broadcaster delivers a notification to live subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg string) int
}

// Options wires the API to the rest of the process.
type Options struct {
	Store storage.Backend
	// Notifier receives one message per successful catalog operation. Optional.
	Notifier Broadcaster
	// Live serves the /ws channel. Optional.
	Live http.Handler
	// Status reports scheduler and last cycle state for /status. Optional.
	Status func() any
	Logger *slog.Logger
}

type server struct {
	store    storage.Backend
	notifier Broadcaster
	status   func() any
	logger   *slog.Logger
	policy   *bluemonday.Policy
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &server{
		store:    opts.Store,
		notifier: opts.Notifier,
		status:   opts.Status,
		logger:   opts.Logger,
		policy:   bluemonday.StrictPolicy(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", metrics.Handler())
	if opts.Live != nil {
		r.Handle("/ws", opts.Live)
	}

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Get("/export", s.exportProducts)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getProduct)
			r.Put("/", s.updateProduct)
			r.Delete("/", s.deleteProduct)
		})
	})

	return r
}

func (s *server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.notify(r.Context(), notify.Loaded(len(products)))
	writeJSON(w, http.StatusOK, products)
}

func (s *server) exportProducts(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if !validFormat(format) {
		writeDetail(w, http.StatusBadRequest, "unsupported export format")
		return
	}

	products, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.`+format+`"`)
	if err := export.Write(w, format, products); err != nil {
		s.logger.Error("export failed", "format", format, "err", err)
	}
}

func (s *server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.notify(r.Context(), notify.Found(id))
	writeJSON(w, http.StatusOK, p)
}

// updateRequest is the PUT body. Absent or empty fields are left unchanged.
type updateRequest struct {
	Name  *string `json:"name"`
	Price *string `json:"price"`
}

func (s *server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	req, err := readUpdate(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := storage.Update{
		Name:  s.clean(req.Name),
		Price: s.clean(req.Price),
	}

	p, err := s.store.Update(r.Context(), id, upd)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.notify(r.Context(), notify.Updated(id))
	writeJSON(w, http.StatusOK, p)
}

func (s *server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storeError(w, r, err)
		return
	}
	s.notify(r.Context(), notify.Deleted(id))
	writeDetail(w, http.StatusOK, "product deleted")
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, map[string]string{"state": "unknown"})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// readUpdate takes fields from a JSON body, falling back to query parameters
// when the body is empty.
func readUpdate(r *http.Request) (updateRequest, error) {
	var req updateRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return req, err
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return req, err
		}
		return req, nil
	}

	q := r.URL.Query()
	if q.Has("name") {
		v := q.Get("name")
		req.Name = &v
	}
	if q.Has("price") {
		v := q.Get("price")
		req.Price = &v
	}
	return req, nil
}

// clean strips markup from a client value. Empty results mean "unchanged".
func (s *server) clean(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(*v)))
	if out == "" {
		return nil
	}
	return &out
}

func (s *server) notify(ctx context.Context, msg string) {
	if s.notifier != nil {
		s.notifier.Broadcast(ctx, msg)
	}
}

func (s *server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "product not found")
		return
	}
	s.internalError(w, r, err)
}

func (s *server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	writeDetail(w, http.StatusInternalServerError, "internal error")
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func validFormat(format string) bool {
	for _, f := range export.Formats {
		if f == format {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
