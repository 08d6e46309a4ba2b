// Package http serves the scanner and billing API.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ekisa-team/scanbill/internal/billing"
	"github.com/ekisa-team/scanbill/internal/detect"
	"github.com/ekisa-team/scanbill/internal/metrics"
	"github.com/ekisa-team/scanbill/internal/model"
	"github.com/ekisa-team/scanbill/internal/service"
	"github.com/ekisa-team/scanbill/internal/store"
)

// MaxImageBytes caps a POST /detect body.
const MaxImageBytes = 20 << 20

// Models lists configured models.
type Models interface {
	Snapshots() []model.Snapshot
}

// Server holds the HTTP handlers.
type Server struct {
	scanner *service.Scanner
	billing *service.Billing
	models  Models
	metrics *metrics.Metrics
}

// NewHandler builds the router.
func NewHandler(scanner *service.Scanner, bills *service.Billing, models Models, m *metrics.Metrics) http.Handler {
	s := &Server{scanner: scanner, billing: bills, models: models, metrics: m}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.health)
	r.Get("/models", s.listModels)
	r.Post("/detect", s.detect)
	r.Route("/bills", func(r chi.Router) {
		r.Post("/", s.createBill)
		r.Get("/", s.listBills)
		r.Get("/{id}", s.getBill)
		r.Post("/{id}/email", s.emailBill)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}

// observe logs and measures every request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(r.Method, route, ww.Status(), elapsed)
		slog.Debug("HTTP request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"elapsed", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrBillNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDetectorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, detect.ErrDecodeImage),
		errors.Is(err, billing.ErrNoProducts),
		errors.Is(err, billing.ErrInvalidQuantity),
		errors.Is(err, billing.ErrInvalidTaxRate),
		errors.Is(err, billing.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Detector bool   `json:"detector"`
	Models   int    `json:"models"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Detector: s.scanner.Ready(),
		Models:   len(s.models.Snapshots()),
	})
}

func (s *Server) listModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.models.Snapshots())
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	// Read it all so the cap holds even when the decoder stops early.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.scanner.Scan(r.Context(), bytes.NewReader(body))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createBillRequest struct {
	Products []billing.Product `json:"products"`
	Email    string            `json:"email,omitempty"`
}

func (s *Server) createBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	bill, err := s.billing.Create(r.Context(), req.Products, req.Email)
	if err != nil {
		if bill != nil {
			// Stored, but the receipt could not be sent.
			writeJSON(w, http.StatusAccepted, struct {
				*billing.Bill
				EmailError string `json:"email_error"`
			}{bill, err.Error()})
			return
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

func (s *Server) listBills(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	bills, err := s.billing.List(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) getBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.billing.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) emailBill(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	bill, err := s.billing.Email(r.Context(), chi.URLParam(r, "id"), req.Email)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}
