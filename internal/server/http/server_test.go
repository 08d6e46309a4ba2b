package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/scanbill/internal/billing"
	"github.com/ekisa-team/scanbill/internal/detect"
	"github.com/ekisa-team/scanbill/internal/metrics"
	"github.com/ekisa-team/scanbill/internal/model"
	"github.com/ekisa-team/scanbill/internal/service"
	"github.com/ekisa-team/scanbill/internal/store"
)

type stubDetector struct{}

func (stubDetector) Detect(context.Context, image.Image) ([]detect.Detection, error) {
	return []detect.Detection{{ID: "d1", Class: "apple", Confidence: 0.9, BBox: detect.Box{0.1, 0.1, 0.2, 0.2}}}, nil
}

type stubModels []model.Snapshot

func (m stubModels) Snapshots() []model.Snapshot { return m }

type fixture struct {
	handler http.Handler
	scanner *service.Scanner
}

func newFixture(t *testing.T, detector service.Detector) *fixture {
	t.Helper()
	m := metrics.New()
	catalog := billing.NewCatalog(map[string]billing.ProductInfo{"apple": {Name: "Apple", Price: 1.99}})
	scanner := service.NewScanner(detector, catalog, m)
	bills := service.NewBilling(store.NewMemory(), nil, billing.DefaultTaxRate, m)
	models := stubModels{{ID: "yolov8n", Format: "onnx", Status: model.ModelStatusExported}}

	return &fixture{handler: NewHandler(scanner, bills, models, m), scanner: scanner}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestHealthAndModels(t *testing.T) {
	f := newFixture(t, stubDetector{})

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[healthResponse](t, rec)
	assert.Equal(t, healthResponse{Status: "ok", Detector: true, Models: 1}, health)

	rec = f.do(t, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	models := decode[[]model.Snapshot](t, rec)
	require.Len(t, models, 1)
	assert.Equal(t, model.ModelStatusExported, models[0].Status)
}

func TestDetect(t *testing.T) {
	f := newFixture(t, stubDetector{})

	rec := f.do(t, http.MethodPost, "/detect", pngBytes(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.ScanResult](t, rec)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, "apple", res.Detections[0].Class)
	require.Len(t, res.Products, 1)
	assert.Equal(t, 1.99, res.Products[0].Price)

	rec = f.do(t, http.MethodPost, "/detect", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetect_TooLarge(t *testing.T) {
	f := newFixture(t, stubDetector{})

	// A valid image followed by padding: the decoder alone would never see the excess.
	body := append(pngBytes(t), make([]byte, MaxImageBytes)...)
	rec := f.do(t, http.MethodPost, "/detect", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotEmpty(t, decode[errorBody](t, rec).Error)
}

func TestDetect_NoDetector(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/detect", pngBytes(t))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health := decode[healthResponse](t, f.do(t, http.MethodGet, "/health", nil))
	assert.False(t, health.Detector)
}

func TestBills(t *testing.T) {
	f := newFixture(t, stubDetector{})

	body := `{"products":[{"id":"p1","name":"Apple","price":1.99,"quantity":2}]}`
	rec := f.do(t, http.MethodPost, "/bills", []byte(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decode[billing.Bill](t, rec)
	assert.InDelta(t, 4.38, bill.GrandTotal, 1e-9)

	rec = f.do(t, http.MethodGet, "/bills/"+bill.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bill.ID, decode[billing.Bill](t, rec).ID)

	rec = f.do(t, http.MethodPost, "/bills/"+bill.ID+"/email", []byte(`{"email":"jo@example.com"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "jo@example.com", decode[billing.Bill](t, rec).CustomerEmail)

	rec = f.do(t, http.MethodGet, "/bills?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]billing.Bill](t, rec), 1)
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, billing.Message) error {
	return errors.New("smtp: connection refused")
}

func TestBills_EmailFailureKeepsBill(t *testing.T) {
	bills := service.NewBilling(store.NewMemory(), failingMailer{}, billing.DefaultTaxRate, nil)
	handler := NewHandler(service.NewScanner(nil, nil, nil), bills, stubModels{}, nil)

	body := `{"products":[{"id":"p1","name":"Apple","price":1.99,"quantity":1}],"email":"jo@example.com"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bills", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decode[struct {
		ID         string  `json:"id"`
		GrandTotal float64 `json:"grand_total"`
		EmailError string  `json:"email_error"`
	}](t, rec)
	assert.Contains(t, resp.EmailError, "connection refused")
	assert.InDelta(t, 2.19, resp.GrandTotal, 1e-9)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bills/"+resp.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[billing.Bill](t, rec).CustomerEmail)
}

func TestBills_Errors(t *testing.T) {
	f := newFixture(t, stubDetector{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/bills", "{", http.StatusBadRequest},
		{"no products", http.MethodPost, "/bills", `{"products":[]}`, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/bills", `{"products":[{"name":"A","price":1}]}`, http.StatusBadRequest},
		{"unknown bill", http.MethodGet, "/bills/nope", "", http.StatusNotFound},
		{"email unknown bill", http.MethodPost, "/bills/nope/email", `{"email":"jo@example.com"}`, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/bills?limit=x", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, []byte(tt.body))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[errorBody](t, rec).Error)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, stubDetector{})
	f.do(t, http.MethodGet, "/health", nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `scanbill_http_requests_total{code="200",method="GET",route="/health"} 1`))
}
