package service

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"github.com/ekisa-team/scanbill/internal/billing"
	"github.com/ekisa-team/scanbill/internal/detect"
	"github.com/ekisa-team/scanbill/internal/metrics"
)

// ErrDetectorUnavailable is returned while no exported model is loaded.
var ErrDetectorUnavailable = errors.New("detector not available")

// Detector finds objects in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]detect.Detection, error)
}

// ScanResult is what one image produced.
type ScanResult struct {
	Detections []detect.Detection `json:"detections"`
	Products   []billing.Product  `json:"products"`
}

// Scanner turns images into priced products.
type Scanner struct {
	mu       sync.RWMutex
	detector Detector
	catalog  *billing.Catalog
	metrics  *metrics.Metrics
}

// NewScanner creates a scanner. detector may be nil until SetDetector.
func NewScanner(detector Detector, catalog *billing.Catalog, m *metrics.Metrics) *Scanner {
	return &Scanner{detector: detector, catalog: catalog, metrics: m}
}

// SetDetector swaps the detector and returns the previous one.
func (s *Scanner) SetDetector(d Detector) Detector {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.detector
	s.detector = d
	return prev
}

// SetCatalog swaps the price list.
func (s *Scanner) SetCatalog(c *billing.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
}

// Ready reports whether a detector is loaded.
func (s *Scanner) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector != nil
}

// Scan decodes an image, detects objects and prices the confident ones, one
// product line per distinct product. Every detection is still reported.
func (s *Scanner) Scan(ctx context.Context, r io.Reader) (*ScanResult, error) {
	img, err := detect.DecodeImage(r)
	if err != nil {
		return nil, err
	}
	return s.ScanImage(ctx, img)
}

// ScanImage is Scan on a decoded image.
func (s *Scanner) ScanImage(ctx context.Context, img image.Image) (*ScanResult, error) {
	s.mu.RLock()
	detector, catalog := s.detector, s.catalog
	s.mu.RUnlock()

	if detector == nil {
		return nil, ErrDetectorUnavailable
	}

	start := time.Now()
	dets, err := detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}

	classes := make([]string, len(dets))
	for i, d := range dets {
		classes[i] = d.Class
	}
	s.metrics.ObserveDetection(classes, time.Since(start))

	cart := billing.NewCart(catalog, billing.WithCooldown(0))
	cart.AddScans(Scans(dets))

	return &ScanResult{Detections: dets, Products: cart.Products()}, nil
}

// Scans converts detections to the cart's input.
func Scans(dets []detect.Detection) []billing.Scan {
	scans := make([]billing.Scan, len(dets))
	for i, d := range dets {
		scans[i] = billing.Scan{Class: d.Class, Confidence: d.Confidence}
	}
	return scans
}
