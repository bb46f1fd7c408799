package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/scanner"
)

// ScannerHandler exposes manual control over the reconciliation pass.
type ScannerHandler struct {
	scanner *scanner.Scanner

	// base is the lifetime context a triggered pass runs under. A pass
	// started over HTTP must not die with the request connection, so it
	// is detached from the request context and bound to the server's
	// lifetime instead.
	base context.Context
}

// NewScannerHandler creates a new ScannerHandler. base bounds the
// lifetime of manually triggered passes; nil falls back to
// context.Background().
func NewScannerHandler(s *scanner.Scanner, base context.Context) *ScannerHandler {
	if base == nil {
		base = context.Background()
	}
	return &ScannerHandler{scanner: s, base: base}
}

// ScannerStatusResponse is the body of GET /api/v1/scanner/status.
type ScannerStatusResponse struct {
	Running  bool           `json:"running"`
	LastPass *scanner.Stats `json:"last_pass,omitempty"`
}

// Run handles POST /api/v1/scanner/run (admin only).
//
// Triggers one pass in the background and returns 202 Accepted
// immediately; the pass outcome lands in /scanner/status and the
// catalogue. Returns 409 Conflict when a pass is already running.
func (h *ScannerHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		InternalServerError(w, "Scanner not initialized")
		return
	}
	if h.scanner.IsRunning() {
		Conflict(w, "A scan pass is already running")
		return
	}

	go func() {
		if _, err := h.scanner.RunPass(h.base); err != nil {
			if errors.Is(err, scanner.ErrPassInProgress) {
				// Lost the race against the scheduled ticker; the
				// running pass covers the request's intent.
				return
			}
			logger.Error("Manually triggered scan pass failed", logger.Err(err))
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "pass started",
	})
}

// Status handles GET /api/v1/scanner/status.
func (h *ScannerHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		InternalServerError(w, "Scanner not initialized")
		return
	}

	WriteJSONOK(w, ScannerStatusResponse{
		Running:  h.scanner.IsRunning(),
		LastPass: h.scanner.LastPass(),
	})
}
