package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	ResetRegistry()
	t.Cleanup(ResetRegistry)

	if IsEnabled() {
		t.Fatal("metrics enabled before InitRegistry")
	}
	if GetRegistry() != nil {
		t.Fatal("expected nil registry before InitRegistry")
	}

	reg := InitRegistry()
	if reg == nil {
		t.Fatal("InitRegistry returned nil")
	}
	if !IsEnabled() {
		t.Error("IsEnabled false after InitRegistry")
	}
	if GetRegistry() != reg {
		t.Error("GetRegistry returned a different registry")
	}
	if InitRegistry() != reg {
		t.Error("second InitRegistry call returned a new registry")
	}

	ResetRegistry()
	if IsEnabled() {
		t.Error("metrics still enabled after ResetRegistry")
	}
}

func TestHandlerDisabled(t *testing.T) {
	ResetRegistry()
	t.Cleanup(ResetRegistry)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 when metrics disabled, got %d", rec.Code)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	ResetRegistry()
	t.Cleanup(ResetRegistry)
	InitRegistry()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition output missing Go runtime collector metrics")
	}
}
