package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/backmon-io/backmon/pkg/catalog/store"
)

// testSetup creates a catalogue store and server Config for testing.
func testSetup(t *testing.T, port int) (store.Store, Config) {
	t.Helper()

	// In-memory SQLite catalogue for testing
	dbConfig := store.Config{
		Type: "sqlite",
		SQLite: store.SQLiteConfig{
			Path: ":memory:",
		},
	}
	catStore, err := store.New(&dbConfig)
	if err != nil {
		t.Fatalf("Failed to create catalogue store: %v", err)
	}
	t.Cleanup(func() { _ = catStore.Close() })

	// Config with a valid JWT secret (>= 32 characters)
	cfg := Config{
		Port:         port,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
		JWT: JWTConfig{
			Secret:               "test-secret-key-for-testing-only-32chars",
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
	}

	return catStore, cfg
}

func TestServer_Lifecycle(t *testing.T) {
	catStore, cfg := testSetup(t, 18080)

	server, err := NewServer(cfg, RouterDeps{Store: catStore})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Make request to health endpoint
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type 'application/json', got '%s'", contentType)
	}

	// Shutdown
	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Expected nil on graceful shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shutdown in time")
	}
}

func TestServer_Port(t *testing.T) {
	catStore, cfg := testSetup(t, 9999)

	server, err := NewServer(cfg, RouterDeps{Store: catStore})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if server.Port() != 9999 {
		t.Errorf("Expected port 9999, got %d", server.Port())
	}
}

func TestServer_DefaultConfig(t *testing.T) {
	catStore, _ := testSetup(t, 0)

	cfg := Config{
		// Port and timeouts not set - should use defaults
		JWT: JWTConfig{
			Secret: "test-secret-key-for-testing-only-32chars",
		},
	}

	server, err := NewServer(cfg, RouterDeps{Store: catStore})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// After applyDefaults, port should be 8080
	if server.Port() != 8080 {
		t.Errorf("Expected default port 8080, got %d", server.Port())
	}
}

func TestServer_RejectsShortJWTSecret(t *testing.T) {
	catStore, cfg := testSetup(t, 18083)
	cfg.JWT.Secret = "too-short"

	if _, err := NewServer(cfg, RouterDeps{Store: catStore}); err == nil {
		t.Fatal("Expected error for short JWT secret, got nil")
	}
}

func TestServer_RootRedirectsToHealth(t *testing.T) {
	catStore, cfg := testSetup(t, 18082)

	server, err := NewServer(cfg, RouterDeps{Store: catStore})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	// Client that doesn't follow redirects
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/", cfg.Port))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("Expected status %d, got %d", http.StatusTemporaryRedirect, resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/health" {
		t.Errorf("Expected redirect to /health, got %q", loc)
	}
}

func TestServer_ProtectedRoutesRequireAuth(t *testing.T) {
	catStore, cfg := testSetup(t, 18084)

	server, err := NewServer(cfg, RouterDeps{Store: catStore})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	for _, path := range []string{"/api/v1/jobs", "/api/v1/entries", "/api/v1/scanner/status"} {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d%s", cfg.Port, path))
		if err != nil {
			t.Fatalf("Failed to make request to %s: %v", path, err)
		}
		_ = resp.Body.Close()

		// Scanner routes are absent without a scanner; the rest must
		// demand a token.
		if path == "/api/v1/scanner/status" {
			continue
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusUnauthorized, resp.StatusCode)
		}
	}
}

func TestServer_LoginFlow(t *testing.T) {
	catStore, cfg := testSetup(t, 18085)

	server, err := NewServer(cfg, RouterDeps{Store: catStore})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	// Unknown user must be rejected
	body := `{"username":"nobody","password":"nothing"}`
	resp, err := http.Post(
		fmt.Sprintf("http://localhost:%d/api/v1/auth/login", cfg.Port),
		"application/json",
		strings.NewReader(body),
	)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}

	var problem map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
		t.Fatalf("Failed to decode problem body: %v", err)
	}
	if problem["title"] == "" {
		t.Error("Expected a problem title in the error body")
	}
}
