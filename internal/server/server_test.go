package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewServer(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantAdmin   bool
		wantMetrics bool
	}{
		{name: "both enabled", cfg: Config{HealthEnabled: true, HealthPort: 8080, MetricsEnabled: true, MetricsPort: 9090}, wantAdmin: true, wantMetrics: true},
		{name: "metrics only", cfg: Config{MetricsEnabled: true, MetricsPort: 9090}, wantMetrics: true},
		{name: "none", cfg: Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(tt.cfg, newMockAppender(), prometheus.NewRegistry(), nil)
			if (s.adminServer != nil) != tt.wantAdmin {
				t.Errorf("admin server = %v, want %v", s.adminServer != nil, tt.wantAdmin)
			}
			if (s.metricsServer != nil) != tt.wantMetrics {
				t.Errorf("metrics server = %v, want %v", s.metricsServer != nil, tt.wantMetrics)
			}
			if tt.wantAdmin && s.adminServer.Addr != ":8080" {
				t.Errorf("admin addr = %q", s.adminServer.Addr)
			}
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "fifolog_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	s := NewServer(Config{MetricsEnabled: true, MetricsPath: "/prom"}, newMockAppender(), registry, nil)

	req := httptest.NewRequest(http.MethodGet, "/prom", nil)
	w := httptest.NewRecorder()
	s.metricsServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "fifolog_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", body)
	}
}

func TestRequestID(t *testing.T) {
	r := NewRouter(Config{}, newMockAppender(), nil)

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "generated", header: ""},
		{name: "client supplied", header: "abc-123", keep: true},
		{name: "too long", header: strings.Repeat("x", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("X-Request-ID not set")
			}
			if tt.keep && got != tt.header {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.header)
			}
			if !tt.keep && got == tt.header {
				t.Errorf("X-Request-ID %q was not replaced", got)
			}
		})
	}
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewRouter(Config{}, newMockAppender(), zap.New(core))

	serve(t, r, http.MethodGet, "/stats")
	serve(t, r, http.MethodPost, "/flush")

	entries := logs.FilterMessage("request").All()
	if len(entries) != 2 {
		t.Fatalf("logged %d requests, want 2", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Errorf("GET logged at %v, want debug", entries[0].Level)
	}
	if entries[1].Level != zapcore.InfoLevel {
		t.Errorf("POST logged at %v, want info", entries[1].Level)
	}
	if entries[1].ContextMap()["route"] != "/flush" {
		t.Errorf("route = %v", entries[1].ContextMap()["route"])
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := NewServer(Config{HealthEnabled: true, HealthPort: 0, MetricsEnabled: true, MetricsPort: 0}, newMockAppender(), prometheus.NewRegistry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
