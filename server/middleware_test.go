package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/giygas/pbs-authority-api/config"
)

func TestRealIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{name: "no header keeps remote addr", remoteAddr: "10.0.0.1:1234", want: "10.0.0.1:1234"},
		{name: "single forwarded ip", xff: "203.0.113.7", remoteAddr: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "first of several forwarded ips", xff: "203.0.113.7, 10.0.0.2, 10.0.0.3", remoteAddr: "10.0.0.1:1234", want: "203.0.113.7"},
		{name: "whitespace trimmed", xff: "  203.0.113.7 ", remoteAddr: "10.0.0.1:1234", want: "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RealIPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("Expected remote addr %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  bool
		wantStatus int
	}{
		{name: "localhost allowed", remoteAddr: "127.0.0.1:5000", wantStatus: http.StatusOK},
		{name: "ipv6 localhost allowed", remoteAddr: "[::1]:5000", wantStatus: http.StatusOK},
		{name: "proxied request allowed", remoteAddr: "10.0.0.9:5000", forwarded: true, wantStatus: http.StatusOK},
		{name: "direct external access blocked", remoteAddr: "203.0.113.7:5000", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BlockDirectAccessMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded {
				req.Header.Set("X-Forwarded-For", "203.0.113.7")
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequestSizeMiddleware(t *testing.T) {
	cfg := &config.Config{
		MaxRequestBody: 64,
		MaxHeaderSize:  256,
	}
	handler := RequestSizeMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("small request passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/application", strings.NewReader(`{"item_code": "1"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		body := strings.Repeat("x", 100)
		req := httptest.NewRequest(http.MethodPost, "/application", strings.NewReader(body))
		req.Header.Set("Content-Length", "100")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", rec.Code)
		}
	})

	t.Run("oversized headers rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Big-Header", strings.Repeat("y", 300))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestHeaderFieldsTooLarge {
			t.Errorf("Expected 431, got %d", rec.Code)
		}
	})
}

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		path string
		want int64
	}{
		{"/health", 5},
		{"/metrics", 5},
		{"/schedule/latest", 20},
		{"/items/search/pembrolizumab", 100},
		{"/items/12119W/restrictions", 150},
		{"/items/12119W", 50},
		{"/application", 150},
		{"/unknown", 20},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if got := getTokenCost(req); got != tt.want {
				t.Errorf("getTokenCost(%s) = %d, want %d", tt.path, got, tt.want)
			}
		})
	}
}

func TestRateLimitHandler(t *testing.T) {
	handler := RateLimitHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("sets rate limit headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1000" {
			t.Errorf("Expected limit header 1000, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
		if rec.Header().Get("X-RateLimit-Remaining") == "" {
			t.Error("Expected a remaining header")
		}
	})

	t.Run("exhausted bucket is 429 with retry-after", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/items/12119W/restrictions", nil)
		req.RemoteAddr = "192.0.2.20:1234"

		// The bucket starts with 1000 tokens and each request costs
		// 150; the eighth must fail.
		var last *httptest.ResponseRecorder
		for i := 0; i < 8; i++ {
			last = httptest.NewRecorder()
			handler.ServeHTTP(last, req)
		}

		if last.Code != http.StatusTooManyRequests {
			t.Fatalf("Expected 429, got %d", last.Code)
		}
		if last.Header().Get("Retry-After") != "60" {
			t.Errorf("Expected Retry-After 60, got %q", last.Header().Get("Retry-After"))
		}
		if last.Header().Get("X-RateLimit-Remaining") != "0" {
			t.Errorf("Expected remaining 0, got %q", last.Header().Get("X-RateLimit-Remaining"))
		}
	})

	t.Run("clients have independent buckets", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/items/12119W/restrictions", nil)
		req.RemoteAddr = "192.0.2.30:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected a fresh client to pass, got %d", rec.Code)
		}
	})
}
