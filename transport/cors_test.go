package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSHandler(t *testing.T) {
	reached := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	serve := func(cfg CORSConfig, method, origin string, preflight bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/mcp", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if preflight {
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		}
		rec := httptest.NewRecorder()
		CORSHandler(cfg, reached).ServeHTTP(rec, req)
		return rec
	}

	listed := CORSConfig{AllowOrigins: []string{"https://app.test", "https://*.tools.test"}}

	tests := []struct {
		name       string
		cfg        CORSConfig
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantOrigin string
	}{
		{"wildcard", DefaultCORSConfig(), http.MethodPost, "https://anything.test", false, http.StatusTeapot, "*"},
		{"listed origin", listed, http.MethodPost, "https://app.test", false, http.StatusTeapot, "https://app.test"},
		{"subdomain pattern", listed, http.MethodPost, "https://a.tools.test", false, http.StatusTeapot, "https://a.tools.test"},
		{"pattern needs a subdomain", listed, http.MethodPost, "https://tools.test", false, http.StatusTeapot, ""},
		{"pattern checks scheme", listed, http.MethodPost, "http://a.tools.test", false, http.StatusTeapot, ""},
		{"unlisted origin", listed, http.MethodPost, "https://evil.test", false, http.StatusTeapot, ""},
		{"no origin", listed, http.MethodPost, "", false, http.StatusTeapot, ""},
		{"preflight allowed", listed, http.MethodOptions, "https://app.test", true, http.StatusNoContent, "https://app.test"},
		{"preflight refused", listed, http.MethodOptions, "https://evil.test", true, http.StatusForbidden, ""},
		{"bare options passes through", listed, http.MethodOptions, "https://app.test", false, http.StatusTeapot, "https://app.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.cfg, tt.method, tt.origin, tt.preflight)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}

	t.Run("preflight headers", func(t *testing.T) {
		h := serve(listed, http.MethodOptions, "https://app.test", true).Header()
		want := map[string]string{
			"Access-Control-Allow-Methods": "GET, POST, DELETE, OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type, Mcp-Session-Id, X-Request-Id",
			"Access-Control-Max-Age":       "86400",
			"Vary":                         "Origin",
		}
		for k, v := range want {
			if got := h.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
	})

	t.Run("session header exposed", func(t *testing.T) {
		h := serve(listed, http.MethodPost, "https://app.test", false).Header()
		if got := h.Get("Access-Control-Expose-Headers"); got != SessionHeader {
			t.Errorf("Expose-Headers = %q, want %q", got, SessionHeader)
		}
	})

	t.Run("credentials reflect origin", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowCredentials = true
		h := serve(cfg, http.MethodPost, "https://app.test", false).Header()
		if got := h.Get("Access-Control-Allow-Origin"); got != "https://app.test" {
			t.Errorf("Allow-Origin = %q, want the request origin", got)
		}
		if got := h.Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("Allow-Credentials = %q, want %q", got, "true")
		}
	})

	t.Run("custom values", func(t *testing.T) {
		cfg := CORSConfig{
			AllowOrigins:  []string{"*"},
			AllowHeaders:  []string{"Content-Type"},
			ExposeHeaders: []string{SessionHeader, RequestIDHeader},
			MaxAge:        -1,
		}
		pre := serve(cfg, http.MethodOptions, "https://x.test", true).Header()
		if got := pre.Get("Access-Control-Allow-Headers"); got != "Content-Type" {
			t.Errorf("Allow-Headers = %q, want %q", got, "Content-Type")
		}
		if got := pre.Get("Access-Control-Max-Age"); got != "" {
			t.Errorf("Max-Age = %q, want unset", got)
		}
		post := serve(cfg, http.MethodPost, "https://x.test", false).Header()
		if got := post.Get("Access-Control-Expose-Headers"); got != "Mcp-Session-Id, X-Request-Id" {
			t.Errorf("Expose-Headers = %q", got)
		}
	})
}
