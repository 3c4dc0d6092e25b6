package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnehpets/onerpc/endpoint"
)

func runHeaders(t *testing.T, p *HeadersProcessor, r *http.Request) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	w := httptest.NewRecorder()
	nextCalled := false
	err := p.Process(w, r, func(w http.ResponseWriter, r *http.Request) error {
		nextCalled = true
		return nil
	})
	return w, nextCalled, err
}

func TestHeadersProcessor_Defaults(t *testing.T) {
	w, nextCalled, err := runHeaders(t, NewHeadersProcessor(), httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !nextCalled {
		t.Fatal("next was not called")
	}

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS should be disabled by default, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS should be disabled by default, got %q", got)
	}
}

func TestHeadersProcessor_Options(t *testing.T) {
	p := NewHeadersProcessor(WithHSTS(600, true, true), WithCacheControl(""))
	w, _, err := runHeaders(t, p, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=600; includeSubDomains; preload" {
		t.Errorf("HSTS: got %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control should be disabled, got %q", got)
	}
}

func TestHeadersProcessor_CORS_SimpleOrigin(t *testing.T) {
	p := NewHeadersProcessor(WithCORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}}))
	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	r.Header.Set("Origin", "https://app.example")

	w, nextCalled, err := runHeaders(t, p, r)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !nextCalled {
		t.Fatal("next was not called")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin: got %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary: got %q", got)
	}
	// Method and header lists are only sent on preflight.
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "" {
		t.Errorf("Allow-Methods should be absent, got %q", got)
	}
}

func TestHeadersProcessor_CORS_UnknownOrigin(t *testing.T) {
	p := NewHeadersProcessor(WithCORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}}))
	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	r.Header.Set("Origin", "https://evil.example")

	w, _, _ := runHeaders(t, p, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin should be absent, got %q", got)
	}
}

func TestHeadersProcessor_CORS_WildcardWithCredentials(t *testing.T) {
	p := NewHeadersProcessor(WithCORS(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}))
	r := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	r.Header.Set("Origin", "https://any.example")

	w, _, _ := runHeaders(t, p, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("wildcard must not be used with credentials, got %q", got)
	}

	p = NewHeadersProcessor(WithCORS(CORSConfig{AllowedOrigins: []string{"*"}}))
	w, _, _ = runHeaders(t, p, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q, want *", got)
	}
}

func TestHeadersProcessor_CORS_Preflight(t *testing.T) {
	p := NewHeadersProcessor(WithCORS(CORSConfig{
		AllowedOrigins: []string{"https://app.example"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", "POST")

	w, nextCalled, err := runHeaders(t, p, r)
	if nextCalled {
		t.Fatal("preflight must not reach next")
	}
	var ee *endpoint.EndpointError
	if !errors.As(err, &ee) || ee.Status != http.StatusNoContent {
		t.Fatalf("expected 204 EndpointError, got %v", err)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Allow-Methods: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Content-Type") {
		t.Errorf("Allow-Headers: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "300" {
		t.Errorf("Max-Age: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-Id" {
		t.Errorf("Expose-Headers: got %q", got)
	}
}

func TestHeadersProcessor_WithEndpointHandler(t *testing.T) {
	h := endpoint.Handler(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
		return &endpoint.StringRenderer{Body: "ok"}, nil
	}, NewHeadersProcessor(WithCORS(CORSConfig{AllowedOrigins: []string{"*"}})))

	r := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rpc", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options: got %q", got)
	}
}

func TestFormatHSTS(t *testing.T) {
	tests := []struct {
		config *HSTSConfig
		want   string
	}{
		{nil, ""},
		{&HSTSConfig{MaxAge: 0}, ""},
		{&HSTSConfig{MaxAge: 10}, "max-age=10"},
		{&HSTSConfig{MaxAge: 10, IncludeSubDomains: true}, "max-age=10; includeSubDomains"},
		{&HSTSConfig{MaxAge: 10, Preload: true}, "max-age=10; preload"},
	}
	for _, tt := range tests {
		if got := formatHSTS(tt.config); got != tt.want {
			t.Errorf("formatHSTS(%+v) = %q, want %q", tt.config, got, tt.want)
		}
	}
}
