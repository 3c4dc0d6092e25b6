package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/mnehpets/onerpc/endpoint"
)

// HeadersProcessor sets response headers suited to an RPC API and answers
// CORS preflight requests.
//
// Defaults from NewHeadersProcessor:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Referrer-Policy: no-referrer
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Cache-Control: no-store
//   - HSTS and CORS disabled
type HeadersProcessor struct {
	// HSTS sets Strict-Transport-Security. Nil disables it.
	HSTS *HSTSConfig

	ReferrerPolicy        string
	FrameOptions          string
	ContentTypeOptions    bool
	ContentSecurityPolicy string

	// CacheControl is set on every response. RPC results are never
	// cacheable by default.
	CacheControl string

	// CORS configures cross-origin access for browser clients. Nil disables it.
	CORS *CORSConfig
}

// HSTSConfig configures HTTP Strict Transport Security.
type HSTSConfig struct {
	// MaxAge in seconds.
	MaxAge            int
	IncludeSubDomains bool
	Preload           bool
}

// CORSConfig configures Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API. "*" allows any
	// origin unless AllowCredentials is set.
	AllowedOrigins []string

	// AllowedMethods defaults to POST and OPTIONS.
	AllowedMethods []string

	// AllowedHeaders defaults to Content-Type and Accept.
	AllowedHeaders []string

	ExposedHeaders   []string
	AllowCredentials bool

	// MaxAge in seconds for caching preflight results.
	MaxAge int
}

// HeadersOption configures a HeadersProcessor.
type HeadersOption func(*HeadersProcessor)

// NewHeadersProcessor creates a HeadersProcessor with API defaults.
func NewHeadersProcessor(opts ...HeadersOption) *HeadersProcessor {
	p := &HeadersProcessor{
		ReferrerPolicy:        "no-referrer",
		FrameOptions:          "DENY",
		ContentTypeOptions:    true,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		CacheControl:          "no-store",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithHSTS enables Strict-Transport-Security.
func WithHSTS(maxAge int, includeSubDomains, preload bool) HeadersOption {
	return func(p *HeadersProcessor) {
		p.HSTS = &HSTSConfig{MaxAge: maxAge, IncludeSubDomains: includeSubDomains, Preload: preload}
	}
}

// WithCacheControl overrides the Cache-Control header. Empty disables it.
func WithCacheControl(value string) HeadersOption {
	return func(p *HeadersProcessor) {
		p.CacheControl = value
	}
}

// WithCORS enables CORS. Unset method and header lists get RPC defaults.
func WithCORS(config CORSConfig) HeadersOption {
	return func(p *HeadersProcessor) {
		if len(config.AllowedMethods) == 0 {
			config.AllowedMethods = []string{http.MethodPost, http.MethodOptions}
		}
		if len(config.AllowedHeaders) == 0 {
			config.AllowedHeaders = []string{"Content-Type", "Accept"}
		}
		p.CORS = &config
	}
}

// Process implements endpoint.Processor.
func (p *HeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	if hsts := formatHSTS(p.HSTS); hsts != "" {
		h.Set("Strict-Transport-Security", hsts)
	}
	setIf(h, "Referrer-Policy", p.ReferrerPolicy)
	setIf(h, "X-Frame-Options", p.FrameOptions)
	if p.ContentTypeOptions {
		h.Set("X-Content-Type-Options", "nosniff")
	}
	setIf(h, "Content-Security-Policy", p.ContentSecurityPolicy)
	setIf(h, "Cache-Control", p.CacheControl)

	if p.CORS != nil {
		setCORSHeaders(w, r, p.CORS)

		// A preflight is an OPTIONS request with an Origin and
		// Access-Control-Request-Method. It never reaches the endpoint.
		if r.Method == http.MethodOptions &&
			r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			return endpoint.Error(http.StatusNoContent, "", nil)
		}
	}
	return next(w, r)
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func formatHSTS(config *HSTSConfig) string {
	if config == nil || config.MaxAge <= 0 {
		return ""
	}
	parts := []string{"max-age=" + strconv.Itoa(config.MaxAge)}
	if config.IncludeSubDomains {
		parts = append(parts, "includeSubDomains")
	}
	if config.Preload {
		parts = append(parts, "preload")
	}
	return strings.Join(parts, "; ")
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, config *CORSConfig) {
	// Without an Origin header this is not a cross-origin request.
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	h := w.Header()
	h.Add("Vary", "Origin")

	switch {
	case slices.Contains(config.AllowedOrigins, origin):
		h.Set("Access-Control-Allow-Origin", origin)
	case slices.Contains(config.AllowedOrigins, "*") && !config.AllowCredentials:
		// '*' must not be combined with credentials.
		h.Set("Access-Control-Allow-Origin", "*")
	default:
		return
	}

	if config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(config.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(config.ExposedHeaders, ", "))
	}
	if r.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
		h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
		if config.MaxAge > 0 {
			h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}
	}
}

var _ endpoint.Processor = (*HeadersProcessor)(nil)
