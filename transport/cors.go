package transport

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig is the cross-origin policy of the HTTP transport. Empty
// fields take the defaults from DefaultCORSConfig.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. "*" allows any origin and an
	// entry such as "https://*.example.com" allows its subdomains.
	AllowOrigins []string

	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool

	// MaxAge is how long browsers may cache a preflight, in seconds.
	MaxAge int
}

// DefaultCORSConfig allows any origin to reach /mcp and read the session
// header issued on initialize. Meant for local development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", SessionHeader, RequestIDHeader},
		ExposeHeaders: []string{SessionHeader},
		MaxAge:        86400,
	}
}

// corsPolicy is a CORSConfig with its header values joined once.
type corsPolicy struct {
	any         bool
	exact       map[string]bool
	suffixes    [][2]string // scheme+"://", "."+domain
	credentials bool

	methods, headers, expose, maxAge string
}

func newCORSPolicy(c CORSConfig) *corsPolicy {
	def := DefaultCORSConfig()
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = def.AllowMethods
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = def.AllowHeaders
	}
	if len(c.ExposeHeaders) == 0 {
		c.ExposeHeaders = def.ExposeHeaders
	}
	if c.MaxAge == 0 {
		c.MaxAge = def.MaxAge
	}

	p := &corsPolicy{
		exact:       make(map[string]bool),
		credentials: c.AllowCredentials,
		methods:     strings.Join(c.AllowMethods, ", "),
		headers:     strings.Join(c.AllowHeaders, ", "),
		expose:      strings.Join(c.ExposeHeaders, ", "),
	}
	if c.MaxAge > 0 {
		p.maxAge = strconv.Itoa(c.MaxAge)
	}
	for _, o := range c.AllowOrigins {
		switch scheme, host, ok := strings.Cut(o, "://*."); {
		case o == "*":
			p.any = true
		case ok:
			p.suffixes = append(p.suffixes, [2]string{scheme + "://", "." + host})
		default:
			p.exact[o] = true
		}
	}
	return p
}

// allow returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed.
func (p *corsPolicy) allow(origin string) string {
	if p.any && !p.credentials {
		return "*"
	}
	if origin == "" {
		return ""
	}
	if p.any || p.exact[origin] {
		return origin
	}
	for _, s := range p.suffixes {
		if strings.HasPrefix(origin, s[0]) && strings.HasSuffix(origin, s[1]) {
			return origin
		}
	}
	return ""
}

func (p *corsPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := p.allow(origin)
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		h := w.Header()
		if allowed != "*" {
			h.Add("Vary", "Origin")
		}
		if allowed == "" {
			if preflight && origin != "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Origin", allowed)
		if p.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if !preflight {
			h.Set("Access-Control-Expose-Headers", p.expose)
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Methods", p.methods)
		h.Set("Access-Control-Allow-Headers", p.headers)
		if p.maxAge != "" {
			h.Set("Access-Control-Max-Age", p.maxAge)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// CORSHandler applies config to every request before next sees it.
// Preflights from allowed origins are answered directly; preflights from
// other origins get 403.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	return newCORSPolicy(config).wrap(next)
}

// WithCORS applies config to the HTTP transport.
func WithCORS(config CORSConfig) HTTPOption {
	return func(h *HTTP) {
		h.corsConfig = &config
	}
}

// WithDefaultCORS applies DefaultCORSConfig.
func WithDefaultCORS() HTTPOption {
	return WithCORS(DefaultCORSConfig())
}
