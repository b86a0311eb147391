package middleware

import (
	"net/http"
	"strings"
)

// exposedHeaders are readable by browser clients polling conversions.
var exposedHeaders = strings.Join([]string{"X-Request-Id", "Retry-After"}, ", ")

// CORS allows the configured origins, or any origin with "*". The API key
// header is named by configuration so browsers may send it.
func CORS(allowedOrigins []string, apiKeyHeader string) func(http.Handler) http.Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimRight(o, "/")] = true
	}
	allowAll := origins["*"]
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	allowHeaders := "Accept, Authorization, Content-Type, " + apiKeyHeader

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if allowAll || origins[origin] {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", exposedHeaders)
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Max-Age", "3600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
