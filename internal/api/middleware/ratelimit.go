package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// Allower is the rate limiter RateLimit consults. *ratelimit.Limiter
// implements it.
type Allower interface {
	Allow(key string, limit int) bool
}

// RateLimit enforces the per-key limit of the key Auth validated. Requests
// without key info pass through.
func RateLimit(limiter Allower) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			info := GetKeyInfo(r.Context())
			if info == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(strconv.FormatInt(info.ID, 10), info.RateLimit) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
