package httpapi

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/yigicoin/platform/pkg/logger"
)

// adminGate allows a request through when development mode is on or the
// request carries a configured bearer token.
func adminGate(cfg AdminConfig) func(http.Handler) http.Handler {
	tokens := make(map[string]struct{}, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		tokens[tok] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.DevMode {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if bearer := strings.TrimPrefix(auth, "Bearer "); bearer != auth {
				if _, ok := tokens[bearer]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", "admin access required")
		})
	}
}

// RateLimiter throttles requests per remote address.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewRateLimiter builds a limiter allowing requestsPerSecond sustained with
// the given burst, tracked per client.
func NewRateLimiter(requestsPerSecond, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		// Bound the map; stale entries are cheap to rebuild.
		if len(rl.limiters) > 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Handler wraps next with the rate limit.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, found := strings.Cut(key, ":"); found {
			key = host
		}

		if !rl.getLimiter(key).Allow() {
			rl.log.WithFields(map[string]interface{}{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("rate limit exceeded")
			writeFailure(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS answers preflight requests and stamps allow headers for permitted
// origins. An allowed origin of "*" permits everything.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
	}

	allowed := func(origin string) bool {
		for _, a := range allowedOrigins {
			if a == origin {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed(origin)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger emits a debug access line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.WithFields(map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Debug("request")
			next.ServeHTTP(w, r)
		})
	}
}
