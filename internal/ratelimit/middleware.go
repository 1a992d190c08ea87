package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/backend-jersey/internal/common"
	"github.com/noah-isme/backend-jersey/internal/obs"
)

// Config scopes a limit. Key returning "" exempts the request.
type Config struct {
	Scope  string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler throttles requests per Config.Key.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// ByClientIP keys requests by scope and client address.
func ByClientIP(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		ip := common.ClientIP(r)
		if ip == "" {
			return ""
		}
		return scope + ":" + ip
	}
}

func (h Handler) scope() string {
	if h.Config.Scope == "" {
		return "default"
	}
	return h.Config.Scope
}

// Middleware answers 429 once the window is full. If Redis fails the request
// goes through and OnError is told.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if h.Config.Key != nil {
			key = h.Config.Key(r)
		}
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		decision, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(decision.Limit, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := decision.RetryAfter(h.Limiter.now())
		headers.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		obs.ObserveRateLimited(h.scope())
		common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", map[string]any{
			"scope":       h.scope(),
			"retry_after": int(math.Ceil(wait.Seconds())),
		})
	})
}
