package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/mw"
)

const defaultRequestTimeout = 5 * time.Second

// guarded returns r restricted to the allowed CIDRs and hosts.
func guarded(r chi.Router, d deps.Deps) chi.Router {
	return r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))
}

func requestTimeout(d deps.Deps) Middleware {
	t := d.RequestTimeout
	if t <= 0 {
		t = defaultRequestTimeout
	}
	return middleware.Timeout(t)
}

func rateLimited(d deps.Deps) Middleware {
	return mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateBurst,
		RefillPerIPPerMin: d.RatePerMin,
		MaxEntries:        4096,
		TrustProxy:        d.TrustProxy,
	})
}
