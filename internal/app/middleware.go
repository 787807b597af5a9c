package app

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ActorHeader names the caller recorded in audit logs.
const ActorHeader = "X-Actor"

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         cfg.Config == nil || !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	limit := 120
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.RateLimitPerMinute > 0 {
			limit = cfg.Config.RateLimitPerMinute
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		actorMiddleware,
		middleware.Compress(5),
		httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// actorMiddleware tags the request context with the calling actor.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
			r = r.WithContext(shared.ContextWithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}
