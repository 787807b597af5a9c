package audithttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit timeline and its export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit reached")
		}),
	)
	r.Get("/", h.handleTimeline)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/export", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor := strings.TrimSpace(shared.ActorFromContext(r.Context())); actor != "" && actor != "system" {
		return "actor:" + actor, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
