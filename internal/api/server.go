package api

import (
	"context"
	"log/slog"
	"net/http"
)

// NewServer assembles the full master handler: routes plus the middleware
// chain, outermost first. keyFn supplies the current shared LAN key ("" for
// open mode) and rps the per-peer creation rate limit (0 disables it). ctx
// bounds the rate limiter's background cleanup.
func NewServer(ctx context.Context, h *Handler, keyFn func() string, logger *slog.Logger, rps int) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return Chain(mux,
		Liveness(h.tracker),
		CORS(),
		RequestID,
		Logging(logger),
		RateLimit(ctx, rps),
		Auth(keyFn, h.tracker, logger),
	)
}
