package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nthlam/WEB-NOVA-SCI/pkg/logger"
)

// resolveUserID finds the acting user, preferring the Identity middleware's
// principal over the raw proxy header so a spoofed header cannot override an
// authenticated identity.
func resolveUserID(ctx context.Context, r *http.Request) string {
	if id := UserIDFromContext(ctx); id != "" {
		return id
	}
	return r.Header.Get(HeaderUserIdentity)
}

// RequestLogger installs a request-scoped logger carrying correlation_id,
// user_id, trace_id, and span_id. Handlers fetch it with
// logger.FromContext(ctx).
//
// Mount it after RequestLogging and Tracing, which populate the context
// fields it reads.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if userID := resolveUserID(ctx, r); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
