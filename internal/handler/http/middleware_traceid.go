package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// syncTraceHeader carries the correlation id for one control-API call.
// Editor tooling passes its own id to tie a push to its logs; the broker
// mints one otherwise and always echoes it, so either side can quote the id
// when a push goes wrong.
const syncTraceHeader = "X-Sync-Trace-ID"

type traceIDKey struct{}

// traceID returns the request's correlation id, empty outside withTraceID.
func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// withTraceID assigns every control-API request a correlation id, binds it
// to the request-scoped logger, and echoes it in the response. Error bodies
// built by writeError repeat the id so a failed push is greppable in the
// broker log.
func (h *Handler) withTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(syncTraceHeader)
		if id == "" {
			id = uuid.NewString()
		}

		l := h.logger.GetChildLogger()
		l.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("trace_id", id)
		})
		ctx := context.WithValue(l.WithContext(r.Context()), traceIDKey{}, id)

		w.Header().Set(syncTraceHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
