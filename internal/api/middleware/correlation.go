package middleware

import (
	"net/http"

	"github.com/google/uuid"

	pkgmw "github.com/signalpress/signalpress/pkg/middleware"
)

// Correlation assigns a correlation id to every request: the caller's
// X-Correlation-ID header if present, otherwise a freshly generated
// one. Error responses and the request log line carry it (spec.md §7:
// "Correlation id is present in every error"). A submitted SyncJob and
// its JobEvents carry the job's own correlation id, assigned at submit
// time, not this request id.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		ctx := pkgmw.SetCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
