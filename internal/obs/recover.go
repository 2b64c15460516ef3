package obs

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/auroragems/backend-aurora/internal/common"
)

// Recoverer turns handler panics into the canonical JSON error body instead
// of a bodyless 500.
type Recoverer struct {
	Logger zerolog.Logger
}

// Middleware recovers the panic, logs it with a stack trace and answers 500.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func (rec Recoverer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			rec.Logger.Error().
				Interface("panic", v).
				Str("stack", string(debug.Stack())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("handler panic")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
