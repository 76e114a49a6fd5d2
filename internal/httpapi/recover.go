package httpapi

import (
	"net/http"
	"runtime/debug"
)

// withRecover converts handler panics into 500 responses so one bad
// request cannot take the process down. http.ErrAbortHandler passes
// through untouched; it is the sanctioned way to abort a response.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.Logger.Error("handler panic",
				"panic", v,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		}()
		next.ServeHTTP(w, r)
	})
}
