// ABOUTME: CORS middleware answering preflight requests for every path.
// ABOUTME: Session headers are exposed so browser clients can read them.

package mcp

import "net/http"

const (
	corsAllowMethods  = "GET, POST, OPTIONS, PUT, DELETE"
	corsAllowHeaders  = "*"
	corsExposeHeaders = headerMCPSessionID + ", " + headerSessionID
)

// CORS sets permissive CORS headers on every response and answers OPTIONS
// preflight with 200 and no body.
func (s *Server) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
