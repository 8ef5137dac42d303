// ABOUTME: Session id extraction for HTTP requests.
// ABOUTME: Checks the custom header, then the query parameter, then the cookie.

package mcp

import "net/http"

const (
	headerMCPSessionID = "Mcp-Session-Id"
	headerSessionID    = "X-Session-ID"
	querySessionID     = "sessionId"
	cookieSessionID    = "session_id"
)

// sessionCandidate returns the caller-supplied session id, or "" if none.
// bodyID, when non-empty, is consulted between the header and the query parameter.
func sessionCandidate(r *http.Request, bodyID string) string {
	if id := r.Header.Get(headerSessionID); id != "" {
		return id
	}
	if bodyID != "" {
		return bodyID
	}
	if id := r.URL.Query().Get(querySessionID); id != "" {
		return id
	}
	if c, err := r.Cookie(cookieSessionID); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// requestSessionID returns the session a JSON-RPC request belongs to without
// minting a new one. The MCP header takes precedence.
func requestSessionID(r *http.Request) string {
	if id := r.Header.Get(headerMCPSessionID); id != "" {
		return id
	}
	return sessionCandidate(r, "")
}

// resolveSession resolves the request's session, minting a temporary one when
// the caller supplied none, and echoes it in the X-Session-ID response header.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request, bodyID string) string {
	id, created := s.sessions.Resolve(sessionCandidate(r, bodyID))
	if created {
		s.logger.Debug("no session id provided, created temporary", "session_id", id, "path", r.URL.Path)
	}
	w.Header().Set(headerSessionID, id)
	return id
}
