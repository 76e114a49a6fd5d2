package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// createShare mints a new share token for an owned file. Every call
// produces a fresh token; earlier ones keep working.
func (s *Server) createShare(w http.ResponseWriter, r *http.Request, fileID int64) {
	u := currentUser(r)
	token := uuid.NewString()
	if _, err := s.DB.CreateShareToken(r.Context(), fileID, u.ID, token); err != nil {
		s.writeDomainErr(w, r, "create share token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"share_link": s.shareLink(r, token),
	})
}

// listShares returns every token minted for an owned file, newest last.
func (s *Server) listShares(w http.ResponseWriter, r *http.Request, fileID int64) {
	u := currentUser(r)
	if _, ok, err := s.DB.GetFileForUser(r.Context(), fileID, u.ID); err != nil {
		s.serverError(w, r, "get file", err)
		return
	} else if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	toks, err := s.DB.ListShareTokensForFile(r.Context(), fileID, u.ID)
	if err != nil {
		s.serverError(w, r, "list share tokens", err)
		return
	}
	out := make([]map[string]any, 0, len(toks))
	for _, t := range toks {
		out = append(out, map[string]any{
			"token":      t.Token,
			"share_link": s.shareLink(r, t.Token),
			"created_at": t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

// handleTokenDownload serves /d/{token} with no authentication. The token
// itself is the capability; lookup is exact-match on the full value.
func (s *Server) handleTokenDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/d/")
	if token == "" || strings.Contains(token, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	f, ok, err := s.DB.GetFileByShareToken(r.Context(), token)
	if err != nil {
		s.serverError(w, r, "resolve share token", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid share link"})
		return
	}
	s.serveFile(w, r, f)
}

// shareLink builds an absolute link for a token, preferring the
// configured base URL over the request's own host.
func (s *Server) shareLink(r *http.Request, token string) string {
	base := s.BaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/d/" + token
}
