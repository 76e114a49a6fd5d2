package httpapi

import (
	"encoding/json"
	"net/http"

	"cdrive/internal/auth"
	"cdrive/internal/validate"
)

// DefaultStorageLimit is the stock per-user quota: 8 GiB.
const DefaultStorageLimit int64 = 8589934592

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := validate.Username(req.Username); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password is required"})
		return
	}

	h, err := auth.HashPassword(req.Password, auth.DefaultArgon2Params())
	if err != nil {
		s.serverError(w, r, "hash password", err)
		return
	}
	limit := s.DefaultQuota
	if limit <= 0 {
		limit = DefaultStorageLimit
	}
	id, err := s.DB.CreateUser(r.Context(), req.Username, h, limit)
	if err != nil {
		s.writeDomainErr(w, r, "create user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing credentials"})
		return
	}

	ctx := r.Context()
	u, ok, err := s.DB.GetUserByUsername(ctx, req.Username)
	if err != nil {
		s.serverError(w, r, "get user", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	okPw, err := auth.VerifyPassword(req.Password, u.PassHash)
	if err != nil || !okPw {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	tok, err := auth.NewToken(32)
	if err != nil {
		s.serverError(w, r, "mint session token", err)
		return
	}
	if err := s.DB.CreateSession(ctx, tok, u.ID, sessionTTL); err != nil {
		s.serverError(w, r, "create session", err)
		return
	}

	setSessionCookie(w, tok)
	writeJSON(w, http.StatusOK, map[string]any{"username": u.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if tok, ok := readSessionCookie(r); ok {
		_ = s.DB.DeleteSession(r.Context(), tok)
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}
