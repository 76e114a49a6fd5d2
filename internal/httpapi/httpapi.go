// Package httpapi exposes the cdrive JSON API: account/session endpoints,
// quota-enforced uploads, folder management, listing/search, and share
// links with a public download route.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"cdrive/internal/blob"
	"cdrive/internal/db"
)

const (
	sessionCookie = "cd_session"
	sessionTTL    = 12 * time.Hour
)

type Server struct {
	DB       *db.DB
	Blobs    *blob.Store
	Logger   *slog.Logger
	BindAddr string
	Port     int

	// BaseURL, when set, is used to build absolute share links.
	// Otherwise links derive from the request's Host header.
	BaseURL string

	// MaxUploadBytes caps a single upload body. Zero means the default.
	MaxUploadBytes int64

	// DefaultQuota is the storage_limit for new accounts. Zero means
	// DefaultStorageLimit.
	DefaultQuota int64

	loginLimiter *fixedWindowLimiter
	limiterOnce  sync.Once
}

// limiter lazily builds the login rate limiter; the sync.Once keeps
// Handler and Close from racing over it.
func (s *Server) limiter() *fixedWindowLimiter {
	s.limiterOnce.Do(func() {
		s.loginLimiter = newFixedWindowLimiter(10, time.Minute)
	})
	return s.loginLimiter
}

// Close releases background resources owned by the server.
func (s *Server) Close() {
	s.limiter().Stop()
}

// Handler builds the route table wrapped in logging and recovery
// middleware. Exposed separately from ListenAndServe for tests.
func (s *Server) Handler() http.Handler {
	s.limiter()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.withRateLimit(s.handleRegister))
	mux.HandleFunc("/api/login", s.withRateLimit(s.handleLogin))
	mux.HandleFunc("/api/logout", s.handleLogout)

	mux.HandleFunc("/api/list", s.withUser(s.handleList))
	mux.HandleFunc("/api/search", s.withUser(s.handleList))
	mux.HandleFunc("/api/upload", s.withUser(s.handleUpload))
	mux.HandleFunc("/api/files/", s.withUser(s.handleFileByID))
	mux.HandleFunc("/api/folders", s.withUser(s.handleFolders))
	mux.HandleFunc("/api/folders/", s.withUser(s.handleFolderByID))

	// Public: a valid share token is the access grant.
	mux.HandleFunc("/d/", s.handleTokenDownload)

	return s.withRequestLog(s.withRecover(mux))
}

func (s *Server) ListenAndServe() error {
	if s.DB == nil || s.Blobs == nil {
		return errors.New("db and blob store are required")
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	addr := s.BindAddr + ":" + strconv.Itoa(s.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.Logger.Info("http server listening", "addr", addr)
	return httpServer.ListenAndServe()
}

func (s *Server) maxUpload() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return 512 << 20
}

type ctxKey string

const ctxUser ctxKey = "user"

// currentUser pulls the authenticated user injected by withUser.
func currentUser(r *http.Request) *db.User {
	u, _ := r.Context().Value(ctxUser).(*db.User)
	return u
}

// withUser resolves the session cookie to a user and injects it into the
// request context. Anything short of a live session is a 401.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := readSessionCookie(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		sess, ok, err := s.DB.GetSession(r.Context(), tok)
		if err != nil {
			s.serverError(w, r, "get session", err)
			return
		}
		if !ok || sess.ExpiresAt <= time.Now().Unix() {
			clearSessionCookie(w)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}

		u, ok, err := s.DB.GetUserByID(r.Context(), sess.UserID)
		if err != nil || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}

		ctx := context.WithValue(r.Context(), ctxUser, u)
		next(w, r.WithContext(ctx))
	}
}

// writeDomainErr maps db-layer sentinel errors to API statuses.
func (s *Server) writeDomainErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, db.ErrQuotaExceeded):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "storage quota exceeded"})
	case errors.Is(err, db.ErrUsernameTaken):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username already taken"})
	default:
		s.serverError(w, r, op, err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.Logger.Error(op, "err", err, "path", r.URL.Path)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
}

// pathID splits "/api/<base>/{id}" or "/api/<base>/{id}/{action}".
func pathID(path, prefix string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action, true
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func readSessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
