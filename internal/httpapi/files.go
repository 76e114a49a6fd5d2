package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cdrive/internal/blob"
	"cdrive/internal/db"
	"cdrive/internal/validate"
)

// handleUpload stores a multipart upload against the caller's quota.
// The quota is checked before the blob is written, then enforced again
// by the conditional reservation when the row is created; a row that
// fails to commit takes its blob with it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	u := currentUser(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid upload"})
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file selected"})
		return
	}
	defer file.Close()

	name, err := validate.DisplayName(filepath.Base(hdr.Filename))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid filename"})
		return
	}

	var folderID *int64
	if v := r.FormValue("folder_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid folder id"})
			return
		}
		if _, ok, err := s.DB.GetFolderForUser(r.Context(), id, u.ID); err != nil {
			s.serverError(w, r, "get folder", err)
			return
		} else if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		folderID = &id
	}

	// Cheap pre-check so oversized uploads are refused before any write.
	// The authoritative check is the reservation inside CreateFile.
	if u.StorageUsed+hdr.Size > u.StorageLimit {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "storage quota exceeded"})
		return
	}

	key := blob.NewKey(name)
	size, err := s.Blobs.Write(key, file)
	if err != nil {
		s.serverError(w, r, "write blob", err)
		return
	}

	f := &db.File{
		UserID:     u.ID,
		FolderID:   folderID,
		Name:       name,
		StorageKey: key,
		Size:       size,
		MimeType:   guessMimeType(name),
	}
	if err := s.DB.CreateFile(r.Context(), f); err != nil {
		// No row, so the blob must not linger either.
		if rerr := s.Blobs.Remove(key); rerr != nil {
			s.Logger.Error("orphaned blob after failed create", "key", key, "err", rerr)
		}
		s.writeDomainErr(w, r, "create file", err)
		return
	}

	writeJSON(w, http.StatusOK, fileItem(f))
}

// handleFileByID dispatches /api/files/{id}[/{action}].
func (s *Server) handleFileByID(w http.ResponseWriter, r *http.Request) {
	fileID, action, ok := pathID(r.URL.Path, "/api/files/")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	u := currentUser(r)

	switch {
	case action == "" && r.Method == http.MethodDelete:
		s.deleteFile(w, r, fileID)
	case action == "rename" && r.Method == http.MethodPost:
		s.renameFile(w, r, fileID)
	case action == "move" && r.Method == http.MethodPost:
		s.moveFile(w, r, fileID)
	case action == "download" && r.Method == http.MethodGet:
		f, ok, err := s.DB.GetFileForUser(r.Context(), fileID, u.ID)
		if err != nil {
			s.serverError(w, r, "get file", err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		s.serveFile(w, r, f)
	case action == "preview" && r.Method == http.MethodGet:
		s.previewFile(w, r, fileID)
	case action == "share" && r.Method == http.MethodPost:
		s.createShare(w, r, fileID)
	case action == "share" && r.Method == http.MethodGet:
		s.listShares(w, r, fileID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// deleteFile removes the blob first, then the row and quota in one
// transaction. An absent blob is fine; any other removal failure aborts
// with the row intact so a retry can finish the job.
func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request, fileID int64) {
	u := currentUser(r)
	f, ok, err := s.DB.GetFileForUser(r.Context(), fileID, u.ID)
	if err != nil {
		s.serverError(w, r, "get file", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if err := s.Blobs.Remove(f.StorageKey); err != nil {
		s.Logger.Error("blob removal failed, row kept", "key", f.StorageKey, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
		return
	}
	if err := s.DB.DeleteFile(r.Context(), f.ID, u.ID, f.Size); err != nil {
		s.writeDomainErr(w, r, "delete file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

func (s *Server) renameFile(w http.ResponseWriter, r *http.Request, fileID int64) {
	u := currentUser(r)
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	name, err := validate.DisplayName(req.Name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.DB.RenameFile(r.Context(), fileID, u.ID, name); err != nil {
		s.writeDomainErr(w, r, "rename file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

func (s *Server) moveFile(w http.ResponseWriter, r *http.Request, fileID int64) {
	u := currentUser(r)
	var req struct {
		FolderID int64 `json:"folder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.FolderID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid folder id"})
		return
	}
	if err := s.DB.MoveFile(r.Context(), fileID, req.FolderID, u.ID); err != nil {
		s.writeDomainErr(w, r, "move file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

func (s *Server) previewFile(w http.ResponseWriter, r *http.Request, fileID int64) {
	u := currentUser(r)
	f, ok, err := s.DB.GetFileForUser(r.Context(), fileID, u.ID)
	if err != nil {
		s.serverError(w, r, "get file", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":  f.Name,
		"url":       "/api/files/" + strconv.FormatInt(f.ID, 10) + "/download",
		"mime_type": f.MimeType,
		"size":      f.Size,
	})
}

// serveFile streams a blob as an attachment under its display name.
// Shared between owner downloads and token downloads.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, f *db.File) {
	blobFile, err := s.Blobs.Open(f.StorageKey)
	if err != nil {
		s.Logger.Error("blob missing for file row", "key", f.StorageKey, "err", err)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	defer blobFile.Close()

	w.Header().Set("content-type", f.MimeType)
	w.Header().Set("content-disposition", `attachment; filename="`+escapeQuotes(f.Name)+`"`)
	http.ServeContent(w, r, f.Name, time.Unix(f.CreatedAt, 0), blobFile)
}

// guessMimeType maps a display name's extension to a MIME type,
// defaulting to application/octet-stream. Parameters are dropped so the
// stored type stays a bare media type.
func guessMimeType(name string) string {
	t := mime.TypeByExtension(filepath.Ext(name))
	if t == "" {
		return "application/octet-stream"
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
