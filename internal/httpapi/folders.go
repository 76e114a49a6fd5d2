package httpapi

import (
	"encoding/json"
	"net/http"

	"cdrive/internal/validate"
)

// handleFolders creates a folder at root or under an owned parent.
func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	u := currentUser(r)

	var req struct {
		Name     string `json:"name"`
		ParentID *int64 `json:"parent_folder_id"`
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
	if req.ParentID != nil && *req.ParentID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid parent folder id"})
		return
	}

	id, err := s.DB.CreateFolder(r.Context(), u.ID, name, req.ParentID)
	if err != nil {
		s.writeDomainErr(w, r, "create folder", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

// handleFolderByID dispatches /api/folders/{id}[/{action}].
func (s *Server) handleFolderByID(w http.ResponseWriter, r *http.Request) {
	folderID, action, ok := pathID(r.URL.Path, "/api/folders/")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		s.deleteFolder(w, r, folderID)
	case action == "rename" && r.Method == http.MethodPost:
		s.renameFolder(w, r, folderID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) renameFolder(w http.ResponseWriter, r *http.Request, folderID int64) {
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
	if err := s.DB.RenameFolder(r.Context(), folderID, u.ID, name); err != nil {
		s.writeDomainErr(w, r, "rename folder", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// deleteFolder collects every file in the subtree, removes their blobs,
// then drops the folder row and releases the summed sizes in one
// transaction. Row cascade alone would leak blobs and quota, so the
// transitive walk is explicit. A hard blob-removal failure aborts before
// any row is touched; removal is idempotent, so a retry completes it.
func (s *Server) deleteFolder(w http.ResponseWriter, r *http.Request, folderID int64) {
	u := currentUser(r)
	files, err := s.DB.CollectFolderFiles(r.Context(), folderID, u.ID)
	if err != nil {
		s.writeDomainErr(w, r, "collect folder files", err)
		return
	}

	var release int64
	for _, f := range files {
		if err := s.Blobs.Remove(f.StorageKey); err != nil {
			s.Logger.Error("blob removal failed, folder kept", "key", f.StorageKey, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
			return
		}
		release += f.Size
	}

	if err := s.DB.DeleteFolder(r.Context(), folderID, u.ID, release); err != nil {
		s.writeDomainErr(w, r, "delete folder", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}
