package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	"cdrive/internal/db"
)

const bytesPerMiB = 1048576

type fileEntry struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Size      int64   `json:"size"`
	SizeMB    float64 `json:"size_mb"`
	SizeHuman string  `json:"size_human"`
	MimeType  string  `json:"mime_type"`
	CreatedAt int64   `json:"created_at"`
}

type folderEntry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

type storageSummary struct {
	UsedBytes  int64   `json:"used_bytes"`
	LimitBytes int64   `json:"limit_bytes"`
	UsedMB     float64 `json:"used_mb"`
	LimitMB    float64 `json:"limit_mb"`
	UsedHuman  string  `json:"used_human"`
	LimitHuman string  `json:"limit_human"`
	Percentage float64 `json:"percentage"`
}

func fileItem(f *db.File) fileEntry {
	return fileEntry{
		ID:        f.ID,
		Name:      f.Name,
		Size:      f.Size,
		SizeMB:    float64(f.Size) / bytesPerMiB,
		SizeHuman: humanize.IBytes(uint64(f.Size)),
		MimeType:  f.MimeType,
		CreatedAt: f.CreatedAt,
	}
}

func summarizeStorage(u *db.User) storageSummary {
	pct := 0.0
	if u.StorageLimit > 0 {
		pct = float64(u.StorageUsed) / float64(u.StorageLimit) * 100
	}
	return storageSummary{
		UsedBytes:  u.StorageUsed,
		LimitBytes: u.StorageLimit,
		UsedMB:     float64(u.StorageUsed) / bytesPerMiB,
		LimitMB:    float64(u.StorageLimit) / bytesPerMiB,
		UsedHuman:  humanize.IBytes(uint64(u.StorageUsed)),
		LimitHuman: humanize.IBytes(uint64(u.StorageLimit)),
		Percentage: pct,
	}
}

// handleList serves /api/list and /api/search: the scoped, filtered,
// sorted view of one folder (or the root level) plus the storage summary.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	u := currentUser(r)
	q := r.URL.Query()

	opt := db.ListOptions{
		Query:     q.Get("q"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if opt.SortBy == "" {
		opt.SortBy = "created_at"
	}
	if opt.SortOrder == "" {
		opt.SortOrder = "desc"
	}

	var current *db.Folder
	if v := q.Get("folder_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid folder id"})
			return
		}
		folder, ok, err := s.DB.GetFolderForUser(r.Context(), id, u.ID)
		if err != nil {
			s.serverError(w, r, "get folder", err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		current = folder
		opt.FolderID = &folder.ID
	}

	files, err := s.DB.ListFiles(r.Context(), u.ID, opt)
	if err != nil {
		s.serverError(w, r, "list files", err)
		return
	}
	folders, err := s.DB.ListFolders(r.Context(), u.ID, opt)
	if err != nil {
		s.serverError(w, r, "list folders", err)
		return
	}

	fileOut := make([]fileEntry, 0, len(files))
	for i := range files {
		fileOut = append(fileOut, fileItem(&files[i]))
	}
	folderOut := make([]folderEntry, 0, len(folders))
	for _, f := range folders {
		folderOut = append(folderOut, folderEntry{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt})
	}

	resp := map[string]any{
		"files":      fileOut,
		"folders":    folderOut,
		"storage":    summarizeStorage(u),
		"sort_by":    opt.SortBy,
		"sort_order": opt.SortOrder,
		"query":      opt.Query,
	}
	if current != nil {
		resp["folder"] = map[string]any{
			"id":               current.ID,
			"name":             current.Name,
			"parent_folder_id": current.ParentID,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
