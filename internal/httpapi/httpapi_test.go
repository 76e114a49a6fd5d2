// Package httpapi tests drive the JSON API end to end against a real
// SQLite database and an in-memory blob store.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cdrive/internal/blob"
	"cdrive/internal/db"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	d, err := db.Open(context.Background(), t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	s := &Server{
		DB:     d,
		Blobs:  blob.NewMem(),
		Logger: testLogger(),
	}
	t.Cleanup(s.Close)
	return s, s.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, rd)
	r.Header.Set("content-type", "application/json")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func registerAndLogin(t *testing.T, h http.Handler, username string) *http.Cookie {
	t.Helper()
	creds := map[string]string{"username": username, "password": "hunter22"}
	if w := doJSON(t, h, "POST", "/api/register", creds, nil); w.Code != 200 {
		t.Fatalf("register: status=%d body=%s", w.Code, w.Body.String())
	}
	w := doJSON(t, h, "POST", "/api/login", creds, nil)
	if w.Code != 200 {
		t.Fatalf("login: status=%d body=%s", w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie set")
	return nil
}

func upload(t *testing.T, h http.Handler, cookie *http.Cookie, name, content, folderID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if folderID != "" {
		if err := mw.WriteField("folder_id", folderID); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	_ = mw.Close()

	r := httptest.NewRequest("POST", "/api/upload", &buf)
	r.Header.Set("content-type", mw.FormDataContentType())
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

// TestAuthFlow covers register, duplicate register, bad login, and the
// 401 on unauthenticated listing.
func TestAuthFlow(t *testing.T) {
	_, h := newTestServer(t)

	creds := map[string]string{"username": "alice", "password": "hunter22"}
	if w := doJSON(t, h, "POST", "/api/register", creds, nil); w.Code != 200 {
		t.Fatalf("register: status=%d", w.Code)
	}
	if w := doJSON(t, h, "POST", "/api/register", creds, nil); w.Code != 400 {
		t.Fatalf("duplicate register: status=%d", w.Code)
	}
	bad := map[string]string{"username": "alice", "password": "wrong"}
	if w := doJSON(t, h, "POST", "/api/login", bad, nil); w.Code != 401 {
		t.Fatalf("bad login: status=%d", w.Code)
	}
	if w := doJSON(t, h, "GET", "/api/list", nil, nil); w.Code != 401 {
		t.Fatalf("unauthenticated list: status=%d", w.Code)
	}

	cookie := registerAndLogin(t, h, "bob")
	if w := doJSON(t, h, "GET", "/api/list", nil, cookie); w.Code != 200 {
		t.Fatalf("list: status=%d body=%s", w.Code, w.Body.String())
	}

	if w := doJSON(t, h, "POST", "/api/logout", nil, cookie); w.Code != 200 {
		t.Fatalf("logout: status=%d", w.Code)
	}
	if w := doJSON(t, h, "GET", "/api/list", nil, cookie); w.Code != 401 {
		t.Fatalf("list after logout: status=%d", w.Code)
	}
}

// TestUploadQuota rejects an upload that would cross the limit without
// creating anything, and accepts one that lands exactly on it.
func TestUploadQuota(t *testing.T) {
	s, h := newTestServer(t)
	cookie := registerAndLogin(t, h, "carol")

	ctx := context.Background()
	u, _, err := s.DB.GetUserByUsername(ctx, "carol")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if err := s.DB.SetStorageLimit(ctx, u.ID, 100); err != nil {
		t.Fatalf("SetStorageLimit: %v", err)
	}

	if w := upload(t, h, cookie, "a.bin", strings.Repeat("x", 90), ""); w.Code != 200 {
		t.Fatalf("upload within quota: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := upload(t, h, cookie, "b.bin", strings.Repeat("y", 11), ""); w.Code != 413 {
		t.Fatalf("upload over quota: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := upload(t, h, cookie, "c.bin", strings.Repeat("z", 10), ""); w.Code != 200 {
		t.Fatalf("upload to exact limit: status=%d body=%s", w.Code, w.Body.String())
	}

	u, _, _ = s.DB.GetUserByID(ctx, u.ID)
	if u.StorageUsed != 100 {
		t.Fatalf("storage_used=%d, want 100", u.StorageUsed)
	}

	w := doJSON(t, h, "GET", "/api/list", nil, cookie)
	body := decodeBody(t, w)
	storage := body["storage"].(map[string]any)
	if storage["percentage"].(float64) != 100 {
		t.Fatalf("percentage=%v", storage["percentage"])
	}
	files := body["files"].([]any)
	if len(files) != 2 {
		t.Fatalf("files=%d, want 2", len(files))
	}
}

// TestFolderScopeAndSearch uploads into a folder and checks scoping,
// query filtering, and the invalid sort key fallback.
func TestFolderScopeAndSearch(t *testing.T) {
	_, h := newTestServer(t)
	cookie := registerAndLogin(t, h, "dave")

	w := doJSON(t, h, "POST", "/api/folders", map[string]any{"name": "docs"}, cookie)
	if w.Code != 200 {
		t.Fatalf("create folder: status=%d body=%s", w.Code, w.Body.String())
	}
	folderID := fmt.Sprintf("%.0f", decodeBody(t, w)["id"].(float64))

	if w := upload(t, h, cookie, "report.pdf", "pdfdata", folderID); w.Code != 200 {
		t.Fatalf("upload to folder: status=%d", w.Code)
	}
	if w := upload(t, h, cookie, "notes.txt", "rootdata", ""); w.Code != 200 {
		t.Fatalf("upload to root: status=%d", w.Code)
	}

	// Root scope shows only the root file and the folder.
	body := decodeBody(t, doJSON(t, h, "GET", "/api/list", nil, cookie))
	if n := len(body["files"].([]any)); n != 1 {
		t.Fatalf("root files=%d", n)
	}
	if n := len(body["folders"].([]any)); n != 1 {
		t.Fatalf("root folders=%d", n)
	}

	// Folder scope shows its file and echoes folder metadata.
	body = decodeBody(t, doJSON(t, h, "GET", "/api/list?folder_id="+folderID, nil, cookie))
	files := body["files"].([]any)
	if len(files) != 1 || files[0].(map[string]any)["name"] != "report.pdf" {
		t.Fatalf("folder files=%v", files)
	}
	if body["folder"].(map[string]any)["name"] != "docs" {
		t.Fatalf("folder meta=%v", body["folder"])
	}

	// Search is case-insensitive and scoped to root here.
	body = decodeBody(t, doJSON(t, h, "GET", "/api/search?q=NOTES", nil, cookie))
	files = body["files"].([]any)
	if len(files) != 1 || files[0].(map[string]any)["name"] != "notes.txt" {
		t.Fatalf("search results=%v", files)
	}

	// Unknown folder is a 404; bogus sort key is not an error.
	if w := doJSON(t, h, "GET", "/api/list?folder_id=9999", nil, cookie); w.Code != 404 {
		t.Fatalf("unknown folder: status=%d", w.Code)
	}
	if w := doJSON(t, h, "GET", "/api/list?sort_by=bogus", nil, cookie); w.Code != 200 {
		t.Fatalf("bogus sort: status=%d", w.Code)
	}
}

// TestRenameMoveDelete exercises the per-file actions and ownership.
func TestRenameMoveDelete(t *testing.T) {
	s, h := newTestServer(t)
	cookie := registerAndLogin(t, h, "erin")

	w := upload(t, h, cookie, "draft.txt", "contents", "")
	if w.Code != 200 {
		t.Fatalf("upload: status=%d", w.Code)
	}
	fileID := fmt.Sprintf("%.0f", decodeBody(t, w)["id"].(float64))

	w = doJSON(t, h, "POST", "/api/folders", map[string]any{"name": "inbox"}, cookie)
	folderID := decodeBody(t, w)["id"].(float64)

	if w := doJSON(t, h, "POST", "/api/files/"+fileID+"/rename", map[string]string{"name": ""}, cookie); w.Code != 400 {
		t.Fatalf("empty rename: status=%d", w.Code)
	}
	if w := doJSON(t, h, "POST", "/api/files/"+fileID+"/rename", map[string]string{"name": "final.txt"}, cookie); w.Code != 200 {
		t.Fatalf("rename: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := doJSON(t, h, "POST", "/api/files/"+fileID+"/move", map[string]any{"folder_id": folderID}, cookie); w.Code != 200 {
		t.Fatalf("move: status=%d body=%s", w.Code, w.Body.String())
	}

	// Another user cannot touch the file.
	other := registerAndLogin(t, h, "frank")
	if w := doJSON(t, h, "DELETE", "/api/files/"+fileID, nil, other); w.Code != 404 {
		t.Fatalf("foreign delete: status=%d", w.Code)
	}

	if w := doJSON(t, h, "DELETE", "/api/files/"+fileID, nil, cookie); w.Code != 200 {
		t.Fatalf("delete: status=%d body=%s", w.Code, w.Body.String())
	}

	u, _, _ := s.DB.GetUserByUsername(context.Background(), "erin")
	if u.StorageUsed != 0 {
		t.Fatalf("storage_used=%d after delete", u.StorageUsed)
	}
}

// TestShareFlow mints a token, downloads without a session, and checks
// that deleting the file kills the link.
func TestShareFlow(t *testing.T) {
	_, h := newTestServer(t)
	cookie := registerAndLogin(t, h, "grace")

	w := upload(t, h, cookie, "shared.txt", "public contents", "")
	fileID := fmt.Sprintf("%.0f", decodeBody(t, w)["id"].(float64))

	w = doJSON(t, h, "POST", "/api/files/"+fileID+"/share", nil, cookie)
	if w.Code != 200 {
		t.Fatalf("share: status=%d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	token := body["token"].(string)
	if !strings.Contains(body["share_link"].(string), "/d/"+token) {
		t.Fatalf("share_link=%v", body["share_link"])
	}

	// Second share mints a distinct token.
	w2 := doJSON(t, h, "POST", "/api/files/"+fileID+"/share", nil, cookie)
	if tok2 := decodeBody(t, w2)["token"].(string); tok2 == token {
		t.Fatalf("tokens must differ")
	}

	// Listing shows both tokens with links; another user sees a 404.
	wl := doJSON(t, h, "GET", "/api/files/"+fileID+"/share", nil, cookie)
	if wl.Code != 200 {
		t.Fatalf("list shares: status=%d body=%s", wl.Code, wl.Body.String())
	}
	toks := decodeBody(t, wl)["tokens"].([]any)
	if len(toks) != 2 {
		t.Fatalf("tokens=%d, want 2", len(toks))
	}
	if link := toks[0].(map[string]any)["share_link"].(string); !strings.Contains(link, "/d/") {
		t.Fatalf("share_link=%q", link)
	}
	other := registerAndLogin(t, h, "harry")
	if w := doJSON(t, h, "GET", "/api/files/"+fileID+"/share", nil, other); w.Code != 404 {
		t.Fatalf("foreign share list: status=%d", w.Code)
	}

	// Public download: no cookie.
	dl := doJSON(t, h, "GET", "/d/"+token, nil, nil)
	if dl.Code != 200 {
		t.Fatalf("token download: status=%d body=%s", dl.Code, dl.Body.String())
	}
	if dl.Body.String() != "public contents" {
		t.Fatalf("content=%q", dl.Body.String())
	}
	if cd := dl.Header().Get("content-disposition"); !strings.Contains(cd, "shared.txt") {
		t.Fatalf("content-disposition=%q", cd)
	}

	if w := doJSON(t, h, "GET", "/d/not-a-token", nil, nil); w.Code != 404 {
		t.Fatalf("bad token: status=%d", w.Code)
	}

	if w := doJSON(t, h, "DELETE", "/api/files/"+fileID, nil, cookie); w.Code != 200 {
		t.Fatalf("delete: status=%d", w.Code)
	}
	if w := doJSON(t, h, "GET", "/d/"+token, nil, nil); w.Code != 404 {
		t.Fatalf("token after delete: status=%d", w.Code)
	}
}

// TestDeleteFolderCascade removes a nested tree, its blobs, and the
// quota bytes in one request.
func TestDeleteFolderCascade(t *testing.T) {
	s, h := newTestServer(t)
	cookie := registerAndLogin(t, h, "heidi")

	w := doJSON(t, h, "POST", "/api/folders", map[string]any{"name": "top"}, cookie)
	top := decodeBody(t, w)["id"].(float64)
	topID := fmt.Sprintf("%.0f", top)
	w = doJSON(t, h, "POST", "/api/folders", map[string]any{"name": "nested", "parent_folder_id": int64(top)}, cookie)
	nested := decodeBody(t, w)["id"].(float64)

	w = upload(t, h, cookie, "inner.bin", "aaaa", fmt.Sprintf("%.0f", nested))
	if w.Code != 200 {
		t.Fatalf("upload nested: status=%d", w.Code)
	}

	ctx := context.Background()
	u, _, err := s.DB.GetUserByUsername(ctx, "heidi")
	if err != nil || u == nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	inner, err := s.DB.CollectFolderFiles(ctx, int64(nested), u.ID)
	if err != nil || len(inner) != 1 {
		t.Fatalf("CollectFolderFiles: %v files=%d", err, len(inner))
	}
	innerKey := inner[0].StorageKey

	upload(t, h, cookie, "outer.bin", "bbbb", topID)
	upload(t, h, cookie, "root.bin", "cc", "")

	if w := doJSON(t, h, "DELETE", "/api/folders/"+topID, nil, cookie); w.Code != 200 {
		t.Fatalf("delete folder: status=%d body=%s", w.Code, w.Body.String())
	}

	u, _, _ = s.DB.GetUserByUsername(ctx, "heidi")
	if u.StorageUsed != 2 {
		t.Fatalf("storage_used=%d, want 2", u.StorageUsed)
	}
	body := decodeBody(t, doJSON(t, h, "GET", "/api/list", nil, cookie))
	if n := len(body["folders"].([]any)); n != 0 {
		t.Fatalf("folders=%d after cascade", n)
	}
	if _, err := s.Blobs.Open(innerKey); err == nil {
		t.Fatalf("nested blob should be removed")
	}
}

// A panicking handler becomes a 500 JSON response instead of killing
// the process.
func TestRecoverMiddleware(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.withRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/list", nil))
	if w.Code != 500 {
		t.Fatalf("status=%d, want 500", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "server error" {
		t.Fatalf("body=%v", body)
	}
}

// Close must stop the rate limiter's cleanup goroutine and tolerate
// being called again.
func TestServerClose(t *testing.T) {
	s, _ := newTestServer(t)
	s.Close()
	select {
	case <-s.loginLimiter.stopCh:
	default:
		t.Fatalf("limiter still running after Close")
	}
	s.Close()
}

// TestPreview returns metadata only.
func TestPreview(t *testing.T) {
	_, h := newTestServer(t)
	cookie := registerAndLogin(t, h, "ivan")

	w := upload(t, h, cookie, "photo.png", "pngdata", "")
	fileID := fmt.Sprintf("%.0f", decodeBody(t, w)["id"].(float64))

	w = doJSON(t, h, "GET", "/api/files/"+fileID+"/preview", nil, cookie)
	if w.Code != 200 {
		t.Fatalf("preview: status=%d", w.Code)
	}
	body := decodeBody(t, w)
	if body["filename"] != "photo.png" {
		t.Fatalf("filename=%v", body["filename"])
	}
	if body["mime_type"] != "image/png" {
		t.Fatalf("mime_type=%v", body["mime_type"])
	}
	if !strings.HasSuffix(body["url"].(string), "/download") {
		t.Fatalf("url=%v", body["url"])
	}
}
