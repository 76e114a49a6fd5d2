// Persistence models for cdrive.
package db

// User is an account with a byte quota. StorageUsed is a running total
// maintained transactionally with file creation and deletion.
type User struct {
	ID           int64
	Username     string
	PassHash     string
	StorageLimit int64
	StorageUsed  int64
	CreatedAt    int64
}

// Folder is a node in a per-user folder forest. ParentID is nil for
// root-level folders. Folders are created under a fixed parent and never
// reparented, so no cycle can form.
type Folder struct {
	ID        int64
	UserID    int64
	ParentID  *int64
	Name      string
	CreatedAt int64
}

// File is a stored object. Name is the user-facing display name;
// StorageKey addresses the blob and never changes. Size is immutable
// after creation.
type File struct {
	ID         int64
	UserID     int64
	FolderID   *int64
	Name       string
	StorageKey string
	Size       int64
	MimeType   string
	CreatedAt  int64
}

// ShareToken grants unauthenticated download access to one file.
// A file may carry any number of tokens; none expire.
type ShareToken struct {
	ID        int64
	FileID    int64
	Token     string
	CreatedAt int64
}

// Session is an authenticated browser session.
type Session struct {
	Token     string
	UserID    int64
	CreatedAt int64
	ExpiresAt int64
}
