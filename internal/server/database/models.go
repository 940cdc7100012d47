package database

import "github.com/google/uuid"

// User is an account able to own workers and hold storage access grants.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
}

// Storage is a logical bucket backed by one Telegram chat.
type Storage struct {
	ID     uuid.UUID
	Name   string
	ChatID int64
}

// StorageWithInfo carries aggregate file statistics alongside a storage.
type StorageWithInfo struct {
	Storage
	FilesAmount int64
	Size        int64
}

// StorageWorker is a bot token usable to call the Telegram API on behalf
// of at most one storage. StorageID stays nil until the worker is assigned.
type StorageWorker struct {
	ID        uuid.UUID
	Name      string
	Token     string
	UserID    uuid.UUID
	StorageID *uuid.UUID
}

// File is a row of the flat path-keyed virtual filesystem. A path ending
// with "/" represents a folder. Rows with IsUploaded=false are invisible
// to filesystem queries until their chunk transfer completes.
type File struct {
	ID         uuid.UUID
	Path       string
	Size       int64
	StorageID  uuid.UUID
	IsUploaded bool
}

// FileChunk maps one fixed-size slice of a file to the Telegram document
// holding its bytes. Positions are dense 0-based ordinals.
type FileChunk struct {
	ID             uuid.UUID
	FileID         uuid.UUID
	TelegramFileID string
	Position       int16
}

// FSElement is one entry of a directory listing.
type FSElement struct {
	Name   string `json:"name"`
	IsFile bool   `json:"is_file"`
	Size   int64  `json:"size"`
}

// SearchFSElement is one path matched by a search query.
type SearchFSElement struct {
	Path   string `json:"path"`
	IsFile bool   `json:"is_file"`
}

// AccessType is the permission level of a storage access grant.
type AccessType string

const (
	AccessRead  AccessType = "r"
	AccessWrite AccessType = "w"
	AccessAdmin AccessType = "a"
)

// Covers reports whether a grant of level a satisfies a required level.
// Admin covers write, write covers read.
func (a AccessType) Covers(required AccessType) bool {
	switch a {
	case AccessAdmin:
		return true
	case AccessWrite:
		return required != AccessAdmin
	case AccessRead:
		return required == AccessRead
	default:
		return false
	}
}
