package service

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Dominux/Pentaract/internal/server/database"
	"github.com/Dominux/Pentaract/internal/server/engine"
)

// TransferBridge routes upload/download work through the single-writer
// storage manager.
type TransferBridge interface {
	Upload(ctx context.Context, fileID, storageID uuid.UUID, chatID int64, data []byte) error
	Download(ctx context.Context, fileID, storageID uuid.UUID) ([]byte, error)
}

// FilesService is the virtual-filesystem facade: it validates paths,
// enforces access, keeps the catalog consistent and hands transfer work
// to the bridge.
type FilesService struct {
	files    *database.FilesRepository
	storages *database.StoragesRepository
	workers  *database.WorkersRepository
	access   *database.AccessRepository
	bridge   TransferBridge
}

// NewFilesService creates a new files service.
func NewFilesService(
	files *database.FilesRepository,
	storages *database.StoragesRepository,
	workers *database.WorkersRepository,
	access *database.AccessRepository,
	bridge TransferBridge,
) *FilesService {
	return &FilesService{
		files:    files,
		storages: storages,
		workers:  workers,
		access:   access,
		bridge:   bridge,
	}
}

// UploadTo stores data under parentPath/filename. The exact path must be
// free; a conflict surfaces as database.ErrAlreadyExists.
func (s *FilesService) UploadTo(ctx context.Context, user AuthUser, storageID uuid.UUID, parentPath, filename string, data []byte) error {
	filePath, err := ConstructPath(parentPath, filename)
	if err != nil {
		return err
	}

	return s.upload(ctx, user, storageID, data, func(ctx context.Context) (*database.File, error) {
		return s.files.CreateFile(ctx, filePath, int64(len(data)), storageID)
	})
}

// UploadAnyway stores data under parentPath/filename, auto-picking a
// "name (n).ext" variant when the path is taken. Never conflicts.
func (s *FilesService) UploadAnyway(ctx context.Context, user AuthUser, storageID uuid.UUID, parentPath, filename string, data []byte) error {
	filePath, err := ConstructPath(parentPath, filename)
	if err != nil {
		return err
	}

	return s.upload(ctx, user, storageID, data, func(ctx context.Context) (*database.File, error) {
		return s.files.CreateFileAnyway(ctx, filePath, int64(len(data)), storageID)
	})
}

func (s *FilesService) upload(ctx context.Context, user AuthUser, storageID uuid.UUID, data []byte, createRow func(context.Context) (*database.File, error)) error {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessWrite); err != nil {
		return err
	}

	// Without this guard the scheduler would poll forever; rejected as a
	// distinct error before any row is written.
	has, err := s.workers.StorageHasAny(ctx, storageID)
	if err != nil {
		return err
	}
	if !has {
		return engine.ErrNoWorkers
	}

	storage, err := s.storages.GetByID(ctx, storageID)
	if err != nil {
		return err
	}

	file, err := createRow(ctx)
	if err != nil {
		return err
	}

	// The engine marks the row uploaded on success and deletes it on
	// failure, so there is nothing to compensate here.
	return s.bridge.Upload(ctx, file.ID, storageID, storage.ChatID, data)
}

// Download returns the reassembled bytes of the file at filePath along
// with its base name. Files still mid-upload are invisible.
func (s *FilesService) Download(ctx context.Context, user AuthUser, storageID uuid.UUID, filePath string) ([]byte, string, error) {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessRead); err != nil {
		return nil, "", err
	}
	if !validFilePath(filePath) {
		return nil, "", ErrInvalidPath
	}

	file, err := s.files.GetFileByPath(ctx, filePath, storageID)
	if err != nil {
		return nil, "", err
	}
	if !file.IsUploaded {
		return nil, "", database.ErrNotFound
	}

	data, err := s.bridge.Download(ctx, file.ID, storageID)
	if err != nil {
		return nil, "", err
	}
	return data, path.Base(file.Path), nil
}

// CreateFolder creates folderName under parentPath. Folders are visible
// immediately.
func (s *FilesService) CreateFolder(ctx context.Context, user AuthUser, storageID uuid.UUID, parentPath, folderName string) error {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessWrite); err != nil {
		return err
	}
	if !validPath(parentPath) {
		return ErrInvalidPath
	}
	if folderName == "" || strings.Contains(folderName, "/") {
		return ErrInvalidFolderName
	}

	folderPath := folderName + "/"
	if parentPath != "" {
		folderPath = parentPath + "/" + folderPath
	}

	_, err := s.files.CreateFolder(ctx, folderPath, storageID)
	return err
}

// ListDir lists the entries directly under prefix ("" for the root).
func (s *FilesService) ListDir(ctx context.Context, user AuthUser, storageID uuid.UUID, prefix string) ([]database.FSElement, error) {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessRead); err != nil {
		return nil, err
	}

	prefix = strings.Trim(prefix, "/")
	return s.files.ListDir(ctx, storageID, prefix)
}

// Search finds paths under prefix containing needle, case-insensitively.
func (s *FilesService) Search(ctx context.Context, user AuthUser, storageID uuid.UUID, prefix, needle string) ([]database.SearchFSElement, error) {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessRead); err != nil {
		return nil, err
	}

	prefix = strings.Trim(prefix, "/")
	return s.files.Search(ctx, storageID, prefix, needle)
}

// Rename moves oldPath (a file, or a folder with all of its contents)
// to newPath.
func (s *FilesService) Rename(ctx context.Context, user AuthUser, storageID uuid.UUID, oldPath, newPath string) error {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessWrite); err != nil {
		return err
	}
	if !validPath(oldPath) || !validPath(newPath) || oldPath == "" || newPath == "" {
		return ErrInvalidPath
	}

	return s.files.Rename(ctx, storageID, oldPath, newPath)
}

// Delete removes a file, or a whole folder when the path ends with "/".
func (s *FilesService) Delete(ctx context.Context, user AuthUser, storageID uuid.UUID, filePath string) error {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessWrite); err != nil {
		return err
	}
	if !validPath(filePath) || filePath == "" {
		return ErrInvalidPath
	}

	return s.files.Delete(ctx, filePath, storageID)
}

// --- Helpers ---

// ConstructPath joins a parent prefix and a file name into a full
// virtual path, rejecting malformed input.
func ConstructPath(parentPath, filename string) (string, error) {
	if !validPath(parentPath) {
		return "", ErrInvalidPath
	}
	if filename == "" || strings.Contains(filename, "/") {
		return "", ErrInvalidPath
	}

	if parentPath == "" {
		return filename, nil
	}
	return parentPath + "/" + filename, nil
}

// validPath accepts relative paths without empty segments.
func validPath(p string) bool {
	return !strings.HasPrefix(p, "/") && !strings.Contains(p, "//")
}

// validFilePath additionally rejects folder paths.
func validFilePath(p string) bool {
	return validPath(p) && p != "" && !strings.HasSuffix(p, "/")
}
