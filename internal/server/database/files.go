package database

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// FilesRepository implements the virtual filesystem over the flat
// path-keyed files table. Directory structure is always derived from
// path prefixes, never materialized as a tree.
type FilesRepository struct {
	db *DB
}

// NewFilesRepository creates a new files repository.
func NewFilesRepository(db *DB) *FilesRepository {
	return &FilesRepository{db: db}
}

// CreateFile inserts a not-yet-uploaded file row. A path conflict within
// the storage surfaces as ErrAlreadyExists.
func (r *FilesRepository) CreateFile(ctx context.Context, filePath string, size int64, storageID uuid.UUID) (*File, error) {
	id := uuid.New()

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO files (id, path, size, storage_id, is_uploaded)
		VALUES ($1, $2, $3, $4, false)
	`, id, filePath, size, storageID)
	if err != nil {
		return nil, classify(err)
	}

	return &File{ID: id, Path: filePath, Size: size, StorageID: storageID}, nil
}

// createAnywayAttempts bounds the retry loop that absorbs concurrent
// inserts racing for the same copy number.
const createAnywayAttempts = 3

// CreateFileAnyway inserts a file row, picking a free "name (n).ext"
// variant when the requested path is taken. The read-and-insert runs in
// one transaction; a unique-violation race restarts the whole attempt.
func (r *FilesRepository) CreateFileAnyway(ctx context.Context, filePath string, size int64, storageID uuid.UUID) (*File, error) {
	for attempt := 0; attempt < createAnywayAttempts; attempt++ {
		file, err := r.tryCreateAnyway(ctx, filePath, size, storageID)
		if err == nil {
			return file, nil
		}
		if !isUniqueViolation(err) {
			return nil, classify(err)
		}
	}
	return nil, ErrInternal
}

func (r *FilesRepository) tryCreateAnyway(ctx context.Context, filePath string, size int64, storageID uuid.UUID) (*File, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var taken bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM files WHERE storage_id = $1 AND path = $2)",
		storageID, filePath,
	).Scan(&taken)
	if err != nil {
		return nil, err
	}

	finalPath := filePath
	if taken {
		finalPath, err = r.nextFreePath(ctx, tx, filePath, storageID)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO files (id, path, size, storage_id, is_uploaded)
		VALUES ($1, $2, $3, $4, false)
	`, id, finalPath, size, storageID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &File{ID: id, Path: finalPath, Size: size, StorageID: storageID}, nil
}

// nextFreePath picks the lowest positive copy number not used by a
/// sibling row: "a/b.txt" taken and {1,2,4} in use gives "a/b (3).txt".
func (r *FilesRepository) nextFreePath(ctx context.Context, tx pgx.Tx, filePath string, storageID uuid.UUID) (string, error) {
	stem, suffix := splitCopyName(filePath)

	pattern := likeEscape(stem) + ` (%)` + likeEscape(suffix)
	rows, err := tx.Query(ctx, `
		SELECT path FROM files
		WHERE storage_id = $1 AND path LIKE $2 ESCAPE '\'
	`, storageID, pattern)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	numbered := regexp.MustCompile(
		`^` + regexp.QuoteMeta(stem) + ` \((\d+)\)` + regexp.QuoteMeta(suffix) + `$`,
	)

	used := make(map[int]bool)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return "", err
		}
		if m := numbered.FindStringSubmatch(p); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				used[n] = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	n := 1
	for used[n] {
		n++
	}
	return fmt.Sprintf("%s (%d)%s", stem, n, suffix), nil
}

// CreateFolder inserts a folder row. Folder paths end with "/" and are
// visible immediately since folders have no transfer step.
func (r *FilesRepository) CreateFolder(ctx context.Context, folderPath string, storageID uuid.UUID) (*File, error) {
	id := uuid.New()

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO files (id, path, size, storage_id, is_uploaded)
		VALUES ($1, $2, 0, $3, true)
	`, id, folderPath, storageID)
	if err != nil {
		return nil, classify(err)
	}

	return &File{ID: id, Path: folderPath, StorageID: storageID, IsUploaded: true}, nil
}

// GetFileByPath looks up a single row by its exact path.
func (r *FilesRepository) GetFileByPath(ctx context.Context, filePath string, storageID uuid.UUID) (*File, error) {
	file := &File{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, path, size, storage_id, is_uploaded
		FROM files
		WHERE storage_id = $1 AND path = $2
	`, storageID, filePath).Scan(&file.ID, &file.Path, &file.Size, &file.StorageID, &file.IsUploaded)
	if err != nil {
		return nil, classify(err)
	}
	return file, nil
}

// ListDir returns the entries directly under prefix (no leading or
// trailing slash; empty string means the root). Intermediate segments
// are synthesized by the grouping, so folders exist in listings even
// without a row of their own. Folder sizes aggregate the whole subtree.
// Only uploaded rows are considered.
func (r *FilesRepository) ListDir(ctx context.Context, storageID uuid.UUID, prefix string) ([]FSElement, error) {
	pfx := ""
	if prefix != "" {
		pfx = prefix + "/"
	}

	rows, err := r.db.Pool.Query(ctx, `
		WITH children AS (
			SELECT substr(path, char_length($2::varchar) + 1) AS rest, size
			FROM files
			WHERE storage_id = $1
			  AND is_uploaded
			  AND path LIKE $3 ESCAPE '\'
		)
		SELECT split_part(rest, '/', 1)            AS name,
		       bool_or(rest = split_part(rest, '/', 1)) AS is_file,
		       COALESCE(SUM(size), 0)::BIGINT     AS size
		FROM children
		WHERE split_part(rest, '/', 1) <> ''
		GROUP BY 1
		ORDER BY 2, 1
	`, storageID, pfx, likeEscape(pfx)+"%")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var elements []FSElement
	for rows.Next() {
		var el FSElement
		if err := rows.Scan(&el.Name, &el.IsFile, &el.Size); err != nil {
			return nil, classify(err)
		}
		elements = append(elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return elements, nil
}

// Search returns uploaded paths under prefix containing needle,
// case-insensitively. A trailing slash marks folders.
func (r *FilesRepository) Search(ctx context.Context, storageID uuid.UUID, prefix, needle string) ([]SearchFSElement, error) {
	pfx := ""
	if prefix != "" {
		pfx = prefix + "/"
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT path, path NOT LIKE '%/' AS is_file
		FROM files
		WHERE storage_id = $1
		  AND is_uploaded
		  AND path LIKE $2 ESCAPE '\'
		  AND path ILIKE $3 ESCAPE '\'
		ORDER BY path
	`, storageID, likeEscape(pfx)+"%", "%"+likeEscape(needle)+"%")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var elements []SearchFSElement
	for rows.Next() {
		var el SearchFSElement
		if err := rows.Scan(&el.Path, &el.IsFile); err != nil {
			return nil, classify(err)
		}
		elements = append(elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return elements, nil
}

// Rename rewrites oldPath and everything nested under oldPath + "/" to
// start with newPath instead, in a single statement. Paths are given
// without a trailing slash; unrelated siblings sharing the prefix text
// (e.g. "ab/" when renaming "a") are untouched.
func (r *FilesRepository) Rename(ctx context.Context, storageID uuid.UUID, oldPath, newPath string) error {
	oldPath = strings.TrimSuffix(oldPath, "/")
	newPath = strings.TrimSuffix(newPath, "/")

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE files
		SET path = $4 || substr(path, char_length($3::varchar) + 1)
		WHERE storage_id = $1
		  AND (path = $3 OR path LIKE $2 ESCAPE '\')
	`, storageID, likeEscape(oldPath)+"/%", oldPath, newPath)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a file (exact path) or a whole folder (path ending with
// "/") in one transaction. If the parent directory is left without any
// rows, an empty-folder placeholder is inserted for it so the parent
// stays visible in listings.
func (r *FilesRepository) Delete(ctx context.Context, filePath string, storageID uuid.UUID) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	var tag pgconn.CommandTag
	if strings.HasSuffix(filePath, "/") {
		tag, err = tx.Exec(ctx, `
			DELETE FROM files
			WHERE storage_id = $1 AND path LIKE $2 ESCAPE '\'
		`, storageID, likeEscape(filePath)+"%")
	} else {
		tag, err = tx.Exec(ctx,
			"DELETE FROM files WHERE storage_id = $1 AND path = $2",
			storageID, filePath)
	}
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if parent := parentDir(filePath); parent != "" {
		var occupied bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM files
				WHERE storage_id = $1 AND path LIKE $2 ESCAPE '\'
			)
		`, storageID, likeEscape(parent)+"%").Scan(&occupied)
		if err != nil {
			return classify(err)
		}

		if !occupied {
			_, err = tx.Exec(ctx, `
				INSERT INTO files (id, path, size, storage_id, is_uploaded)
				VALUES ($1, $2, 0, $3, true)
			`, uuid.New(), parent, storageID)
			if err != nil {
				return classify(err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// SetUploaded marks a file visible to filesystem queries.
func (r *FilesRepository) SetUploaded(ctx context.Context, fileID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx,
		"UPDATE files SET is_uploaded = true WHERE id = $1", fileID)
	if err != nil {
		return classify(err)
	}
	return nil
}

// DeleteByID removes a file row; its chunks go with it via the cascade.
// Used to roll back a failed upload.
func (r *FilesRepository) DeleteByID(ctx context.Context, fileID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, "DELETE FROM files WHERE id = $1", fileID)
	if err != nil {
		return classify(err)
	}
	return nil
}

// CreateChunksBatch persists all chunk rows of one file in a single
// transaction.
func (r *FilesRepository) CreateChunksBatch(ctx context.Context, chunks []FileChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO file_chunks (id, file_id, telegram_file_id, position)
			VALUES ($1, $2, $3, $4)
		`, c.ID, c.FileID, c.TelegramFileID, c.Position)
	}

	if err := r.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return classify(err)
	}
	return nil
}

// ListChunksOfFile returns all chunk rows of a file.
func (r *FilesRepository) ListChunksOfFile(ctx context.Context, fileID uuid.UUID) ([]FileChunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, file_id, telegram_file_id, position
		FROM file_chunks
		WHERE file_id = $1
	`, fileID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var chunks []FileChunk
	for rows.Next() {
		var c FileChunk
		if err := rows.Scan(&c.ID, &c.FileID, &c.TelegramFileID, &c.Position); err != nil {
			return nil, classify(err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return chunks, nil
}

// --- Helpers ---

// splitCopyName splits a path into the stem that copy numbers attach to
// and the extension suffix: "a/b.txt" gives ("a/b", ".txt").
func splitCopyName(p string) (stem, suffix string) {
	suffix = path.Ext(p)
	return strings.TrimSuffix(p, suffix), suffix
}

// parentDir returns the enclosing folder path (with trailing slash) of a
// file or folder path, or "" for entries at the root.
func parentDir(p string) string {
	p = strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx+1]
}

// likeEscape escapes LIKE wildcards so user paths match literally.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
