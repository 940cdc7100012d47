package database

import (
	"context"

	"github.com/google/uuid"
)

// StoragesRepository manages the storage buckets.
type StoragesRepository struct {
	db *DB
}

// NewStoragesRepository creates a new storages repository.
func NewStoragesRepository(db *DB) *StoragesRepository {
	return &StoragesRepository{db: db}
}

// Create inserts a storage. Chat ids are unique: one Telegram chat backs
// at most one storage.
func (r *StoragesRepository) Create(ctx context.Context, name string, chatID int64) (*Storage, error) {
	id := uuid.New()

	_, err := r.db.Pool.Exec(ctx,
		"INSERT INTO storages (id, name, chat_id) VALUES ($1, $2, $3)",
		id, name, chatID)
	if err != nil {
		return nil, classify(err)
	}

	return &Storage{ID: id, Name: name, ChatID: chatID}, nil
}

// GetByID returns a single storage.
func (r *StoragesRepository) GetByID(ctx context.Context, id uuid.UUID) (*Storage, error) {
	s := &Storage{}
	err := r.db.Pool.QueryRow(ctx,
		"SELECT id, name, chat_id FROM storages WHERE id = $1", id,
	).Scan(&s.ID, &s.Name, &s.ChatID)
	if err != nil {
		return nil, classify(err)
	}
	return s, nil
}

// ListByUserID returns the storages a user has access to, along with the
// number of uploaded files and their total size. Folder rows (trailing
// slash) are excluded from the aggregates.
func (r *StoragesRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]StorageWithInfo, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT s.id, s.name, s.chat_id,
		       COUNT(f.id)                  AS files_amount,
		       COALESCE(SUM(f.size), 0)::BIGINT AS size
		FROM storages s
		JOIN access a ON s.id = a.storage_id
		LEFT JOIN files f ON s.id = f.storage_id
		     AND f.is_uploaded AND f.path NOT LIKE '%/'
		WHERE a.user_id = $1
		GROUP BY s.id
		ORDER BY s.name
	`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var storages []StorageWithInfo
	for rows.Next() {
		var s StorageWithInfo
		if err := rows.Scan(&s.ID, &s.Name, &s.ChatID, &s.FilesAmount, &s.Size); err != nil {
			return nil, classify(err)
		}
		storages = append(storages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return storages, nil
}

// Delete removes a storage; files, chunks, access grants and worker
// assignments cascade.
func (r *StoragesRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM storages WHERE id = $1", id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
