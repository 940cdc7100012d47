package database

import (
	"context"

	"github.com/google/uuid"
)

// AccessRepository manages per-storage permission grants.
type AccessRepository struct {
	db *DB
}

// NewAccessRepository creates a new access repository.
func NewAccessRepository(db *DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// GrantByEmail inserts or updates the grant of the user registered under
// email for a storage. A missing user or storage surfaces as ErrNotFound.
func (r *AccessRepository) GrantByEmail(ctx context.Context, email string, storageID uuid.UUID, accessType AccessType) error {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO access (id, user_id, storage_id, access_type)
		SELECT $1, u.id, $3, $4
		FROM users u
		WHERE u.email = $2
		ON CONFLICT (user_id, storage_id)
		DO UPDATE SET access_type = $4
	`, uuid.New(), email, storageID, string(accessType))
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		// The SELECT matched no user.
		return ErrNotFound
	}
	return nil
}

// Grant inserts or updates a grant by user id.
func (r *AccessRepository) Grant(ctx context.Context, userID, storageID uuid.UUID, accessType AccessType) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO access (id, user_id, storage_id, access_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, storage_id)
		DO UPDATE SET access_type = $4
	`, uuid.New(), userID, storageID, string(accessType))
	if err != nil {
		return classify(err)
	}
	return nil
}

// Get returns the access level a user holds on a storage, or ErrNotFound
// when no grant exists.
func (r *AccessRepository) Get(ctx context.Context, userID, storageID uuid.UUID) (AccessType, error) {
	var at string
	err := r.db.Pool.QueryRow(ctx,
		"SELECT access_type FROM access WHERE user_id = $1 AND storage_id = $2",
		userID, storageID,
	).Scan(&at)
	if err != nil {
		return "", classify(err)
	}
	return AccessType(at), nil
}

// ListUsersForStorage returns every user holding a grant on a storage,
// with their access level.
func (r *AccessRepository) ListUsersForStorage(ctx context.Context, storageID uuid.UUID) (map[string]AccessType, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT u.email, a.access_type
		FROM access a
		JOIN users u ON u.id = a.user_id
		WHERE a.storage_id = $1
		ORDER BY u.email
	`, storageID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	grants := make(map[string]AccessType)
	for rows.Next() {
		var email, at string
		if err := rows.Scan(&email, &at); err != nil {
			return nil, classify(err)
		}
		grants[email] = AccessType(at)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return grants, nil
}
