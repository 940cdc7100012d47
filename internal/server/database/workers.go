package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WorkersRepository manages storage workers (bot tokens) and their usage
// records, including the atomic rate-limited lease.
type WorkersRepository struct {
	db     *DB
	window time.Duration
}

// NewWorkersRepository creates a workers repository. window is the
// rolling rate-limit window; usage rows older than it are expired.
func NewWorkersRepository(db *DB, window time.Duration) *WorkersRepository {
	return &WorkersRepository{db: db, window: window}
}

// Create inserts a new worker. Tokens are unique across all workers; a
// worker referencing a missing storage surfaces ErrNoStorage.
func (r *WorkersRepository) Create(ctx context.Context, name, token string, userID uuid.UUID, storageID *uuid.UUID) (*StorageWorker, error) {
	id := uuid.New()

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO storage_workers (id, name, token, user_id, storage_id)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, token, userID, storageID)
	if err != nil {
		return nil, classify(err)
	}

	return &StorageWorker{ID: id, Name: name, Token: token, UserID: userID, StorageID: storageID}, nil
}

// ListByUserID returns all workers owned by a user.
func (r *WorkersRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]StorageWorker, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, token, user_id, storage_id
		FROM storage_workers
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var workers []StorageWorker
	for rows.Next() {
		var w StorageWorker
		if err := rows.Scan(&w.ID, &w.Name, &w.Token, &w.UserID, &w.StorageID); err != nil {
			return nil, classify(err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return workers, nil
}

// StorageHasAny reports whether the storage has at least one worker
// assigned. Transfers must check this before leasing, or the scheduler
// would poll forever.
func (r *WorkersRepository) StorageHasAny(ctx context.Context, storageID uuid.UUID) (bool, error) {
	var has bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) > 0 FROM storage_workers WHERE storage_id = $1",
		storageID,
	).Scan(&has)
	if err != nil {
		return false, classify(err)
	}
	return has, nil
}

// PurgeExpiredUsages deletes usage rows that fell out of the rate
// window. Leasing purges on its own; this exists for the background
// janitor so idle deployments do not accumulate rows between leases.
func (r *WorkersRepository) PurgeExpiredUsages(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM storage_worker_usages
		WHERE dt < NOW() - make_interval(secs => $1)
	`, r.window.Seconds())
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

// TryLease attempts to lease the least-used worker of a storage whose
// non-expired usage count is below limit. The expired-usage purge, the
// candidate selection and the usage insert run in one transaction, so
// concurrent leases across processes stay within the limit. Returns
// ok=false when every worker is saturated.
func (r *WorkersRepository) TryLease(ctx context.Context, storageID uuid.UUID, limit int) (token string, ok bool, err error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", false, classify(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM storage_worker_usages
		WHERE dt < NOW() - make_interval(secs => $1)
	`, r.window.Seconds())
	if err != nil {
		return "", false, classify(err)
	}

	err = tx.QueryRow(ctx, `
		WITH candidate AS (
			SELECT sw.id
			FROM storage_workers sw
			LEFT JOIN storage_worker_usages swu ON sw.id = swu.storage_worker_id
			WHERE sw.storage_id = $1
			GROUP BY sw.id
			HAVING COUNT(swu.id) < $2
			ORDER BY COUNT(swu.id)
			LIMIT 1
		), lease AS (
			INSERT INTO storage_worker_usages (id, storage_worker_id)
			SELECT $3, id FROM candidate
			RETURNING storage_worker_id
		)
		SELECT sw.token
		FROM lease
		JOIN storage_workers sw ON sw.id = lease.storage_worker_id
	`, storageID, limit, uuid.New()).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Every worker is at the limit; not an error, retried upstream.
			return "", false, tx.Commit(ctx)
		}
		return "", false, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, classify(err)
	}
	return token, true, nil
}
