package database

import (
	"context"

	"github.com/google/uuid"
)

// UsersRepository manages user accounts.
type UsersRepository struct {
	db *DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create inserts a user. Emails are unique.
func (r *UsersRepository) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	id := uuid.New()

	_, err := r.db.Pool.Exec(ctx,
		"INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)",
		id, email, passwordHash)
	if err != nil {
		return nil, classify(err)
	}

	return &User{ID: id, Email: email, PasswordHash: passwordHash}, nil
}

// GetByEmail returns the user registered under email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := r.db.Pool.QueryRow(ctx,
		"SELECT id, email, password_hash FROM users WHERE email = $1", email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}
