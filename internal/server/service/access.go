package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Dominux/Pentaract/internal/server/database"
)

// checkAccess verifies the user holds at least the required access level
// on the storage. A missing grant is a permission failure, not an
// internal error.
func checkAccess(ctx context.Context, repo *database.AccessRepository, userID, storageID uuid.UUID, required database.AccessType) error {
	granted, err := repo.Get(ctx, userID, storageID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrPermissionDenied
		}
		return err
	}
	if !granted.Covers(required) {
		return ErrPermissionDenied
	}
	return nil
}

// AccessService manages storage permission grants.
type AccessService struct {
	access *database.AccessRepository
}

// NewAccessService creates a new access service.
func NewAccessService(access *database.AccessRepository) *AccessService {
	return &AccessService{access: access}
}

// Grant gives the user registered under email the given level on a
// storage; only admins of the storage may grant.
func (s *AccessService) Grant(ctx context.Context, user AuthUser, email string, storageID uuid.UUID, accessType database.AccessType) error {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessAdmin); err != nil {
		return err
	}
	return s.access.GrantByEmail(ctx, email, storageID, accessType)
}

// ListGrants returns every grant on a storage, keyed by user email.
func (s *AccessService) ListGrants(ctx context.Context, user AuthUser, storageID uuid.UUID) (map[string]database.AccessType, error) {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessAdmin); err != nil {
		return nil, err
	}
	return s.access.ListUsersForStorage(ctx, storageID)
}
