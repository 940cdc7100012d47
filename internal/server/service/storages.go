package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Dominux/Pentaract/internal/server/database"
)

// StoragesService manages storage buckets.
type StoragesService struct {
	storages *database.StoragesRepository
	access   *database.AccessRepository
}

// NewStoragesService creates a new storages service.
func NewStoragesService(storages *database.StoragesRepository, access *database.AccessRepository) *StoragesService {
	return &StoragesService{storages: storages, access: access}
}

// Create registers a storage backed by chatID and grants its creator
// admin access.
func (s *StoragesService) Create(ctx context.Context, user AuthUser, name string, chatID int64) (*database.Storage, error) {
	storage, err := s.storages.Create(ctx, name, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.access.Grant(ctx, user.ID, storage.ID, database.AccessAdmin); err != nil {
		// A storage nobody can reach is useless; undo the create.
		if delErr := s.storages.Delete(ctx, storage.ID); delErr != nil {
			slog.Error("failed to roll back storage after grant failure",
				"storage_id", storage.ID, "error", delErr)
		}
		return nil, err
	}
	return storage, nil
}

// List returns the user's storages with aggregate file statistics.
func (s *StoragesService) List(ctx context.Context, user AuthUser) ([]database.StorageWithInfo, error) {
	return s.storages.ListByUserID(ctx, user.ID)
}

// Get returns a single storage the user can read.
func (s *StoragesService) Get(ctx context.Context, user AuthUser, storageID uuid.UUID) (*database.Storage, error) {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessRead); err != nil {
		return nil, err
	}
	return s.storages.GetByID(ctx, storageID)
}

// Delete removes a storage and everything under it. Admin only.
func (s *StoragesService) Delete(ctx context.Context, user AuthUser, storageID uuid.UUID) error {
	if err := checkAccess(ctx, s.access, user.ID, storageID, database.AccessAdmin); err != nil {
		return err
	}
	return s.storages.Delete(ctx, storageID)
}
