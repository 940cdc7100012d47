package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Dominux/Pentaract/internal/server/database"
)

// StorageWorkersService manages the bot tokens serving storages.
type StorageWorkersService struct {
	workers *database.WorkersRepository
	access  *database.AccessRepository
}

// NewStorageWorkersService creates a new storage workers service.
func NewStorageWorkersService(workers *database.WorkersRepository, access *database.AccessRepository) *StorageWorkersService {
	return &StorageWorkersService{workers: workers, access: access}
}

// Create registers a worker. Assigning it to a storage requires write
// access on that storage; tokens are globally unique.
func (s *StorageWorkersService) Create(ctx context.Context, user AuthUser, name, token string, storageID *uuid.UUID) (*database.StorageWorker, error) {
	if storageID != nil {
		if err := checkAccess(ctx, s.access, user.ID, *storageID, database.AccessWrite); err != nil {
			return nil, err
		}
	}
	return s.workers.Create(ctx, name, token, user.ID, storageID)
}

// List returns the workers owned by the user.
func (s *StorageWorkersService) List(ctx context.Context, user AuthUser) ([]database.StorageWorker, error) {
	return s.workers.ListByUserID(ctx, user.ID)
}
