package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dominux/Pentaract/internal/server/database"
)

// Sentinel errors for the transfer engine.
var (
	// ErrNoWorkers means the storage has no workers at all; leasing would
	// poll forever, so transfers are rejected up front.
	ErrNoWorkers = errors.New("storage has no workers")
	// ErrCorrupted means the stored chunk positions are not a contiguous
	// 0-based sequence and the file cannot be reassembled.
	ErrCorrupted = errors.New("chunk sequence is corrupted")
)

// ChunkStore transfers single chunks against the external backend, keyed
// by a leased worker token.
type ChunkStore interface {
	Upload(ctx context.Context, chatID int64, name string, data []byte, token string) (string, error)
	Download(ctx context.Context, telegramFileID, token string) ([]byte, error)
}

// TokenLeaser grants a rate-limited worker token for a storage, blocking
// until one is available or ctx is cancelled.
type TokenLeaser interface {
	Lease(ctx context.Context, storageID uuid.UUID) (string, error)
}

// Catalog is the slice of the files repository the engine needs.
type Catalog interface {
	CreateChunksBatch(ctx context.Context, chunks []database.FileChunk) error
	ListChunksOfFile(ctx context.Context, fileID uuid.UUID) ([]database.FileChunk, error)
	SetUploaded(ctx context.Context, fileID uuid.UUID) error
	DeleteByID(ctx context.Context, fileID uuid.UUID) error
}

// WorkerDirectory answers whether a storage has any workers assigned.
type WorkerDirectory interface {
	StorageHasAny(ctx context.Context, storageID uuid.UUID) (bool, error)
}

// Engine splits files into fixed-size chunks and moves them to and from
// the external backend, one leased worker token per chunk transfer.
type Engine struct {
	store     ChunkStore
	leaser    TokenLeaser
	files     Catalog
	workers   WorkerDirectory
	chunkSize int64
}

// New creates a transfer engine.
func New(store ChunkStore, leaser TokenLeaser, files Catalog, workers WorkerDirectory, chunkSize int64) *Engine {
	return &Engine{
		store:     store,
		leaser:    leaser,
		files:     files,
		workers:   workers,
		chunkSize: chunkSize,
	}
}

// Upload transfers data as the chunks of an existing file row and marks
// the row uploaded. On any failure the file row (and any chunk rows
// already written) is deleted, so callers never observe a half-uploaded
// file; the row simply stays invisible and then disappears.
func (e *Engine) Upload(ctx context.Context, fileID, storageID uuid.UUID, chatID int64, data []byte) error {
	if err := e.upload(ctx, fileID, storageID, chatID, data); err != nil {
		// Rollback must run even when ctx is already cancelled.
		if delErr := e.files.DeleteByID(context.WithoutCancel(ctx), fileID); delErr != nil {
			slog.Error("failed to roll back file after upload failure",
				"file_id", fileID, "error", delErr)
		}
		return err
	}
	return nil
}

func (e *Engine) upload(ctx context.Context, fileID, storageID uuid.UUID, chatID int64, data []byte) error {
	has, err := e.workers.StorageHasAny(ctx, storageID)
	if err != nil {
		return err
	}
	if !has {
		return ErrNoWorkers
	}

	parts := splitChunks(data, e.chunkSize)
	chunks := make([]database.FileChunk, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for position, part := range parts {
		position, part := position, part
		g.Go(func() error {
			token, err := e.leaser.Lease(gctx, storageID)
			if err != nil {
				return err
			}

			name := fmt.Sprintf("%s_%d", fileID, position)
			telegramFileID, err := e.store.Upload(gctx, chatID, name, part, token)
			if err != nil {
				return err
			}

			slog.Debug("uploaded chunk",
				"file_id", fileID, "position", position, "size", len(part))

			chunks[position] = database.FileChunk{
				ID:             uuid.New(),
				FileID:         fileID,
				TelegramFileID: telegramFileID,
				Position:       int16(position),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := e.files.CreateChunksBatch(ctx, chunks); err != nil {
		return err
	}
	return e.files.SetUploaded(ctx, fileID)
}

// Download fetches all chunks of a file concurrently and reassembles
// them in position order. Positions are assigned before dispatch, so the
// result does not depend on completion order. A gap in the sequence is
// unrecoverable and reported as ErrCorrupted.
func (e *Engine) Download(ctx context.Context, fileID, storageID uuid.UUID) ([]byte, error) {
	chunks, err := e.files.ListChunksOfFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})
	for i, c := range chunks {
		if int(c.Position) != i {
			return nil, fmt.Errorf("%w: file %s position %d at index %d",
				ErrCorrupted, fileID, c.Position, i)
		}
	}

	parts := make([][]byte, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			token, err := e.leaser.Lease(gctx, storageID)
			if err != nil {
				return err
			}

			data, err := e.store.Download(gctx, chunk.TelegramFileID, token)
			if err != nil {
				return err
			}

			slog.Debug("downloaded chunk",
				"file_id", fileID, "position", chunk.Position, "size", len(data))

			parts[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, p := range parts {
		total += len(p)
	}
	file := make([]byte, 0, total)
	for _, p := range parts {
		file = append(file, p...)
	}
	return file, nil
}

// splitChunks slices data into consecutive chunks of at most size bytes.
// The last chunk may be shorter; empty input yields no chunks.
func splitChunks(data []byte, size int64) [][]byte {
	if len(data) == 0 {
		return nil
	}

	n := (int64(len(data)) + size - 1) / size
	parts := make([][]byte, 0, n)
	for start := int64(0); start < int64(len(data)); start += size {
		end := start + size
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		parts = append(parts, data[start:end])
	}
	return parts
}
