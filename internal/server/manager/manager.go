package manager

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Transferer is the chunk engine as seen by the bridge.
type Transferer interface {
	Upload(ctx context.Context, fileID, storageID uuid.UUID, chatID int64, data []byte) error
	Download(ctx context.Context, fileID, storageID uuid.UUID) ([]byte, error)
}

type kind int

const (
	kindUpload kind = iota
	kindDownload
)

type request struct {
	kind      kind
	fileID    uuid.UUID
	storageID uuid.UUID
	chatID    int64
	data      []byte
	reply     chan response
}

type response struct {
	data []byte
	err  error
}

// Manager is the single-writer bridge between HTTP handlers and the
// chunk engine. Producers enqueue onto a bounded channel and block on a
// per-request reply channel; one long-lived worker dispatches requests
// in FIFO order, running each transfer to completion before taking the
// next. A full queue blocks the producer, which is the intended
// backpressure.
type Manager struct {
	engine   Transferer
	requests chan request
	done     chan struct{}
}

// New creates a bridge with the given queue capacity.
func New(engine Transferer, capacity int) *Manager {
	return &Manager{
		engine:   engine,
		requests: make(chan request, capacity),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine. It runs until ctx is cancelled;
// an accepted request is always run to completion, even if its producer
// has stopped waiting.
func (m *Manager) Start(ctx context.Context) {
	slog.Info("storage manager started", "queue_capacity", cap(m.requests))

	go func() {
		defer close(m.done)
		for {
			select {
			case <-ctx.Done():
				slog.Info("storage manager stopping")
				return
			case req := <-m.requests:
				req.reply <- m.handle(ctx, req)
			}
		}
	}()
}

// Wait blocks until the worker has fully stopped.
func (m *Manager) Wait() {
	<-m.done
}

func (m *Manager) handle(ctx context.Context, req request) response {
	switch req.kind {
	case kindUpload:
		return response{err: m.engine.Upload(ctx, req.fileID, req.storageID, req.chatID, req.data)}
	case kindDownload:
		data, err := m.engine.Download(ctx, req.fileID, req.storageID)
		return response{data: data, err: err}
	default:
		return response{}
	}
}

// Upload enqueues an upload and blocks until the worker reports its
// result or ctx is cancelled.
func (m *Manager) Upload(ctx context.Context, fileID, storageID uuid.UUID, chatID int64, data []byte) error {
	req := request{
		kind:      kindUpload,
		fileID:    fileID,
		storageID: storageID,
		chatID:    chatID,
		data:      data,
		reply:     make(chan response, 1),
	}
	resp, err := m.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	return resp.err
}

// Download enqueues a download and blocks until the file bytes arrive
// or ctx is cancelled.
func (m *Manager) Download(ctx context.Context, fileID, storageID uuid.UUID) ([]byte, error) {
	req := request{
		kind:      kindDownload,
		fileID:    fileID,
		storageID: storageID,
		reply:     make(chan response, 1),
	}
	resp, err := m.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.data, resp.err
}

// roundTrip performs the enqueue-and-await cycle. The reply channel is
// buffered, so a producer that gives up here never blocks the worker.
func (m *Manager) roundTrip(ctx context.Context, req request) (response, error) {
	select {
	case m.requests <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}
