package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/Dominux/Pentaract/internal/server/database"
)

// --- Fakes ---

type fakeLeaser struct {
	mu     sync.Mutex
	leases int
}

func (f *fakeLeaser) Lease(ctx context.Context, storageID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leases++
	return fmt.Sprintf("token-%d", f.leases), nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	next    int
	calls   int
	failOn  int // fail the nth Upload call (1-based); 0 never fails
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, chatID int64, name string, data []byte, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return "", errors.New("backend exploded")
	}

	f.next++
	id := fmt.Sprintf("ext-%d", f.next)
	f.objects[id] = append([]byte(nil), data...)
	return id, nil
}

func (f *fakeStore) Download(ctx context.Context, telegramFileID, token string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[telegramFileID]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

type fakeCatalog struct {
	mu       sync.Mutex
	uploaded map[uuid.UUID]bool
	deleted  map[uuid.UUID]bool
	chunks   map[uuid.UUID][]database.FileChunk
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		uploaded: make(map[uuid.UUID]bool),
		deleted:  make(map[uuid.UUID]bool),
		chunks:   make(map[uuid.UUID][]database.FileChunk),
	}
}

func (f *fakeCatalog) CreateChunksBatch(ctx context.Context, chunks []database.FileChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		f.chunks[c.FileID] = append(f.chunks[c.FileID], c)
	}
	return nil
}

func (f *fakeCatalog) ListChunksOfFile(ctx context.Context, fileID uuid.UUID) ([]database.FileChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.FileChunk(nil), f.chunks[fileID]...), nil
}

func (f *fakeCatalog) SetUploaded(ctx context.Context, fileID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[fileID] = true
	return nil
}

func (f *fakeCatalog) DeleteByID(ctx context.Context, fileID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[fileID] = true
	delete(f.uploaded, fileID)
	delete(f.chunks, fileID)
	return nil
}

type fakeWorkers struct {
	has bool
}

func (f *fakeWorkers) StorageHasAny(ctx context.Context, storageID uuid.UUID) (bool, error) {
	return f.has, nil
}

func newTestEngine(chunkSize int64) (*Engine, *fakeStore, *fakeCatalog) {
	store := newFakeStore()
	catalog := newFakeCatalog()
	eng := New(store, &fakeLeaser{}, catalog, &fakeWorkers{has: true}, chunkSize)
	return eng, store, catalog
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// --- Tests ---

func TestUploadDownloadRoundTrip(t *testing.T) {
	const chunkSize = 16

	cases := []struct {
		name string
		size int
	}{
		{"empty file", 0},
		{"below chunk size", chunkSize - 1},
		{"exactly one chunk", chunkSize},
		{"one byte over", chunkSize + 1},
		{"many chunks", chunkSize*7 + 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng, _, catalog := newTestEngine(chunkSize)
			fileID := uuid.New()
			storageID := uuid.New()
			data := pattern(tc.size)

			if err := eng.Upload(context.Background(), fileID, storageID, 42, data); err != nil {
				t.Fatalf("upload failed: %v", err)
			}
			if !catalog.uploaded[fileID] {
				t.Error("file not marked as uploaded")
			}

			got, err := eng.Download(context.Background(), fileID, storageID)
			if err != nil {
				t.Fatalf("download failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
			}
		})
	}
}

func TestUploadChunkCount(t *testing.T) {
	const chunkSize = 16

	t.Run("k full chunks plus a remainder", func(t *testing.T) {
		eng, _, catalog := newTestEngine(chunkSize)
		fileID := uuid.New()

		// 3 full chunks + 5 bytes => 4 chunks, positions 0..3
		if err := eng.Upload(context.Background(), fileID, uuid.New(), 42, pattern(chunkSize*3+5)); err != nil {
			t.Fatalf("upload failed: %v", err)
		}

		chunks := catalog.chunks[fileID]
		if len(chunks) != 4 {
			t.Fatalf("expected 4 chunks, got %d", len(chunks))
		}

		seen := make(map[int16]bool)
		for _, c := range chunks {
			seen[c.Position] = true
		}
		for pos := int16(0); pos < 4; pos++ {
			if !seen[pos] {
				t.Errorf("missing position %d", pos)
			}
		}
	})

	t.Run("empty file produces no chunks", func(t *testing.T) {
		eng, _, catalog := newTestEngine(chunkSize)
		fileID := uuid.New()

		if err := eng.Upload(context.Background(), fileID, uuid.New(), 42, nil); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
		if len(catalog.chunks[fileID]) != 0 {
			t.Errorf("expected no chunks, got %d", len(catalog.chunks[fileID]))
		}
		if !catalog.uploaded[fileID] {
			t.Error("empty file not marked as uploaded")
		}
	})
}

func TestUploadRollback(t *testing.T) {
	t.Run("failed chunk deletes the file row", func(t *testing.T) {
		const chunkSize = 16
		store := newFakeStore()
		store.failOn = 2
		catalog := newFakeCatalog()
		eng := New(store, &fakeLeaser{}, catalog, &fakeWorkers{has: true}, chunkSize)

		fileID := uuid.New()
		err := eng.Upload(context.Background(), fileID, uuid.New(), 42, pattern(chunkSize*3))
		if err == nil {
			t.Fatal("expected upload to fail")
		}

		if !catalog.deleted[fileID] {
			t.Error("file row not deleted after failed upload")
		}
		if len(catalog.chunks[fileID]) != 0 {
			t.Errorf("expected no chunk rows, got %d", len(catalog.chunks[fileID]))
		}
		if catalog.uploaded[fileID] {
			t.Error("file must not be marked uploaded")
		}
	})

	t.Run("storage without workers is rejected", func(t *testing.T) {
		catalog := newFakeCatalog()
		eng := New(newFakeStore(), &fakeLeaser{}, catalog, &fakeWorkers{has: false}, 16)

		err := eng.Upload(context.Background(), uuid.New(), uuid.New(), 42, pattern(8))
		if !errors.Is(err, ErrNoWorkers) {
			t.Fatalf("expected ErrNoWorkers, got %v", err)
		}
	})
}

func TestDownloadCorruption(t *testing.T) {
	t.Run("gap in positions", func(t *testing.T) {
		eng, store, catalog := newTestEngine(16)
		fileID := uuid.New()

		store.objects["ext-a"] = []byte("aaaa")
		store.objects["ext-b"] = []byte("bbbb")
		catalog.chunks[fileID] = []database.FileChunk{
			{ID: uuid.New(), FileID: fileID, TelegramFileID: "ext-a", Position: 0},
			{ID: uuid.New(), FileID: fileID, TelegramFileID: "ext-b", Position: 2},
		}

		_, err := eng.Download(context.Background(), fileID, uuid.New())
		if !errors.Is(err, ErrCorrupted) {
			t.Fatalf("expected ErrCorrupted, got %v", err)
		}
	})

	t.Run("duplicate positions", func(t *testing.T) {
		eng, store, catalog := newTestEngine(16)
		fileID := uuid.New()

		store.objects["ext-a"] = []byte("aaaa")
		catalog.chunks[fileID] = []database.FileChunk{
			{ID: uuid.New(), FileID: fileID, TelegramFileID: "ext-a", Position: 0},
			{ID: uuid.New(), FileID: fileID, TelegramFileID: "ext-a", Position: 0},
		}

		_, err := eng.Download(context.Background(), fileID, uuid.New())
		if !errors.Is(err, ErrCorrupted) {
			t.Fatalf("expected ErrCorrupted, got %v", err)
		}
	})

	t.Run("reassembly ignores row order", func(t *testing.T) {
		eng, store, catalog := newTestEngine(16)
		fileID := uuid.New()

		store.objects["ext-a"] = []byte("AAAA")
		store.objects["ext-b"] = []byte("BBBB")
		catalog.chunks[fileID] = []database.FileChunk{
			{ID: uuid.New(), FileID: fileID, TelegramFileID: "ext-b", Position: 1},
			{ID: uuid.New(), FileID: fileID, TelegramFileID: "ext-a", Position: 0},
		}

		got, err := eng.Download(context.Background(), fileID, uuid.New())
		if err != nil {
			t.Fatalf("download failed: %v", err)
		}
		if string(got) != "AAAABBBB" {
			t.Errorf("expected AAAABBBB, got %q", got)
		}
	})
}

func TestSplitChunks(t *testing.T) {
	cases := []struct {
		name  string
		size  int
		chunk int64
		want  []int
	}{
		{"empty", 0, 4, nil},
		{"single partial", 3, 4, []int{3}},
		{"exact", 4, 4, []int{4}},
		{"one over", 5, 4, []int{4, 1}},
		{"several", 11, 4, []int{4, 4, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := splitChunks(pattern(tc.size), tc.chunk)
			if len(parts) != len(tc.want) {
				t.Fatalf("expected %d parts, got %d", len(tc.want), len(parts))
			}
			for i, p := range parts {
				if len(p) != tc.want[i] {
					t.Errorf("part %d: expected len %d, got %d", i, tc.want[i], len(p))
				}
			}
		})
	}
}
