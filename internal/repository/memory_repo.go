package repository

import (
	"context"
	"sync"
)

// MemoryTaskRepository holds the blob in memory. Used in tests and as a
// last-resort backend when neither redis nor a file path is configured.
type MemoryTaskRepository struct {
	mu   sync.Mutex
	data []byte
	set  bool
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{}
}

// Seed pre-populates the blob, e.g. with corrupted data in recovery tests.
func (r *MemoryTaskRepository) Seed(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append([]byte(nil), data...)
	r.set = true
}

func (r *MemoryTaskRepository) Load(ctx context.Context) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.set {
		return nil, false, nil
	}
	return append([]byte(nil), r.data...), true, nil
}

func (r *MemoryTaskRepository) Save(ctx context.Context, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append([]byte(nil), data...)
	r.set = true
	return nil
}

func (r *MemoryTaskRepository) Ping(ctx context.Context) error {
	return nil
}
