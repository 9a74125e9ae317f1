package repository

import (
	"context"
	"os"
	"path/filepath"
)

// FileTaskRepository persists the task list to a single JSON file on disk,
// for single-machine use without a Redis instance.
type FileTaskRepository struct {
	path string
}

func NewFileTaskRepository(path string) (*FileTaskRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &FileTaskRepository{path: path}, nil
}

func (r *FileTaskRepository) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *FileTaskRepository) Save(ctx context.Context, data []byte) error {
	return os.WriteFile(r.path, data, 0644)
}

func (r *FileTaskRepository) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(r.path))
	return err
}
