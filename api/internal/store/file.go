package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"neuromap/api/internal/pipeline"
	"neuromap/api/internal/util"
)

// FileStore keeps one {id}_results.json per session. No locking: concurrent
// saves of the same id are last-write-wins.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, filepath.Base(id)+"_results.json")
}

func (s *FileStore) Save(_ context.Context, r *pipeline.Report) error {
	if r == nil {
		return errors.New("nil report")
	}
	if err := validID(r.SessionID); err != nil {
		return err
	}
	return util.WriteJSONFile(s.path(r.SessionID), r)
}

func (s *FileStore) Load(_ context.Context, id string) (*pipeline.Report, error) {
	if err := validID(id); err != nil {
		return nil, ErrNotFound
	}
	var r pipeline.Report
	if err := util.ReadJSONFile(s.path(id), &r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Ping проверяет, что каталог доступен.
func (s *FileStore) Ping(context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}
