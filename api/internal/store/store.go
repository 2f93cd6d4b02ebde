// Package store persists scan sessions: pipeline reports plus advisor chat.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"neuromap/api/internal/pipeline"
)

var ErrNotFound = errors.New("session not found")

// Sessions — хранилище отчётов по id сессии. Save перезаписывает: побеждает последний.
type Sessions interface {
	Save(ctx context.Context, r *pipeline.Report) error
	Load(ctx context.Context, id string) (*pipeline.Report, error)
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// validID отсекает пустые id и всё, что похоже на путь.
func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\.`) || strings.TrimSpace(id) != id {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
