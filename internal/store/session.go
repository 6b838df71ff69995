// Package store keeps the short-lived upload session: which document is
// current and what the UI needs to redraw it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/local/pisoprint/internal/paper"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	BaseName     string     `json:"baseName"`
	TotalPages   int        `json:"totalPages"`
	OriginalSize paper.Size `json:"originalSize"`
	ArchiveKey   string     `json:"archiveKey,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Sessions is implemented by RedisSessions and MemorySessions.
type Sessions interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, baseName string) (Session, error)
	Delete(ctx context.Context, baseName string) error
	Ping(ctx context.Context) error
}
