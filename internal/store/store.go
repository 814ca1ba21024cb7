// Package store persists changelog entries for a project. Implementations
// must make each call independently failable; the reconciliation engine
// treats a per-entry failure as recoverable and an unreachable store as a
// batch abort.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("entry not found")

// Entry is the persisted changelog entry shape.
type Entry struct {
	ID        string    `yaml:"id"`
	ProjectID string    `yaml:"project_id"`
	Title     string    `yaml:"title"`
	Content   string    `yaml:"content"`
	Version   string    `yaml:"version,omitempty"`
	Tags      []string  `yaml:"tags,omitempty"`
	Published bool      `yaml:"published"`
	// PublishedAt is the entry's public date. Zero when unpublished and
	// no source date was carried over.
	PublishedAt time.Time `yaml:"published_at,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// Store is the persistence collaborator consumed by the reconciliation
// engine. ListEntries returns entries in creation order.
type Store interface {
	ListEntries(ctx context.Context, projectID string) ([]Entry, error)
	CreateEntry(ctx context.Context, projectID string, e Entry) (string, error)
	UpdateEntry(ctx context.Context, id string, e Entry) error
	DeleteEntry(ctx context.Context, id string) error
}

// NewID returns a random 32-hex-char entry id.
func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
