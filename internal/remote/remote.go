// Package remote mirrors local records to a cloud document store.
//
// Documents live under users/{owner}/{collection}/{id} and hold the JSON
// encoding of one record. A Backend stores raw documents; a Mirror encodes
// one record kind on top of it.
//
// The mirror is a secondary copy. Writes to it are best effort and it is
// only ever read to pull a user's records into the local store.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/goalcoach/goalcoach/internal/metrics"
	"github.com/goalcoach/goalcoach/internal/model"
)

// Document is one stored record.
type Document struct {
	ID   string
	Data []byte
}

// Backend stores documents keyed by owner, collection and id.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Put creates or replaces a document.
	Put(ctx context.Context, owner, collection, id string, data []byte) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, owner, collection, id string) error
	// List returns every document in the owner's collection.
	List(ctx context.Context, owner, collection string) ([]Document, error)
	Close() error
}

// Mirror is the remote copy of one record kind.
type Mirror[T any] struct {
	backend Backend
	kind    model.Kind[T]
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewMirror creates a mirror for kind on backend. If logger is nil, a
// default "[remote] " logger writing to stderr is used. m may be nil.
func NewMirror[T any](backend Backend, kind model.Kind[T], logger *log.Logger, m *metrics.Metrics) *Mirror[T] {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Mirror[T]{
		backend: backend,
		kind:    kind,
		logger:  logger,
		metrics: m,
	}
}

// Kind returns the mirrored record kind.
func (m *Mirror[T]) Kind() model.Kind[T] {
	return m.kind
}

// Upsert writes rec as document (owner, id).
func (m *Mirror[T]) Upsert(ctx context.Context, owner string, rec T) (err error) {
	defer m.record(metrics.OpUpsert, time.Now(), &err)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", m.kind.Name, err)
	}
	id := m.kind.ID(rec)
	if err := m.backend.Put(ctx, owner, m.kind.Name, id, data); err != nil {
		return fmt.Errorf("failed to upsert remote %s %s: %w", m.kind.Name, id, err)
	}
	return nil
}

// Delete removes document (owner, id).
func (m *Mirror[T]) Delete(ctx context.Context, owner, id string) (err error) {
	defer m.record(metrics.OpDelete, time.Now(), &err)

	if err := m.backend.Delete(ctx, owner, m.kind.Name, id); err != nil {
		return fmt.Errorf("failed to delete remote %s %s: %w", m.kind.Name, id, err)
	}
	return nil
}

// DeleteAll lists the owner's documents and deletes each one. It is not
// atomic: a failed delete does not stop the others, and the failures are
// returned joined.
func (m *Mirror[T]) DeleteAll(ctx context.Context, owner string) (err error) {
	defer m.record(metrics.OpDeleteAll, time.Now(), &err)

	docs, err := m.backend.List(ctx, owner, m.kind.Name)
	if err != nil {
		return fmt.Errorf("failed to list remote %s: %w", m.kind.Name, err)
	}

	var errs []error
	for _, d := range docs {
		if err := m.backend.Delete(ctx, owner, m.kind.Name, d.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete remote %s %s: %w", m.kind.Name, d.ID, err))
		}
	}
	return errors.Join(errs...)
}

// FetchAll returns every record the owner has in the mirror. Any failure is
// logged and counted and yields an empty result; a document that cannot be
// decoded is skipped.
func (m *Mirror[T]) FetchAll(ctx context.Context, owner string) []T {
	docs, err := m.backend.List(ctx, owner, m.kind.Name)
	if err != nil {
		m.logger.Printf("WARNING: Failed to fetch remote %s: %v", m.kind.Name, err)
		m.metrics.RecordPullFailure(m.kind.Name, metrics.OpFetch)
		return []T{}
	}

	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var rec T
		if err := json.Unmarshal(d.Data, &rec); err != nil {
			m.logger.Printf("WARNING: Failed to decode remote %s %s: %v", m.kind.Name, d.ID, err)
			m.metrics.RecordSkipped(m.kind.Name, "decode")
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (m *Mirror[T]) record(op string, start time.Time, err *error) {
	m.metrics.RecordPush(m.kind.Name, op, *err, start)
}
