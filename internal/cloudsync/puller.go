package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/goalcoach/goalcoach/internal/metrics"
	"github.com/goalcoach/goalcoach/internal/model"
)

// Fetcher reads every remote record of an owner.
type Fetcher[T any] interface {
	FetchAll(ctx context.Context, owner string) []T
}

// Sink stores pulled records.
type Sink[T any] interface {
	Get(ctx context.Context, id string) (T, bool, error)
	Upsert(ctx context.Context, rec T) error
}

// Puller copies one record kind from the mirror into the local store.
type Puller interface {
	Name() string
	// Pull applies the owner's remote records and returns how many were
	// written locally.
	Pull(ctx context.Context, owner string) (int, error)
}

// Skip reasons reported to metrics.
const (
	skipOwnerMismatch = "owner_mismatch"
	skipInvalid       = "invalid"
	skipLocalOwner    = "local_owner"
)

type kindPuller[T any] struct {
	kind    model.Kind[T]
	from    Fetcher[T]
	into    Sink[T]
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewPuller creates the Puller for kind. If logger is nil, a default
// "[cloudsync] " logger writing to stderr is used. m may be nil.
func NewPuller[T any](kind model.Kind[T], from Fetcher[T], into Sink[T], logger *log.Logger, m *metrics.Metrics) Puller {
	if logger == nil {
		logger = log.New(os.Stderr, "[cloudsync] ", log.LstdFlags)
	}
	return &kindPuller[T]{
		kind:    kind,
		from:    from,
		into:    into,
		logger:  logger,
		metrics: m,
	}
}

func (p *kindPuller[T]) Name() string {
	return p.kind.Name
}

// Pull upserts each remote record by id; the remote copy wins. Records
// stored without an owner are stamped with owner. Records claiming a
// different owner, records that fail validation, and ids stored locally
// for another owner are skipped. A local read or write failure does not
// stop the remaining records.
func (p *kindPuller[T]) Pull(ctx context.Context, owner string) (int, error) {
	recs := p.from.FetchAll(ctx, owner)

	applied := 0
	var errs []error
	for _, rec := range recs {
		id := p.kind.ID(rec)

		switch got := p.kind.Owner(rec); got {
		case "":
			rec = p.kind.WithOwner(rec, owner)
		case owner:
		default:
			p.logger.Printf("WARNING: Skipping remote %s %s: owned by %s, pulled for %s", p.kind.Name, id, got, owner)
			p.metrics.RecordSkipped(p.kind.Name, skipOwnerMismatch)
			continue
		}

		if err := p.kind.Validate(rec); err != nil {
			p.logger.Printf("WARNING: Skipping remote %s %s: %v", p.kind.Name, id, err)
			p.metrics.RecordSkipped(p.kind.Name, skipInvalid)
			continue
		}

		stored, found, err := p.into.Get(ctx, id)
		if err != nil {
			p.logger.Printf("WARNING: Failed to read local %s %s: %v", p.kind.Name, id, err)
			p.metrics.RecordPullFailure(p.kind.Name, metrics.OpStore)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if found && p.kind.Owner(stored) != owner {
			p.logger.Printf("WARNING: Skipping remote %s %s: stored locally for another owner", p.kind.Name, id)
			p.metrics.RecordSkipped(p.kind.Name, skipLocalOwner)
			continue
		}
		if p.kind.Normalize != nil {
			var prev *T
			if found {
				prev = &stored
			}
			rec = p.kind.Normalize(prev, rec, model.Now())
		}

		if err := p.into.Upsert(ctx, rec); err != nil {
			p.logger.Printf("WARNING: Failed to store pulled %s %s: %v", p.kind.Name, id, err)
			p.metrics.RecordPullFailure(p.kind.Name, metrics.OpStore)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		applied++
	}

	p.metrics.RecordPulled(p.kind.Name, applied)
	if len(errs) > 0 {
		return applied, fmt.Errorf("failed to store %d pulled %s: %w", len(errs), p.kind.Name, errors.Join(errs...))
	}
	return applied, nil
}
