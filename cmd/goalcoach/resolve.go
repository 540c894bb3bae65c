package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/goalcoach/goalcoach/internal/model"
	"github.com/goalcoach/goalcoach/internal/repository"
)

type lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// resolveID finds the record whose id is ref or starts with ref. Listings
// print shortened ids, so any unambiguous prefix works.
func resolveID[T any](ctx context.Context, l lister[T], kind model.Kind[T], ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%s id is required", kind.Name)
	}
	recs, err := l.List(ctx)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, rec := range recs {
		id := kind.ID(rec)
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s %s", repository.ErrNotFound, kind.Name, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%s id %q is ambiguous (%d matches)", kind.Name, ref, len(matches))
	}
}
