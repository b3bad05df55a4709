// Package repository defines the analysis store interface and errors.
package repository

import (
	"context"

	"github.com/okian/scoredist/internal/domain/model"
)

// Store provides read/write access to completed analyses.
type Store interface {
	// Save stores an analysis under its ID, replacing any previous one.
	Save(ctx context.Context, a *model.Analysis) error

	// Get returns the analysis with id or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Analysis, error)

	// Recent returns up to n analyses, newest first.
	Recent(ctx context.Context, n int) ([]*model.Analysis, error)

	// Count returns the number of stored analyses.
	Count(ctx context.Context) int
}
