// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/ourican/rma-service/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// RMARequestRepository defines operations for RMA service tickets
type RMARequestRepository interface {
	Repository[models.RMARequest, models.RMARequestFilter]
	ByToken(ctx context.Context, token string) (*models.RMARequest, error)
	List(ctx context.Context) ([]*models.RMARequest, error)
	UpdateByToken(ctx context.Context, token string, fields models.RMAMutableFields) (int64, error)
	CloseByToken(ctx context.Context, token string) (*models.ClosureDetails, error)
	DeleteByToken(ctx context.Context, token string) error
}

// SequenceRepository defines operations for named monotonic counters
type SequenceRepository interface {
	// Seed creates the counter with the given baseline if it does not exist yet.
	Seed(ctx context.Context, name string, baseline int64) error
	// Next atomically increments the counter and returns the new value.
	Next(ctx context.Context, name string) (int64, error)
	// Current returns the counter's last issued value without incrementing it.
	Current(ctx context.Context, name string) (int64, error)
}
