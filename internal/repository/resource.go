package repository

import (
	"context"

	"resource-api/internal/domain"
)

// ResourceRepository exposes persistence operations for Resource records.
// Absence is reported through nil/zero/false results, never as an error.
type ResourceRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, input domain.ResourceInput) (*domain.Resource, error)
	FindAll(ctx context.Context, filter domain.Filter) ([]domain.Resource, error)
	FindByID(ctx context.Context, id int64) (*domain.Resource, error)
	FindOne(ctx context.Context, filter domain.Filter) (*domain.Resource, error)
	Update(ctx context.Context, id int64, patch domain.ResourcePatch) (int64, []domain.Resource, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context, filter domain.Filter) (int64, error)
	Ping(ctx context.Context) error
}
