package service

import (
	"context"

	"resource-api/internal/domain"
	"resource-api/internal/repository"
)

// ResourceService is the seam between the HTTP layer and persistence. Every
// operation currently delegates straight to the repository; domain rules
// belong here, not in the handlers. Repository errors are returned unchanged.
type ResourceService interface {
	CreateResource(ctx context.Context, input domain.ResourceInput) (*domain.Resource, error)
	ListResources(ctx context.Context, filter domain.Filter) ([]domain.Resource, error)
	GetResource(ctx context.Context, id int64) (*domain.Resource, error)
	UpdateResource(ctx context.Context, id int64, patch domain.ResourcePatch) (int64, []domain.Resource, error)
	DeleteResource(ctx context.Context, id int64) (bool, error)
	FindResource(ctx context.Context, filter domain.Filter) (*domain.Resource, error)
	CountResources(ctx context.Context, filter domain.Filter) (int64, error)
	Ready(ctx context.Context) error
}

type resourceService struct {
	resources repository.ResourceRepository
}

func NewResourceService(resources repository.ResourceRepository) ResourceService {
	return &resourceService{resources: resources}
}

func (s *resourceService) CreateResource(ctx context.Context, input domain.ResourceInput) (*domain.Resource, error) {
	return s.resources.Create(ctx, input)
}

func (s *resourceService) ListResources(ctx context.Context, filter domain.Filter) ([]domain.Resource, error) {
	return s.resources.FindAll(ctx, filter)
}

func (s *resourceService) GetResource(ctx context.Context, id int64) (*domain.Resource, error) {
	return s.resources.FindByID(ctx, id)
}

func (s *resourceService) UpdateResource(ctx context.Context, id int64, patch domain.ResourcePatch) (int64, []domain.Resource, error) {
	return s.resources.Update(ctx, id, patch)
}

func (s *resourceService) DeleteResource(ctx context.Context, id int64) (bool, error) {
	return s.resources.Delete(ctx, id)
}

func (s *resourceService) FindResource(ctx context.Context, filter domain.Filter) (*domain.Resource, error) {
	return s.resources.FindOne(ctx, filter)
}

func (s *resourceService) CountResources(ctx context.Context, filter domain.Filter) (int64, error) {
	return s.resources.Count(ctx, filter)
}

// Ready reports whether the backing store answers.
func (s *resourceService) Ready(ctx context.Context) error {
	return s.resources.Ping(ctx)
}
