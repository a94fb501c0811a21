package sqlstore

import (
	"context"

	"resource-api/internal/domain"
	"resource-api/internal/model"
	"resource-api/internal/repository"
)

// ResourceRepository implements repository.ResourceRepository on top of a
// ResourceModel, whichever SQL dialect the model is bound to.
type ResourceRepository struct {
	model *model.ResourceModel
}

func NewResourceRepository(m *model.ResourceModel) repository.ResourceRepository {
	return &ResourceRepository{model: m}
}

func (r *ResourceRepository) Init(ctx context.Context) error {
	return r.model.Sync(ctx)
}

func (r *ResourceRepository) Ping(ctx context.Context) error {
	return r.model.Ping(ctx)
}

func (r *ResourceRepository) Create(ctx context.Context, input domain.ResourceInput) (*domain.Resource, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	values := model.Values{
		"name":        input.Name,
		"description": nil,
	}
	if input.Description != nil {
		values["description"] = *input.Description
	}

	row, err := r.model.Insert(ctx, values)
	if err != nil {
		return nil, err
	}
	res := row.Resource()
	return &res, nil
}

func (r *ResourceRepository) FindAll(ctx context.Context, filter domain.Filter) ([]domain.Resource, error) {
	where, err := whereFor(filter)
	if err != nil {
		return nil, err
	}
	rows, err := r.model.FindAll(ctx, where)
	if err != nil {
		return nil, err
	}
	return toResources(rows), nil
}

func (r *ResourceRepository) FindByID(ctx context.Context, id int64) (*domain.Resource, error) {
	row, err := r.model.FindByPK(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	res := row.Resource()
	return &res, nil
}

func (r *ResourceRepository) FindOne(ctx context.Context, filter domain.Filter) (*domain.Resource, error) {
	where, err := whereFor(filter)
	if err != nil {
		return nil, err
	}
	row, err := r.model.FindOne(ctx, where)
	if err != nil || row == nil {
		return nil, err
	}
	res := row.Resource()
	return &res, nil
}

func (r *ResourceRepository) Update(ctx context.Context, id int64, patch domain.ResourcePatch) (int64, []domain.Resource, error) {
	if err := patch.Validate(); err != nil {
		return 0, nil, err
	}

	values := model.Values{}
	if patch.Name.Set {
		values["name"] = *patch.Name.Value
	}
	if patch.Description.Set {
		if patch.Description.Value == nil {
			values["description"] = nil
		} else {
			values["description"] = *patch.Description.Value
		}
	}

	matched, rows, err := r.model.Update(ctx, values, model.Where{"id": id})
	if err != nil {
		return 0, nil, err
	}
	return matched, toResources(rows), nil
}

func (r *ResourceRepository) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.model.Destroy(ctx, model.Where{"id": id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ResourceRepository) Count(ctx context.Context, filter domain.Filter) (int64, error) {
	where, err := whereFor(filter)
	if err != nil {
		return 0, err
	}
	return r.model.Count(ctx, where)
}

func whereFor(filter domain.Filter) (model.Where, error) {
	cols, err := filter.Columns()
	if err != nil {
		return nil, err
	}
	return model.Where(cols), nil
}

func toResources(rows []model.ResourceRow) []domain.Resource {
	out := make([]domain.Resource, len(rows))
	for i := range rows {
		out[i] = rows[i].Resource()
	}
	return out
}
