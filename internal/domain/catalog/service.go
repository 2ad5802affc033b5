package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
)

type Service struct {
	categories CategoryRepository
	items      ItemRepository
	logger     zerolog.Logger
}

func NewService(categories CategoryRepository, items ItemRepository, logger zerolog.Logger) *Service {
	return &Service{categories: categories, items: items, logger: logger}
}

// EnsureDefaults creates the default category and item when they do not
// exist yet. Safe to call on every startup.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	cat, err := s.categories.GetByName(ctx, DefaultCategoryName)
	if err != nil {
		cat = &Category{Name: DefaultCategoryName}
		if err := s.categories.Create(ctx, cat); err != nil {
			return err
		}
		s.logger.Info().Str("category", cat.Name).Msg("created default service category")
	}

	if _, err := s.items.GetByName(ctx, DefaultItemName); err != nil {
		item := &Item{CategoryID: cat.ID, Name: DefaultItemName, Active: true}
		if err := s.items.Create(ctx, item); err != nil {
			return err
		}
		s.logger.Info().Str("item", item.Name).Msg("created default service item")
	}
	return nil
}

// ResolveItem returns the item with the given id, or the default item
// when no id is supplied or the id matches nothing. Intake never fails
// over the service selection.
func (s *Service) ResolveItem(ctx context.Context, id *uuid.UUID) (*Item, error) {
	if id != nil {
		if item, err := s.items.GetByID(ctx, *id); err == nil {
			return item, nil
		}
		s.logger.Warn().Str("item_id", id.String()).Msg("unknown service item, using default")
	}
	item, err := s.items.GetByName(ctx, DefaultItemName)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.categories.List(ctx)
}

func (s *Service) ListItems(ctx context.Context, categoryID *uuid.UUID) ([]*Item, error) {
	if categoryID != nil {
		return s.items.ListByCategory(ctx, *categoryID)
	}
	return s.items.ListActive(ctx)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "service item not found")
	}
	return item, nil
}

// UpdateItem changes the mutable fields of an item.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, name *string, description *string, active *bool) (*Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "service item not found")
	}
	if name != nil {
		if *name == "" {
			return nil, apperr.E(apperr.Validation, "name must not be empty")
		}
		item.Name = *name
	}
	if description != nil {
		item.Description = description
	}
	if active != nil {
		item.Active = *active
	}
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
