package catalog

import (
	"context"

	"github.com/google/uuid"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*Category, error)
	GetByName(ctx context.Context, name string) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
}

type ItemRepository interface {
	Create(ctx context.Context, i *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	GetByName(ctx context.Context, name string) (*Item, error)
	Update(ctx context.Context, i *Item) error
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]*Item, error)
	ListActive(ctx context.Context) ([]*Item, error)
}
