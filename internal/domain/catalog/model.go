package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Default entries created at startup so that intake always has a service
// item to attach a new request to.
const (
	DefaultCategoryName = "Initial consultation & assessment"
	DefaultItemName     = "Call and needs assessment"
)

// Category groups related service items.
type Category struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Item is a bookable home-care service offering.
type Item struct {
	ID          uuid.UUID `db:"id" json:"id"`
	CategoryID  uuid.UUID `db:"category_id" json:"category_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
