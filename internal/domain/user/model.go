package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/auth"
)

// User is an account that can authenticate against the API. Roles are
// granted through the user_role join table and OR together.
type User struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	Phone        string      `db:"phone" json:"phone"`
	Name         *string     `db:"name" json:"name,omitempty"`
	PasswordHash string      `db:"password_hash" json:"-"`
	Roles        []auth.Role `json:"roles"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}
