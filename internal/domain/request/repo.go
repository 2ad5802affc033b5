package request

import (
	"context"

	"github.com/google/uuid"
)

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, r *Request) error
	// UpdateWithSupportGuard persists r only while the stored support_type
	// still matches expected (nil matches NULL). Zero rows updated means a
	// concurrent escalation or resolution won the race.
	UpdateWithSupportGuard(ctx context.Context, r *Request, expected *SupportType) (bool, error)
	FindByUploadToken(ctx context.Context, token string) (*Request, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Request, int, error)
	ListSupportQueued(ctx context.Context, limit, offset int) ([]*Request, int, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Request, int, error)
	ListByCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Request, int, error)
	ListByRequesterPhone(ctx context.Context, phone string, limit, offset int) ([]*Request, int, error)
}

type LogRepository interface {
	Append(ctx context.Context, e *LogEntry) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*LogEntry, error)
}
