package document

import (
	"context"

	"github.com/google/uuid"
)

type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	// GetByPatientAndType returns the singleton document of a type, if any.
	GetByPatientAndType(ctx context.Context, patientID uuid.UUID, t Type) (*Document, error)
	Update(ctx context.Context, d *Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Document, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Document, int, error)
}
