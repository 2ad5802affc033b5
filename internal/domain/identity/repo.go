package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	// CreateIfAbsent inserts the patient unless one with the same national
	// code already exists, and returns the surviving row either way.
	CreateIfAbsent(ctx context.Context, p *Patient) (*Patient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByNationalCode(ctx context.Context, code string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	SearchByNationalCode(ctx context.Context, codePrefix string, limit, offset int) ([]*Patient, int, error)
}

type RequesterLinkRepository interface {
	Create(ctx context.Context, l *RequesterLink) error
	GetByPatientAndUser(ctx context.Context, patientID, userID uuid.UUID) (*RequesterLink, error)
	GetByPatientAndPhone(ctx context.Context, patientID uuid.UUID, phone string) (*RequesterLink, error)
	CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*RequesterLink, error)
	ListByPhone(ctx context.Context, phone string) ([]*RequesterLink, error)
	Update(ctx context.Context, l *RequesterLink) error
}
