package document

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies an uploaded document.
type Type string

const (
	TypeNationalCardFront Type = "NATIONAL_CARD_FRONT"
	TypeNationalCardBack  Type = "NATIONAL_CARD_BACK"
	TypeMedicalDocument   Type = "MEDICAL_DOCUMENT"
)

// ValidType reports whether t is a known document type.
func ValidType(t Type) bool {
	switch t {
	case TypeNationalCardFront, TypeNationalCardBack, TypeMedicalDocument:
		return true
	}
	return false
}

// Review status of a document.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ValidStatus reports whether s is a known review status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Document is an identity or medical file attached to a patient.
type Document struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	RequestID       *uuid.UUID `db:"request_id" json:"request_id,omitempty"`
	Type            Type       `db:"doc_type" json:"type"`
	Status          Status     `db:"status" json:"status"`
	Title           *string    `db:"title" json:"title,omitempty"`
	DoctorName      *string    `db:"doctor_name" json:"doctor_name,omitempty"`
	VisitDate       *time.Time `db:"visit_date" json:"visit_date,omitempty"`
	FileName        string     `db:"file_name" json:"file_name"`
	ContentType     *string    `db:"content_type" json:"content_type,omitempty"`
	StorageKey      string     `db:"storage_key" json:"storage_key"`
	SizeBytes       int64      `db:"size_bytes" json:"size_bytes"`
	OriginalSize    *int64     `db:"original_size" json:"original_size,omitempty"`
	IsCompressed    bool       `db:"is_compressed" json:"is_compressed"`
	UploadedByPhone *string    `db:"uploaded_by_phone" json:"uploaded_by_phone,omitempty"`
	VerifiedBy      *uuid.UUID `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
