package document

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
)

// UploadGrant is what a resolved upload token authorizes: submitting
// documents for one patient in the context of one request.
type UploadGrant struct {
	RequestID uuid.UUID
	PatientID uuid.UUID
}

// TokenResolver maps an upload token to its grant. Implemented by the
// request service; declared here to keep the dependency one-way.
type TokenResolver interface {
	ResolveUploadGrant(ctx context.Context, token string) (*UploadGrant, error)
}

type Service struct {
	documents DocumentRepository
	tokens    TokenResolver
	identity  *identity.Resolver
	runTx     db.TxRunner
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(documents DocumentRepository, tokens TokenResolver, resolver *identity.Resolver,
	runTx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		documents: documents,
		tokens:    tokens,
		identity:  resolver,
		runTx:     runTx,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitInput carries one upload. Either UploadToken or PatientID must
// be set; the token wins when both are present.
type SubmitInput struct {
	UploadToken *string    `json:"upload_token"`
	PatientID   *uuid.UUID `json:"patient_id"`
	Type        Type       `json:"type"`
	Title       *string    `json:"title"`
	DoctorName  *string    `json:"doctor_name"`
	VisitDate   *time.Time `json:"visit_date"`
	FileName     string     `json:"file_name"`
	ContentType  *string    `json:"content_type"`
	StorageKey   string     `json:"storage_key"`
	SizeBytes    int64      `json:"size_bytes"`
	OriginalSize *int64     `json:"original_size"`
	IsCompressed bool       `json:"is_compressed"`
}

// Submit stores a document. At most one document of each type exists
// per patient: an upload replaces any earlier file of the same type
// and resets verification to PENDING.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, in SubmitInput) (*Document, error) {
	if !ValidType(in.Type) {
		return nil, apperr.Ef(apperr.Validation, "unknown document type %q", in.Type)
	}
	if strings.TrimSpace(in.FileName) == "" || strings.TrimSpace(in.StorageKey) == "" {
		return nil, apperr.E(apperr.Validation, "file_name and storage_key are required")
	}

	var patientID uuid.UUID
	var requestID *uuid.UUID
	switch {
	case in.UploadToken != nil:
		grant, err := s.tokens.ResolveUploadGrant(ctx, *in.UploadToken)
		if err != nil {
			return nil, err
		}
		patientID = grant.PatientID
		rid := grant.RequestID
		requestID = &rid
	case in.PatientID != nil:
		if !s.maySubmitFor(ctx, actor, *in.PatientID) {
			return nil, apperr.E(apperr.Forbidden, "not linked to this patient")
		}
		patientID = *in.PatientID
	default:
		return nil, apperr.E(apperr.Validation, "upload_token or patient_id is required")
	}

	d := &Document{
		PatientID:    patientID,
		RequestID:    requestID,
		Type:         in.Type,
		Status:       StatusPending,
		Title:        in.Title,
		DoctorName:   in.DoctorName,
		VisitDate:    in.VisitDate,
		FileName:     in.FileName,
		ContentType:  in.ContentType,
		StorageKey:   in.StorageKey,
		SizeBytes:    in.SizeBytes,
		OriginalSize: in.OriginalSize,
		IsCompressed: in.IsCompressed,
	}
	if actor.Phone != "" {
		phone := actor.Phone
		d.UploadedByPhone = &phone
	}

	err := s.runTx(ctx, func(ctx context.Context) error {
		// The old row is dropped, not overwritten, so review starts
		// over on a fresh record.
		if existing, err := s.documents.GetByPatientAndType(ctx, patientID, d.Type); err == nil {
			if err := s.documents.Delete(ctx, existing.ID); err != nil {
				return err
			}
		}
		return s.documents.Create(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("document_id", d.ID.String()).
		Str("type", string(d.Type)).
		Msg("document submitted")
	return d, nil
}

func (s *Service) maySubmitFor(ctx context.Context, actor auth.Actor, patientID uuid.UUID) bool {
	if actor.IsStaff() {
		return true
	}
	if actor.Phone == "" {
		return false
	}
	ids, err := s.identity.PatientIDsForPhone(ctx, actor.Phone)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == patientID {
			return true
		}
	}
	return false
}

// SetStatus moves a document through review. APPROVED and REJECTED
// record the reviewer; PENDING sends it back to the queue and clears
// the earlier outcome.
func (s *Service) SetStatus(ctx context.Context, reviewerID, id uuid.UUID, status Status, reason *string) (*Document, error) {
	if !ValidStatus(status) {
		return nil, apperr.Ef(apperr.Validation, "unknown document status %q", status)
	}
	if status == StatusRejected && (reason == nil || strings.TrimSpace(*reason) == "") {
		return nil, apperr.E(apperr.Validation, "rejection requires a reason")
	}

	d, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "document not found")
	}
	d.Status = status
	d.RejectionReason = nil
	switch status {
	case StatusPending:
		d.VerifiedBy = nil
		d.VerifiedAt = nil
	default:
		now := s.now()
		d.VerifiedBy = &reviewerID
		d.VerifiedAt = &now
		if status == StatusRejected {
			d.RejectionReason = reason
		}
	}
	if err := s.documents.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the document for staff or for a requester whose link
// grants history access. Others get NotFound so document ids cannot
// be probed.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Document, error) {
	d, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "document not found")
	}
	if !actor.IsStaff() {
		if actor.Phone == "" || !s.identity.HasHistoryAccess(ctx, d.PatientID, actor.Phone) {
			return nil, apperr.E(apperr.NotFound, "document not found")
		}
	}
	return d, nil
}

// ListByPatient returns a patient's documents for staff, or for a
// requester whose link grants history access.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Actor, patientID uuid.UUID) ([]*Document, error) {
	if !actor.IsStaff() {
		if actor.Phone == "" || !s.identity.HasHistoryAccess(ctx, patientID, actor.Phone) {
			return nil, apperr.E(apperr.Forbidden, "no access to this patient's documents")
		}
	}
	return s.documents.ListByPatient(ctx, patientID)
}

// ListPending returns the verification queue.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*Document, int, error) {
	return s.documents.ListByStatus(ctx, StatusPending, limit, offset)
}
