package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// Resolver owns patient identity: dedup by national code, requester
// links, and patient record maintenance.
type Resolver struct {
	patients PatientRepository
	links    RequesterLinkRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewResolver(patients PatientRepository, links RequesterLinkRepository, logger zerolog.Logger) *Resolver {
	return &Resolver{patients: patients, links: links, logger: logger, now: time.Now}
}

// ResolvePatient finds the patient for an intake, creating one when
// needed. A known patient id wins over everything else, then the
// national code; requests without either get a temporary code so the
// record can still be deduplicated later.
func (r *Resolver) ResolvePatient(ctx context.Context, patientID *uuid.UUID, name string, nationalCode *string, requesterPhone string) (*Patient, error) {
	if patientID != nil {
		if p, err := r.patients.GetByID(ctx, *patientID); err == nil {
			return p, nil
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.E(apperr.Validation, "patient name is required")
	}

	code := ""
	if nationalCode != nil {
		code = strings.TrimSpace(*nationalCode)
	}
	if code != "" {
		if p, err := r.patients.GetByNationalCode(ctx, code); err == nil {
			return p, nil
		}
	} else {
		code = GenerateTempNationalCode(requesterPhone, r.now())
	}

	p, err := r.patients.CreateIfAbsent(ctx, &Patient{
		NationalCode:       code,
		Name:               name,
		VerificationStatus: VerificationPending,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("patient_id", p.ID.String()).
		Bool("temp_code", p.HasTempCode()).
		Msg("patient resolved")
	return p, nil
}

// ResolveRequesterLink finds or creates the link between a requester
// and a patient, matching by account id first and phone second so an
// account keeps one link even when it calls in from a new number. The
// first link per patient becomes primary with history access; later
// requesters get neither. Existing links have their request counters
// bumped and are back-filled with the account id when one appears.
func (r *Resolver) ResolveRequesterLink(ctx context.Context, patientID uuid.UUID, phone string, userID *uuid.UUID) (*RequesterLink, error) {
	now := r.now()
	if userID != nil {
		if l, err := r.links.GetByPatientAndUser(ctx, patientID, *userID); err == nil {
			l.TotalRequests++
			l.LastRequestAt = &now
			if err := r.links.Update(ctx, l); err != nil {
				return nil, err
			}
			return l, nil
		}
	}
	if l, err := r.links.GetByPatientAndPhone(ctx, patientID, phone); err == nil {
		l.TotalRequests++
		l.LastRequestAt = &now
		if l.UserID == nil && userID != nil {
			l.UserID = userID
		}
		if err := r.links.Update(ctx, l); err != nil {
			return nil, err
		}
		return l, nil
	}

	count, err := r.links.CountByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	l := &RequesterLink{
		PatientID:            patientID,
		Phone:                phone,
		UserID:               userID,
		IsPrimary:            count == 0,
		HistoryAccessGranted: count == 0,
		TotalRequests:        1,
		LastRequestAt:        &now,
	}
	if err := r.links.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// RegisterPatient is the explicit admission path. Unlike intake it
// requires a real national code up front and links the calling account
// to the new record.
func (r *Resolver) RegisterPatient(ctx context.Context, actorUserID uuid.UUID, actorPhone, name, nationalCode string) (*Patient, error) {
	name = strings.TrimSpace(name)
	code := strings.TrimSpace(nationalCode)
	if name == "" || code == "" {
		return nil, apperr.E(apperr.Validation, "name and national code are required")
	}
	p, err := r.patients.CreateIfAbsent(ctx, &Patient{
		NationalCode:       code,
		Name:               name,
		VerificationStatus: VerificationPending,
	})
	if err != nil {
		return nil, err
	}
	if actorPhone != "" {
		if _, err := r.ResolveRequesterLink(ctx, p.ID, actorPhone, &actorUserID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (r *Resolver) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "patient not found")
	}
	return p, nil
}

func (r *Resolver) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.patients.List(ctx, limit, offset)
}

func (r *Resolver) SearchByNationalCode(ctx context.Context, codePrefix string, limit, offset int) ([]*Patient, int, error) {
	codePrefix = strings.TrimSpace(codePrefix)
	if codePrefix == "" {
		return nil, 0, apperr.E(apperr.Validation, "search prefix is required")
	}
	return r.patients.SearchByNationalCode(ctx, codePrefix, limit, offset)
}

// UpdatePatient applies a partial update. Replacing a temporary national
// code with a real one is the expected path once documents arrive.
func (r *Resolver) UpdatePatient(ctx context.Context, id uuid.UUID, patch PatientPatch) (*Patient, error) {
	p, err := r.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "patient not found")
	}
	if patch.NationalCode != nil {
		code := strings.TrimSpace(*patch.NationalCode)
		if code == "" {
			return nil, apperr.E(apperr.Validation, "national code must not be empty")
		}
		if code != p.NationalCode {
			if other, err := r.patients.GetByNationalCode(ctx, code); err == nil && other.ID != p.ID {
				return nil, apperr.E(apperr.Validation, "national code already in use")
			}
			p.NationalCode = code
		}
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.E(apperr.Validation, "name must not be empty")
		}
		p.Name = name
	}
	if patch.Phone != nil {
		p.Phone = patch.Phone
	}
	if patch.BirthDate != nil {
		p.BirthDate = patch.BirthDate
	}
	if patch.Address != nil {
		p.Address = patch.Address
	}
	if patch.Notes != nil {
		p.Notes = patch.Notes
	}
	if err := r.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetVerificationStatus moves the identity check forward or back.
// VERIFIED and REJECTED record the reviewer; PENDING clears it.
func (r *Resolver) SetVerificationStatus(ctx context.Context, id, reviewerID uuid.UUID, status VerificationStatus) (*Patient, error) {
	if !ValidVerificationStatus(status) {
		return nil, apperr.Ef(apperr.Validation, "unknown verification status %q", status)
	}
	p, err := r.patients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "patient not found")
	}
	if status == VerificationVerified && p.HasTempCode() {
		return nil, apperr.E(apperr.InvalidPrecondition, "cannot verify a patient with a temporary national code")
	}
	p.VerificationStatus = status
	if status == VerificationPending {
		p.VerifiedBy = nil
		p.VerifiedAt = nil
	} else {
		now := r.now()
		p.VerifiedBy = &reviewerID
		p.VerifiedAt = &now
	}
	if err := r.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LinkStandingPatch adjusts one requester link. Nil leaves the flag as
// it is.
type LinkStandingPatch struct {
	IsSecondary          *bool `json:"is_secondary"`
	HistoryAccessGranted *bool `json:"history_access_granted"`
}

// SetLinkStanding grants or revokes secondary standing and history
// access on an existing requester link. Primary standing is fixed at
// link creation and never reassigned here.
func (r *Resolver) SetLinkStanding(ctx context.Context, patientID, linkID uuid.UUID, patch LinkStandingPatch) (*RequesterLink, error) {
	links, err := r.links.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.ID != linkID {
			continue
		}
		if patch.IsSecondary != nil {
			if l.IsPrimary && *patch.IsSecondary {
				return nil, apperr.E(apperr.Validation, "primary link cannot also be secondary")
			}
			l.IsSecondary = *patch.IsSecondary
		}
		if patch.HistoryAccessGranted != nil {
			l.HistoryAccessGranted = *patch.HistoryAccessGranted
		}
		if err := r.links.Update(ctx, l); err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, apperr.E(apperr.NotFound, "requester link not found")
}

// ListRequesterLinks returns every requester tied to the patient.
func (r *Resolver) ListRequesterLinks(ctx context.Context, patientID uuid.UUID) ([]*RequesterLink, error) {
	return r.links.ListByPatient(ctx, patientID)
}

// PatientIDsForPhone returns the patients a requester phone is linked to.
func (r *Resolver) PatientIDsForPhone(ctx context.Context, phone string) ([]uuid.UUID, error) {
	links, err := r.links.ListByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.PatientID)
	}
	return ids, nil
}

// HasHistoryAccess reports whether the phone may see the patient's past
// requests and documents.
func (r *Resolver) HasHistoryAccess(ctx context.Context, patientID uuid.UUID, phone string) bool {
	l, err := r.links.GetByPatientAndPhone(ctx, patientID, phone)
	return err == nil && l.HistoryAccessGranted
}

// HasStanding reports whether the phone holds primary or secondary
// standing over the patient, which carries escalation rights.
func (r *Resolver) HasStanding(ctx context.Context, patientID uuid.UUID, phone string) bool {
	if phone == "" {
		return false
	}
	l, err := r.links.GetByPatientAndPhone(ctx, patientID, phone)
	return err == nil && l.HasStanding()
}
