package request

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/catalog"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/db"
)

// Service drives the request lifecycle. State transitions and their log
// entries commit together inside one transaction.
type Service struct {
	requests RequestRepository
	logs     LogRepository
	identity *identity.Resolver
	catalog  *catalog.Service
	runTx    db.TxRunner
	logger   zerolog.Logger
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(requests RequestRepository, logs LogRepository, resolver *identity.Resolver,
	cat *catalog.Service, runTx db.TxRunner, tokenTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		requests: requests,
		logs:     logs,
		identity: resolver,
		catalog:  cat,
		runTx:    runTx,
		logger:   logger,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (s *Service) appendLog(ctx context.Context, requestID uuid.UUID, action string, payload interface{}, actor auth.Actor) error {
	e := &LogEntry{RequestID: requestID, Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		e.Payload = raw
	}
	if !actor.IsGuest() {
		id := actor.UserID
		e.ActorID = &id
	}
	if actor.Phone != "" {
		phone := actor.Phone
		e.ActorPhone = &phone
	}
	return s.logs.Append(ctx, e)
}

// actorID returns the account id for authenticated actors, nil for guests.
func actorID(actor auth.Actor) *uuid.UUID {
	if actor.IsGuest() {
		return nil
	}
	id := actor.UserID
	return &id
}

// CreateInput carries a new intake. Guests identify themselves by phone;
// authenticated callers inherit theirs from the token.
type CreateInput struct {
	PatientID           *uuid.UUID `json:"patient_id"`
	PatientName         string     `json:"patient_name"`
	PatientNationalCode *string    `json:"patient_national_code"`
	Phone               string     `json:"phone"`
	ServiceItemID       *uuid.UUID `json:"service_item_id"`
	City                *string    `json:"city"`
	Time                *string    `json:"time"`
	Notes               *string    `json:"notes"`
}

// Create runs the full intake: resolve the patient, link the requester,
// pick the service item, and open the request. Requests for a verified
// patient start in NEW; everyone else starts in DOCS_PENDING until the
// identity documents are checked.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Request, error) {
	phone := strings.TrimSpace(in.Phone)
	if !actor.IsGuest() && actor.Phone != "" {
		phone = actor.Phone
	}
	if !identity.ValidPhone(phone) {
		return nil, apperr.E(apperr.Validation, "invalid requester phone")
	}

	var created *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		patient, err := s.identity.ResolvePatient(ctx, in.PatientID, in.PatientName, in.PatientNationalCode, phone)
		if err != nil {
			return err
		}

		userID := actorID(actor)
		if _, err := s.identity.ResolveRequesterLink(ctx, patient.ID, phone, userID); err != nil {
			return err
		}

		item, err := s.catalog.ResolveItem(ctx, in.ServiceItemID)
		if err != nil {
			return err
		}

		status := StatusDocsPending
		if patient.IsVerified() {
			status = StatusNew
		}
		q := &Request{
			PatientID:       patient.ID,
			RequesterPhone:  phone,
			RequesterUserID: userID,
			ServiceItemID:   item.ID,
			Status:          status,
			City:            in.City,
			Time:            in.Time,
			Notes:           in.Notes,
		}
		if err := s.requests.Create(ctx, q); err != nil {
			return err
		}
		if err := s.appendLog(ctx, q.ID, ActionRequestCreated, nil, actor); err != nil {
			return err
		}
		created = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("request_id", created.ID.String()).
		Str("status", string(created.Status)).
		Msg("request created")
	return created, nil
}

func (s *Service) canView(ctx context.Context, actor auth.Actor, q *Request) bool {
	if actor.IsStaff() {
		return true
	}
	if actor.HasRole(auth.RoleCareGiver) && q.AssignedCaregiverID != nil && *q.AssignedCaregiverID == actor.UserID {
		return true
	}
	if actor.Phone == "" {
		return false
	}
	if actor.Phone == q.RequesterPhone {
		return true
	}
	return s.identity.HasStanding(ctx, q.PatientID, actor.Phone)
}

// Get returns the request when the actor may see it. Non-viewers get
// NotFound rather than Forbidden so request ids cannot be probed.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Request, error) {
	q, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.E(apperr.NotFound, "request not found")
	}
	if !s.canView(ctx, actor, q) {
		return nil, apperr.E(apperr.NotFound, "request not found")
	}
	return q, nil
}

// ListFilter narrows staff listings.
type ListFilter struct {
	Status      *Status
	SupportOnly bool
}

// List returns the requests visible to the actor: staff see everything,
// caregivers their assignments, everyone else their own intakes.
func (s *Service) List(ctx context.Context, actor auth.Actor, f ListFilter, limit, offset int) ([]*Request, int, error) {
	if actor.IsStaff() {
		if f.SupportOnly {
			return s.requests.ListSupportQueued(ctx, limit, offset)
		}
		if f.Status != nil {
			return s.requests.ListByStatus(ctx, *f.Status, limit, offset)
		}
		return s.requests.ListAll(ctx, limit, offset)
	}
	if actor.HasRole(auth.RoleCareGiver) {
		return s.requests.ListByCaregiver(ctx, actor.UserID, limit, offset)
	}
	if actor.Phone == "" {
		return nil, 0, apperr.E(apperr.Unauthenticated, "authentication required")
	}
	return s.requests.ListByRequesterPhone(ctx, actor.Phone, limit, offset)
}

// Update applies a direct staff edit to an open request. Only supplied
// fields change; absent fields stay as they are.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, in UpdateInput) (*Request, error) {
	if in.Status != nil && !ValidStatus(*in.Status) {
		return nil, apperr.Ef(apperr.Validation, "unknown status %q", *in.Status)
	}
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.Status == StatusCanceled || q.Status == StatusClosed {
			return apperr.E(apperr.InvalidPrecondition, "request is no longer open")
		}
		if err := s.applyPatch(ctx, q, in.Patch); err != nil {
			return err
		}
		if in.Status != nil {
			q.Status = *in.Status
		}
		if in.AssignedCaregiverID != nil {
			q.AssignedCaregiverID = in.AssignedCaregiverID
		}
		if in.AssignedExpertID != nil {
			q.AssignedExpertID = in.AssignedExpertID
		}
		if in.CurrentOwnerUserID != nil {
			q.CurrentOwnerUserID = in.CurrentOwnerUserID
		}
		q.LastActionByUserID = actorID(actor)
		if err := s.requests.Update(ctx, q); err != nil {
			return err
		}
		if err := s.appendLog(ctx, q.ID, ActionRequestUpdated, nil, actor); err != nil {
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) applyPatch(ctx context.Context, q *Request, patch Patch) error {
	if patch.ServiceItemID != nil {
		item, err := s.catalog.ResolveItem(ctx, patch.ServiceItemID)
		if err != nil {
			return err
		}
		q.ServiceItemID = item.ID
	}
	if patch.City != nil {
		q.City = patch.City
	}
	if patch.Time != nil {
		q.Time = patch.Time
	}
	if patch.Notes != nil {
		q.Notes = patch.Notes
	}
	return nil
}

// AssignCaregiver puts the request into ASSIGNED and records who got it
// and which expert handed it out.
func (s *Service) AssignCaregiver(ctx context.Context, actor auth.Actor, id, caregiverID uuid.UUID) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.Status == StatusCanceled || q.Status == StatusClosed {
			return apperr.E(apperr.InvalidPrecondition, "request is no longer open")
		}
		if q.InSupportLane() {
			return apperr.E(apperr.InvalidPrecondition, "request is waiting on support")
		}
		q.Status = StatusAssigned
		q.AssignedCaregiverID = &caregiverID
		q.AssignedExpertID = actorID(actor)
		q.LastActionByUserID = actorID(actor)
		if err := s.requests.Update(ctx, q); err != nil {
			return err
		}
		payload := map[string]interface{}{"caregiverId": caregiverID}
		if err := s.appendLog(ctx, q.ID, ActionAssignedCaregiver, payload, actor); err != nil {
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RejectByCaregiver lets the assigned caregiver hand the request back.
func (s *Service) RejectByCaregiver(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.Status != StatusAssigned {
			return apperr.E(apperr.InvalidPrecondition, "request is not assigned")
		}
		isAssignee := q.AssignedCaregiverID != nil && *q.AssignedCaregiverID == actor.UserID
		if !isAssignee && !actor.HasRole(auth.RoleAdmin) {
			return apperr.E(apperr.Forbidden, "only the assigned caregiver may reject")
		}
		q.Status = StatusRejectedByCaregiver
		q.AssignedCaregiverID = nil
		q.LastActionByUserID = actorID(actor)
		if err := s.requests.Update(ctx, q); err != nil {
			return err
		}
		if err := s.appendLog(ctx, q.ID, ActionCaregiverRejected, nil, actor); err != nil {
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Close finishes the request. Any non-terminal state may be closed,
// an open support ticket included.
func (s *Service) Close(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.Status == StatusCanceled || q.Status == StatusClosed {
			return apperr.E(apperr.InvalidPrecondition, "request is no longer open")
		}
		q.Status = StatusClosed
		q.LastActionByUserID = actorID(actor)
		if err := s.requests.Update(ctx, q); err != nil {
			return err
		}
		if err := s.appendLog(ctx, q.ID, ActionRequestClosed, nil, actor); err != nil {
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) mintToken(q *Request) error {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	token := hex.EncodeToString(buf)
	expires := s.now().Add(s.tokenTTL)
	q.UploadToken = &token
	q.UploadTokenExpiresAt = &expires
	return nil
}

// MintUploadToken issues (or replaces) the document upload token. The
// token stays valid until expiry and may be used for several uploads.
func (s *Service) MintUploadToken(ctx context.Context, actor auth.Actor, id uuid.UUID) (string, time.Time, error) {
	var token string
	var expires time.Time
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.Status == StatusCanceled || q.Status == StatusClosed {
			return apperr.E(apperr.InvalidPrecondition, "request is no longer open")
		}
		if err := s.mintToken(q); err != nil {
			return err
		}
		q.LastActionByUserID = actorID(actor)
		if err := s.requests.Update(ctx, q); err != nil {
			return err
		}
		token = *q.UploadToken
		expires = *q.UploadTokenExpiresAt
		return nil
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// ResolveUploadToken maps a live upload token to its request.
func (s *Service) ResolveUploadToken(ctx context.Context, token string) (*Request, error) {
	q, err := s.requests.FindByUploadToken(ctx, token)
	if err != nil {
		return nil, apperr.E(apperr.Unauthenticated, "invalid or expired upload token")
	}
	return q, nil
}

// Logs returns the audit trail for a request the actor may see.
func (s *Service) Logs(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]*LogEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.logs.ListByRequest(ctx, id)
}
