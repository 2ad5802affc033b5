package request

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// The support lane. A request enters it when the requester asks support
// to cancel or change it, and leaves when support resolves the ticket.
// All writes go through the support guard so concurrent escalations and
// resolutions cannot double-apply.

// Escalation rights go to staff, the original requester, and any phone
// with primary or secondary standing over the patient.
func (s *Service) canEscalate(ctx context.Context, actor auth.Actor, q *Request) bool {
	if actor.IsStaff() {
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

// EscalateCancel asks support to cancel the request. Unlike the other
// ticket types it may overwrite a queued CHANGE or OTHER ticket. The
// pre-escalation status is parked in previous_status so a rejected
// ticket can restore it.
func (s *Service) EscalateCancel(ctx context.Context, actor auth.Actor, id uuid.UUID, note *string) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if !s.canEscalate(ctx, actor, q) {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.Status == StatusCanceled || q.Status == StatusClosed {
			return apperr.E(apperr.InvalidPrecondition, "request is no longer open")
		}

		// Guard on the lane value we read so a concurrent escalation or
		// resolution still conflicts.
		var expected *SupportType
		if q.SupportType != nil {
			t := *q.SupportType
			expected = &t
		}
		if q.Status != StatusCancelRequested {
			prev := q.Status
			q.PreviousStatus = &prev
		}
		supportType := SupportCancel
		q.Status = StatusCancelRequested
		q.SupportType = &supportType
		q.SupportNote = note
		q.SupportPayload = nil

		ok, err := s.requests.UpdateWithSupportGuard(ctx, q, expected)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.E(apperr.InvalidPrecondition, "request changed concurrently, retry")
		}
		payload := map[string]interface{}{"previousStatus": q.PreviousStatus}
		if err := s.appendLog(ctx, q.ID, ActionCancelRequested, payload, actor); err != nil {
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

// EscalateChange asks support to apply the given edits. The status is
// untouched; the requested patch waits on the row until resolution.
func (s *Service) EscalateChange(ctx context.Context, actor auth.Actor, id uuid.UUID, changes Patch, note *string) (*Request, error) {
	if changes.IsEmpty() {
		return nil, apperr.E(apperr.Validation, "no changes requested")
	}
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if !s.canEscalate(ctx, actor, q) {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.Status == StatusCanceled || q.Status == StatusClosed {
			return apperr.E(apperr.InvalidPrecondition, "request is no longer open")
		}
		if q.InSupportLane() {
			return apperr.E(apperr.InvalidPrecondition, "request already has a support ticket")
		}

		raw, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		supportType := SupportChange
		q.SupportType = &supportType
		q.SupportNote = note
		q.SupportPayload = raw

		ok, err := s.requests.UpdateWithSupportGuard(ctx, q, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.E(apperr.InvalidPrecondition, "request already has a support ticket")
		}
		payload := map[string]interface{}{"requestedChanges": changes, "note": note}
		if err := s.appendLog(ctx, q.ID, ActionChangeRequested, payload, actor); err != nil {
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

// EscalateOther opens a free-form support ticket without touching the
// request state beyond queueing it.
func (s *Service) EscalateOther(ctx context.Context, actor auth.Actor, id uuid.UUID, note *string) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if !s.canEscalate(ctx, actor, q) {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.InSupportLane() {
			return apperr.E(apperr.InvalidPrecondition, "request already has a support ticket")
		}
		supportType := SupportOther
		q.SupportType = &supportType
		q.SupportNote = note
		ok, err := s.requests.UpdateWithSupportGuard(ctx, q, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.E(apperr.InvalidPrecondition, "request already has a support ticket")
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func clearSupport(q *Request) {
	q.SupportType = nil
	q.SupportNote = nil
	q.SupportPayload = nil
	q.PreviousStatus = nil
}

// ResolveCancel settles a CANCEL ticket. Approval cancels the request;
// rejection restores the parked status. Resolving twice fails on the
// guard, so the outcome is applied exactly once.
func (s *Service) ResolveCancel(ctx context.Context, actor auth.Actor, id uuid.UUID, approve bool) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.SupportType == nil || *q.SupportType != SupportCancel {
			return apperr.E(apperr.InvalidPrecondition, "no cancel ticket to resolve")
		}

		action := ActionCancelApproved
		var payload map[string]interface{}
		if approve {
			q.Status = StatusCanceled
			clearSupport(q)
		} else {
			next := StatusNew
			if q.PreviousStatus != nil {
				next = *q.PreviousStatus
			} else {
				s.logger.Warn().
					Str("request_id", q.ID.String()).
					Msg("no parked status to restore, falling back to NEW")
			}
			q.Status = next
			clearSupport(q)
			action = ActionCancelRejected
			payload = map[string]interface{}{"nextStatus": next}
		}
		q.LastActionByUserID = actorID(actor)

		expected := SupportCancel
		ok, err := s.requests.UpdateWithSupportGuard(ctx, q, &expected)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.E(apperr.InvalidPrecondition, "ticket already resolved")
		}
		if err := s.appendLog(ctx, q.ID, action, payload, actor); err != nil {
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

// ResolveChange settles a CHANGE ticket. Approval applies exactly the
// fields the resolver supplies; the requested patch stays on the row
// for support to read but is never replayed on its own. Rejection
// discards everything. Either way the ticket is consumed.
func (s *Service) ResolveChange(ctx context.Context, actor auth.Actor, id uuid.UUID, approve bool, changes Patch) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.SupportType == nil || *q.SupportType != SupportChange {
			return apperr.E(apperr.InvalidPrecondition, "no change ticket to resolve")
		}

		action := ActionChangeRejected
		var payload map[string]interface{}
		if approve {
			if err := s.applyPatch(ctx, q, changes); err != nil {
				return err
			}
			action = ActionChangeApproved
			payload = map[string]interface{}{"updates": changes, "approve": true}
		}
		clearSupport(q)
		q.LastActionByUserID = actorID(actor)

		expected := SupportChange
		ok, err := s.requests.UpdateWithSupportGuard(ctx, q, &expected)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.E(apperr.InvalidPrecondition, "ticket already resolved")
		}
		if err := s.appendLog(ctx, q.ID, action, payload, actor); err != nil {
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

// ResolveOther closes a free-form ticket with no state change.
func (s *Service) ResolveOther(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Request, error) {
	var updated *Request
	err := s.runTx(ctx, func(ctx context.Context) error {
		q, err := s.requests.GetByID(ctx, id)
		if err != nil {
			return apperr.E(apperr.NotFound, "request not found")
		}
		if q.SupportType == nil || *q.SupportType != SupportOther {
			return apperr.E(apperr.InvalidPrecondition, "no support ticket to resolve")
		}
		clearSupport(q)
		q.LastActionByUserID = actorID(actor)
		expected := SupportOther
		ok, err := s.requests.UpdateWithSupportGuard(ctx, q, &expected)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.E(apperr.InvalidPrecondition, "ticket already resolved")
		}
		updated = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
