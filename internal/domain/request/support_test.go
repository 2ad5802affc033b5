package request

import (
	"context"
	"testing"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

func openRequest(t *testing.T, f *fixture) *Request {
	t.Helper()
	q, err := f.svc.Create(context.Background(), guest("09121112233"), CreateInput{
		PatientName: "Maryam Ahmadi",
		Phone:       "09121112233",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return q
}

func requester() auth.Actor {
	return auth.Actor{Phone: "09121112233", Roles: []auth.Role{auth.RoleUser}}
}

func TestEscalateCancel_ParksPreviousStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	got, err := f.svc.EscalateCancel(ctx, requester(), q.ID, strPtr("changed my mind"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelRequested {
		t.Errorf("expected CANCEL_REQUESTED, got %s", got.Status)
	}
	if got.PreviousStatus == nil || *got.PreviousStatus != StatusDocsPending {
		t.Errorf("expected previous status DOCS_PENDING, got %v", got.PreviousStatus)
	}
	if got.SupportType == nil || *got.SupportType != SupportCancel {
		t.Error("expected CANCEL ticket")
	}
	if f.logs.lastAction(q.ID) != ActionCancelRequested {
		t.Errorf("expected %s log", ActionCancelRequested)
	}
}

func TestEscalateCancel_OverwritesQueuedChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	if _, err := f.svc.EscalateChange(ctx, requester(), q.ID, Patch{Notes: strPtr("x")}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := f.svc.EscalateCancel(ctx, requester(), q.ID, nil)
	if err != nil {
		t.Fatalf("cancel must overwrite a queued change ticket: %v", err)
	}
	if got.SupportType == nil || *got.SupportType != SupportCancel {
		t.Error("expected the lane to hold CANCEL")
	}
	if got.SupportPayload != nil {
		t.Error("overwriting must discard the queued patch")
	}
	if got.PreviousStatus == nil || *got.PreviousStatus != StatusDocsPending {
		t.Errorf("expected previous status DOCS_PENDING, got %v", got.PreviousStatus)
	}

	// Re-escalating cancel keeps the originally parked status.
	again, err := f.svc.EscalateCancel(ctx, requester(), q.ID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.PreviousStatus == nil || *again.PreviousStatus != StatusDocsPending {
		t.Errorf("re-escalation must not park CANCEL_REQUESTED, got %v", again.PreviousStatus)
	}

	if _, err := f.svc.EscalateChange(ctx, requester(), q.ID, Patch{Notes: strPtr("y")}, nil); !apperr.Is(err, apperr.InvalidPrecondition) {
		t.Fatalf("change must not re-queue an occupied lane, got %v", err)
	}
}

func TestEscalateCancel_StrangerCannot(t *testing.T) {
	f := newFixture(t)
	q := openRequest(t, f)

	stranger := auth.Actor{Phone: "09120000000", Roles: []auth.Role{auth.RoleUser}}
	_, err := f.svc.EscalateCancel(context.Background(), stranger, q.ID, nil)
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not-found for stranger, got %v", err)
	}
}

func TestResolveCancel_ApproveCancels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)
	f.svc.EscalateCancel(ctx, requester(), q.ID, nil)

	got, err := f.svc.ResolveCancel(ctx, staff(auth.RoleSupport), q.ID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCanceled {
		t.Errorf("expected CANCELED, got %s", got.Status)
	}
	if got.SupportType != nil || got.PreviousStatus != nil {
		t.Error("resolution must clear the ticket and the parked status")
	}
	if f.logs.lastAction(q.ID) != ActionCancelApproved {
		t.Errorf("expected %s log", ActionCancelApproved)
	}
}

func TestResolveCancel_RejectRestoresStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	// Park an ASSIGNED request in the cancel lane, then reject the ticket.
	assignee := caregiver()
	if _, err := f.svc.AssignCaregiver(ctx, staff(auth.RoleExpert), q.ID, assignee.UserID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.EscalateCancel(ctx, requester(), q.ID, nil); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	got, err := f.svc.ResolveCancel(ctx, staff(auth.RoleSupport), q.ID, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAssigned {
		t.Errorf("rejection must restore ASSIGNED, got %s", got.Status)
	}
	if got.SupportType != nil {
		t.Error("rejection must clear the ticket")
	}
	if f.logs.lastAction(q.ID) != ActionCancelRejected {
		t.Errorf("expected %s log", ActionCancelRejected)
	}
}

func TestResolveCancel_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)
	f.svc.EscalateCancel(ctx, requester(), q.ID, nil)

	if _, err := f.svc.ResolveCancel(ctx, staff(auth.RoleSupport), q.ID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.ResolveCancel(ctx, staff(auth.RoleSupport), q.ID, true); !apperr.Is(err, apperr.InvalidPrecondition) {
		t.Fatalf("expected precondition error on second resolve, got %v", err)
	}
}

func TestEscalateChange_ApproveAppliesResolverFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	got, err := f.svc.EscalateChange(ctx, requester(), q.ID, Patch{
		City:  strPtr("Tehran"),
		Notes: strPtr("prefer morning visits"),
	}, strPtr("please update"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusDocsPending {
		t.Errorf("change ticket must not move the status, got %s", got.Status)
	}
	if got.City != nil {
		t.Error("requested changes must not apply before resolution")
	}

	resolved, err := f.svc.ResolveChange(ctx, staff(auth.RoleAdmin), q.ID, true, Patch{
		City:  strPtr("Tehran"),
		Notes: strPtr("prefer morning visits"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.City == nil || *resolved.City != "Tehran" {
		t.Errorf("approved changes must apply, got %v", resolved.City)
	}
	if resolved.Notes == nil || *resolved.Notes != "prefer morning visits" {
		t.Errorf("approved changes must apply, got %v", resolved.Notes)
	}
	if resolved.SupportType != nil || resolved.SupportPayload != nil {
		t.Error("resolution must clear the ticket")
	}
	if f.logs.lastAction(q.ID) != ActionChangeApproved {
		t.Errorf("expected %s log", ActionChangeApproved)
	}
}

func TestResolveChange_EmptyApprovalAppliesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	if _, err := f.svc.EscalateChange(ctx, requester(), q.ID, Patch{City: strPtr("Tehran")}, nil); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	// The stored patch is for support to read, never to replay. An
	// approval carrying no fields changes nothing but the lane.
	resolved, err := f.svc.ResolveChange(ctx, staff(auth.RoleSupport), q.ID, true, Patch{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.City != nil {
		t.Errorf("empty approval must not apply the stored patch, got %v", *resolved.City)
	}
	if resolved.SupportType != nil || resolved.SupportPayload != nil {
		t.Error("resolution must clear the ticket")
	}
}

func TestResolveChange_ResolverFieldsWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	if _, err := f.svc.EscalateChange(ctx, requester(), q.ID, Patch{City: strPtr("Karaj")}, nil); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	resolved, err := f.svc.ResolveChange(ctx, staff(auth.RoleSupport), q.ID, true, Patch{City: strPtr("Tehran")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.City == nil || *resolved.City != "Tehran" {
		t.Errorf("resolver-supplied fields must win over the stored patch, got %v", resolved.City)
	}
	if resolved.SupportType != nil {
		t.Error("resolution must clear the ticket")
	}
	if _, err := f.svc.ResolveChange(ctx, staff(auth.RoleSupport), q.ID, true, Patch{}); !apperr.Is(err, apperr.InvalidPrecondition) {
		t.Fatalf("expected precondition error on second resolve, got %v", err)
	}
}

func TestEscalateChange_RejectDiscardsPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	f.svc.EscalateChange(ctx, requester(), q.ID, Patch{Notes: strPtr("new plan")}, nil)
	resolved, err := f.svc.ResolveChange(ctx, staff(auth.RoleSupport), q.ID, false, Patch{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Notes != nil {
		t.Error("rejected changes must not apply")
	}
	if resolved.SupportType != nil {
		t.Error("rejection must clear the ticket")
	}
	if f.logs.lastAction(q.ID) != ActionChangeRejected {
		t.Errorf("expected %s log", ActionChangeRejected)
	}
}

func TestEscalateChange_EmptyPatch(t *testing.T) {
	f := newFixture(t)
	q := openRequest(t, f)
	_, err := f.svc.EscalateChange(context.Background(), requester(), q.ID, Patch{}, nil)
	if !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSupportLane_BlocksAssignButNotClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)
	f.svc.EscalateCancel(ctx, requester(), q.ID, nil)

	if _, err := f.svc.AssignCaregiver(ctx, staff(auth.RoleAdmin), q.ID, caregiver().UserID); !apperr.Is(err, apperr.InvalidPrecondition) {
		t.Errorf("assign during ticket: expected precondition error, got %v", err)
	}

	// Staff may close out of any non-terminal state, an open ticket
	// included.
	closed, err := f.svc.Close(ctx, staff(auth.RoleAdmin), q.ID)
	if err != nil {
		t.Fatalf("close during ticket: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Errorf("expected CLOSED, got %s", closed.Status)
	}
	if f.logs.lastAction(q.ID) != ActionRequestClosed {
		t.Errorf("expected %s log", ActionRequestClosed)
	}
}

func TestEscalateOther_ResolvesWithoutStateChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := openRequest(t, f)

	got, err := f.svc.EscalateOther(ctx, requester(), q.ID, strPtr("call me back"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusDocsPending {
		t.Errorf("OTHER ticket must not move the status, got %s", got.Status)
	}

	resolved, err := f.svc.ResolveOther(ctx, staff(auth.RoleSupport), q.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.SupportType != nil {
		t.Error("resolution must clear the ticket")
	}
	if resolved.Status != StatusDocsPending {
		t.Errorf("status must stay DOCS_PENDING, got %s", resolved.Status)
	}
}
