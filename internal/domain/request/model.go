package request

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusNew                 Status = "NEW"
	StatusDocsPending         Status = "DOCS_PENDING"
	StatusAssigned            Status = "ASSIGNED"
	StatusRejectedByCaregiver Status = "REJECTED_BY_CAREGIVER"
	StatusCancelRequested     Status = "CANCEL_REQUESTED"
	StatusCanceled            Status = "CANCELED"
	StatusClosed              Status = "CLOSED"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusDocsPending, StatusAssigned, StatusRejectedByCaregiver,
		StatusCancelRequested, StatusCanceled, StatusClosed:
		return true
	}
	return false
}

// SupportType marks a request queued in the support lane. It is
// orthogonal to Status except for CANCEL, which also parks the status
// in CANCEL_REQUESTED until resolved.
type SupportType string

const (
	SupportCancel SupportType = "CANCEL"
	SupportChange SupportType = "CHANGE"
	SupportOther  SupportType = "OTHER"
)

// Log actions, one per recorded lifecycle event.
const (
	ActionRequestCreated    = "REQUEST_CREATED"
	ActionRequestUpdated    = "REQUEST_UPDATED"
	ActionAssignedCaregiver = "ASSIGNED_CAREGIVER"
	ActionCaregiverRejected = "CARE_GIVER_REJECTED"
	ActionRequestClosed     = "REQUEST_CLOSED"
	ActionCancelRequested   = "CANCEL_REQUESTED"
	ActionChangeRequested   = "CHANGE_REQUESTED"
	ActionCancelApproved    = "CANCEL_APPROVED"
	ActionCancelRejected    = "CANCEL_REJECTED"
	ActionChangeApproved    = "CHANGE_APPROVED"
	ActionChangeRejected    = "CHANGE_REJECTED"
)

// Request is a home-care service request.
type Request struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	PatientID            uuid.UUID       `db:"patient_id" json:"patient_id"`
	RequesterPhone       string          `db:"requester_phone" json:"requester_phone"`
	RequesterUserID      *uuid.UUID      `db:"requester_user_id" json:"requester_user_id,omitempty"`
	ServiceItemID        uuid.UUID       `db:"service_item_id" json:"service_item_id"`
	Status               Status          `db:"status" json:"status"`
	PreviousStatus       *Status         `db:"previous_status" json:"previous_status,omitempty"`
	SupportType          *SupportType    `db:"support_type" json:"support_type,omitempty"`
	SupportNote          *string         `db:"support_note" json:"support_note,omitempty"`
	SupportPayload       json.RawMessage `db:"support_payload" json:"support_payload,omitempty"`
	AssignedCaregiverID  *uuid.UUID      `db:"assigned_caregiver_id" json:"assigned_caregiver_id,omitempty"`
	AssignedExpertID     *uuid.UUID      `db:"assigned_expert_id" json:"assigned_expert_id,omitempty"`
	CurrentOwnerUserID   *uuid.UUID      `db:"current_owner_user_id" json:"current_owner_user_id,omitempty"`
	LastActionByUserID   *uuid.UUID      `db:"last_action_by_user_id" json:"last_action_by_user_id,omitempty"`
	City                 *string         `db:"city" json:"city,omitempty"`
	Time                 *string         `db:"time" json:"time,omitempty"`
	Notes                *string         `db:"notes" json:"notes,omitempty"`
	UploadToken          *string         `db:"upload_token" json:"-"`
	UploadTokenExpiresAt *time.Time      `db:"upload_token_expires_at" json:"upload_token_expires_at,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// InSupportLane reports whether the request waits on a support decision.
func (r *Request) InSupportLane() bool {
	return r.SupportType != nil
}

// Patch lists the requester-facing fields a change may touch. Nil leaves
// the column alone.
type Patch struct {
	ServiceItemID *uuid.UUID `json:"service_item_id"`
	City          *string    `json:"city"`
	Time          *string    `json:"time"`
	Notes         *string    `json:"notes"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.ServiceItemID == nil && p.City == nil && p.Time == nil && p.Notes == nil
}

// UpdateInput is the staff direct-edit surface: the requester fields plus
// status and assignment slots.
type UpdateInput struct {
	Patch
	Status              *Status    `json:"status"`
	AssignedCaregiverID *uuid.UUID `json:"assigned_caregiver_id"`
	AssignedExpertID    *uuid.UUID `json:"assigned_expert_id"`
	CurrentOwnerUserID  *uuid.UUID `json:"current_owner_user_id"`
}

// LogEntry is one immutable audit record for a request.
type LogEntry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	RequestID  uuid.UUID       `db:"request_id" json:"request_id"`
	Action     string          `db:"action" json:"action"`
	Payload    json.RawMessage `db:"payload" json:"payload,omitempty"`
	ActorID    *uuid.UUID      `db:"actor_id" json:"actor_id,omitempty"`
	ActorPhone *string         `db:"actor_phone" json:"actor_phone,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
