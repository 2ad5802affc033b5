package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var phonePattern = regexp.MustCompile(`^09\d{9}$`)

// ValidPhone reports whether s is a well-formed mobile number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// VerificationStatus tracks how far a patient identity has been checked.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// ValidVerificationStatus reports whether s is a known status value.
func ValidVerificationStatus(s VerificationStatus) bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// Patient is the person receiving care. Patients are deduplicated by
// national code; callers who cannot supply one get a temporary code.
type Patient struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	NationalCode       string             `db:"national_code" json:"national_code"`
	Name               string             `db:"name" json:"name"`
	Phone              *string            `db:"phone" json:"phone,omitempty"`
	BirthDate          *time.Time         `db:"birth_date" json:"birth_date,omitempty"`
	Address            *string            `db:"address" json:"address,omitempty"`
	Notes              *string            `db:"notes" json:"notes,omitempty"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	VerifiedBy         *uuid.UUID         `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt         *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// IsVerified reports whether the identity has been confirmed by staff.
func (p *Patient) IsVerified() bool {
	return p.VerificationStatus == VerificationVerified
}

// HasTempCode reports whether the patient still carries a generated
// placeholder national code.
func (p *Patient) HasTempCode() bool {
	return strings.HasPrefix(p.NationalCode, tempCodePrefix)
}

// PatientPatch lists the fields an update may change. Nil means leave
// the column alone.
type PatientPatch struct {
	NationalCode *string    `json:"national_code"`
	Name         *string    `json:"name"`
	Phone        *string    `json:"phone"`
	BirthDate    *time.Time `json:"birth_date"`
	Address      *string    `json:"address"`
	Notes        *string    `json:"notes"`
}

// RequesterLink ties a requester (by phone, optionally an account) to a
// patient. The first link per patient becomes primary and is granted
// history access; staff may promote later links to secondary standing.
type RequesterLink struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	Phone                string     `db:"phone" json:"phone"`
	UserID               *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	IsPrimary            bool       `db:"is_primary" json:"is_primary"`
	IsSecondary          bool       `db:"is_secondary" json:"is_secondary"`
	HistoryAccessGranted bool       `db:"history_access_granted" json:"history_access_granted"`
	TotalRequests        int        `db:"total_requests" json:"total_requests"`
	LastRequestAt        *time.Time `db:"last_request_at" json:"last_request_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

// HasStanding reports whether the link carries cancel/change escalation
// rights over the patient.
func (l *RequesterLink) HasStanding() bool {
	return l.IsPrimary || l.IsSecondary
}

const tempCodePrefix = "TEMP-"

// GenerateTempNationalCode builds a placeholder code from the requester
// phone and the current time so collisions stay unlikely even for
// repeated calls from the same number.
func GenerateTempNationalCode(phone string, now time.Time) string {
	last4 := phone
	if len(phone) > 4 {
		last4 = phone[len(phone)-4:]
	}
	ts := fmt.Sprintf("%d", now.Unix())
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 100000)
	}
	return fmt.Sprintf("%s%s-%s-%05d", tempCodePrefix, last4, ts, n.Int64())
}
