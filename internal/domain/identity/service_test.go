package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	store map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{store: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) CreateIfAbsent(_ context.Context, p *Patient) (*Patient, error) {
	for _, existing := range m.store {
		if existing.NationalCode == p.NationalCode {
			return existing, nil
		}
	}
	p.ID = uuid.New()
	m.store[p.ID] = p
	return p, nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPatientRepo) GetByNationalCode(_ context.Context, code string) (*Patient, error) {
	for _, p := range m.store {
		if p.NationalCode == code {
			return p, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.store[p.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.store[p.ID] = p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var r []*Patient
	for _, p := range m.store {
		r = append(r, p)
	}
	return r, len(r), nil
}

func (m *mockPatientRepo) SearchByNationalCode(_ context.Context, prefix string, limit, offset int) ([]*Patient, int, error) {
	var r []*Patient
	for _, p := range m.store {
		if strings.HasPrefix(p.NationalCode, prefix) {
			r = append(r, p)
		}
	}
	return r, len(r), nil
}

type mockLinkRepo struct {
	store map[uuid.UUID]*RequesterLink
}

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{store: make(map[uuid.UUID]*RequesterLink)}
}

func (m *mockLinkRepo) Create(_ context.Context, l *RequesterLink) error {
	l.ID = uuid.New()
	m.store[l.ID] = l
	return nil
}

func (m *mockLinkRepo) GetByPatientAndUser(_ context.Context, patientID, userID uuid.UUID) (*RequesterLink, error) {
	for _, l := range m.store {
		if l.PatientID == patientID && l.UserID != nil && *l.UserID == userID {
			return l, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockLinkRepo) GetByPatientAndPhone(_ context.Context, patientID uuid.UUID, phone string) (*RequesterLink, error) {
	for _, l := range m.store {
		if l.PatientID == patientID && l.Phone == phone {
			return l, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockLinkRepo) CountByPatient(_ context.Context, patientID uuid.UUID) (int, error) {
	n := 0
	for _, l := range m.store {
		if l.PatientID == patientID {
			n++
		}
	}
	return n, nil
}

func (m *mockLinkRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*RequesterLink, error) {
	var r []*RequesterLink
	for _, l := range m.store {
		if l.PatientID == patientID {
			r = append(r, l)
		}
	}
	return r, nil
}

func (m *mockLinkRepo) ListByPhone(_ context.Context, phone string) ([]*RequesterLink, error) {
	var r []*RequesterLink
	for _, l := range m.store {
		if l.Phone == phone {
			r = append(r, l)
		}
	}
	return r, nil
}

func (m *mockLinkRepo) Update(_ context.Context, l *RequesterLink) error {
	if _, ok := m.store[l.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.store[l.ID] = l
	return nil
}

func newTestResolver() *Resolver {
	return NewResolver(newMockPatientRepo(), newMockLinkRepo(), zerolog.Nop())
}

func strPtr(s string) *string { return &s }

// -- Resolver Tests --

func TestResolvePatient_DedupByNationalCode(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	p1, err := r.ResolvePatient(ctx, nil, "Maryam Ahmadi", strPtr("0012345678"), "09121112233")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, err := r.ResolvePatient(ctx, nil, "M. Ahmadi", strPtr("0012345678"), "09129998877")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.ID != p2.ID {
		t.Error("same national code must resolve to the same patient")
	}
}

func TestResolvePatient_KnownIDWins(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	existing, err := r.ResolvePatient(ctx, nil, "Maryam Ahmadi", nil, "09121112233")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The id trumps everything else in the input, even a different name
	// and no national code.
	got, err := r.ResolvePatient(ctx, &existing.ID, "Someone Else", nil, "09129998877")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != existing.ID {
		t.Fatal("known patient id must resolve to the existing record")
	}
	if got.NationalCode != existing.NationalCode {
		t.Errorf("existing record must come back untouched, got code %q", got.NationalCode)
	}

	// An unknown id falls through to the usual name/code resolution.
	bogus := uuid.New()
	fresh, err := r.ResolvePatient(ctx, &bogus, "Hassan Karimi", nil, "09129998877")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.ID == bogus {
		t.Error("unknown id must not be adopted")
	}
}

func TestResolvePatient_GeneratesTempCode(t *testing.T) {
	r := newTestResolver()
	p, err := r.ResolvePatient(context.Background(), nil, "Maryam Ahmadi", nil, "09121112233")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.HasTempCode() {
		t.Fatalf("expected temp code, got %q", p.NationalCode)
	}
	if !strings.Contains(p.NationalCode, "2233") {
		t.Errorf("temp code should embed the phone suffix, got %q", p.NationalCode)
	}
}

func TestResolvePatient_RequiresName(t *testing.T) {
	r := newTestResolver()
	_, err := r.ResolvePatient(context.Background(), nil, "   ", nil, "09121112233")
	if !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveRequesterLink_FirstIsPrimary(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()
	patientID := uuid.New()

	first, err := r.ResolveRequesterLink(ctx, patientID, "09121112233", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.IsPrimary || !first.HistoryAccessGranted {
		t.Error("first link must be primary with history access")
	}

	second, err := r.ResolveRequesterLink(ctx, patientID, "09129998877", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.IsPrimary || second.HistoryAccessGranted {
		t.Error("later links must not be primary nor get history access")
	}
}

func TestResolveRequesterLink_BackfillsUserID(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()
	patientID := uuid.New()

	l, err := r.ResolveRequesterLink(ctx, patientID, "09121112233", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.UserID != nil {
		t.Fatal("expected no user id on guest link")
	}

	userID := uuid.New()
	l2, err := r.ResolveRequesterLink(ctx, patientID, "09121112233", &userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l2.ID != l.ID {
		t.Fatal("same phone must reuse the existing link")
	}
	if l2.UserID == nil || *l2.UserID != userID {
		t.Error("existing link must be back-filled with the account id")
	}
	if l2.LastRequestAt == nil {
		t.Error("reuse must touch last_request_at")
	}
	if l2.TotalRequests != 2 {
		t.Errorf("expected request counter 2, got %d", l2.TotalRequests)
	}
}

func TestResolveRequesterLink_MatchesByUserAcrossPhones(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()
	patientID := uuid.New()
	userID := uuid.New()

	l, err := r.ResolveRequesterLink(ctx, patientID, "09121112233", &userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same account calling in from a new number must land on the same
	// link, not mint a second one.
	l2, err := r.ResolveRequesterLink(ctx, patientID, "09129998877", &userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l2.ID != l.ID {
		t.Fatal("account id must win over phone when both are known")
	}
	if l2.TotalRequests != 2 {
		t.Errorf("expected request counter 2, got %d", l2.TotalRequests)
	}
	links, _ := r.ListRequesterLinks(ctx, patientID)
	if len(links) != 1 {
		t.Fatalf("expected one link for the account, got %d", len(links))
	}
}

func TestUpdatePatient_NationalCodeConflict(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	p1, _ := r.ResolvePatient(ctx, nil, "Maryam Ahmadi", strPtr("0012345678"), "09121112233")
	p2, _ := r.ResolvePatient(ctx, nil, "Hassan Karimi", strPtr("0087654321"), "09129998877")

	_, err := r.UpdatePatient(ctx, p2.ID, PatientPatch{NationalCode: strPtr("0012345678")})
	if !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error for code conflict, got %v", err)
	}

	got, err := r.UpdatePatient(ctx, p1.ID, PatientPatch{Name: strPtr("Maryam Ahmadi-Far")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Maryam Ahmadi-Far" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if got.NationalCode != "0012345678" {
		t.Errorf("national code must be untouched, got %q", got.NationalCode)
	}
}

func TestSetVerificationStatus_RejectsTempCode(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()
	reviewer := uuid.New()

	temp, _ := r.ResolvePatient(ctx, nil, "Maryam Ahmadi", nil, "09121112233")
	if _, err := r.SetVerificationStatus(ctx, temp.ID, reviewer, VerificationVerified); !apperr.Is(err, apperr.InvalidPrecondition) {
		t.Fatalf("expected precondition error for temp code, got %v", err)
	}

	real, _ := r.ResolvePatient(ctx, nil, "Hassan Karimi", strPtr("0012345678"), "09129998877")
	if real.VerificationStatus != VerificationPending {
		t.Fatalf("new patients must start PENDING, got %q", real.VerificationStatus)
	}
	got, err := r.SetVerificationStatus(ctx, real.ID, reviewer, VerificationVerified)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsVerified() || got.VerifiedBy == nil || *got.VerifiedBy != reviewer {
		t.Error("expected verified patient with reviewer recorded")
	}
	if got.VerifiedAt == nil {
		t.Error("expected verified_at to be set")
	}

	back, err := r.SetVerificationStatus(ctx, real.ID, reviewer, VerificationPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.VerifiedBy != nil || back.VerifiedAt != nil {
		t.Error("moving back to PENDING must clear the reviewer")
	}

	if _, err := r.SetVerificationStatus(ctx, real.ID, reviewer, "MAYBE"); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestHasStanding(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()
	patientID := uuid.New()

	first, _ := r.ResolveRequesterLink(ctx, patientID, "09121112233", nil)
	if !first.HasStanding() {
		t.Error("primary link must carry standing")
	}
	if !r.HasStanding(ctx, patientID, "09121112233") {
		t.Error("expected standing for the primary phone")
	}
	if r.HasStanding(ctx, patientID, "09129998877") {
		t.Error("unlinked phone must not have standing")
	}

	second, _ := r.ResolveRequesterLink(ctx, patientID, "09129998877", nil)
	if second.HasStanding() {
		t.Error("later links start without standing")
	}

	yes := true
	promoted, err := r.SetLinkStanding(ctx, patientID, second.ID, LinkStandingPatch{IsSecondary: &yes})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !promoted.IsSecondary || !r.HasStanding(ctx, patientID, "09129998877") {
		t.Error("secondary standing must be grantable by staff")
	}

	if _, err := r.SetLinkStanding(ctx, patientID, first.ID, LinkStandingPatch{IsSecondary: &yes}); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("primary link must not become secondary, got %v", err)
	}

	if _, err := r.SetLinkStanding(ctx, patientID, uuid.New(), LinkStandingPatch{IsSecondary: &yes}); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not-found for unknown link, got %v", err)
	}
}

func TestRegisterPatient_RequiresRealCodeAndLinksCaller(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()
	userID := uuid.New()

	if _, err := r.RegisterPatient(ctx, userID, "09121112233", "Maryam Ahmadi", "  "); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error without a code, got %v", err)
	}

	p, err := r.RegisterPatient(ctx, userID, "09121112233", "Maryam Ahmadi", "0012345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.HasTempCode() {
		t.Error("explicit admission must never mint a placeholder code")
	}
	links, err := r.ListRequesterLinks(ctx, p.ID)
	if err != nil || len(links) != 1 {
		t.Fatalf("expected one requester link, got %d (%v)", len(links), err)
	}
	if links[0].UserID == nil || *links[0].UserID != userID {
		t.Error("the registering account must be linked")
	}
}

func TestGenerateTempNationalCode_Format(t *testing.T) {
	now := time.Unix(1700000123, 0)
	code := GenerateTempNationalCode("09121112233", now)
	if !strings.HasPrefix(code, "TEMP-2233-") {
		t.Fatalf("unexpected prefix: %q", code)
	}
	parts := strings.Split(code, "-")
	if len(parts) != 4 {
		t.Fatalf("expected 4 segments, got %q", code)
	}
	if len(parts[2]) != 6 {
		t.Errorf("timestamp segment must be 6 digits, got %q", parts[2])
	}
	if len(parts[3]) != 5 {
		t.Errorf("random segment must be 5 digits, got %q", parts[3])
	}
}
