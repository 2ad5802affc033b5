package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/carelink/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, national_code, name, phone, birth_date, address, notes,
	verification_status, verified_by, verified_at, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.NationalCode, &p.Name, &p.Phone, &p.BirthDate, &p.Address, &p.Notes,
		&p.VerificationStatus, &p.VerifiedBy, &p.VerifiedAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) CreateIfAbsent(ctx context.Context, p *Patient) (*Patient, error) {
	p.ID = uuid.New()
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, national_code, name, phone, birth_date, address, notes, verification_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (national_code) DO NOTHING`,
		p.ID, p.NationalCode, p.Name, p.Phone, p.BirthDate, p.Address, p.Notes, p.VerificationStatus)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// Lost the race or the code already existed. Return the winner.
		return r.GetByNationalCode(ctx, p.NationalCode)
	}
	return r.GetByID(ctx, p.ID)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByNationalCode(ctx context.Context, code string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE national_code = $1`, code))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET national_code=$2, name=$3, phone=$4, birth_date=$5,
			address=$6, notes=$7, verification_status=$8, verified_by=$9, verified_at=$10,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.NationalCode, p.Name, p.Phone, p.BirthDate,
		p.Address, p.Notes, p.VerificationStatus, p.VerifiedBy, p.VerifiedAt)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) SearchByNationalCode(ctx context.Context, codePrefix string, limit, offset int) ([]*Patient, int, error) {
	pattern := codePrefix + "%"
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE national_code LIKE $1`, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient WHERE national_code LIKE $1 ORDER BY national_code LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

type requesterLinkRepoPG struct{ pool *pgxpool.Pool }

func NewRequesterLinkRepoPG(pool *pgxpool.Pool) RequesterLinkRepository {
	return &requesterLinkRepoPG{pool: pool}
}

func (r *requesterLinkRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const linkCols = `id, patient_id, phone, user_id, is_primary, is_secondary,
	history_access_granted, total_requests, last_request_at, created_at`

func scanLink(row pgx.Row) (*RequesterLink, error) {
	var l RequesterLink
	err := row.Scan(&l.ID, &l.PatientID, &l.Phone, &l.UserID, &l.IsPrimary, &l.IsSecondary,
		&l.HistoryAccessGranted, &l.TotalRequests, &l.LastRequestAt, &l.CreatedAt)
	return &l, err
}

func (r *requesterLinkRepoPG) Create(ctx context.Context, l *RequesterLink) error {
	l.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_requester (id, patient_id, phone, user_id, is_primary, is_secondary,
			history_access_granted, total_requests, last_request_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.PatientID, l.Phone, l.UserID, l.IsPrimary, l.IsSecondary,
		l.HistoryAccessGranted, l.TotalRequests, l.LastRequestAt)
	return err
}

func (r *requesterLinkRepoPG) GetByPatientAndUser(ctx context.Context, patientID, userID uuid.UUID) (*RequesterLink, error) {
	return scanLink(r.conn(ctx).QueryRow(ctx,
		`SELECT `+linkCols+` FROM patient_requester WHERE patient_id = $1 AND user_id = $2`,
		patientID, userID))
}

func (r *requesterLinkRepoPG) GetByPatientAndPhone(ctx context.Context, patientID uuid.UUID, phone string) (*RequesterLink, error) {
	return scanLink(r.conn(ctx).QueryRow(ctx,
		`SELECT `+linkCols+` FROM patient_requester WHERE patient_id = $1 AND phone = $2`,
		patientID, phone))
}

func (r *requesterLinkRepoPG) CountByPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_requester WHERE patient_id = $1`, patientID).Scan(&n)
	return n, err
}

func (r *requesterLinkRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*RequesterLink, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+linkCols+` FROM patient_requester WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RequesterLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *requesterLinkRepoPG) ListByPhone(ctx context.Context, phone string) ([]*RequesterLink, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+linkCols+` FROM patient_requester WHERE phone = $1 ORDER BY created_at`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RequesterLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *requesterLinkRepoPG) Update(ctx context.Context, l *RequesterLink) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_requester SET user_id=$2, is_primary=$3, is_secondary=$4,
			history_access_granted=$5, total_requests=$6, last_request_at=$7
		WHERE id = $1`,
		l.ID, l.UserID, l.IsPrimary, l.IsSecondary, l.HistoryAccessGranted,
		l.TotalRequests, l.LastRequestAt)
	return err
}
