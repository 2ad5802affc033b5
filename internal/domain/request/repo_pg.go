package request

import (
	"context"
	"fmt"

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

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `id, patient_id, requester_phone, requester_user_id, service_item_id,
	status, previous_status, support_type, support_note, support_payload,
	assigned_caregiver_id, assigned_expert_id, current_owner_user_id, last_action_by_user_id,
	city, time, notes, upload_token, upload_token_expires_at,
	created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.PatientID, &q.RequesterPhone, &q.RequesterUserID, &q.ServiceItemID,
		&q.Status, &q.PreviousStatus, &q.SupportType, &q.SupportNote, &q.SupportPayload,
		&q.AssignedCaregiverID, &q.AssignedExpertID, &q.CurrentOwnerUserID, &q.LastActionByUserID,
		&q.City, &q.Time, &q.Notes, &q.UploadToken, &q.UploadTokenExpiresAt,
		&q.CreatedAt, &q.UpdatedAt)
	return &q, err
}

func (r *requestRepoPG) Create(ctx context.Context, q *Request) error {
	q.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO request (id, patient_id, requester_phone, requester_user_id, service_item_id,
			status, previous_status, support_type, support_note, support_payload,
			assigned_caregiver_id, assigned_expert_id, current_owner_user_id, last_action_by_user_id,
			city, time, notes, upload_token, upload_token_expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		q.ID, q.PatientID, q.RequesterPhone, q.RequesterUserID, q.ServiceItemID,
		q.Status, q.PreviousStatus, q.SupportType, q.SupportNote, q.SupportPayload,
		q.AssignedCaregiverID, q.AssignedExpertID, q.CurrentOwnerUserID, q.LastActionByUserID,
		q.City, q.Time, q.Notes, q.UploadToken, q.UploadTokenExpiresAt)
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM request WHERE id = $1`, id))
}

const requestUpdateSet = `patient_id=$2, requester_user_id=$3, service_item_id=$4,
	status=$5, previous_status=$6, support_type=$7, support_note=$8, support_payload=$9,
	assigned_caregiver_id=$10, assigned_expert_id=$11, current_owner_user_id=$12,
	last_action_by_user_id=$13, city=$14, time=$15, notes=$16,
	upload_token=$17, upload_token_expires_at=$18, updated_at=NOW()`

func (r *requestRepoPG) updateArgs(q *Request) []interface{} {
	return []interface{}{
		q.ID, q.PatientID, q.RequesterUserID, q.ServiceItemID,
		q.Status, q.PreviousStatus, q.SupportType, q.SupportNote, q.SupportPayload,
		q.AssignedCaregiverID, q.AssignedExpertID, q.CurrentOwnerUserID,
		q.LastActionByUserID, q.City, q.Time, q.Notes,
		q.UploadToken, q.UploadTokenExpiresAt,
	}
}

func (r *requestRepoPG) Update(ctx context.Context, q *Request) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE request SET `+requestUpdateSet+` WHERE id = $1`, r.updateArgs(q)...)
	return err
}

func (r *requestRepoPG) UpdateWithSupportGuard(ctx context.Context, q *Request, expected *SupportType) (bool, error) {
	args := append(r.updateArgs(q), expected)
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE request SET `+requestUpdateSet+` WHERE id = $1 AND support_type IS NOT DISTINCT FROM $19`, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *requestRepoPG) FindByUploadToken(ctx context.Context, token string) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM request
		 WHERE upload_token = $1 AND upload_token_expires_at > NOW()`, token))
}

func (r *requestRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Request, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM request `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM request %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		requestCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}

func (r *requestRepoPG) ListAll(ctx context.Context, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *requestRepoPG) ListSupportQueued(ctx context.Context, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, `WHERE support_type IS NOT NULL`, nil, limit, offset)
}

func (r *requestRepoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, `WHERE status = $1`, []interface{}{status}, limit, offset)
}

func (r *requestRepoPG) ListByCaregiver(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, `WHERE assigned_caregiver_id = $1`, []interface{}{caregiverID}, limit, offset)
}

func (r *requestRepoPG) ListByRequesterPhone(ctx context.Context, phone string, limit, offset int) ([]*Request, int, error) {
	return r.list(ctx, `WHERE requester_phone = $1`, []interface{}{phone}, limit, offset)
}

type logRepoPG struct{ pool *pgxpool.Pool }

func NewLogRepoPG(pool *pgxpool.Pool) LogRepository {
	return &logRepoPG{pool: pool}
}

func (r *logRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const logCols = `id, request_id, action, payload, actor_id, actor_phone, created_at`

func scanLog(row pgx.Row) (*LogEntry, error) {
	var e LogEntry
	err := row.Scan(&e.ID, &e.RequestID, &e.Action, &e.Payload, &e.ActorID, &e.ActorPhone, &e.CreatedAt)
	return &e, err
}

func (r *logRepoPG) Append(ctx context.Context, e *LogEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO request_log (id, request_id, action, payload, actor_id, actor_phone)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.RequestID, e.Action, e.Payload, e.ActorID, e.ActorPhone)
	return err
}

func (r *logRepoPG) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*LogEntry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+logCols+` FROM request_log WHERE request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LogEntry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
