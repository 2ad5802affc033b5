package document

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

type documentRepoPG struct{ pool *pgxpool.Pool }

func NewDocumentRepoPG(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepoPG{pool: pool}
}

func (r *documentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const documentCols = `id, patient_id, request_id, doc_type, status, title, doctor_name,
	visit_date, file_name, content_type, storage_key, size_bytes, original_size,
	is_compressed, uploaded_by_phone, verified_by, verified_at, rejection_reason,
	created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.PatientID, &d.RequestID, &d.Type, &d.Status, &d.Title, &d.DoctorName,
		&d.VisitDate, &d.FileName, &d.ContentType, &d.StorageKey, &d.SizeBytes, &d.OriginalSize,
		&d.IsCompressed, &d.UploadedByPhone, &d.VerifiedBy, &d.VerifiedAt, &d.RejectionReason,
		&d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_document (id, patient_id, request_id, doc_type, status, title,
			doctor_name, visit_date, file_name, content_type, storage_key,
			size_bytes, original_size, is_compressed, uploaded_by_phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		d.ID, d.PatientID, d.RequestID, d.Type, d.Status, d.Title,
		d.DoctorName, d.VisitDate, d.FileName, d.ContentType, d.StorageKey,
		d.SizeBytes, d.OriginalSize, d.IsCompressed, d.UploadedByPhone)
	return err
}

func (r *documentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+documentCols+` FROM patient_document WHERE id = $1`, id))
}

func (r *documentRepoPG) GetByPatientAndType(ctx context.Context, patientID uuid.UUID, t Type) (*Document, error) {
	return scanDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+documentCols+` FROM patient_document
		 WHERE patient_id = $1 AND doc_type = $2
		 ORDER BY created_at DESC LIMIT 1`, patientID, t))
}

func (r *documentRepoPG) Update(ctx context.Context, d *Document) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_document SET request_id=$2, status=$3, title=$4, doctor_name=$5,
			visit_date=$6, file_name=$7, content_type=$8, storage_key=$9,
			size_bytes=$10, original_size=$11, is_compressed=$12, uploaded_by_phone=$13,
			verified_by=$14, verified_at=$15, rejection_reason=$16, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.RequestID, d.Status, d.Title, d.DoctorName,
		d.VisitDate, d.FileName, d.ContentType, d.StorageKey,
		d.SizeBytes, d.OriginalSize, d.IsCompressed, d.UploadedByPhone,
		d.VerifiedBy, d.VerifiedAt, d.RejectionReason)
	return err
}

func (r *documentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_document WHERE id = $1`, id)
	return err
}

func (r *documentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+documentCols+` FROM patient_document WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *documentRepoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Document, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_document WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+documentCols+` FROM patient_document WHERE status = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
