package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `
id, client_name, amount, advisor_id::text, company_id::text,
status, advisor_status, company_status, global_status,
previous_status, previous_advisor_status, previous_company_status, previous_global_status,
approved_by_advisor, approved_by_company, approval_date_advisor, approval_date_company,
rejected_by_advisor, rejected_by_company, company_review_status,
dispersal_date, created_at, updated_at`

// PGRepository is the PostgreSQL data access layer for applications. Writes
// run inside a caller-owned transaction so workflow services can lock a row,
// mutate the record in Go, and persist it atomically with its history entry.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// scopeClause appends the authority scope predicate to a WHERE clause.
func scopeClause(scope ScopeFilter, args []any) (string, []any) {
	var b strings.Builder
	if scope.AdvisorID != "" {
		args = append(args, scope.AdvisorID)
		fmt.Fprintf(&b, " AND advisor_id = $%d", len(args))
	}
	if scope.CompanyID != "" {
		args = append(args, scope.CompanyID)
		fmt.Fprintf(&b, " AND company_id = $%d", len(args))
	}
	return b.String(), args
}

// Get fetches one record within scope.
func (r *PGRepository) Get(ctx context.Context, id string, scope ScopeFilter) (StatusRecord, error) {
	args := []any{id}
	clause, args := scopeClause(scope, args)
	q := `SELECT ` + recordColumns + ` FROM applications WHERE id = $1` + clause

	rec, err := scanRecord(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StatusRecord{}, ErrNotFound
		}
		return StatusRecord{}, fmt.Errorf("application: get %s: %w", id, err)
	}
	return rec, nil
}

// GetForUpdate locks and fetches one record within scope inside tx.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string, scope ScopeFilter) (StatusRecord, error) {
	args := []any{id}
	clause, args := scopeClause(scope, args)
	q := `SELECT ` + recordColumns + ` FROM applications WHERE id = $1` + clause + ` FOR UPDATE`

	rec, err := scanRecord(tx.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StatusRecord{}, ErrNotFound
		}
		return StatusRecord{}, fmt.Errorf("application: lock %s: %w", id, err)
	}
	return rec, nil
}

// Save persists every workflow-owned column of the record inside tx.
func (r *PGRepository) Save(ctx context.Context, tx pgx.Tx, rec StatusRecord) error {
	const q = `
UPDATE applications
SET status = $2,
    advisor_status = $3,
    company_status = $4,
    global_status = $5,
    previous_status = $6,
    previous_advisor_status = $7,
    previous_company_status = $8,
    previous_global_status = $9,
    approved_by_advisor = $10,
    approved_by_company = $11,
    approval_date_advisor = $12,
    approval_date_company = $13,
    rejected_by_advisor = $14,
    rejected_by_company = $15,
    company_review_status = $16,
    dispersal_date = $17,
    updated_at = now()
WHERE id = $1`

	tag, err := tx.Exec(ctx, q,
		rec.ID,
		rec.Status, rec.AdvisorStatus, rec.CompanyStatus, rec.GlobalStatus,
		rec.PreviousStatus, rec.PreviousAdvisorStatus, rec.PreviousCompanyStatus, rec.PreviousGlobalStatus,
		rec.ApprovedByAdvisor, rec.ApprovedByCompany, rec.ApprovalDateAdvisor, rec.ApprovalDateCompany,
		rec.RejectedByAdvisor, rec.RejectedByCompany, rec.CompanyReviewStatus,
		rec.DispersalDate,
	)
	if err != nil {
		return fmt.Errorf("application: save %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory writes one audit row inside tx.
func (r *PGRepository) AppendHistory(ctx context.Context, tx pgx.Tx, e HistoryEntry) error {
	var createdBy any
	if e.CreatedBy != "" {
		createdBy = e.CreatedBy
	}
	const q = `
INSERT INTO application_history (application_id, status, comment, created_by)
VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, q, e.ApplicationID, e.Status, e.Comment, createdBy); err != nil {
		return fmt.Errorf("application: append history for %s: %w", e.ApplicationID, err)
	}
	return nil
}

// ListHistory returns the audit rows for one record, newest first.
func (r *PGRepository) ListHistory(ctx context.Context, id string, scope ScopeFilter) ([]HistoryEntry, error) {
	if _, err := r.Get(ctx, id, scope); err != nil {
		return nil, err
	}

	const q = `
SELECT id::text, application_id::text, status, comment, COALESCE(created_by::text, ''), created_at
FROM application_history
WHERE application_id = $1
ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("application: list history for %s: %w", id, err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Status, &e.Comment, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("application: scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListPromotionCandidates returns ids of records carrying both approvals but
// not yet promoted. The sweep re-evaluates these because the two approvals
// can land from two clients with neither write observing the other. Records
// in shared lanes are excluded: terminal ones stay put, and a rejected record
// only becomes a candidate again after a restore.
func (r *PGRepository) ListPromotionCandidates(ctx context.Context) ([]string, error) {
	const q = `
SELECT id::text
FROM applications
WHERE approved_by_advisor AND approved_by_company
  AND status NOT IN ('por_dispersar', 'completed', 'expired', 'cancelled', 'rejected')`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("application: list promotion candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("application: scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns every record visible within scope.
func (r *PGRepository) List(ctx context.Context, scope ScopeFilter) ([]StatusRecord, error) {
	args := []any{}
	clause, args := scopeClause(scope, args)
	q := `SELECT ` + recordColumns + ` FROM applications WHERE true` + clause + ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("application: list: %w", err)
	}
	defer rows.Close()

	records := []StatusRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("application: scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Create inserts a fresh intake record with every workflow field at its
// lifecycle starting point.
func (r *PGRepository) Create(ctx context.Context, rec StatusRecord) (StatusRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	const q = `
INSERT INTO applications (id, client_name, amount, advisor_id, company_id,
                          status, advisor_status, company_status, global_status)
VALUES ($1, $2, $3, $4, $5, 'new', 'new', 'new', 'new')
RETURNING ` + recordColumns

	created, err := scanRecord(r.pool.QueryRow(ctx, q,
		rec.ID, rec.ClientName, rec.Amount, rec.AdvisorID, rec.CompanyID))
	if err != nil {
		return StatusRecord{}, fmt.Errorf("application: create: %w", err)
	}
	return created, nil
}

func scanRecord(row pgx.Row) (StatusRecord, error) {
	var rec StatusRecord
	err := row.Scan(
		&rec.ID, &rec.ClientName, &rec.Amount, &rec.AdvisorID, &rec.CompanyID,
		&rec.Status, &rec.AdvisorStatus, &rec.CompanyStatus, &rec.GlobalStatus,
		&rec.PreviousStatus, &rec.PreviousAdvisorStatus, &rec.PreviousCompanyStatus, &rec.PreviousGlobalStatus,
		&rec.ApprovedByAdvisor, &rec.ApprovedByCompany, &rec.ApprovalDateAdvisor, &rec.ApprovalDateCompany,
		&rec.RejectedByAdvisor, &rec.RejectedByCompany, &rec.CompanyReviewStatus,
		&rec.DispersalDate, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return StatusRecord{}, err
	}
	return rec, nil
}
