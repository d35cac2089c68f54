// Package rejection moves applications into and out of the rejected lane
// while preserving where each view stood before, so a restore can put the
// card back exactly where it was.
package rejection

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"creditflow/application"
	"creditflow/status"
	"creditflow/workflow"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the data access the manager requires.
type Repository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string, scope application.ScopeFilter) (application.StatusRecord, error)
	Save(ctx context.Context, tx pgx.Tx, rec application.StatusRecord) error
	AppendHistory(ctx context.Context, tx pgx.Tx, e application.HistoryEntry) error
}

// Notifier broadcasts that a record changed so other clients re-fetch it.
type Notifier interface {
	Changed(ctx context.Context, id string)
}

type noopNotifier struct{}

func (noopNotifier) Changed(context.Context, string) {}

// RejectRequest carries one authority's rejection of an application.
type RejectRequest struct {
	ID      string
	Role    workflow.Role
	ActorID string
	Reason  string
	Scope   application.ScopeFilter
}

// Manager applies rejections and restores under a row lock.
type Manager struct {
	pool     TxBeginner
	repo     Repository
	notifier Notifier
}

func NewManager(pool TxBeginner, repo Repository, notifier Notifier) *Manager {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Manager{
		pool:     pool,
		repo:     repo,
		notifier: notifier,
	}
}

// Reject moves the application into the rejected lane for every viewer. The
// pre-rejection statuses are snapshotted the first time only; a second
// rejection never overwrites where the card originally came from. Approval
// flags are left untouched so a restore does not lose recorded approvals.
func (m *Manager) Reject(ctx context.Context, req RejectRequest) (application.StatusRecord, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return application.StatusRecord{}, fmt.Errorf("rejection: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := m.repo.GetForUpdate(ctx, tx, req.ID, req.Scope)
	if err != nil {
		return application.StatusRecord{}, err
	}
	if rec.Status.Terminal() {
		return rec, workflow.DenialErrorf("No se puede rechazar una solicitud en estado %q", rec.Status.Label())
	}

	if rec.PreviousStatus == status.None {
		rec.PreviousStatus = rec.Status
		rec.PreviousAdvisorStatus = rec.AdvisorStatus
		rec.PreviousCompanyStatus = rec.CompanyStatus
		rec.PreviousGlobalStatus = rec.GlobalStatus
	}

	rec.Status = status.Rejected
	rec.AdvisorStatus = status.Rejected
	rec.CompanyStatus = status.Rejected
	rec.GlobalStatus = status.Rejected

	switch req.Role {
	case workflow.RoleCompanyAdmin:
		rec.RejectedByCompany = true
	default:
		rec.RejectedByAdvisor = true
	}

	if err := m.repo.Save(ctx, tx, rec); err != nil {
		return application.StatusRecord{}, err
	}

	comment := "Solicitud rechazada"
	if req.Reason != "" {
		comment = req.Reason
	}
	entry := application.HistoryEntry{
		ApplicationID: rec.ID,
		Status:        string(status.Rejected),
		Comment:       comment,
		CreatedBy:     req.ActorID,
	}
	if err := m.repo.AppendHistory(ctx, tx, entry); err != nil {
		return application.StatusRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return application.StatusRecord{}, fmt.Errorf("rejection: commit tx: %w", err)
	}

	m.notifier.Changed(ctx, rec.ID)
	return rec, nil
}

// Restore brings a rejected application back to the statuses captured when it
// was first rejected. Snapshots recorded before the workflow tracked them come
// back as new. The snapshot slots and rejection flags are cleared so a later
// rejection starts fresh.
func (m *Manager) Restore(ctx context.Context, id, actorID string, scope application.ScopeFilter) (application.StatusRecord, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return application.StatusRecord{}, fmt.Errorf("rejection: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := m.repo.GetForUpdate(ctx, tx, id, scope)
	if err != nil {
		return application.StatusRecord{}, err
	}
	if rec.Status != status.Rejected {
		return rec, workflow.DenialErrorf("Solo una solicitud rechazada puede ser restaurada")
	}

	rec.Status = orNew(rec.PreviousStatus)
	rec.AdvisorStatus = orNew(rec.PreviousAdvisorStatus)
	rec.CompanyStatus = orNew(rec.PreviousCompanyStatus)
	rec.GlobalStatus = orNew(rec.PreviousGlobalStatus)

	rec.PreviousStatus = status.None
	rec.PreviousAdvisorStatus = status.None
	rec.PreviousCompanyStatus = status.None
	rec.PreviousGlobalStatus = status.None
	rec.RejectedByAdvisor = false
	rec.RejectedByCompany = false

	if err := m.repo.Save(ctx, tx, rec); err != nil {
		return application.StatusRecord{}, err
	}
	entry := application.HistoryEntry{
		ApplicationID: rec.ID,
		Status:        string(rec.Status),
		Comment:       fmt.Sprintf("Solicitud restaurada (Cambio de estado: %s → %s)", status.Rejected.Label(), rec.Status.Label()),
		CreatedBy:     actorID,
	}
	if err := m.repo.AppendHistory(ctx, tx, entry); err != nil {
		return application.StatusRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return application.StatusRecord{}, fmt.Errorf("rejection: commit tx: %w", err)
	}

	m.notifier.Changed(ctx, rec.ID)
	return rec, nil
}

func orNew(s status.Status) status.Status {
	if s == status.None {
		return status.New
	}
	return s
}
