// Package approval owns the dual-approval bookkeeping: recording each
// authority's approval, revoking the company's, and promoting a jointly
// approved application to por_dispersar exactly once.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"creditflow/application"
	"creditflow/status"
	"creditflow/workflow"
)

const promotionComment = "Aprobación completa: Asesor y Empresa han aprobado esta solicitud"

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the data access the engine requires.
type Repository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string, scope application.ScopeFilter) (application.StatusRecord, error)
	Save(ctx context.Context, tx pgx.Tx, rec application.StatusRecord) error
	AppendHistory(ctx context.Context, tx pgx.Tx, e application.HistoryEntry) error
	ListPromotionCandidates(ctx context.Context) ([]string, error)
}

// Notifier broadcasts that a record changed so other clients re-fetch it.
type Notifier interface {
	Changed(ctx context.Context, id string)
}

type noopNotifier struct{}

func (noopNotifier) Changed(context.Context, string) {}

// ApproveRequest records one authority's approval of an application.
type ApproveRequest struct {
	ID      string
	Role    workflow.Role
	ActorID string
	Scope   application.ScopeFilter
}

// Engine applies approvals under a row lock so the promotion check always
// sees both flags as they stand after this write.
type Engine struct {
	pool     TxBeginner
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

func NewEngine(pool TxBeginner, repo Repository, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{
		pool:     pool,
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Approve records the authority's approval. Re-approving is a silent no-op:
// the original approval flag and date stand. When this approval is the second
// one and the record sits in an active lane, it is promoted to por_dispersar
// in the same transaction; on a rejected record the approval is only recorded
// and the promotion waits for a restore.
func (e *Engine) Approve(ctx context.Context, req ApproveRequest) (application.StatusRecord, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return application.StatusRecord{}, fmt.Errorf("approval: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := e.repo.GetForUpdate(ctx, tx, req.ID, req.Scope)
	if err != nil {
		return application.StatusRecord{}, err
	}
	if rec.Status.Terminal() {
		return rec, workflow.DenialErrorf("No se puede aprobar una solicitud en estado %q", rec.Status.Label())
	}

	now := e.now()
	var historyStatus string
	switch req.Role {
	case workflow.RoleAdvisor:
		if rec.ApprovedByAdvisor {
			return rec, nil
		}
		rec.ApprovedByAdvisor = true
		rec.ApprovalDateAdvisor = &now
		historyStatus = "approved_by_advisor"
	case workflow.RoleCompanyAdmin:
		if rec.ApprovedByCompany {
			return rec, nil
		}
		rec.ApprovedByCompany = true
		rec.ApprovalDateCompany = &now
		rec.CompanyReviewStatus = true
		historyStatus = "approved_by_company"
	default:
		return rec, workflow.DenialErrorf("Rol desconocido %q", string(req.Role))
	}

	promoted := rec.PromotionDue()
	if promoted {
		promote(&rec)
	}

	if err := e.repo.Save(ctx, tx, rec); err != nil {
		return application.StatusRecord{}, err
	}

	entry := application.HistoryEntry{
		ApplicationID: rec.ID,
		Status:        historyStatus,
		Comment:       "Solicitud aprobada",
		CreatedBy:     req.ActorID,
	}
	if err := e.repo.AppendHistory(ctx, tx, entry); err != nil {
		return application.StatusRecord{}, err
	}
	if promoted {
		if err := e.appendPromotionHistory(ctx, tx, rec.ID, req.ActorID); err != nil {
			return application.StatusRecord{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return application.StatusRecord{}, fmt.Errorf("approval: commit tx: %w", err)
	}

	e.notifier.Changed(ctx, rec.ID)
	return rec, nil
}

// Revoke withdraws the company's approval. It is only possible while the
// record still sits in the pre-dispersal lanes; once promoted the approval
// is locked in.
func (e *Engine) Revoke(ctx context.Context, id, actorID string, scope application.ScopeFilter) (application.StatusRecord, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return application.StatusRecord{}, fmt.Errorf("approval: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := e.repo.GetForUpdate(ctx, tx, id, scope)
	if err != nil {
		return application.StatusRecord{}, err
	}
	if !rec.ApprovedByCompany {
		return rec, &workflow.Denial{NoOp: true, Reason: "La empresa no ha aprobado esta solicitud"}
	}
	if rec.Status.Shared() {
		return rec, workflow.DenialErrorf("Ya no es posible retirar la aprobación de una solicitud en estado %q", rec.Status.Label())
	}

	rec.ApprovedByCompany = false
	rec.ApprovalDateCompany = nil
	rec.CompanyReviewStatus = true
	rec.CompanyStatus = status.InReview
	if rec.Status == status.Approved {
		rec.Status = status.InReview
		rec.AdvisorStatus = status.InReview
		rec.GlobalStatus = status.InReview
	}

	if err := e.repo.Save(ctx, tx, rec); err != nil {
		return application.StatusRecord{}, err
	}
	entry := application.HistoryEntry{
		ApplicationID: rec.ID,
		Status:        "approval_revoked",
		Comment:       "Aprobación de empresa retirada",
		CreatedBy:     actorID,
	}
	if err := e.repo.AppendHistory(ctx, tx, entry); err != nil {
		return application.StatusRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return application.StatusRecord{}, fmt.Errorf("approval: commit tx: %w", err)
	}

	e.notifier.Changed(ctx, rec.ID)
	return rec, nil
}

// EvaluatePromotion re-checks one record under lock and promotes it if both
// approvals are present but the status never caught up. Used by the sweep.
func (e *Engine) EvaluatePromotion(ctx context.Context, id string) (bool, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("approval: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := e.repo.GetForUpdate(ctx, tx, id, application.ScopeFilter{})
	if err != nil {
		return false, err
	}
	if !rec.PromotionDue() {
		return false, nil
	}

	promote(&rec)
	if err := e.repo.Save(ctx, tx, rec); err != nil {
		return false, err
	}
	if err := e.appendPromotionHistory(ctx, tx, rec.ID, ""); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("approval: commit tx: %w", err)
	}

	e.notifier.Changed(ctx, rec.ID)
	return true, nil
}

func (e *Engine) appendPromotionHistory(ctx context.Context, tx pgx.Tx, id, actorID string) error {
	return e.repo.AppendHistory(ctx, tx, application.HistoryEntry{
		ApplicationID: id,
		Status:        string(status.PorDispersar),
		Comment:       promotionComment,
		CreatedBy:     actorID,
	})
}

func promote(rec *application.StatusRecord) {
	rec.Status = status.PorDispersar
	rec.AdvisorStatus = status.PorDispersar
	rec.CompanyStatus = status.PorDispersar
	rec.GlobalStatus = status.PorDispersar
}
