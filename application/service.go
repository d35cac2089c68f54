package application

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"creditflow/status"
	"creditflow/workflow"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository defines the data access the status service requires.
type Repository interface {
	Get(ctx context.Context, id string, scope ScopeFilter) (StatusRecord, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string, scope ScopeFilter) (StatusRecord, error)
	Save(ctx context.Context, tx pgx.Tx, rec StatusRecord) error
	AppendHistory(ctx context.Context, tx pgx.Tx, e HistoryEntry) error
	ListHistory(ctx context.Context, id string, scope ScopeFilter) ([]HistoryEntry, error)
	List(ctx context.Context, scope ScopeFilter) ([]StatusRecord, error)
	Create(ctx context.Context, rec StatusRecord) (StatusRecord, error)
}

// Notifier broadcasts that a record changed so other clients re-fetch it.
type Notifier interface {
	Changed(ctx context.Context, id string)
}

type noopNotifier struct{}

func (noopNotifier) Changed(context.Context, string) {}

// ChangeStatusRequest is one drag-and-drop (or API) status move.
type ChangeStatusRequest struct {
	ID      string
	Target  status.Status
	Role    workflow.Role
	ActorID string
	Comment string
	Scope   ScopeFilter
}

// StatusService applies status transitions transactionally: lock the row,
// validate against the in-memory rules, mutate, persist record plus audit row,
// commit, then notify.
type StatusService struct {
	pool     TxBeginner
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

func NewStatusService(pool TxBeginner, repo Repository, notifier Notifier) *StatusService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &StatusService{
		pool:     pool,
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *StatusService) WithClock(now func() time.Time) *StatusService {
	s.now = now
	return s
}

// ChangeStatus moves an application to the requested status on behalf of one
// authority. Advisor moves rewrite all four status mirrors; company-admin
// moves only reposition the card within the company's own lanes.
func (s *StatusService) ChangeStatus(ctx context.Context, req ChangeStatusRequest) (StatusRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return StatusRecord{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, req.ID, req.Scope)
	if err != nil {
		return StatusRecord{}, err
	}

	snap := rec.WorkflowSnapshot()
	if req.Role == workflow.RoleCompanyAdmin {
		// The company admin drags cards within a virtual sub-workflow, so the
		// lane being left is the projected one, not the literal status.
		snap.Current = rec.CompanyLane()
	}
	if denial := workflow.CanTransition(req.Role, snap, req.Target); denial != nil {
		return rec, denial
	}

	from := snap.Current
	switch req.Role {
	case workflow.RoleCompanyAdmin:
		if err := applyCompanyMove(&rec, req.Target); err != nil {
			return rec, err
		}
	default:
		rec.setAllStatuses(req.Target)
		if from == status.Rejected {
			// Dragging out of rejected is an explicit restore to the chosen
			// column; the snapshot has served its purpose.
			rec.PreviousStatus = status.None
			rec.PreviousAdvisorStatus = status.None
			rec.PreviousCompanyStatus = status.None
			rec.PreviousGlobalStatus = status.None
			rec.RejectedByAdvisor = false
			rec.RejectedByCompany = false
		}
		if req.Target == status.Completed && rec.DispersalDate == nil {
			t := s.now()
			rec.DispersalDate = &t
		}
	}

	if err := s.repo.Save(ctx, tx, rec); err != nil {
		return StatusRecord{}, err
	}

	comment := req.Comment
	if comment != "" {
		comment += " "
	}
	comment += fmt.Sprintf("(Cambio de estado: %s → %s)", from.Label(), req.Target.Label())
	entry := HistoryEntry{
		ApplicationID: rec.ID,
		Status:        string(req.Target),
		Comment:       comment,
		CreatedBy:     req.ActorID,
	}
	if err := s.repo.AppendHistory(ctx, tx, entry); err != nil {
		return StatusRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return StatusRecord{}, fmt.Errorf("application: commit tx: %w", err)
	}

	s.notifier.Changed(ctx, rec.ID)
	return rec, nil
}

// applyCompanyMove repositions the card in the company's lanes without
// touching the advisor or global views.
func applyCompanyMove(rec *StatusRecord, target status.Status) error {
	switch target {
	case status.New:
		rec.CompanyReviewStatus = false
		rec.CompanyStatus = status.New
	case status.InReview:
		rec.CompanyReviewStatus = true
		rec.CompanyStatus = status.InReview
	case status.Approved:
		// The approved lane is entered through the approval action, which
		// carries the approver identity and timestamp; a bare drag cannot.
		if !rec.ApprovedByCompany {
			return workflow.DenialErrorf("Debes aprobarla primero desde la página de detalle")
		}
		rec.CompanyStatus = status.Approved
	default:
		return workflow.DenialErrorf("No puedes mover solicitudes al estado %q", target.Label())
	}
	return nil
}

// MarkAsDispersed completes an application that sits in por_dispersar,
// stamping the dispersal date.
func (s *StatusService) MarkAsDispersed(ctx context.Context, id, actorID string, scope ScopeFilter) (StatusRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return StatusRecord{}, fmt.Errorf("application: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, id, scope)
	if err != nil {
		return StatusRecord{}, err
	}
	if rec.Status != status.PorDispersar {
		return rec, workflow.DenialErrorf("Solo una solicitud por dispersar puede marcarse como dispersada")
	}

	rec.setAllStatuses(status.Completed)
	t := s.now()
	rec.DispersalDate = &t

	if err := s.repo.Save(ctx, tx, rec); err != nil {
		return StatusRecord{}, err
	}
	entry := HistoryEntry{
		ApplicationID: rec.ID,
		Status:        string(status.Completed),
		Comment:       "Crédito dispersado",
		CreatedBy:     actorID,
	}
	if err := s.repo.AppendHistory(ctx, tx, entry); err != nil {
		return StatusRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return StatusRecord{}, fmt.Errorf("application: commit tx: %w", err)
	}

	s.notifier.Changed(ctx, rec.ID)
	return rec, nil
}

// GetRecord fetches one application within scope.
func (s *StatusService) GetRecord(ctx context.Context, id string, scope ScopeFilter) (StatusRecord, error) {
	return s.repo.Get(ctx, id, scope)
}

// GetApprovalStatus returns the condensed approval view for a detail page.
func (s *StatusService) GetApprovalStatus(ctx context.Context, id string, scope ScopeFilter) (ApprovalStatus, error) {
	rec, err := s.repo.Get(ctx, id, scope)
	if err != nil {
		return ApprovalStatus{}, err
	}
	return ApprovalStatus{
		ApprovedByAdvisor:   rec.ApprovedByAdvisor,
		ApprovedByCompany:   rec.ApprovedByCompany,
		ApprovalDateAdvisor: rec.ApprovalDateAdvisor,
		ApprovalDateCompany: rec.ApprovalDateCompany,
		AdvisorStatus:       rec.AdvisorStatus,
		CompanyStatus:       rec.CompanyStatus,
		GlobalStatus:        rec.GlobalStatus,
	}, nil
}

// History lists the audit trail of one application, newest first.
func (s *StatusService) History(ctx context.Context, id string, scope ScopeFilter) ([]HistoryEntry, error) {
	return s.repo.ListHistory(ctx, id, scope)
}

// List returns the applications visible within scope.
func (s *StatusService) List(ctx context.Context, scope ScopeFilter) ([]StatusRecord, error) {
	return s.repo.List(ctx, scope)
}

// Create registers a new intake application.
func (s *StatusService) Create(ctx context.Context, rec StatusRecord) (StatusRecord, error) {
	return s.repo.Create(ctx, rec)
}
