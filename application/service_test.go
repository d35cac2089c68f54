package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"creditflow/status"
	"creditflow/workflow"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(rec StatusRecord) (*StatusService, *fakePool, *fakeRepo, *fakeNotifier) {
	pool := &fakePool{}
	repo := &fakeRepo{rec: rec}
	notifier := &fakeNotifier{}
	svc := NewStatusService(pool, repo, notifier).WithClock(func() time.Time { return testNow })
	return svc, pool, repo, notifier
}

func TestChangeStatus_AdvisorWritesAllMirrors(t *testing.T) {
	rec := StatusRecord{ID: "app-1"}
	rec.setAllStatuses(status.InReview)
	svc, pool, repo, notifier := newService(rec)

	got, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:      "app-1",
		Target:  status.Approved,
		Role:    workflow.RoleAdvisor,
		ActorID: "advisor-1",
		Comment: "Documentación completa",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	for _, s := range []status.Status{got.Status, got.AdvisorStatus, got.CompanyStatus, got.GlobalStatus} {
		if s != status.Approved {
			t.Fatalf("expected every mirror approved, got %+v", got)
		}
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if len(repo.history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(repo.history))
	}
	entry := repo.history[0]
	if entry.Status != string(status.Approved) {
		t.Errorf("unexpected history status %q", entry.Status)
	}
	if !strings.Contains(entry.Comment, "Cambio de estado: En Revisión → Aprobado") {
		t.Errorf("unexpected history comment %q", entry.Comment)
	}
	if !strings.HasPrefix(entry.Comment, "Documentación completa") {
		t.Errorf("comment should lead with the user's note, got %q", entry.Comment)
	}
	if len(notifier.changed) != 1 || notifier.changed[0] != "app-1" {
		t.Errorf("expected change notification for app-1, got %v", notifier.changed)
	}
}

func TestChangeStatus_NoOpDoesNotWrite(t *testing.T) {
	rec := StatusRecord{ID: "app-1"}
	rec.setAllStatuses(status.InReview)
	svc, pool, repo, notifier := newService(rec)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:     "app-1",
		Target: status.InReview,
		Role:   workflow.RoleAdvisor,
	})

	var denial *workflow.Denial
	if !errors.As(err, &denial) || !denial.NoOp {
		t.Fatalf("expected no-op denial, got %v", err)
	}
	if repo.saved {
		t.Error("no-op must not save")
	}
	if pool.tx.committed {
		t.Error("no-op must not commit")
	}
	if len(notifier.changed) != 0 {
		t.Error("no-op must not notify")
	}
}

func TestChangeStatus_FullyApprovedLocksAdvisorMoves(t *testing.T) {
	rec := StatusRecord{ID: "app-1", ApprovedByAdvisor: true, ApprovedByCompany: true}
	rec.setAllStatuses(status.Approved)
	svc, _, repo, _ := newService(rec)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:     "app-1",
		Target: status.InReview,
		Role:   workflow.RoleAdvisor,
	})

	var denial *workflow.Denial
	if !errors.As(err, &denial) || denial.NoOp {
		t.Fatalf("expected hard denial, got %v", err)
	}
	if repo.saved {
		t.Error("denied move must not save")
	}
}

func TestChangeStatus_CompanyMoveTouchesOnlyCompanyFields(t *testing.T) {
	rec := StatusRecord{ID: "app-1"}
	rec.setAllStatuses(status.InReview)
	svc, _, _, _ := newService(rec)

	got, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:     "app-1",
		Target: status.InReview,
		Role:   workflow.RoleCompanyAdmin,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if !got.CompanyReviewStatus {
		t.Error("expected company review flag set")
	}
	if got.CompanyStatus != status.InReview {
		t.Errorf("expected company status in_review, got %q", got.CompanyStatus)
	}
	// The advisor and global views stay where they were.
	if got.Status != status.InReview || got.AdvisorStatus != status.InReview || got.GlobalStatus != status.InReview {
		t.Errorf("company move must not rewrite other views: %+v", got)
	}
}

func TestChangeStatus_CompanyLaneIsTheProjectedOne(t *testing.T) {
	// Literal status is in_review but the company never touched the card, so
	// for the company the card sits in new and a move to in_review is not a
	// no-op.
	rec := StatusRecord{ID: "app-1"}
	rec.setAllStatuses(status.InReview)
	svc, pool, _, _ := newService(rec)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:     "app-1",
		Target: status.InReview,
		Role:   workflow.RoleCompanyAdmin,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
}

func TestChangeStatus_CompanyToApprovedNeedsPriorApproval(t *testing.T) {
	rec := StatusRecord{ID: "app-1", CompanyReviewStatus: true}
	rec.setAllStatuses(status.InReview)
	svc, _, _, _ := newService(rec)

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:     "app-1",
		Target: status.Approved,
		Role:   workflow.RoleCompanyAdmin,
	})

	var denial *workflow.Denial
	if !errors.As(err, &denial) {
		t.Fatalf("expected denial, got %v", err)
	}
	if !strings.Contains(denial.Reason, "Debes aprobarla primero") {
		t.Errorf("unexpected reason %q", denial.Reason)
	}
}

func TestChangeStatus_CompanyDeniedSharedTargets(t *testing.T) {
	for _, target := range []status.Status{status.PorDispersar, status.Completed, status.Cancelled, status.Expired, status.Rejected} {
		rec := StatusRecord{ID: "app-1"}
		rec.setAllStatuses(status.InReview)
		svc, _, repo, _ := newService(rec)

		_, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
			ID:     "app-1",
			Target: target,
			Role:   workflow.RoleCompanyAdmin,
		})

		var denial *workflow.Denial
		if !errors.As(err, &denial) || denial.NoOp {
			t.Fatalf("target %q: expected hard denial, got %v", target, err)
		}
		if repo.saved {
			t.Fatalf("target %q: denied move must not save", target)
		}
	}
}

func TestChangeStatus_CompletedStampsDispersalDate(t *testing.T) {
	rec := StatusRecord{ID: "app-1"}
	rec.setAllStatuses(status.Approved)
	svc, _, _, _ := newService(rec)

	got, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:     "app-1",
		Target: status.Completed,
		Role:   workflow.RoleAdvisor,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.DispersalDate == nil || !got.DispersalDate.Equal(testNow) {
		t.Fatalf("expected dispersal date %v, got %v", testNow, got.DispersalDate)
	}
}

func TestMarkAsDispersed(t *testing.T) {
	rec := StatusRecord{ID: "app-1", ApprovedByAdvisor: true, ApprovedByCompany: true}
	rec.setAllStatuses(status.PorDispersar)
	svc, pool, repo, _ := newService(rec)

	got, err := svc.MarkAsDispersed(context.Background(), "app-1", "advisor-1", ScopeFilter{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != status.Completed {
		t.Errorf("expected completed, got %q", got.Status)
	}
	if got.DispersalDate == nil {
		t.Error("expected dispersal date")
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if len(repo.history) != 1 || repo.history[0].Status != string(status.Completed) {
		t.Errorf("unexpected history %+v", repo.history)
	}
}

func TestMarkAsDispersed_OnlyFromPorDispersar(t *testing.T) {
	rec := StatusRecord{ID: "app-1"}
	rec.setAllStatuses(status.Approved)
	svc, _, repo, _ := newService(rec)

	_, err := svc.MarkAsDispersed(context.Background(), "app-1", "advisor-1", ScopeFilter{})
	var denial *workflow.Denial
	if !errors.As(err, &denial) {
		t.Fatalf("expected denial, got %v", err)
	}
	if repo.saved {
		t.Error("denied disperse must not save")
	}
}

func TestChangeStatus_NotFound(t *testing.T) {
	svc, _, repo, _ := newService(StatusRecord{})
	repo.getErr = ErrNotFound

	_, err := svc.ChangeStatus(context.Background(), ChangeStatusRequest{
		ID:     "missing",
		Target: status.InReview,
		Role:   workflow.RoleAdvisor,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeNotifier struct {
	changed []string
}

func (f *fakeNotifier) Changed(_ context.Context, id string) {
	f.changed = append(f.changed, id)
}

type fakeRepo struct {
	rec     StatusRecord
	getErr  error
	saved   bool
	history []HistoryEntry
}

func (f *fakeRepo) Get(ctx context.Context, id string, scope ScopeFilter) (StatusRecord, error) {
	if f.getErr != nil {
		return StatusRecord{}, f.getErr
	}
	return f.rec, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string, scope ScopeFilter) (StatusRecord, error) {
	if f.getErr != nil {
		return StatusRecord{}, f.getErr
	}
	return f.rec, nil
}

func (f *fakeRepo) Save(ctx context.Context, tx pgx.Tx, rec StatusRecord) error {
	f.saved = true
	f.rec = rec
	return nil
}

func (f *fakeRepo) AppendHistory(ctx context.Context, tx pgx.Tx, e HistoryEntry) error {
	f.history = append(f.history, e)
	return nil
}

func (f *fakeRepo) ListHistory(ctx context.Context, id string, scope ScopeFilter) ([]HistoryEntry, error) {
	return f.history, nil
}

func (f *fakeRepo) List(ctx context.Context, scope ScopeFilter) ([]StatusRecord, error) {
	return []StatusRecord{f.rec}, nil
}

func (f *fakeRepo) Create(ctx context.Context, rec StatusRecord) (StatusRecord, error) {
	return rec, nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
