package application

import (
	"errors"
	"time"

	"creditflow/status"
	"creditflow/workflow"
)

var (
	// ErrNotFound is returned when no application row matches the id within
	// the caller's scope. A row outside the scope is indistinguishable from a
	// missing one on purpose.
	ErrNotFound = errors.New("application: not found")
)

// StatusRecord mirrors the applications table columns owned by the workflow.
// The four status mirrors are written together on ordinary transitions; they
// diverge only while a rejection is in flight.
type StatusRecord struct {
	ID string

	ClientName string
	Amount     float64
	AdvisorID  *string
	CompanyID  *string

	Status        status.Status
	AdvisorStatus status.Status
	CompanyStatus status.Status
	GlobalStatus  status.Status

	PreviousStatus        status.Status
	PreviousAdvisorStatus status.Status
	PreviousCompanyStatus status.Status
	PreviousGlobalStatus  status.Status

	ApprovedByAdvisor   bool
	ApprovedByCompany   bool
	ApprovalDateAdvisor *time.Time
	ApprovalDateCompany *time.Time

	RejectedByAdvisor bool
	RejectedByCompany bool

	// CompanyReviewStatus records that the company admin pulled the card into
	// their review lane; it feeds the company-side virtual projection.
	CompanyReviewStatus bool

	DispersalDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WorkflowSnapshot is the view the transition validator consumes when the
// literal status is the lane being moved (advisor and global views).
func (r StatusRecord) WorkflowSnapshot() workflow.Snapshot {
	return workflow.Snapshot{
		Current:           r.Status,
		ApprovedByAdvisor: r.ApprovedByAdvisor,
		ApprovedByCompany: r.ApprovedByCompany,
	}
}

// CompanyLane is the company admin's virtual lane for records that have not
// reached a shared lane: derived from the company-side fields only.
func (r StatusRecord) CompanyLane() status.Status {
	if r.Status.Shared() {
		return r.Status
	}
	if r.ApprovedByCompany {
		return status.Approved
	}
	if r.CompanyReviewStatus {
		return status.InReview
	}
	return status.New
}

// PromotionDue reports the joint-approval invariant: both authorities have
// approved and the record still sits in an active lane. Shared lanes never
// promote: terminal statuses absorb, and a rejected record's promotion waits
// until a restore puts it back in play.
func (r StatusRecord) PromotionDue() bool {
	if !r.ApprovedByAdvisor || !r.ApprovedByCompany {
		return false
	}
	return !r.Status.Shared()
}

// setAllStatuses writes the four mirrors together.
func (r *StatusRecord) setAllStatuses(s status.Status) {
	r.Status = s
	r.AdvisorStatus = s
	r.CompanyStatus = s
	r.GlobalStatus = s
}

// ScopeFilter restricts which rows an authority may touch. Zero values mean
// no restriction (system actor). It is built by the auth layer and treated
// here as an opaque predicate.
type ScopeFilter struct {
	AdvisorID string
	CompanyID string
}

// ApprovalStatus is the condensed approval view served to detail pages.
type ApprovalStatus struct {
	ApprovedByAdvisor   bool
	ApprovedByCompany   bool
	ApprovalDateAdvisor *time.Time
	ApprovalDateCompany *time.Time
	AdvisorStatus       status.Status
	CompanyStatus       status.Status
	GlobalStatus        status.Status
}

// HistoryEntry is one audit row, appended once per successful transition.
type HistoryEntry struct {
	ID            string
	ApplicationID string
	Status        string
	Comment       string
	CreatedBy     string
	CreatedAt     time.Time
}
