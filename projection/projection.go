// Package projection derives the per-role kanban view from stored records.
// Advisors see the literal statuses; company admins see a virtual
// three-lane sub-workflow until a record reaches a shared lane.
package projection

import (
	"time"

	"creditflow/application"
	"creditflow/status"
	"creditflow/workflow"
)

// attentionAge is how long a card may sit untouched in an active lane before
// it is flagged for follow-up.
const attentionAge = 48 * time.Hour

// Card is one application as rendered on a board column.
type Card struct {
	ID         string  `json:"id"`
	ClientName string  `json:"client_name"`
	Amount     float64 `json:"amount"`

	Lane  status.Status `json:"lane"`
	Label string        `json:"label"`

	ApprovedByAdvisor bool `json:"approved_by_advisor"`
	ApprovedByCompany bool `json:"approved_by_company"`

	RequiresAttention bool `json:"requires_attention"`

	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Project renders one record for the given viewer role. Unrecognized stored
// statuses are displayed in the new lane; the stored value is never rewritten.
func Project(rec application.StatusRecord, role workflow.Role, now time.Time) Card {
	lane := laneFor(rec, role)

	return Card{
		ID:                rec.ID,
		ClientName:        rec.ClientName,
		Amount:            rec.Amount,
		Lane:              lane,
		Label:             lane.Label(),
		ApprovedByAdvisor: rec.ApprovedByAdvisor,
		ApprovedByCompany: rec.ApprovedByCompany,
		RequiresAttention: requiresAttention(rec, lane, now),
		UpdatedAt:         rec.UpdatedAt,
		CreatedAt:         rec.CreatedAt,
	}
}

// Board groups records into lanes for the given viewer role.
func Board(records []application.StatusRecord, role workflow.Role, now time.Time) map[status.Status][]Card {
	board := make(map[status.Status][]Card)
	for _, rec := range records {
		card := Project(rec, role, now)
		board[card.Lane] = append(board[card.Lane], card)
	}
	return board
}

func laneFor(rec application.StatusRecord, role workflow.Role) status.Status {
	literal, _ := status.Normalize(string(rec.Status))
	if role != workflow.RoleCompanyAdmin {
		return literal
	}
	if literal.Shared() {
		return literal
	}
	if rec.ApprovedByCompany {
		return status.Approved
	}
	if rec.CompanyReviewStatus {
		return status.InReview
	}
	return status.New
}

// requiresAttention flags cards idling in the intake lanes for longer than
// the follow-up window.
func requiresAttention(rec application.StatusRecord, lane status.Status, now time.Time) bool {
	if lane != status.New && lane != status.InReview {
		return false
	}
	return now.Sub(rec.UpdatedAt) >= attentionAge
}
