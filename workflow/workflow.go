// Package workflow holds the pure transition rules of the dual-approval
// credit workflow: which authority may move an application from which status
// to which, and the error taxonomy surfaced to users when a move is denied.
package workflow

import (
	"fmt"

	"creditflow/status"
)

// Role identifies one of the two approval authorities.
type Role string

const (
	RoleAdvisor      Role = "advisor"
	RoleCompanyAdmin Role = "company_admin"
)

// Snapshot is the minimal view of an application the validator needs.
type Snapshot struct {
	Current           status.Status
	ApprovedByAdvisor bool
	ApprovedByCompany bool
}

// FullyApproved reports joint approval by both authorities.
func (s Snapshot) FullyApproved() bool {
	return s.ApprovedByAdvisor && s.ApprovedByCompany
}

// companyLanes is the sub-workflow a company admin may move cards within.
var companyLanes = map[status.Status]bool{
	status.New:      true,
	status.InReview: true,
	status.Approved: true,
}

// CanTransition gates a requested status move. A nil return means the move is
// allowed. Denials carry a user-facing Spanish reason; same-column drops come
// back as a no-op denial so callers can swallow them silently.
func CanTransition(role Role, snap Snapshot, target status.Status) *Denial {
	if !target.Valid() {
		return &Denial{Reason: fmt.Sprintf("Estado desconocido %q", string(target))}
	}
	if target == snap.Current {
		return &Denial{NoOp: true, Reason: "La solicitud ya se encuentra en ese estado"}
	}

	switch role {
	case RoleAdvisor:
		return advisorCanTransition(snap, target)
	case RoleCompanyAdmin:
		return companyCanTransition(snap, target)
	default:
		return &Denial{Reason: fmt.Sprintf("Rol desconocido %q", string(role))}
	}
}

func advisorCanTransition(snap Snapshot, target status.Status) *Denial {
	switch snap.Current {
	case status.Completed, status.Expired, status.Cancelled:
		return &Denial{Reason: fmt.Sprintf("No se puede mover una solicitud en estado %q", snap.Current.Label())}
	case status.PorDispersar:
		// Leaving por_dispersar happens only through the disperse action.
		return &Denial{Reason: "Una solicitud por dispersar solo puede marcarse como dispersada"}
	}
	if snap.FullyApproved() {
		return &Denial{Reason: "La solicitud cuenta con ambas aprobaciones y está pendiente de pasar a Por Dispersar"}
	}
	return nil
}

func companyCanTransition(snap Snapshot, target status.Status) *Denial {
	if snap.Current.Shared() {
		return &Denial{Reason: fmt.Sprintf("No se puede mover una solicitud en estado %q", snap.Current.Label())}
	}
	if !companyLanes[target] {
		return &Denial{Reason: fmt.Sprintf("No puedes mover solicitudes al estado %q", target.Label())}
	}
	return nil
}
