package auth

import (
	"time"

	"creditflow/application"
	"creditflow/workflow"
)

type Role string

const (
	RoleAdvisor      Role = "advisor"
	RoleCompanyAdmin Role = "company_admin"
	RoleAdmin        Role = "admin"
)

// User is the domain representation of an authenticated user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	CompanyID    *string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is the verified caller extracted from a token.
type Identity struct {
	UserID    string
	Role      Role
	CompanyID string
}

// WorkflowRole maps the auth role onto the two workflow authorities. Admins
// act with advisor authority over the full board.
func (i Identity) WorkflowRole() workflow.Role {
	if i.Role == RoleCompanyAdmin {
		return workflow.RoleCompanyAdmin
	}
	return workflow.RoleAdvisor
}

// Scope restricts data access to the caller's own records. Admins see
// everything; advisors their own pipeline; company admins their company's.
func (i Identity) Scope() application.ScopeFilter {
	switch i.Role {
	case RoleAdvisor:
		return application.ScopeFilter{AdvisorID: i.UserID}
	case RoleCompanyAdmin:
		return application.ScopeFilter{CompanyID: i.CompanyID}
	default:
		return application.ScopeFilter{}
	}
}
