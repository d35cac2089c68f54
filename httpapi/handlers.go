package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"creditflow/application"
	"creditflow/approval"
	"creditflow/auth"
	"creditflow/projection"
	"creditflow/rejection"
	"creditflow/status"
	"creditflow/workflow"
)

type loginResponse struct {
	Token    string    `json:"token"`
	UserID   string    `json:"user_id"`
	FullName string    `json:"full_name"`
	Role     auth.Role `json:"role"`
}

type recordResponse struct {
	ID         string  `json:"id"`
	ClientName string  `json:"client_name"`
	Amount     float64 `json:"amount"`

	Status        status.Status `json:"status"`
	AdvisorStatus status.Status `json:"advisor_status"`
	CompanyStatus status.Status `json:"company_status"`
	GlobalStatus  status.Status `json:"global_status"`
	DisplayStatus status.Status `json:"display_status"`
	DisplayLabel  string        `json:"display_label"`

	ApprovedByAdvisor   bool       `json:"approved_by_advisor"`
	ApprovedByCompany   bool       `json:"approved_by_company"`
	ApprovalDateAdvisor *time.Time `json:"approval_date_advisor,omitempty"`
	ApprovalDateCompany *time.Time `json:"approval_date_company,omitempty"`

	RejectedByAdvisor bool `json:"rejected_by_advisor"`
	RejectedByCompany bool `json:"rejected_by_company"`

	DispersalDate *time.Time `json:"dispersal_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toRecordResponse(rec application.StatusRecord, role workflow.Role) recordResponse {
	card := projection.Project(rec, role, time.Now())
	return recordResponse{
		ID:                  rec.ID,
		ClientName:          rec.ClientName,
		Amount:              rec.Amount,
		Status:              rec.Status,
		AdvisorStatus:       rec.AdvisorStatus,
		CompanyStatus:       rec.CompanyStatus,
		GlobalStatus:        rec.GlobalStatus,
		DisplayStatus:       card.Lane,
		DisplayLabel:        card.Label,
		ApprovedByAdvisor:   rec.ApprovedByAdvisor,
		ApprovedByCompany:   rec.ApprovedByCompany,
		ApprovalDateAdvisor: rec.ApprovalDateAdvisor,
		ApprovalDateCompany: rec.ApprovalDateCompany,
		RejectedByAdvisor:   rec.RejectedByAdvisor,
		RejectedByCompany:   rec.RejectedByCompany,
		DispersalDate:       rec.DispersalDate,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}

	result, err := s.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Credenciales inválidas")
			return
		}
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:    result.Token,
		UserID:   result.User.ID,
		FullName: result.User.FullName,
		Role:     result.User.Role,
	})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	records, err := s.statuses.List(r.Context(), scope)
	if err != nil {
		s.internalError(w, err)
		return
	}

	role := identity.WorkflowRole()
	board := projection.Board(records, role, time.Now())
	full := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		full = append(full, toRecordResponse(rec, role))
	}
	writeJSON(w, http.StatusOK, map[string]any{"lanes": board, "records": full})
}

type createRequest struct {
	ClientName string  `json:"client_name"`
	Amount     float64 `json:"amount"`
	CompanyID  *string `json:"company_id"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}
	if req.ClientName == "" {
		writeError(w, http.StatusBadRequest, "El nombre del cliente es obligatorio")
		return
	}

	rec := application.StatusRecord{
		ClientName: req.ClientName,
		Amount:     req.Amount,
		CompanyID:  req.CompanyID,
	}
	if identity.Role == auth.RoleAdvisor {
		advisorID := identity.UserID
		rec.AdvisorID = &advisorID
	}

	created, err := s.statuses.Create(r.Context(), rec)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(created, identity.WorkflowRole()))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	rec, err := s.statuses.GetRecord(r.Context(), mux.Vars(r)["id"], scope)
	if err != nil {
		s.respondServiceError(w, identity, rec, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec, identity.WorkflowRole()))
}

func (s *Server) handleApprovalStatus(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	st, err := s.statuses.GetApprovalStatus(r.Context(), mux.Vars(r)["id"], scope)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"approved_by_advisor":   st.ApprovedByAdvisor,
		"approved_by_company":   st.ApprovedByCompany,
		"approval_date_advisor": st.ApprovalDateAdvisor,
		"approval_date_company": st.ApprovalDateCompany,
		"advisor_status":        st.AdvisorStatus,
		"company_status":        st.CompanyStatus,
		"global_status":         st.GlobalStatus,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	entries, err := s.statuses.History(r.Context(), mux.Vars(r)["id"], scope)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyResponse{
			ID:        e.ID,
			Status:    e.Status,
			Comment:   e.Comment,
			CreatedBy: e.CreatedBy,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}

type historyResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Comment   string    `json:"comment"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type changeStatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo de la petición inválido")
		return
	}
	target, ok := status.Normalize(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "Estado desconocido")
		return
	}

	rec, err := s.statuses.ChangeStatus(r.Context(), application.ChangeStatusRequest{
		ID:      mux.Vars(r)["id"],
		Target:  target,
		Role:    identity.WorkflowRole(),
		ActorID: identity.UserID,
		Comment: req.Comment,
		Scope:   scope,
	})
	if err != nil {
		s.respondServiceError(w, identity, rec, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec, identity.WorkflowRole()))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	rec, err := s.approvals.Approve(r.Context(), approval.ApproveRequest{
		ID:      mux.Vars(r)["id"],
		Role:    identity.WorkflowRole(),
		ActorID: identity.UserID,
		Scope:   scope,
	})
	if err != nil {
		s.respondServiceError(w, identity, rec, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec, identity.WorkflowRole()))
}

func (s *Server) handleRevokeApproval(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity.Role != auth.RoleCompanyAdmin {
		writeError(w, http.StatusForbidden, "Solo la empresa puede retirar su aprobación")
		return
	}
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	rec, err := s.approvals.Revoke(r.Context(), mux.Vars(r)["id"], identity.UserID, scope)
	if err != nil {
		s.respondServiceError(w, identity, rec, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec, identity.WorkflowRole()))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	var req rejectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	rec, err := s.rejections.Reject(r.Context(), rejection.RejectRequest{
		ID:      mux.Vars(r)["id"],
		Role:    identity.WorkflowRole(),
		ActorID: identity.UserID,
		Reason:  req.Reason,
		Scope:   scope,
	})
	if err != nil {
		s.respondServiceError(w, identity, rec, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec, identity.WorkflowRole()))
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	rec, err := s.rejections.Restore(r.Context(), mux.Vars(r)["id"], identity.UserID, scope)
	if err != nil {
		s.respondServiceError(w, identity, rec, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec, identity.WorkflowRole()))
}

func (s *Server) handleDisperse(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity.Role == auth.RoleCompanyAdmin {
		writeError(w, http.StatusForbidden, "Solo los asesores pueden dispersar un crédito")
		return
	}
	scope, err := s.scopeFor(identity)
	if err != nil {
		s.respondServiceError(w, identity, application.StatusRecord{}, err)
		return
	}

	rec, err := s.statuses.MarkAsDispersed(r.Context(), mux.Vars(r)["id"], identity.UserID, scope)
	if err != nil {
		s.respondServiceError(w, identity, rec, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec, identity.WorkflowRole()))
}

// scopeFor rejects company-side calls from an admin with no company.
func (s *Server) scopeFor(identity auth.Identity) (application.ScopeFilter, error) {
	if identity.Role == auth.RoleCompanyAdmin && identity.CompanyID == "" {
		return application.ScopeFilter{}, workflow.ErrNoCompanyScope()
	}
	return identity.Scope(), nil
}

// respondServiceError maps service errors onto HTTP responses. A no-op denial
// comes back as success with the unchanged record so clients can dismiss the
// drop silently.
func (s *Server) respondServiceError(w http.ResponseWriter, identity auth.Identity, rec application.StatusRecord, err error) {
	var denial *workflow.Denial
	if errors.As(err, &denial) {
		if denial.NoOp {
			writeJSON(w, http.StatusOK, map[string]any{
				"no_op":   true,
				"message": denial.Reason,
				"record":  toRecordResponse(rec, identity.WorkflowRole()),
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, denial.Reason)
		return
	}

	var scopeErr *workflow.ScopeError
	if errors.As(err, &scopeErr) {
		writeError(w, http.StatusForbidden, scopeErr.Reason)
		return
	}
	if errors.Is(err, application.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Solicitud no encontrada")
		return
	}

	s.internalError(w, err)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Error interno del servidor")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
