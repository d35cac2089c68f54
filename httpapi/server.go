// Package httpapi exposes the credit application workflow over REST.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"creditflow/application"
	"creditflow/approval"
	"creditflow/auth"
	"creditflow/rejection"
)

// Server bundles the workflow services behind the REST routes.
type Server struct {
	statuses   *application.StatusService
	approvals  *approval.Engine
	rejections *rejection.Manager
	auth       *auth.Service
	log        zerolog.Logger
}

func NewServer(
	statuses *application.StatusService,
	approvals *approval.Engine,
	rejections *rejection.Manager,
	authSvc *auth.Service,
	log zerolog.Logger,
) *Server {
	return &Server{
		statuses:   statuses,
		approvals:  approvals,
		rejections: rejections,
		auth:       authSvc,
		log:        log,
	}
}

// Router builds the route table. Everything under /api except login requires
// a bearer token.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	authed.HandleFunc("/applications", s.handleBoard).Methods(http.MethodGet)
	authed.HandleFunc("/applications", s.handleCreate).Methods(http.MethodPost)
	authed.HandleFunc("/applications/{id}", s.handleGet).Methods(http.MethodGet)
	authed.HandleFunc("/applications/{id}/approval-status", s.handleApprovalStatus).Methods(http.MethodGet)
	authed.HandleFunc("/applications/{id}/history", s.handleHistory).Methods(http.MethodGet)
	authed.HandleFunc("/applications/{id}/status", s.handleChangeStatus).Methods(http.MethodPut)
	authed.HandleFunc("/applications/{id}/approve", s.handleApprove).Methods(http.MethodPost)
	authed.HandleFunc("/applications/{id}/approval/cancel", s.handleRevokeApproval).Methods(http.MethodPost)
	authed.HandleFunc("/applications/{id}/reject", s.handleReject).Methods(http.MethodPost)
	authed.HandleFunc("/applications/{id}/restore", s.handleRestore).Methods(http.MethodPost)
	authed.HandleFunc("/applications/{id}/disperse", s.handleDisperse).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}
