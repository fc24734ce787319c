// Package service exposes the OData-style surface of the user list: three
// read-only virtual views computed from a live SCIM fetch and three sync
// actions writing to the relational store.
package service

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dspsync/userlist/scim"
)

const basePath = "/odata/v4/user-list"

// Server routes the service endpoints.
type Server struct {
	router *mux.Router
	source scim.IUserSource
	syncer *Syncer
	log    *logrus.Entry
}

func NewServer(source scim.IUserSource, syncer *Syncer) *Server {
	s := &Server{
		router: mux.NewRouter(),
		source: source,
		syncer: syncer,
		log:    logrus.WithField("component", "service"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Virtual views: computed per request, never persisted
	s.router.HandleFunc(basePath+"/UsersVH", s.readUsersVH).Methods("GET")
	s.router.HandleFunc(basePath+"/RolesVH", s.readRolesVH).Methods("GET")
	s.router.HandleFunc(basePath+"/UserRolesVH", s.readUserRolesVH).Methods("GET")

	// Sync actions
	s.router.HandleFunc(basePath+"/SyncUsersVHToUsers", s.syncUsers).Methods("POST")
	s.router.HandleFunc(basePath+"/SyncRolesFromSCIM", s.syncRoles).Methods("POST")
	s.router.HandleFunc(basePath+"/SyncUserRolesFromSCIM", s.syncUserRoles).Methods("POST")

	s.router.HandleFunc("/healthz", s.health).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) readUsersVH(w http.ResponseWriter, r *http.Request) {
	rows, err := s.source.FetchUsers(r.Context())
	if err != nil {
		s.fail(w, err, "Could not retrieve users from SCIM API")
		return
	}
	if rows == nil {
		rows = []scim.UserRow{}
	}
	writeValue(w, rows)
}

func (s *Server) readRolesVH(w http.ResponseWriter, r *http.Request) {
	resources, err := s.source.FetchUsersRaw(r.Context())
	if err != nil {
		s.fail(w, err, "Could not build RolesVH from SCIM API")
		return
	}
	roles := scim.AggregateRoles(resources)
	if roles == nil {
		roles = []scim.RoleAggregate{}
	}
	writeValue(w, roles)
}

func (s *Server) readUserRolesVH(w http.ResponseWriter, r *http.Request) {
	resources, err := s.source.FetchUsersRaw(r.Context())
	if err != nil {
		s.fail(w, err, "Could not build UserRolesVH from SCIM API")
		return
	}
	rows := scim.BuildUserRoleRows(resources)
	if rows == nil {
		rows = []scim.UserRoleRow{}
	}
	writeValue(w, rows)
}

func (s *Server) syncUsers(w http.ResponseWriter, r *http.Request) {
	count, err := s.syncer.SyncUsers(r.Context())
	if err != nil {
		s.fail(w, err, "Could not sync Users from SCIM API")
		return
	}
	writeValue(w, count)
}

func (s *Server) syncRoles(w http.ResponseWriter, r *http.Request) {
	count, err := s.syncer.SyncRoles(r.Context())
	if err != nil {
		s.fail(w, err, "Could not sync Roles from SCIM API")
		return
	}
	writeValue(w, count)
}

func (s *Server) syncUserRoles(w http.ResponseWriter, r *http.Request) {
	count, err := s.syncer.SyncUserRoles(r.Context())
	if err != nil {
		s.fail(w, err, "Could not sync UserRoles from SCIM API")
		return
	}
	writeValue(w, count)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail logs the full upstream error and answers with a fixed message so
// upstream internals never reach the caller.
func (s *Server) fail(w http.ResponseWriter, err error, message string) {
	s.log.WithError(err).Error(message)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: errorBody{Code: "500", Message: message},
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeValue(w http.ResponseWriter, value any) {
	writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
