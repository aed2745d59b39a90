package server

import (
	"net/http"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

type credentialRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleCreateCredential stores a RouterOS login. An empty password is
// allowed; factory-fresh routers ship with one.
func (s *Server) handleCreateCredential(w http.ResponseWriter, r *http.Request, tenant string) {
	var req credentialRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Username == "" {
		s.writeDetail(w, http.StatusBadRequest, "name and username are required")
		return
	}
	cred, err := s.db.CreateCredential(r.Context(), store.Credential{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
		OwnerID:  tenant,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, cred)
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request, tenant string) {
	creds, err := s.db.Credentials(r.Context(), tenant)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, creds)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteCredential(r.Context(), tenant, id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
