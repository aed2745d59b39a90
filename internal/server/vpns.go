package server

import (
	"net/http"

	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/internal/vpn"
)

type profileRequest struct {
	Name       string `json:"name"`
	ConfigText string `json:"config_data"`
	CheckIP    string `json:"check_ip"`
	IsDefault  bool   `json:"is_default"`
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request, tenant string) {
	var req profileRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.ConfigText == "" {
		s.writeDetail(w, http.StatusBadRequest, "name and config_data are required")
		return
	}
	profile, err := s.db.CreateProfile(r.Context(), store.VpnProfile{
		Name:       req.Name,
		ConfigText: req.ConfigText,
		CheckIP:    req.CheckIP,
		IsDefault:  req.IsDefault,
		OwnerID:    tenant,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request, tenant string) {
	profiles, err := s.db.Profiles(r.Context(), tenant)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profiles)
}

// handleUpdateProfile applies a partial update; absent fields keep their
// stored values.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var upd store.ProfileUpdate
	if !s.readJSON(w, r, &upd) {
		return
	}
	ctx := r.Context()
	if err := s.db.UpdateProfile(ctx, tenant, id, upd); err != nil {
		s.storeError(w, err)
		return
	}
	profile, err := s.db.ProfileByID(ctx, tenant, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteProfile(r.Context(), tenant, id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type debugWG struct {
	IPLinkOK bool              `json:"ip_link_ok"`
	IPLink   string            `json:"ip_link"`
	WGShowOK bool              `json:"wg_show_ok"`
	WGShow   string            `json:"wg_show"`
	VPNState []vpn.TunnelState `json:"vpn_state"`
}

// handleDebugWG reports what the host's network stack actually says
// next to the manager's own tunnel table, for diagnosing tunnels that
// exist on one side but not the other.
func (s *Server) handleDebugWG(w http.ResponseWriter, r *http.Request, _ string) {
	ctx := r.Context()
	linkOK, linkOut := s.wg.Cmd(ctx, "ip", "link", "show")
	showOK, showOut := s.wg.Cmd(ctx, "wg", "show")
	s.writeJSON(w, http.StatusOK, debugWG{
		IPLinkOK: linkOK,
		IPLink:   linkOut,
		WGShowOK: showOK,
		WGShow:   showOut,
		VPNState: s.tunnels.Snapshot(),
	})
}
