package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vatojuan/MonitorNetwork/internal/store"
)

// deviceStatusManual marks devices registered through the onboarding
// endpoint rather than discovered via a maestro relay.
const deviceStatusManual = "MANUAL"

type probeOutcome int

const (
	probeUnreachable probeOutcome = iota
	probeNoCredential
	probeAccepted
)

// runProbe prechecks the RouterOS API port and then walks the tenant's
// stored credentials against it. A non-nil error means the credential
// store failed, not that the device rejected us.
func (s *Server) runProbe(ctx context.Context, tenant, ip string) (int64, probeOutcome, error) {
	if !s.reach(ctx, ip, s.reachTimeout) {
		return 0, probeUnreachable, nil
	}
	credID, ok, err := s.prober.Probe(ctx, tenant, ip)
	if err != nil {
		return 0, probeUnreachable, err
	}
	if !ok {
		return 0, probeNoCredential, nil
	}
	return credID, probeAccepted, nil
}

type manualDeviceRequest struct {
	ClientName   string `json:"client_name"`
	IP           string `json:"ip_address"`
	MAC          string `json:"mac_address"`
	Node         string `json:"node"`
	VpnProfileID *int64 `json:"vpn_profile_id"`
}

// handleManualDevice onboards a device by IP: bring up the onboarding
// tunnel when a profile applies, verify a stored credential works, then
// persist the device. Nothing is written unless the probe succeeds.
func (s *Server) handleManualDevice(w http.ResponseWriter, r *http.Request, tenant string) {
	var req manualDeviceRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.ClientName == "" || req.IP == "" {
		s.writeDetail(w, http.StatusBadRequest, "client_name and ip_address are required")
		return
	}
	ctx := r.Context()

	var profileID *int64
	var configText string
	if req.VpnProfileID != nil {
		profile, err := s.db.ProfileByID(ctx, tenant, *req.VpnProfileID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		profileID = &profile.ID
		configText = profile.ConfigText
	} else {
		profile, ok, err := s.db.DefaultProfile(ctx, tenant)
		if err != nil {
			s.storeError(w, err)
			return
		}
		if ok {
			id := profile.ID
			profileID = &id
			configText = profile.ConfigText
		}
	}

	tunneled := profileID != nil
	if tunneled {
		tun, err := s.tunnels.EphemeralUp(ctx, configText)
		if err != nil {
			s.writeDetail(w, http.StatusInternalServerError, "activating VPN: "+err.Error())
			return
		}
		// Tear down even if the client goes away mid-request.
		defer tun.Down(context.WithoutCancel(ctx))
	}

	credID, outcome, err := s.runProbe(ctx, tenant, req.IP)
	if err != nil {
		s.storeError(w, err)
		return
	}
	switch outcome {
	case probeUnreachable:
		detail := "RouterOS host/API unreachable"
		if tunneled {
			detail = "RouterOS host/API unreachable through the tunnel"
		}
		s.writeDetail(w, http.StatusBadGateway, detail)
		return
	case probeNoCredential:
		s.writeDetail(w, http.StatusUnauthorized, "authentication failed at "+req.IP)
		return
	}

	device, err := s.db.CreateDevice(ctx, store.Device{
		ClientName:   req.ClientName,
		IP:           req.IP,
		MAC:          req.MAC,
		Node:         req.Node,
		Status:       deviceStatusManual,
		CredentialID: &credID,
		VpnProfileID: profileID,
		OwnerID:      tenant,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("device onboarded", "device_id", device.ID, "ip", device.IP, "tenant", tenant)
	s.writeJSON(w, http.StatusCreated, device)
}

type reachabilityRequest struct {
	IP           string  `json:"ip_address"`
	VpnProfileID *int64  `json:"vpn_profile_id"`
	MaestroID    *string `json:"maestro_id"`
}

type reachabilityResult struct {
	Reachable    bool   `json:"reachable"`
	CredentialID *int64 `json:"credential_id,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

// handleTestReachability answers whether a stored credential opens the
// device's API, optionally through a profile's tunnel. Unreachable is a
// 200 with reachable=false; only setup failures are errors.
func (s *Server) handleTestReachability(w http.ResponseWriter, r *http.Request, tenant string) {
	var req reachabilityRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.IP == "" {
		s.writeDetail(w, http.StatusBadRequest, "ip_address is required")
		return
	}
	if req.MaestroID != nil {
		s.writeDetail(w, http.StatusNotImplemented, "maestro relay connection not implemented")
		return
	}
	ctx := r.Context()

	detail := "device unreachable or credentials rejected on the local network"
	if req.VpnProfileID != nil {
		profile, err := s.db.ProfileByID(ctx, tenant, *req.VpnProfileID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		tun, err := s.tunnels.EphemeralUp(ctx, profile.ConfigText)
		if err != nil {
			s.writeDetail(w, http.StatusInternalServerError, "activating VPN: "+err.Error())
			return
		}
		defer tun.Down(context.WithoutCancel(ctx))
		detail = "device unreachable or credentials rejected through the VPN"
	}

	credID, outcome, err := s.runProbe(ctx, tenant, req.IP)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if outcome != probeAccepted {
		s.writeJSON(w, http.StatusOK, reachabilityResult{Reachable: false, Detail: detail})
		return
	}
	s.writeJSON(w, http.StatusOK, reachabilityResult{Reachable: true, CredentialID: &credID})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request, tenant string) {
	var isMaestro *bool
	if raw := r.URL.Query().Get("is_maestro"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeDetail(w, http.StatusBadRequest, "is_maestro must be a boolean")
			return
		}
		isMaestro = &v
	}
	devices, err := s.db.Devices(r.Context(), tenant, isMaestro)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleSearchDevices(w http.ResponseWriter, r *http.Request, tenant string) {
	devices, err := s.db.SearchDevices(r.Context(), tenant, r.URL.Query().Get("search"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handlePromoteDevice(w http.ResponseWriter, r *http.Request, tenant string) {
	if err := s.db.PromoteDevice(r.Context(), tenant, r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "device promoted to maestro"})
}

type associateVPNRequest struct {
	VpnProfileID *int64 `json:"vpn_profile_id"`
}

// handleAssociateVPN binds a device to a VPN profile, or clears the
// binding when vpn_profile_id is null.
func (s *Server) handleAssociateVPN(w http.ResponseWriter, r *http.Request, tenant string) {
	var req associateVPNRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	if req.VpnProfileID != nil {
		if _, err := s.db.ProfileByID(ctx, tenant, *req.VpnProfileID); err != nil {
			s.storeError(w, err)
			return
		}
	}
	if err := s.db.AssociateVPN(ctx, tenant, r.PathValue("id"), req.VpnProfileID); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "VPN association updated"})
}

// handleDeleteDevice stops the device's sensor workers before removing
// it; monitors and sensors go with it via cascading deletes.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request, tenant string) {
	ctx := r.Context()
	id := r.PathValue("id")
	sensorIDs, err := s.db.SensorIDsForDevice(ctx, tenant, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	for _, sensorID := range sensorIDs {
		s.workers.Stop(sensorID)
		s.alerts.ForgetSensor(sensorID)
	}
	if err := s.db.DeleteDevice(ctx, tenant, id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
