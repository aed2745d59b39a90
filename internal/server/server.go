// Package server implements the Monitor360 REST API: device onboarding,
// monitor and sensor CRUD, notification channels, VPN profile management
// and the WebSocket attach point for live sample streaming. Every /api
// route authenticates a tenant token and scopes its reads and writes to
// that tenant.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/auth"
	"github.com/vatojuan/MonitorNetwork/internal/mikrotik"
	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/internal/vpn"
)

const defaultReachTimeout = 1500 * time.Millisecond

// Options carries the collaborators an API server needs. Logger, DB and
// AuthSecret are mandatory; the rest may be nil only in tests that never
// touch the routes using them.
type Options struct {
	Logger       *slog.Logger
	DB           *store.Store
	Workers      Workers
	Tunnels      Tunnels
	Prober       Prober
	Alerts       AlertState
	Streams      Streams
	WG           vpn.Commander
	AuthSecret   string
	TelegramAPI  string
	ReachTimeout time.Duration
}

// Server holds the handler state. Build one with New and mount Handler
// on an http.Server.
type Server struct {
	logger       *slog.Logger
	db           *store.Store
	workers      Workers
	tunnels      Tunnels
	prober       Prober
	alerts       AlertState
	streams      Streams
	wg           vpn.Commander
	secret       string
	telegramAPI  string
	reachTimeout time.Duration
	client       *http.Client

	// reach answers the TCP precheck against the RouterOS API port.
	// Tests point it at their own listener.
	reach func(ctx context.Context, ip string, timeout time.Duration) bool
}

func New(opts Options) *Server {
	reachTimeout := opts.ReachTimeout
	if reachTimeout <= 0 {
		reachTimeout = defaultReachTimeout
	}
	return &Server{
		logger:       opts.Logger.With("component", "api"),
		db:           opts.DB,
		workers:      opts.Workers,
		tunnels:      opts.Tunnels,
		prober:       opts.Prober,
		alerts:       opts.Alerts,
		streams:      opts.Streams,
		wg:           opts.WG,
		secret:       opts.AuthSecret,
		telegramAPI:  strings.TrimRight(opts.TelegramAPI, "/"),
		reachTimeout: reachTimeout,
		client:       &http.Client{Timeout: 10 * time.Second},
		reach:        mikrotik.Reachable,
	}
}

// Handler returns the full route table wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("POST /api/devices/manual", s.withTenant(s.handleManualDevice))
	mux.HandleFunc("GET /api/devices", s.withTenant(s.handleListDevices))
	mux.HandleFunc("GET /api/devices/search", s.withTenant(s.handleSearchDevices))
	mux.HandleFunc("PUT /api/devices/{id}/promote", s.withTenant(s.handlePromoteDevice))
	mux.HandleFunc("PUT /api/devices/{id}/associate_vpn", s.withTenant(s.handleAssociateVPN))
	mux.HandleFunc("DELETE /api/devices/{id}", s.withTenant(s.handleDeleteDevice))
	mux.HandleFunc("POST /api/devices/test_reachability", s.withTenant(s.handleTestReachability))

	mux.HandleFunc("POST /api/credentials", s.withTenant(s.handleCreateCredential))
	mux.HandleFunc("GET /api/credentials", s.withTenant(s.handleListCredentials))
	mux.HandleFunc("DELETE /api/credentials/{id}", s.withTenant(s.handleDeleteCredential))

	mux.HandleFunc("POST /api/monitors", s.withTenant(s.handleCreateMonitor))
	mux.HandleFunc("GET /api/monitors", s.withTenant(s.handleListMonitors))
	mux.HandleFunc("DELETE /api/monitors/{id}", s.withTenant(s.handleDeleteMonitor))

	mux.HandleFunc("POST /api/sensors", s.withTenant(s.handleCreateSensor))
	mux.HandleFunc("PUT /api/sensors/{id}", s.withTenant(s.handleUpdateSensor))
	mux.HandleFunc("POST /api/sensors/{id}/restart", s.withTenant(s.handleRestartSensor))
	mux.HandleFunc("DELETE /api/sensors/{id}", s.withTenant(s.handleDeleteSensor))
	mux.HandleFunc("GET /api/sensors/{id}/details", s.withTenant(s.handleSensorDetails))
	mux.HandleFunc("GET /api/sensors/{id}/history_range", s.withTenant(s.handleSensorHistoryRange))

	mux.HandleFunc("POST /api/channels", s.withTenant(s.handleCreateChannel))
	mux.HandleFunc("GET /api/channels", s.withTenant(s.handleListChannels))
	mux.HandleFunc("DELETE /api/channels/{id}", s.withTenant(s.handleDeleteChannel))
	mux.HandleFunc("POST /api/channels/telegram/get_chats", s.withTenant(s.handleTelegramChats))
	mux.HandleFunc("GET /api/alerts/history", s.withTenant(s.handleAlertHistory))

	mux.HandleFunc("POST /api/vpns", s.withTenant(s.handleCreateProfile))
	mux.HandleFunc("GET /api/vpns", s.withTenant(s.handleListProfiles))
	mux.HandleFunc("PUT /api/vpns/{id}", s.withTenant(s.handleUpdateProfile))
	mux.HandleFunc("DELETE /api/vpns/{id}", s.withTenant(s.handleDeleteProfile))
	mux.HandleFunc("GET /api/_debug/wg", s.withTenant(s.handleDebugWG))

	return cors(mux)
}

// cors answers preflight requests itself and stamps the allow headers on
// everything else. The dashboard is served from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tenantHandler is a request handler that already knows which tenant the
// caller authenticated as.
type tenantHandler func(w http.ResponseWriter, r *http.Request, tenant string)

func (s *Server) withTenant(h tenantHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.authenticate(r)
		if err != nil {
			s.writeDetail(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		h(w, r, tenant)
	}
}

// authenticate extracts the bearer token from the Authorization header,
// falling back to the token query parameter for WebSocket clients that
// cannot set headers.
func (s *Server) authenticate(r *http.Request) (string, error) {
	token := ""
	if header := r.Header.Get("Authorization"); header != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return "", auth.ErrInvalidToken
		}
		token = raw
	} else {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return "", auth.ErrInvalidToken
	}
	return auth.Verify(s.secret, token)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.authenticate(r)
	if err != nil {
		s.writeDetail(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}
	s.streams.ServeWS(w, r, tenant)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("writing response", "error", err)
	}
}

// writeDetail writes the {"detail": ...} error shape the dashboard
// expects on every non-2xx response.
func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

// storeError maps persistence errors onto API statuses: missing rows are
// 404, constraint violations 400, anything else a logged 500.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrProfileInUse):
		s.writeDetail(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store failure", "error", err)
		s.writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return false
	}
	return true
}

// pathID parses the {id} path segment, answering the request itself
// when it is not numeric.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeDetail(w, http.StatusBadRequest, "invalid id in path")
		return 0, false
	}
	return id, true
}
