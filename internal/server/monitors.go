package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vatojuan/MonitorNetwork/internal/store"
	"github.com/vatojuan/MonitorNetwork/pkg/event"
)

type createMonitorRequest struct {
	DeviceID string `json:"device_id"`
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request, tenant string) {
	var req createMonitorRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		s.writeDetail(w, http.StatusBadRequest, "device_id is required")
		return
	}
	monitor, err := s.db.CreateMonitor(r.Context(), tenant, req.DeviceID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, monitor)
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request, tenant string) {
	monitors, err := s.db.MonitorsWithSensors(r.Context(), tenant)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, monitors)
}

func (s *Server) handleDeleteMonitor(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sensorIDs, err := s.db.SensorIDsForMonitor(ctx, tenant, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	for _, sensorID := range sensorIDs {
		s.workers.Stop(sensorID)
		s.alerts.ForgetSensor(sensorID)
	}
	if err := s.db.DeleteMonitor(ctx, tenant, id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createSensorRequest struct {
	MonitorID int64           `json:"monitor_id"`
	Kind      string          `json:"sensor_type"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config"`
}

// handleCreateSensor persists the sensor and launches its worker. A
// worker that fails to start is only logged; the sensor row exists and
// a later restart can pick it up.
func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request, tenant string) {
	var req createSensorRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.MonitorID == 0 || req.Name == "" || req.Kind == "" {
		s.writeDetail(w, http.StatusBadRequest, "monitor_id, name and sensor_type are required")
		return
	}
	ctx := r.Context()
	sensor, err := s.db.CreateSensor(ctx, tenant, req.MonitorID, req.Kind, req.Name, req.Config)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.workers.Launch(ctx, sensor.ID); err != nil {
		s.logger.Warn("starting sensor worker", "sensor_id", sensor.ID, "error", err)
	}
	s.writeJSON(w, http.StatusCreated, sensor)
}

type updateSensorRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

// handleUpdateSensor rewrites name and config, then bounces the worker
// so the new interval and thresholds take effect.
func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req updateSensorRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}
	ctx := r.Context()
	sensor, err := s.db.UpdateSensor(ctx, tenant, id, req.Name, req.Config)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.workers.Restart(ctx, sensor.ID); err != nil {
		s.logger.Warn("restarting sensor worker", "sensor_id", sensor.ID, "error", err)
	}
	s.writeJSON(w, http.StatusOK, sensor)
}

func (s *Server) handleRestartSensor(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := s.db.SensorByID(ctx, tenant, id); err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.workers.Restart(ctx, id); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "restarted"})
}

func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	// Delete first: it proves the sensor belongs to this tenant before
	// any worker is touched.
	if err := s.db.DeleteSensor(r.Context(), tenant, id); err != nil {
		s.storeError(w, err)
		return
	}
	s.workers.Stop(id)
	s.alerts.ForgetSensor(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSensorDetails(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.db.SensorDetail(r.Context(), tenant, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// handleSensorHistoryRange returns the stored samples between two
// RFC 3339 instants, oldest first. The sample shape follows the sensor
// kind; kinds without a sample table answer an empty list.
func (s *Server) handleSensorHistoryRange(w http.ResponseWriter, r *http.Request, tenant string) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		s.writeDetail(w, http.StatusBadRequest, "invalid start timestamp; RFC 3339 expected")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		s.writeDetail(w, http.StatusBadRequest, "invalid end timestamp; RFC 3339 expected")
		return
	}
	ctx := r.Context()
	sensor, err := s.db.SensorByID(ctx, tenant, id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	from, to := event.FormatTimestamp(start), event.FormatTimestamp(end)
	switch sensor.Kind {
	case store.KindEthernet:
		samples, err := s.db.EthernetSamplesRange(ctx, id, from, to)
		if err != nil {
			s.storeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, samples)
	case store.KindPing:
		samples, err := s.db.PingSamplesRange(ctx, id, from, to)
		if err != nil {
			s.storeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, samples)
	default:
		s.writeJSON(w, http.StatusOK, []any{})
	}
}
