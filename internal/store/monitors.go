package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateMonitor attaches a monitor to one of the tenant's devices. A device
// carries at most one monitor; a second attempt yields ErrConflict.
func (s *Store) CreateMonitor(ctx context.Context, owner, deviceID string) (Monitor, error) {
	if _, err := s.DeviceByID(ctx, owner, deviceID); err != nil {
		return Monitor{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO monitors (owner_id, device_id) VALUES (?, ?)`, owner, deviceID)
	if err != nil {
		if isConstraintViolation(err) {
			return Monitor{}, fmt.Errorf("device %s already monitored: %w", deviceID, ErrConflict)
		}
		return Monitor{}, fmt.Errorf("insert monitor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Monitor{}, fmt.Errorf("monitor insert id: %w", err)
	}
	return Monitor{ID: id, OwnerID: owner, DeviceID: deviceID}, nil
}

// MonitorsWithSensors returns the tenant's monitors joined with their device
// fields, each carrying its full sensor list.
func (s *Store) MonitorsWithSensors(ctx context.Context, owner string) ([]MonitorView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.device_id, d.client_name, d.ip_address,
		        d.credential_id, d.maestro_id, d.vpn_profile_id
		   FROM monitors m JOIN devices d ON d.id = m.device_id
		  WHERE m.owner_id = ?
		  ORDER BY d.client_name`, owner)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	views := make([]MonitorView, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var v MonitorView
		if err := rows.Scan(&v.MonitorID, &v.DeviceID, &v.ClientName, &v.IP,
			&v.CredentialID, &v.MaestroID, &v.VpnProfileID); err != nil {
			return nil, fmt.Errorf("scan monitor row: %w", err)
		}
		v.Sensors = make([]Sensor, 0)
		index[v.MonitorID] = len(views)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitor rows: %w", err)
	}
	if len(views) == 0 {
		return views, nil
	}

	srows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, monitor_id, sensor_type, name, config
		   FROM sensors WHERE owner_id = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer srows.Close()

	for srows.Next() {
		var sn Sensor
		if err := srows.Scan(&sn.ID, &sn.OwnerID, &sn.MonitorID, &sn.Kind, &sn.Name, (*[]byte)(&sn.Config)); err != nil {
			return nil, fmt.Errorf("scan sensor row: %w", err)
		}
		if i, ok := index[sn.MonitorID]; ok {
			views[i].Sensors = append(views[i].Sensors, sn)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensor rows: %w", err)
	}
	return views, nil
}

// MonitorByID fetches one monitor of the tenant.
func (s *Store) MonitorByID(ctx context.Context, owner string, id int64) (Monitor, error) {
	var m Monitor
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, device_id FROM monitors WHERE owner_id = ? AND id = ?`,
		owner, id).Scan(&m.ID, &m.OwnerID, &m.DeviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return Monitor{}, fmt.Errorf("monitor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Monitor{}, fmt.Errorf("query monitor %d: %w", id, err)
	}
	return m, nil
}

// DeleteMonitor removes a monitor and, through the cascades, its sensors and
// their samples. Callers stop the affected workers first.
func (s *Store) DeleteMonitor(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM monitors WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete monitor %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("monitor %d: %w", id, ErrNotFound)
	}
	return nil
}

// SensorIDsForMonitor lists the sensor IDs attached to a monitor, for
// stopping workers ahead of a delete.
func (s *Store) SensorIDsForMonitor(ctx context.Context, owner string, monitorID int64) ([]int64, error) {
	return s.sensorIDs(ctx,
		`SELECT id FROM sensors WHERE owner_id = ? AND monitor_id = ?`, owner, monitorID)
}

// SensorIDsForDevice lists the sensor IDs reachable from a device through
// its monitor.
func (s *Store) SensorIDsForDevice(ctx context.Context, owner, deviceID string) ([]int64, error) {
	return s.sensorIDs(ctx,
		`SELECT s.id FROM sensors s JOIN monitors m ON m.id = s.monitor_id
		  WHERE s.owner_id = ? AND m.device_id = ?`, owner, deviceID)
}

func (s *Store) sensorIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sensor ids: %w", err)
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sensor id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensor ids: %w", err)
	}
	return out, nil
}
