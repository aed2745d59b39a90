package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// CreateSensor adds a sensor under one of the tenant's monitors.
func (s *Store) CreateSensor(ctx context.Context, owner string, monitorID int64, kind, name string, config json.RawMessage) (Sensor, error) {
	if _, err := s.MonitorByID(ctx, owner, monitorID); err != nil {
		return Sensor{}, err
	}
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sensors (owner_id, monitor_id, sensor_type, name, config)
		 VALUES (?, ?, ?, ?, ?)`, owner, monitorID, kind, name, string(config))
	if err != nil {
		return Sensor{}, fmt.Errorf("insert sensor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Sensor{}, fmt.Errorf("sensor insert id: %w", err)
	}
	return Sensor{ID: id, OwnerID: owner, MonitorID: monitorID, Kind: kind, Name: name, Config: config}, nil
}

// UpdateSensor replaces a sensor's name and config.
func (s *Store) UpdateSensor(ctx context.Context, owner string, id int64, name string, config json.RawMessage) (Sensor, error) {
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sensors SET name = ?, config = ? WHERE owner_id = ? AND id = ?`,
		name, string(config), owner, id)
	if err != nil {
		return Sensor{}, fmt.Errorf("update sensor %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Sensor{}, fmt.Errorf("sensor %d: %w", id, ErrNotFound)
	}
	return s.SensorByID(ctx, owner, id)
}

// DeleteSensor removes a sensor and its samples. The caller stops the
// sensor's worker first.
func (s *Store) DeleteSensor(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sensors WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete sensor %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sensor %d: %w", id, ErrNotFound)
	}
	return nil
}

// SensorByID fetches one sensor of the tenant.
func (s *Store) SensorByID(ctx context.Context, owner string, id int64) (Sensor, error) {
	var sn Sensor
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, monitor_id, sensor_type, name, config
		   FROM sensors WHERE owner_id = ? AND id = ?`, owner, id).
		Scan(&sn.ID, &sn.OwnerID, &sn.MonitorID, &sn.Kind, &sn.Name, (*[]byte)(&sn.Config))
	if errors.Is(err, sql.ErrNoRows) {
		return Sensor{}, fmt.Errorf("sensor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Sensor{}, fmt.Errorf("query sensor %d: %w", id, err)
	}
	return sn, nil
}

// Sensors lists all of a tenant's sensors.
func (s *Store) Sensors(ctx context.Context, owner string) ([]Sensor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, monitor_id, sensor_type, name, config
		   FROM sensors WHERE owner_id = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer rows.Close()

	out := make([]Sensor, 0)
	for rows.Next() {
		var sn Sensor
		if err := rows.Scan(&sn.ID, &sn.OwnerID, &sn.MonitorID, &sn.Kind, &sn.Name, (*[]byte)(&sn.Config)); err != nil {
			return nil, fmt.Errorf("scan sensor row: %w", err)
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensor rows: %w", err)
	}
	return out, nil
}

// AllSensorIDs lists every sensor across tenants, for launching workers at
// startup.
func (s *Store) AllSensorIDs(ctx context.Context) ([]int64, error) {
	return s.sensorIDs(ctx, `SELECT id FROM sensors ORDER BY id`)
}

// SensorRuntime loads the sensor together with its monitored device,
// unscoped by tenant: the scheduler resolves workers by sensor ID alone.
func (s *Store) SensorRuntime(ctx context.Context, id int64) (SensorRuntime, error) {
	var (
		sn Sensor
		d  Device
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.owner_id, s.monitor_id, s.sensor_type, s.name, s.config,
		        d.id, d.owner_id, d.client_name, d.ip_address, d.mac_address, d.node, d.status,
		        d.credential_id, d.is_maestro, d.maestro_id, d.vpn_profile_id
		   FROM sensors s
		   JOIN monitors m ON m.id = s.monitor_id
		   JOIN devices d ON d.id = m.device_id
		  WHERE s.id = ?`, id).
		Scan(&sn.ID, &sn.OwnerID, &sn.MonitorID, &sn.Kind, &sn.Name, (*[]byte)(&sn.Config),
			&d.ID, &d.OwnerID, &d.ClientName, &d.IP, &d.MAC, &d.Node, &d.Status,
			&d.CredentialID, &d.IsMaestro, &d.MaestroID, &d.VpnProfileID)
	if errors.Is(err, sql.ErrNoRows) {
		return SensorRuntime{}, fmt.Errorf("sensor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return SensorRuntime{}, fmt.Errorf("query sensor runtime %d: %w", id, err)
	}
	return SensorRuntime{Sensor: sn, Device: d}, nil
}

// SensorDetail loads a tenant's sensor with its device name and address for
// presentation.
func (s *Store) SensorDetail(ctx context.Context, owner string, id int64) (SensorDetail, error) {
	var det SensorDetail
	err := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.owner_id, s.monitor_id, s.sensor_type, s.name, s.config,
		        d.client_name, d.ip_address
		   FROM sensors s
		   JOIN monitors m ON m.id = s.monitor_id
		   JOIN devices d ON d.id = m.device_id
		  WHERE s.owner_id = ? AND s.id = ?`, owner, id).
		Scan(&det.ID, &det.OwnerID, &det.MonitorID, &det.Kind, &det.Name, (*[]byte)(&det.Config),
			&det.ClientName, &det.IP)
	if errors.Is(err, sql.ErrNoRows) {
		return SensorDetail{}, fmt.Errorf("sensor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return SensorDetail{}, fmt.Errorf("query sensor detail %d: %w", id, err)
	}
	return det, nil
}
