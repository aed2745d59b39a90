package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertPingSample appends one ping measurement for a sensor.
func (s *Store) InsertPingSample(ctx context.Context, sensorID int64, status string, latencyMS *float64, ts string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ping_results (sensor_id, timestamp, status, latency_ms)
		 VALUES (?, ?, ?, ?)`, sensorID, ts, status, latencyMS)
	if err != nil {
		return fmt.Errorf("insert ping sample for sensor %d: %w", sensorID, err)
	}
	return nil
}

// InsertEthernetSample appends one ethernet measurement for a sensor.
func (s *Store) InsertEthernetSample(ctx context.Context, sensorID int64, status, speed, rx, tx, ts string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ethernet_results (sensor_id, timestamp, status, speed, rx_bitrate, tx_bitrate)
		 VALUES (?, ?, ?, ?, ?, ?)`, sensorID, ts, status, speed, rx, tx)
	if err != nil {
		return fmt.Errorf("insert ethernet sample for sensor %d: %w", sensorID, err)
	}
	return nil
}

// LatestPingSample returns the newest ping measurement for a sensor, or
// ok=false when none exists yet.
func (s *Store) LatestPingSample(ctx context.Context, sensorID int64) (PingSample, bool, error) {
	var p PingSample
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sensor_id, timestamp, status, latency_ms
		   FROM ping_results WHERE sensor_id = ? ORDER BY id DESC LIMIT 1`, sensorID).
		Scan(&p.ID, &p.SensorID, &p.Timestamp, &p.Status, &p.LatencyMS)
	if errors.Is(err, sql.ErrNoRows) {
		return PingSample{}, false, nil
	}
	if err != nil {
		return PingSample{}, false, fmt.Errorf("query latest ping sample for sensor %d: %w", sensorID, err)
	}
	return p, true, nil
}

// LatestEthernetSample returns the newest ethernet measurement for a
// sensor, or ok=false when none exists yet.
func (s *Store) LatestEthernetSample(ctx context.Context, sensorID int64) (EthernetSample, bool, error) {
	var e EthernetSample
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sensor_id, timestamp, status, speed, rx_bitrate, tx_bitrate
		   FROM ethernet_results WHERE sensor_id = ? ORDER BY id DESC LIMIT 1`, sensorID).
		Scan(&e.ID, &e.SensorID, &e.Timestamp, &e.Status, &e.Speed, &e.RxBitrate, &e.TxBitrate)
	if errors.Is(err, sql.ErrNoRows) {
		return EthernetSample{}, false, nil
	}
	if err != nil {
		return EthernetSample{}, false, fmt.Errorf("query latest ethernet sample for sensor %d: %w", sensorID, err)
	}
	return e, true, nil
}

// PingSamplesRange returns ping measurements within [from, to], oldest
// first. Timestamps compare lexicographically in the stored layout.
func (s *Store) PingSamplesRange(ctx context.Context, sensorID int64, from, to string) ([]PingSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sensor_id, timestamp, status, latency_ms
		   FROM ping_results
		  WHERE sensor_id = ? AND timestamp BETWEEN ? AND ?
		  ORDER BY id`, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query ping samples for sensor %d: %w", sensorID, err)
	}
	defer rows.Close()

	out := make([]PingSample, 0)
	for rows.Next() {
		var p PingSample
		if err := rows.Scan(&p.ID, &p.SensorID, &p.Timestamp, &p.Status, &p.LatencyMS); err != nil {
			return nil, fmt.Errorf("scan ping sample: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ping samples: %w", err)
	}
	return out, nil
}

// EthernetSamplesRange returns ethernet measurements within [from, to],
// oldest first.
func (s *Store) EthernetSamplesRange(ctx context.Context, sensorID int64, from, to string) ([]EthernetSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sensor_id, timestamp, status, speed, rx_bitrate, tx_bitrate
		   FROM ethernet_results
		  WHERE sensor_id = ? AND timestamp BETWEEN ? AND ?
		  ORDER BY id`, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query ethernet samples for sensor %d: %w", sensorID, err)
	}
	defer rows.Close()

	out := make([]EthernetSample, 0)
	for rows.Next() {
		var e EthernetSample
		if err := rows.Scan(&e.ID, &e.SensorID, &e.Timestamp, &e.Status, &e.Speed, &e.RxBitrate, &e.TxBitrate); err != nil {
			return nil, fmt.Errorf("scan ethernet sample: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ethernet samples: %w", err)
	}
	return out, nil
}
