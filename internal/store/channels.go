package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateChannel registers a notification channel for the tenant. Names are
// unique per tenant.
func (s *Store) CreateChannel(ctx context.Context, c Channel) (Channel, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_channels (owner_id, name, type, config)
		 VALUES (?, ?, ?, ?)`, c.OwnerID, c.Name, c.Kind, string(c.Config))
	if err != nil {
		if isConstraintViolation(err) {
			return Channel{}, fmt.Errorf("channel %q: %w", c.Name, ErrConflict)
		}
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return Channel{}, fmt.Errorf("channel insert id: %w", err)
	}
	return c, nil
}

// Channels lists the tenant's notification channels.
func (s *Store) Channels(ctx context.Context, owner string) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, type, config
		   FROM notification_channels WHERE owner_id = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	out := make([]Channel, 0)
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind, (*[]byte)(&c.Config)); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel rows: %w", err)
	}
	return out, nil
}

// ChannelByIDAnyOwner fetches a channel regardless of tenant. The notifier
// compares the channel's owner against the sensor's before sending.
func (s *Store) ChannelByIDAnyOwner(ctx context.Context, id int64) (Channel, error) {
	var c Channel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, type, config
		   FROM notification_channels WHERE id = ?`, id).
		Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind, (*[]byte)(&c.Config))
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{}, fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Channel{}, fmt.Errorf("query channel %d: %w", id, err)
	}
	return c, nil
}

// DeleteChannel removes a notification channel and its alert history rows.
func (s *Store) DeleteChannel(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_channels WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete channel %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	return nil
}

// InsertAlert records a delivered alert.
func (s *Store) InsertAlert(ctx context.Context, sensorID, channelID int64, details, ts string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_history (sensor_id, channel_id, timestamp, details)
		 VALUES (?, ?, ?, ?)`, sensorID, channelID, ts, details)
	if err != nil {
		return fmt.Errorf("insert alert for sensor %d: %w", sensorID, err)
	}
	return nil
}

// AlertHistory returns the tenant's hundred most recent alerts, newest
// first, joined with sensor and channel names.
func (s *Store) AlertHistory(ctx context.Context, owner string) ([]AlertView, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.timestamp, a.details, s.name, c.name
		   FROM alert_history a
		   JOIN sensors s ON s.id = a.sensor_id
		   JOIN notification_channels c ON c.id = a.channel_id
		  WHERE s.owner_id = ?
		  ORDER BY a.id DESC LIMIT 100`, owner)
	if err != nil {
		return nil, fmt.Errorf("list alert history: %w", err)
	}
	defer rows.Close()

	out := make([]AlertView, 0)
	for rows.Next() {
		var v AlertView
		if err := rows.Scan(&v.ID, &v.Timestamp, &v.Details, &v.SensorName, &v.ChannelName); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return out, nil
}
