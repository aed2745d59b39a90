package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const deviceColumns = `id, owner_id, client_name, ip_address, mac_address, node, status,
	credential_id, is_maestro, maestro_id, vpn_profile_id`

func scanDevice(row interface{ Scan(...any) error }) (Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.OwnerID, &d.ClientName, &d.IP, &d.MAC, &d.Node, &d.Status,
		&d.CredentialID, &d.IsMaestro, &d.MaestroID, &d.VpnProfileID)
	return d, err
}

// CreateDevice inserts a device, assigning a UUID when the ID is empty.
// A duplicate IP address yields ErrConflict (IPs are unique across tenants).
func (s *Store) CreateDevice(ctx context.Context, d Device) (Device, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (id, owner_id, client_name, ip_address, mac_address, node, status,
		                      credential_id, is_maestro, maestro_id, vpn_profile_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.ClientName, d.IP, d.MAC, d.Node, d.Status,
		d.CredentialID, d.IsMaestro, d.MaestroID, d.VpnProfileID)
	if err != nil {
		if isConstraintViolation(err) {
			return Device{}, fmt.Errorf("device with IP %s: %w", d.IP, ErrConflict)
		}
		return Device{}, fmt.Errorf("insert device: %w", err)
	}
	return d, nil
}

// Devices lists a tenant's devices, optionally filtered by maestro flag.
func (s *Store) Devices(ctx context.Context, owner string, isMaestro *bool) ([]Device, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices WHERE owner_id = ?`
	args := []any{owner}
	if isMaestro != nil {
		q += ` AND is_maestro = ?`
		args = append(args, *isMaestro)
	}
	q += ` ORDER BY client_name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	out := make([]Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}
	return out, nil
}

// SearchDevices matches a tenant's devices by name or IP substring.
// An empty term matches nothing.
func (s *Store) SearchDevices(ctx context.Context, owner, term string) ([]Device, error) {
	if term == "" {
		return []Device{}, nil
	}
	like := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices
		  WHERE owner_id = ? AND (client_name LIKE ? OR ip_address LIKE ?)
		  ORDER BY client_name`, owner, like, like)
	if err != nil {
		return nil, fmt.Errorf("search devices: %w", err)
	}
	defer rows.Close()

	out := make([]Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}
	return out, nil
}

// DeviceByID fetches one device of the tenant.
func (s *Store) DeviceByID(ctx context.Context, owner, id string) (Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner_id = ? AND id = ?`, owner, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Device{}, fmt.Errorf("query device %s: %w", id, err)
	}
	return d, nil
}

// PromoteDevice marks a device as maestro and detaches it from any maestro
// of its own.
func (s *Store) PromoteDevice(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET is_maestro = 1, maestro_id = NULL WHERE owner_id = ? AND id = ?`,
		owner, id)
	if err != nil {
		return fmt.Errorf("promote device %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return nil
}

// AssociateVPN points a device at a VPN profile (nil clears it).
func (s *Store) AssociateVPN(ctx context.Context, owner, id string, profileID *int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET vpn_profile_id = ? WHERE owner_id = ? AND id = ?`,
		profileID, owner, id)
	if err != nil {
		return fmt.Errorf("associate vpn on device %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDevice removes a device; its monitor, sensors and samples go with
// it via the schema's cascades. Callers stop the affected workers first.
func (s *Store) DeleteDevice(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM devices WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete device %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return nil
}
