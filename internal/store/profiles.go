package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateProfile inserts a VPN profile. A duplicate name within the tenant
// yields ErrConflict; inserting a new default clears the flag on the
// tenant's other profiles in the same transaction.
func (s *Store) CreateProfile(ctx context.Context, p VpnProfile) (VpnProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return VpnProfile{}, fmt.Errorf("begin profile insert: %w", err)
	}
	defer tx.Rollback()

	if p.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE vpn_profiles SET is_default = 0 WHERE owner_id = ?`, p.OwnerID); err != nil {
			return VpnProfile{}, fmt.Errorf("clear default profiles: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO vpn_profiles (owner_id, name, config_data, check_ip, is_default)
		 VALUES (?, ?, ?, ?, ?)`,
		p.OwnerID, p.Name, p.ConfigText, p.CheckIP, p.IsDefault)
	if err != nil {
		if isConstraintViolation(err) {
			return VpnProfile{}, fmt.Errorf("vpn profile %q: %w", p.Name, ErrConflict)
		}
		return VpnProfile{}, fmt.Errorf("insert vpn profile: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return VpnProfile{}, fmt.Errorf("read vpn profile id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return VpnProfile{}, fmt.Errorf("commit profile insert: %w", err)
	}
	return p, nil
}

// Profiles lists a tenant's VPN profiles.
func (s *Store) Profiles(ctx context.Context, owner string) ([]VpnProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, config_data, check_ip, is_default
		   FROM vpn_profiles WHERE owner_id = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list vpn profiles: %w", err)
	}
	defer rows.Close()

	out := make([]VpnProfile, 0)
	for rows.Next() {
		p := VpnProfile{OwnerID: owner}
		if err := rows.Scan(&p.ID, &p.Name, &p.ConfigText, &p.CheckIP, &p.IsDefault); err != nil {
			return nil, fmt.Errorf("scan vpn profile row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vpn profile rows: %w", err)
	}
	return out, nil
}

// ProfileByID fetches one VPN profile of the tenant.
func (s *Store) ProfileByID(ctx context.Context, owner string, id int64) (VpnProfile, error) {
	p := VpnProfile{ID: id, OwnerID: owner}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, config_data, check_ip, is_default
		   FROM vpn_profiles WHERE owner_id = ? AND id = ?`, owner, id).
		Scan(&p.Name, &p.ConfigText, &p.CheckIP, &p.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return VpnProfile{}, fmt.Errorf("vpn profile %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return VpnProfile{}, fmt.Errorf("query vpn profile %d: %w", id, err)
	}
	return p, nil
}

// ProfileByIDAnyOwner fetches a VPN profile without tenant scoping. The
// tunnel manager resolves profiles this way: the profile ID it receives
// already came off a tenant-checked device row.
func (s *Store) ProfileByIDAnyOwner(ctx context.Context, id int64) (VpnProfile, error) {
	p := VpnProfile{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, name, config_data, check_ip, is_default
		   FROM vpn_profiles WHERE id = ?`, id).
		Scan(&p.OwnerID, &p.Name, &p.ConfigText, &p.CheckIP, &p.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return VpnProfile{}, fmt.Errorf("vpn profile %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return VpnProfile{}, fmt.Errorf("query vpn profile %d: %w", id, err)
	}
	return p, nil
}

// DefaultProfile returns the tenant's default profile, if any.
func (s *Store) DefaultProfile(ctx context.Context, owner string) (VpnProfile, bool, error) {
	p := VpnProfile{OwnerID: owner, IsDefault: true}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, config_data, check_ip
		   FROM vpn_profiles WHERE owner_id = ? AND is_default = 1 LIMIT 1`, owner).
		Scan(&p.ID, &p.Name, &p.ConfigText, &p.CheckIP)
	if errors.Is(err, sql.ErrNoRows) {
		return VpnProfile{}, false, nil
	}
	if err != nil {
		return VpnProfile{}, false, fmt.Errorf("query default vpn profile: %w", err)
	}
	return p, true, nil
}

// UpdateProfile applies a partial update. Setting is_default clears the
// flag on the tenant's other profiles in the same transaction.
func (s *Store) UpdateProfile(ctx context.Context, owner string, id int64, upd ProfileUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	if upd.IsDefault != nil && *upd.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE vpn_profiles SET is_default = 0 WHERE owner_id = ?`, owner); err != nil {
			return fmt.Errorf("clear default profiles: %w", err)
		}
	}

	set := ""
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, v)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.ConfigText != nil {
		add("config_data", *upd.ConfigText)
	}
	if upd.CheckIP != nil {
		add("check_ip", *upd.CheckIP)
	}
	if upd.IsDefault != nil {
		add("is_default", *upd.IsDefault)
	}
	if set == "" {
		return tx.Commit()
	}

	args = append(args, owner, id)
	res, err := tx.ExecContext(ctx,
		`UPDATE vpn_profiles SET `+set+` WHERE owner_id = ? AND id = ?`, args...)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("vpn profile rename: %w", ErrConflict)
		}
		return fmt.Errorf("update vpn profile %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vpn profile %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// DeleteProfile removes a profile unless a device still references it, in
// which case the error names the device.
func (s *Store) DeleteProfile(ctx context.Context, owner string, id int64) error {
	var clientName string
	err := s.db.QueryRowContext(ctx,
		`SELECT client_name FROM devices WHERE owner_id = ? AND vpn_profile_id = ? LIMIT 1`,
		owner, id).Scan(&clientName)
	if err == nil {
		return fmt.Errorf("%w: referenced by device %q", ErrProfileInUse, clientName)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check vpn profile references: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM vpn_profiles WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete vpn profile %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("vpn profile %d: %w", id, ErrNotFound)
	}
	return nil
}
