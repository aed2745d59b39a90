package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateCredential inserts a credential and returns it with its ID set.
// A duplicate name within the tenant yields ErrConflict.
func (s *Store) CreateCredential(ctx context.Context, c Credential) (Credential, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (owner_id, name, username, password) VALUES (?, ?, ?, ?)`,
		c.OwnerID, c.Name, c.Username, c.Password)
	if err != nil {
		if isConstraintViolation(err) {
			return Credential{}, fmt.Errorf("credential %q: %w", c.Name, ErrConflict)
		}
		return Credential{}, fmt.Errorf("insert credential: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return Credential{}, fmt.Errorf("read credential id: %w", err)
	}
	return c, nil
}

// Credentials lists a tenant's credentials.
func (s *Store) Credentials(ctx context.Context, owner string) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, username, password FROM credentials WHERE owner_id = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	out := make([]Credential, 0)
	for rows.Next() {
		c := Credential{OwnerID: owner}
		if err := rows.Scan(&c.ID, &c.Name, &c.Username, &c.Password); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential rows: %w", err)
	}
	return out, nil
}

// CredentialByID fetches one credential of the tenant.
func (s *Store) CredentialByID(ctx context.Context, owner string, id int64) (Credential, error) {
	c := Credential{ID: id, OwnerID: owner}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, username, password FROM credentials WHERE owner_id = ? AND id = ?`, owner, id).
		Scan(&c.Name, &c.Username, &c.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, fmt.Errorf("credential %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Credential{}, fmt.Errorf("query credential %d: %w", id, err)
	}
	return c, nil
}

// DeleteCredential removes a credential; devices that referenced it keep
// running on pooled sessions until those are invalidated.
func (s *Store) DeleteCredential(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete credential %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("credential %d: %w", id, ErrNotFound)
	}
	return nil
}
