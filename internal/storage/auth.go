package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// LoginPIN is a stored one-time PIN challenge.
type LoginPIN struct {
	ID        int64
	Email     string
	Hash      string
	ExpiresAt time.Time
	Attempts  int
	Used      bool
}

// EnsureUsers registers the given emails, ignoring ones already present.
func (r *Repository) EnsureUsers(ctx context.Context, emails []string) error {
	for _, e := range emails {
		q := `INSERT INTO users (email, created_at) VALUES (?, ?) ON CONFLICT (email) DO NOTHING`
		if _, err := r.exec(ctx, q, e, r.now().Unix()); err != nil {
			return fmt.Errorf("register user %s: %w", e, err)
		}
	}
	return nil
}

func (r *Repository) UserExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return n > 0, nil
}

// CreatePIN stores a new challenge and invalidates older unused ones.
func (r *Repository) CreatePIN(ctx context.Context, email, hash string, expiresAt time.Time) error {
	if _, err := r.exec(ctx, `UPDATE login_pins SET used = 1 WHERE email = ? AND used = 0`, email); err != nil {
		return fmt.Errorf("invalidate pins: %w", err)
	}
	if _, err := r.insert(ctx, `INSERT INTO login_pins (email, pin_hash, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		email, hash, expiresAt.Unix(), r.now().Unix()); err != nil {
		return fmt.Errorf("create pin: %w", err)
	}
	return nil
}

// ActivePIN returns the latest unused challenge for email.
func (r *Repository) ActivePIN(ctx context.Context, email string) (LoginPIN, error) {
	var (
		p       LoginPIN
		expires int64
		used    int
	)
	err := r.queryRow(ctx, `SELECT id, email, pin_hash, expires_at, attempts, used FROM login_pins
		WHERE email = ? AND used = 0 ORDER BY id DESC LIMIT 1`, email).
		Scan(&p.ID, &p.Email, &p.Hash, &expires, &p.Attempts, &used)
	if isNoRows(err) {
		return LoginPIN{}, fmt.Errorf("pin for %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return LoginPIN{}, fmt.Errorf("get pin: %w", err)
	}
	p.ExpiresAt = time.Unix(expires, 0)
	p.Used = used != 0
	return p, nil
}

// RecordPINFailure increments the attempt counter and burns the PIN once
// maxAttempts is reached.
func (r *Repository) RecordPINFailure(ctx context.Context, id int64, maxAttempts int) error {
	_, err := r.exec(ctx, `UPDATE login_pins
		SET attempts = attempts + 1,
		    used = CASE WHEN attempts + 1 >= ? THEN 1 ELSE used END
		WHERE id = ?`, maxAttempts, id)
	if err != nil {
		return fmt.Errorf("record pin failure: %w", err)
	}
	return nil
}

func (r *Repository) MarkPINUsed(ctx context.Context, id int64) error {
	if _, err := r.exec(ctx, `UPDATE login_pins SET used = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark pin used: %w", err)
	}
	return nil
}

// RevokeSession blacklists a token id until its expiry.
func (r *Repository) RevokeSession(ctx context.Context, tokenID string, expiresAt time.Time) error {
	q := `INSERT INTO revoked_sessions (token_id, expires_at) VALUES (?, ?) ON CONFLICT (token_id) DO NOTHING`
	if _, err := r.exec(ctx, q, tokenID, expiresAt.Unix()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *Repository) IsSessionRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM revoked_sessions WHERE token_id = ?`, tokenID).Scan(&n); err != nil {
		return false, fmt.Errorf("lookup revoked session: %w", err)
	}
	return n > 0, nil
}

// PurgeExpired drops revocations and PINs that can no longer matter.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) error {
	if _, err := r.exec(ctx, `DELETE FROM revoked_sessions WHERE expires_at < ?`, now.Unix()); err != nil {
		return fmt.Errorf("purge revoked sessions: %w", err)
	}
	if _, err := r.exec(ctx, `DELETE FROM login_pins WHERE expires_at < ?`, now.Add(-24*time.Hour).Unix()); err != nil {
		return fmt.Errorf("purge pins: %w", err)
	}
	return nil
}
