package storage

import (
	"context"
	"database/sql"
	"time"
)

// AcquireJobLock takes the named lock for token unless another holder's
// lease is still live at now.
func (r *SQLiteRepository) AcquireJobLock(ctx context.Context, name, token string, now, expiresAt time.Time) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO job_locks (name, token, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		WHERE job_locks.expires_at <= ?`,
		name, token, toMillis(expiresAt), toMillis(now))
	if err != nil {
		return false, persistErr("acquire job lock", err)
	}
	return affected(res, "acquire job lock")
}

// ExtendJobLock pushes the lease out while token still holds it.
func (r *SQLiteRepository) ExtendJobLock(ctx context.Context, name, token string, expiresAt time.Time) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	res, err := r.db.ExecContext(ctx,
		`UPDATE job_locks SET expires_at = ? WHERE name = ? AND token = ?`,
		toMillis(expiresAt), name, token)
	if err != nil {
		return false, persistErr("extend job lock", err)
	}
	return affected(res, "extend job lock")
}

// ReleaseJobLock drops the lock if token still holds it.
func (r *SQLiteRepository) ReleaseJobLock(ctx context.Context, name, token string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM job_locks WHERE name = ? AND token = ?`, name, token); err != nil {
		return persistErr("release job lock", err)
	}
	return nil
}

func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistErr(op, err)
	}
	return n == 1, nil
}
