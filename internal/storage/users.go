package storage

import (
	"context"
	"fmt"

	"fintrack/internal/core"
)

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, name, currency, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Currency, toMillis(u.CreatedAt))
	if isUniqueConstraintError(err) {
		return fmt.Errorf("create user %s: %w", u.ID, core.ErrConflict)
	}
	if err != nil {
		return persistErr("create user", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var (
		u       core.User
		created int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, name, currency, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Currency, &created)
	if err != nil {
		return core.User{}, persistErr("get user", err)
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// ListUserIDs returns every user id in creation order.
func (r *SQLiteRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, persistErr("list users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("list users", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list users", err)
	}
	return ids, nil
}

const notificationColumns = `id, owner_id, description, transaction_id, read, created_at, updated_at`

func scanNotification(s scanner) (core.Notification, error) {
	var (
		n                core.Notification
		created, updated int64
	)
	if err := s.Scan(&n.ID, &n.OwnerID, &n.Description, &n.TransactionID, &n.Read, &created, &updated); err != nil {
		return core.Notification{}, err
	}
	n.CreatedAt = fromMillis(created)
	n.UpdatedAt = fromMillis(updated)
	return n, nil
}

func (r *SQLiteRepository) InsertNotification(ctx context.Context, n core.Notification) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, n.Description, n.TransactionID, n.Read, toMillis(n.CreatedAt), toMillis(n.UpdatedAt))
	if err != nil {
		return persistErr("insert notification", err)
	}
	return nil
}

func (r *SQLiteRepository) GetNotification(ctx context.Context, ownerID, id string) (core.Notification, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ? AND owner_id = ?`, id, ownerID)
	n, err := scanNotification(row)
	if err != nil {
		return core.Notification{}, persistErr("get notification", err)
	}
	return n, nil
}

var notificationOrder = map[string]string{
	"createdAt": "created_at",
	"read":      "read",
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, ownerID string, f core.NotificationFilter, opts core.ListOptions) ([]core.Notification, error) {
	opts = opts.Normalize()
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE owner_id = ?`
	if f.UnreadOnly {
		query += ` AND read = 0`
	}
	query += orderClause(opts, notificationOrder, "createdAt") + ` LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, ownerID, opts.Limit, opts.Start)
	if err != nil {
		return nil, persistErr("list notifications", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, persistErr("list notifications", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list notifications", err)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveNotification(ctx context.Context, n core.Notification) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		n.Read, toMillis(n.UpdatedAt), n.ID, n.OwnerID)
	if err != nil {
		return persistErr("save notification", err)
	}
	return expectOne(res, "save notification", core.ErrNotFound)
}

func (r *SQLiteRepository) DeleteNotification(ctx context.Context, ownerID, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return persistErr("delete notification", err)
	}
	return expectOne(res, "delete notification", core.ErrNotFound)
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (id, name) VALUES (?, ?)`, c.ID, c.Name)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: category %q already exists", core.ErrValidation, c.Name)
	}
	if err != nil {
		return persistErr("create category", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var c core.Category
	if err := r.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = ?`, id).Scan(&c.ID, &c.Name); err != nil {
		return core.Category{}, persistErr("get category", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, persistErr("list categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, persistErr("list categories", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list categories", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateTag(ctx context.Context, t core.Tag) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO tags (id, owner_id, name) VALUES (?, ?, ?)`, t.ID, t.OwnerID, t.Name)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: tag %q already exists", core.ErrValidation, t.Name)
	}
	if err != nil {
		return persistErr("create tag", err)
	}
	return nil
}

func (r *SQLiteRepository) GetTag(ctx context.Context, ownerID, id string) (core.Tag, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var t core.Tag
	err := r.db.QueryRowContext(ctx, `SELECT id, owner_id, name FROM tags WHERE id = ? AND owner_id = ?`, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &t.Name)
	if err != nil {
		return core.Tag{}, persistErr("get tag", err)
	}
	return t, nil
}

var tagOrder = map[string]string{
	"name": "name",
}

func (r *SQLiteRepository) ListTags(ctx context.Context, ownerID string, opts core.ListOptions) ([]core.Tag, error) {
	opts = opts.Normalize()
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT id, owner_id, name FROM tags WHERE owner_id = ?`+
		orderClause(opts, tagOrder, "name")+` LIMIT ? OFFSET ?`, ownerID, opts.Limit, opts.Start)
	if err != nil {
		return nil, persistErr("list tags", err)
	}
	defer rows.Close()

	var out []core.Tag
	for rows.Next() {
		var t core.Tag
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name); err != nil {
			return nil, persistErr("list tags", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list tags", err)
	}
	return out, nil
}
