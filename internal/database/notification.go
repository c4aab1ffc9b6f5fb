package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/mychat/internal/models"
)

// InsertNotifications writes the batch in a single transaction. Assigned ids
// are set on the slice elements.
func (p *Postgres) InsertNotifications(ctx context.Context, batch []models.Notification) error {
	if len(batch) == 0 {
		return nil
	}
	q := `INSERT INTO notifications (user_id, type, contact_id, actor_id, status, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6)
	      RETURNING id`
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for i := range batch {
			n := &batch[i]
			if e := tx.QueryRow(ctx, q, n.UserID, n.Type, n.ContactID, n.ActorID, n.Status, n.CreatedAt).Scan(&n.ID); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert notifications: %w", translate(err))
	}
	return nil
}

// ListNotifications returns the newest notifications for userID.
func (p *Postgres) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	q := `SELECT id, user_id, type, contact_id, actor_id, status, created_at
	      FROM notifications
	      WHERE user_id = $1
	      ORDER BY created_at DESC, id DESC
	      LIMIT $2`
	rows, err := p.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", translate(err))
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.ContactID, &n.ActorID, &n.Status, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
