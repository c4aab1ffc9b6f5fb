package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/mychat/internal/models"
)

// UpdateUserProfile persists the editable profile fields of u.
func (p *Postgres) UpdateUserProfile(ctx context.Context, u *models.User) error {
	q := `UPDATE users SET display_name = $1, bio = $2, profile_visibility = $3 WHERE id = $4`
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, e := tx.Exec(ctx, q, u.DisplayName, u.Bio, u.ProfileVisibility, u.ID)
		if e != nil {
			return e
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", translate(err))
	}
	return nil
}

// SetAvatarURL stores url as the user's avatar and returns the previous one.
func (p *Postgres) SetAvatarURL(ctx context.Context, userID, url string) (string, error) {
	var previous string
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if e := tx.QueryRow(ctx, `SELECT avatar_url FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&previous); e != nil {
			return e
		}
		_, e := tx.Exec(ctx, `UPDATE users SET avatar_url = $1 WHERE id = $2`, url, userID)
		return e
	})
	if err != nil {
		return "", fmt.Errorf("failed to set avatar url: %w", translate(err))
	}
	return previous, nil
}
