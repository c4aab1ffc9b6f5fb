package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/mychat/internal/auth"
	"github.com/jason-s-yu/mychat/internal/models"
)

const userColumns = `id, email, password, username, display_name, bio, avatar_url, profile_visibility`

// prepareUser assigns an id and default visibility and hashes a non-empty
// password in place.
func prepareUser(user *models.User) error {
	if user.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id.String()
	}
	if user.ProfileVisibility == "" {
		user.ProfileVisibility = models.VisibilityPublic
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Password != "" {
		hash, err := auth.CreateHash(user.Password, auth.Params)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hash
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	if err := prepareUser(user); err != nil {
		return err
	}

	q := `INSERT INTO users (` + userColumns + `)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username,
			user.DisplayName, user.Bio, user.AvatarURL, user.ProfileVisibility,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", translate(err))
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.Username,
		&u.DisplayName, &u.Bio, &u.AvatarURL, &u.ProfileVisibility,
	)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(p.pool.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(email))))
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(p.pool.QueryRow(ctx, q, id))
}

// GetUsersByIDs returns the users found among ids, keyed by id. Missing ids
// are simply absent from the map.
func (p *Postgres) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := p.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// SearchUsers matches query case-insensitively as a substring of username,
// display name, or email, skipping excludeID, in creation order.
func (p *Postgres) SearchUsers(ctx context.Context, excludeID, query string, limit int) ([]models.User, error) {
	q := `
	SELECT ` + userColumns + `
	FROM users
	WHERE id <> $1
	  AND (username ILIKE $2 ESCAPE '\' OR display_name ILIKE $2 ESCAPE '\' OR email ILIKE $2 ESCAPE '\')
	ORDER BY created_at, id
	LIMIT $3
	`
	rows, err := p.pool.Query(ctx, q, excludeID, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
