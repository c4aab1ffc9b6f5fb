package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/mychat/internal/models"
)

const contactColumns = `id, requester_id, receiver_id, status, created_at, updated_at`

func scanContact(row pgx.Row) (*models.Contact, error) {
	var c models.Contact
	if err := row.Scan(&c.ID, &c.RequesterID, &c.ReceiverID, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func collectContacts(rows pgx.Rows) ([]models.Contact, error) {
	defer rows.Close()
	var cs []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		cs = append(cs, *c)
	}
	return cs, rows.Err()
}

// InsertContact stores c and fills in its id and timestamps. A row already
// present for the pair in either order yields ErrDuplicate.
func (p *Postgres) InsertContact(ctx context.Context, c *models.Contact) error {
	q := `
		INSERT INTO contacts (requester_id, receiver_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, c.RequesterID, c.ReceiverID, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", translate(err))
	}
	return nil
}

func (p *Postgres) GetContact(ctx context.Context, id int64) (*models.Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return scanContact(p.pool.QueryRow(ctx, q, id))
}

// FindContactBetween returns the row for the pair {a, b} regardless of which
// of them sent the request.
func (p *Postgres) FindContactBetween(ctx context.Context, a, b string) (*models.Contact, error) {
	q := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE (requester_id = $1 AND receiver_id = $2)
		   OR (requester_id = $2 AND receiver_id = $1)
	`
	return scanContact(p.pool.QueryRow(ctx, q, a, b))
}

// ListContactsForUser returns every relationship involving userID, most
// recently updated first.
func (p *Postgres) ListContactsForUser(ctx context.Context, userID string) ([]models.Contact, error) {
	q := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE requester_id = $1 OR receiver_id = $1
		ORDER BY updated_at DESC, id DESC
	`
	rows, err := p.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

// ListContactsWith returns the relationships between userID and any of others.
func (p *Postgres) ListContactsWith(ctx context.Context, userID string, others []string) ([]models.Contact, error) {
	if len(others) == 0 {
		return nil, nil
	}
	q := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE (requester_id = $1 AND receiver_id = ANY($2))
		   OR (receiver_id = $1 AND requester_id = ANY($2))
	`
	rows, err := p.pool.Query(ctx, q, userID, others)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

func (p *Postgres) UpdateContactStatus(ctx context.Context, id int64, status models.ContactStatus, at time.Time) error {
	q := `UPDATE contacts SET status = $1, updated_at = $2 WHERE id = $3`
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, q, status, at, id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update contact %d: %w", id, translate(err))
	}
	return nil
}

// DeleteContact hard deletes the row.
func (p *Postgres) DeleteContact(ctx context.Context, id int64) error {
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete contact %d: %w", id, translate(err))
	}
	return nil
}

// AcceptedContactExists reports whether a and b share an accepted relationship.
func (p *Postgres) AcceptedContactExists(ctx context.Context, a, b string) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM contacts
			WHERE ((requester_id = $1 AND receiver_id = $2)
			    OR (requester_id = $2 AND receiver_id = $1))
			  AND status = 'accepted'
		)
	`
	var ok bool
	if err := p.pool.QueryRow(ctx, q, a, b).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
