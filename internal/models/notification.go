package models

import "time"

// Notification tells a user that someone acted on one of their contacts.
type Notification struct {
	ID        int64         `json:"id"`
	UserID    string        `json:"user_id"`
	Type      string        `json:"type"`
	ContactID int64         `json:"contact_id"`
	ActorID   string        `json:"actor_id"`
	Status    ContactStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
