package models

import "time"

type ContactStatus string

const (
	ContactPending  ContactStatus = "pending"
	ContactAccepted ContactStatus = "accepted"
	ContactRejected ContactStatus = "rejected"
	ContactBlocked  ContactStatus = "blocked"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactPending, ContactAccepted, ContactRejected, ContactBlocked:
		return true
	}
	return false
}

// Contact is a row of the contacts table. The pair is stored in the order the
// request was made; at most one row exists for any two users.
type Contact struct {
	ID          int64         `json:"id"`
	RequesterID string        `json:"requester_id"`
	ReceiverID  string        `json:"receiver_id"`
	Status      ContactStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Involves reports whether userID is either party of the contact.
func (c *Contact) Involves(userID string) bool {
	return c.RequesterID == userID || c.ReceiverID == userID
}

// Other returns the id of the party that is not userID.
func (c *Contact) Other(userID string) string {
	if c.RequesterID == userID {
		return c.ReceiverID
	}
	return c.RequesterID
}

// ContactView is a contact as seen by one of its parties: the other party's
// public fields plus the relationship state.
type ContactView struct {
	ID          int64         `json:"id"`
	UserID      string        `json:"user_id"`
	UserName    string        `json:"user_name"`
	DisplayName string        `json:"display_name"`
	Email       string        `json:"email"`
	AvatarURL   string        `json:"avatar_url"`
	Status      ContactStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	IsRequester bool          `json:"is_requester"`
}

// ContactDetail carries both parties' public fields.
type ContactDetail struct {
	ID                   int64         `json:"id"`
	RequesterID          string        `json:"requester_id"`
	RequesterDisplayName string        `json:"requester_display_name"`
	RequesterUserName    string        `json:"requester_user_name"`
	RequesterAvatarURL   string        `json:"requester_avatar_url"`
	ReceiverID           string        `json:"receiver_id"`
	ReceiverDisplayName  string        `json:"receiver_display_name"`
	ReceiverUserName     string        `json:"receiver_user_name"`
	ReceiverAvatarURL    string        `json:"receiver_avatar_url"`
	Status               ContactStatus `json:"status"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// SearchResult is a user matched by a contact search, annotated with the
// relationship to the searcher when one exists.
type SearchResult struct {
	UserID        string         `json:"user_id"`
	UserName      string         `json:"user_name"`
	DisplayName   string         `json:"display_name"`
	Email         string         `json:"email"`
	AvatarURL     string         `json:"avatar_url"`
	ContactStatus *ContactStatus `json:"contact_status"`
	ContactID     *int64         `json:"contact_id"`
}
