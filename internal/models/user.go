package models

// ProfileVisibility controls who may read a user's profile.
type ProfileVisibility string

const (
	VisibilityPublic       ProfileVisibility = "public"
	VisibilityContactsOnly ProfileVisibility = "contacts_only"
	VisibilityPrivate      ProfileVisibility = "private"
)

// Valid reports whether v is one of the known visibility settings.
func (v ProfileVisibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityContactsOnly, VisibilityPrivate:
		return true
	}
	return false
}

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Username string `json:"username"`

	DisplayName       string            `json:"display_name"`
	Bio               string            `json:"bio"`
	AvatarURL         string            `json:"avatar_url"`
	ProfileVisibility ProfileVisibility `json:"profile_visibility"`
}

// Profile is the projection of a User handed to profile viewers. Email is
// omitted when the viewer is not allowed to see it.
type Profile struct {
	UserID            string            `json:"user_id"`
	UserName          string            `json:"user_name"`
	Email             string            `json:"email,omitempty"`
	DisplayName       string            `json:"display_name"`
	Bio               string            `json:"bio"`
	AvatarURL         string            `json:"avatar_url"`
	ProfileVisibility ProfileVisibility `json:"profile_visibility"`
}

// ToProfile returns the full profile of u, email included.
func (u *User) ToProfile() Profile {
	return Profile{
		UserID:            u.ID,
		UserName:          u.Username,
		Email:             u.Email,
		DisplayName:       u.DisplayName,
		Bio:               u.Bio,
		AvatarURL:         u.AvatarURL,
		ProfileVisibility: u.ProfileVisibility,
	}
}
