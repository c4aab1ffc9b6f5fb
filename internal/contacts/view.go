package contacts

import "github.com/jason-s-yu/mychat/internal/models"

// viewFor projects c for viewer. other may be nil if the user row is gone.
func viewFor(c *models.Contact, viewerID string, other *models.User) models.ContactView {
	v := models.ContactView{
		ID:          c.ID,
		UserID:      c.Other(viewerID),
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		IsRequester: c.RequesterID == viewerID,
	}
	if other != nil {
		v.UserName = other.Username
		v.DisplayName = other.DisplayName
		v.Email = other.Email
		v.AvatarURL = other.AvatarURL
	}
	return v
}

func detailFor(c *models.Contact, requester, receiver *models.User) models.ContactDetail {
	d := models.ContactDetail{
		ID:          c.ID,
		RequesterID: c.RequesterID,
		ReceiverID:  c.ReceiverID,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if requester != nil {
		d.RequesterDisplayName = requester.DisplayName
		d.RequesterUserName = requester.Username
		d.RequesterAvatarURL = requester.AvatarURL
	}
	if receiver != nil {
		d.ReceiverDisplayName = receiver.DisplayName
		d.ReceiverUserName = receiver.Username
		d.ReceiverAvatarURL = receiver.AvatarURL
	}
	return d
}
