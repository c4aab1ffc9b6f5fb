// Package profile serves user profiles under their visibility settings and
// lets users edit their own.
package profile

import (
	"context"
	"errors"

	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/avatar"
	"github.com/jason-s-yu/mychat/internal/database"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/jason-s-yu/mychat/internal/validation"
	"github.com/sirupsen/logrus"
)

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, u *models.User) error
	SetAvatarURL(ctx context.Context, userID, url string) (string, error)
}

// ContactChecker reports accepted relationships. contacts.Service satisfies it.
type ContactChecker interface {
	AreContacts(ctx context.Context, a, b string) (bool, error)
}

// AvatarStore persists avatar images. avatar.Service satisfies it.
type AvatarStore interface {
	Upload(f *avatar.File, userID string) (string, error)
	Delete(publicPath string)
}

type Service struct {
	users    UserStore
	contacts ContactChecker
	avatars  AvatarStore
	logger   *logrus.Logger
}

func NewService(users UserStore, contacts ContactChecker, avatars AvatarStore, logger *logrus.Logger) *Service {
	return &Service{users: users, contacts: contacts, avatars: avatars, logger: logger}
}

// Patch holds the profile fields a user may change. Nil fields are left as is.
type Patch struct {
	DisplayName       *string                   `json:"display_name" validate:"omitnil,max=100"`
	Bio               *string                   `json:"bio" validate:"omitnil,max=500"`
	ProfileVisibility *models.ProfileVisibility `json:"profile_visibility" validate:"omitnil,oneof=public contacts_only private"`
}

// GetOwnProfile returns the caller's full profile, email included.
func (s *Service) GetOwnProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	u, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.ToProfile()
	return &p, nil
}

// GetProfile returns target's profile as seen by viewer. An empty viewerID is
// an anonymous viewer. Email is only included for the owner.
func (s *Service) GetProfile(ctx context.Context, viewerID, targetID string) (*models.Profile, error) {
	u, err := s.lookup(ctx, targetID)
	if err != nil {
		return nil, err
	}
	own := viewerID != "" && viewerID == u.ID

	if !own {
		switch u.ProfileVisibility {
		case models.VisibilityPrivate:
			return nil, apperr.Forbiddenf("this profile is private")
		case models.VisibilityContactsOnly:
			ok, err := s.contacts.AreContacts(ctx, viewerID, u.ID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, apperr.Forbiddenf("this profile is only visible to contacts")
			}
		}
	}

	p := u.ToProfile()
	if !own {
		p.Email = ""
	}
	return &p, nil
}

// UpdateOwnProfile applies patch to the caller's profile.
func (s *Service) UpdateOwnProfile(ctx context.Context, userID string, patch Patch) (*models.Profile, error) {
	if userID == "" {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	if fields := validation.Struct(patch); fields != nil {
		return nil, apperr.WithFields(apperr.New(apperr.Validation, "invalid profile update"), fields...)
	}
	u, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.Bio != nil {
		u.Bio = *patch.Bio
	}
	if patch.ProfileVisibility != nil {
		u.ProfileVisibility = *patch.ProfileVisibility
	}

	if err := s.users.UpdateUserProfile(ctx, u); err != nil {
		switch {
		case errors.Is(err, database.ErrRejected):
			return nil, apperr.WithDetails(apperr.Wrap(apperr.Validation, err, "invalid profile update"), err.Error())
		case errors.Is(err, database.ErrNotFound):
			return nil, apperr.Wrap(apperr.NotFound, err, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to update profile")
	}

	s.logger.WithField("user_id", userID).Info("profile updated")
	p := u.ToProfile()
	return &p, nil
}

// ReplaceAvatar stores f as the caller's avatar and removes the previous image.
func (s *Service) ReplaceAvatar(ctx context.Context, userID string, f *avatar.File) (*models.Profile, error) {
	if userID == "" {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	if _, err := s.lookup(ctx, userID); err != nil {
		return nil, err
	}

	url, err := s.avatars.Upload(f, userID)
	if err != nil {
		return nil, err
	}
	previous, err := s.users.SetAvatarURL(ctx, userID, url)
	if err != nil {
		s.avatars.Delete(url)
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to update avatar")
	}
	s.avatars.Delete(previous)

	return s.GetOwnProfile(ctx, userID)
}

// RemoveAvatar clears the caller's avatar and deletes its file.
func (s *Service) RemoveAvatar(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Unauthenticatedf("authentication required")
	}
	previous, err := s.users.SetAvatarURL(ctx, userID, "")
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, err, "user not found")
		}
		return apperr.Wrap(apperr.Internal, err, "failed to remove avatar")
	}
	s.avatars.Delete(previous)
	s.logger.WithField("user_id", userID).Info("avatar removed")
	return nil
}

func (s *Service) lookup(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, apperr.NotFoundf("user not found")
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load user")
	}
	return u, nil
}
