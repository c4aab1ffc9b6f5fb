// Package contacts manages friend-request style relationships between users.
//
// A relationship is one row per unordered pair of users. It starts pending,
// only the receiver can accept or reject it while pending, it never returns
// to pending, and either party can delete it at any time.
package contacts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/cache"
	"github.com/jason-s-yu/mychat/internal/database"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/jason-s-yu/mychat/internal/validation"
	"github.com/sirupsen/logrus"
)

const DefaultSearchLimit = 20

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	SearchUsers(ctx context.Context, excludeID, query string, limit int) ([]models.User, error)
}

type Repository interface {
	InsertContact(ctx context.Context, c *models.Contact) error
	GetContact(ctx context.Context, id int64) (*models.Contact, error)
	FindContactBetween(ctx context.Context, a, b string) (*models.Contact, error)
	ListContactsForUser(ctx context.Context, userID string) ([]models.Contact, error)
	ListContactsWith(ctx context.Context, userID string, others []string) ([]models.Contact, error)
	UpdateContactStatus(ctx context.Context, id int64, status models.ContactStatus, at time.Time) error
	DeleteContact(ctx context.Context, id int64) error
	AcceptedContactExists(ctx context.Context, a, b string) (bool, error)
}

// EventPublisher receives contact lifecycle events. Delivery is best effort.
type EventPublisher interface {
	PublishContactEvent(ctx context.Context, ev cache.ContactEvent) error
}

type Service struct {
	users  UserStore
	repo   Repository
	events EventPublisher
	logger *logrus.Logger
	now    func() time.Time
}

// NewService wires the contact service. events may be nil.
func NewService(users UserStore, repo Repository, events EventPublisher, logger *logrus.Logger) *Service {
	return &Service{
		users:  users,
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the clock used for status-change timestamps.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type SearchRequest struct {
	Query string `json:"query" validate:"required,min=1,max=100"`
	Limit int    `json:"limit" validate:"min=1,max=50"`
}

// SearchUsers finds users other than the viewer whose username, display name,
// or email contains the query, annotated with any relationship to the viewer.
func (s *Service) SearchUsers(ctx context.Context, viewerID string, req SearchRequest) ([]models.SearchResult, error) {
	if viewerID == "" {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Limit == 0 {
		req.Limit = DefaultSearchLimit
	}
	if fields := validation.Struct(req); fields != nil {
		return nil, apperr.WithFields(apperr.Invalidf("invalid search request"), fields...)
	}

	users, err := s.users.SearchUsers(ctx, viewerID, req.Query, req.Limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to search users")
	}
	if len(users) > req.Limit {
		users = users[:req.Limit]
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	existing, err := s.repo.ListContactsWith(ctx, viewerID, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load contacts")
	}
	byOther := make(map[string]models.Contact, len(existing))
	for _, c := range existing {
		byOther[c.Other(viewerID)] = c
	}

	results := make([]models.SearchResult, 0, len(users))
	for _, u := range users {
		if u.ID == viewerID {
			continue
		}
		r := models.SearchResult{
			UserID:      u.ID,
			UserName:    u.Username,
			DisplayName: u.DisplayName,
			Email:       u.Email,
			AvatarURL:   u.AvatarURL,
		}
		if c, ok := byOther[u.ID]; ok {
			status, id := c.Status, c.ID
			r.ContactStatus = &status
			r.ContactID = &id
		}
		results = append(results, r)
	}
	return results, nil
}

// ListContacts returns every relationship involving the viewer, most recently
// updated first, each showing the other party.
func (s *Service) ListContacts(ctx context.Context, viewerID string) ([]models.ContactView, error) {
	if viewerID == "" {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	list, err := s.repo.ListContactsForUser(ctx, viewerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to list contacts")
	}

	ids := make([]string, 0, len(list))
	for i := range list {
		ids = append(ids, list[i].Other(viewerID))
	}
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load contact users")
	}

	views := make([]models.ContactView, 0, len(list))
	for i := range list {
		views = append(views, viewFor(&list[i], viewerID, users[list[i].Other(viewerID)]))
	}
	return views, nil
}

// SendRequest creates a pending relationship from requester to receiver.
func (s *Service) SendRequest(ctx context.Context, requesterID, receiverID string) (*models.ContactDetail, error) {
	if requesterID == "" {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	if receiverID == "" {
		return nil, apperr.Invalidf("receiver_id is required")
	}
	if requesterID == receiverID {
		return nil, apperr.Invalidf("cannot send contact request to yourself")
	}

	requester, err := s.lookupUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.lookupUser(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	_, err = s.repo.FindContactBetween(ctx, requesterID, receiverID)
	switch {
	case err == nil:
		return nil, apperr.Conflictf("contact relationship already exists")
	case !errors.Is(err, database.ErrNotFound):
		return nil, apperr.Wrap(apperr.Internal, err, "failed to check existing contact")
	}

	c := &models.Contact{
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		Status:      models.ContactPending,
	}
	if err := s.repo.InsertContact(ctx, c); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicate):
			// lost a race with a concurrent request for the same pair
			return nil, apperr.Wrap(apperr.Conflict, err, "contact relationship already exists")
		case errors.Is(err, database.ErrRejected):
			return nil, apperr.Wrap(apperr.InvalidArgument, err, "contact request rejected")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to create contact request")
	}

	s.logger.WithFields(logrus.Fields{
		"contact_id":   c.ID,
		"requester_id": requesterID,
		"receiver_id":  receiverID,
	}).Info("contact request sent")
	s.publish(ctx, cache.ContactRequested, c, requesterID)

	d := detailFor(c, requester, receiver)
	return &d, nil
}

// GetContact returns the relationship if the viewer is one of its parties.
func (s *Service) GetContact(ctx context.Context, viewerID string, contactID int64) (*models.ContactDetail, error) {
	c, err := s.loadForParty(ctx, viewerID, contactID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, c)
}

// UpdateStatus moves the relationship to status. Pending is never a valid
// target, and while pending only the receiver may accept or reject. Any other
// change by either party is allowed, including leaving blocked.
func (s *Service) UpdateStatus(ctx context.Context, viewerID string, contactID int64, status models.ContactStatus) (*models.ContactDetail, error) {
	c, err := s.loadForParty(ctx, viewerID, contactID)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Invalidf("unknown contact status")
	}
	if status == models.ContactPending {
		return nil, apperr.Invalidf("cannot set status back to pending")
	}
	if c.Status == models.ContactPending &&
		(status == models.ContactAccepted || status == models.ContactRejected) &&
		c.ReceiverID != viewerID {
		return nil, apperr.Forbiddenf("only the receiver can accept or reject pending requests")
	}

	at := s.now().UTC()
	if err := s.repo.UpdateContactStatus(ctx, c.ID, status, at); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "contact not found")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to update contact")
	}
	previous := c.Status
	c.Status = status
	c.UpdatedAt = at

	s.logger.WithFields(logrus.Fields{
		"contact_id": c.ID,
		"user_id":    viewerID,
		"from":       previous,
		"status":     status,
	}).Info("contact status updated")
	s.publish(ctx, cache.ContactStatusChanged, c, viewerID)

	return s.detail(ctx, c)
}

// DeleteContact permanently removes the relationship, whatever its status.
func (s *Service) DeleteContact(ctx context.Context, viewerID string, contactID int64) error {
	c, err := s.loadForParty(ctx, viewerID, contactID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteContact(ctx, c.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, err, "contact not found")
		}
		return apperr.Wrap(apperr.Internal, err, "failed to delete contact")
	}

	s.logger.WithFields(logrus.Fields{
		"contact_id": c.ID,
		"user_id":    viewerID,
	}).Info("contact deleted")
	s.publish(ctx, cache.ContactDeleted, c, viewerID)
	return nil
}

// AreContacts reports whether a and b share an accepted relationship.
func (s *Service) AreContacts(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	ok, err := s.repo.AcceptedContactExists(ctx, a, b)
	if err != nil {
		return false, apperr.Wrap(apperr.Internal, err, "failed to check contacts")
	}
	return ok, nil
}

func (s *Service) loadForParty(ctx context.Context, viewerID string, contactID int64) (*models.Contact, error) {
	if viewerID == "" {
		return nil, apperr.Unauthenticatedf("authentication required")
	}
	c, err := s.repo.GetContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "contact not found")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load contact")
	}
	if !c.Involves(viewerID) {
		return nil, apperr.Forbiddenf("not a party to this contact")
	}
	return c, nil
}

func (s *Service) lookupUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load user")
	}
	return u, nil
}

func (s *Service) detail(ctx context.Context, c *models.Contact) (*models.ContactDetail, error) {
	users, err := s.users.GetUsersByIDs(ctx, []string{c.RequesterID, c.ReceiverID})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to load contact users")
	}
	d := detailFor(c, users[c.RequesterID], users[c.ReceiverID])
	return &d, nil
}

func (s *Service) publish(ctx context.Context, typ cache.ContactEventType, c *models.Contact, actor string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishContactEvent(ctx, cache.NewContactEvent(typ, c, actor)); err != nil {
		s.logger.WithError(err).WithField("contact_id", c.ID).Warn("failed to publish contact event")
	}
}
