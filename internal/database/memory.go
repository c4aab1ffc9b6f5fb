package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jason-s-yu/mychat/internal/models"
)

// Memory is an in-process store with the same contract as Postgres. Users
// and contacts are returned in insertion order unless a method says otherwise.
type Memory struct {
	mu sync.RWMutex

	users     map[string]*models.User
	userOrder []string

	contacts     map[int64]*models.Contact
	contactOrder []int64
	nextID       int64

	notifications []models.Notification
	nextNoteID    int64

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*models.User),
		contacts: make(map[int64]*models.Contact),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for server-assigned timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	if err := prepareUser(user); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return ErrDuplicate
	}
	for _, u := range m.users {
		if u.Email == user.Email || strings.EqualFold(u.Username, user.Username) {
			return ErrDuplicate
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	m.userOrder = append(m.userOrder, user.ID)
	return nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUsersByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *Memory) SearchUsers(_ context.Context, excludeID, query string, limit int) ([]models.User, error) {
	q := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.User
	for _, id := range m.userOrder {
		if len(out) >= limit {
			break
		}
		u := m.users[id]
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.DisplayName), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *Memory) UpdateUserProfile(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if !u.ProfileVisibility.Valid() {
		return ErrRejected
	}
	stored.DisplayName = u.DisplayName
	stored.Bio = u.Bio
	stored.ProfileVisibility = u.ProfileVisibility
	return nil
}

func (m *Memory) SetAvatarURL(_ context.Context, userID, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	previous := u.AvatarURL
	u.AvatarURL = url
	return previous, nil
}

// findBetween must be called with mu held.
func (m *Memory) findBetween(a, b string) *models.Contact {
	for _, c := range m.contacts {
		if (c.RequesterID == a && c.ReceiverID == b) || (c.RequesterID == b && c.ReceiverID == a) {
			return c
		}
	}
	return nil
}

func (m *Memory) InsertContact(_ context.Context, c *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.RequesterID == c.ReceiverID {
		return ErrRejected
	}
	if _, ok := m.users[c.RequesterID]; !ok {
		return ErrRejected
	}
	if _, ok := m.users[c.ReceiverID]; !ok {
		return ErrRejected
	}
	if m.findBetween(c.RequesterID, c.ReceiverID) != nil {
		return ErrDuplicate
	}
	m.nextID++
	now := m.now()
	c.ID = m.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	m.contacts[c.ID] = &cp
	m.contactOrder = append(m.contactOrder, c.ID)
	return nil
}

func (m *Memory) GetContact(_ context.Context, id int64) (*models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) FindContactBetween(_ context.Context, a, b string) (*models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.findBetween(a, b)
	if c == nil {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ListContactsForUser(_ context.Context, userID string) ([]models.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Contact
	for _, id := range m.contactOrder {
		if c := m.contacts[id]; c.Involves(userID) {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) ListContactsWith(_ context.Context, userID string, others []string) ([]models.Contact, error) {
	want := make(map[string]struct{}, len(others))
	for _, o := range others {
		want[o] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Contact
	for _, id := range m.contactOrder {
		c := m.contacts[id]
		if !c.Involves(userID) {
			continue
		}
		if _, ok := want[c.Other(userID)]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *Memory) UpdateContactStatus(_ context.Context, id int64, status models.ContactStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return ErrNotFound
	}
	if !status.Valid() {
		return ErrRejected
	}
	c.Status = status
	c.UpdatedAt = at
	return nil
}

func (m *Memory) DeleteContact(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contacts[id]; !ok {
		return ErrNotFound
	}
	delete(m.contacts, id)
	for i, cid := range m.contactOrder {
		if cid == id {
			m.contactOrder = append(m.contactOrder[:i], m.contactOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) AcceptedContactExists(_ context.Context, a, b string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.findBetween(a, b)
	return c != nil && c.Status == models.ContactAccepted, nil
}

func (m *Memory) InsertNotifications(_ context.Context, batch []models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range batch {
		if _, ok := m.users[batch[i].UserID]; !ok {
			return ErrRejected
		}
	}
	for i := range batch {
		m.nextNoteID++
		batch[i].ID = m.nextNoteID
		if batch[i].CreatedAt.IsZero() {
			batch[i].CreatedAt = m.now()
		}
		m.notifications = append(m.notifications, batch[i])
	}
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
