package contacts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/mychat/internal/apperr"
	"github.com/jason-s-yu/mychat/internal/cache"
	"github.com/jason-s-yu/mychat/internal/database"
	"github.com/jason-s-yu/mychat/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []cache.ContactEvent
	err    error
}

func (p *recordingPublisher) PublishContactEvent(_ context.Context, ev cache.ContactEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []cache.ContactEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]cache.ContactEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *database.Memory
	events *recordingPublisher
	hook   *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	store := database.NewMemory()
	events := &recordingPublisher{}
	return &fixture{
		svc:    NewService(store, store, events, logger),
		store:  store,
		events: events,
		hook:   hook,
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: "The " + name,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

func TestSendRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactPending, d.Status)
	assert.Equal(t, alice.ID, d.RequesterID)
	assert.Equal(t, "The alice", d.RequesterDisplayName)
	assert.Equal(t, "bob", d.ReceiverUserName)
	assert.NotZero(t, d.ID)
	assert.Equal(t, []cache.ContactEventType{cache.ContactRequested}, f.events.types())
}

func TestSendRequestConflictsInBothDirections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	_, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.SendRequest(ctx, alice.ID, bob.ID)
	requireKind(t, err, apperr.Conflict)
	_, err = f.svc.SendRequest(ctx, bob.ID, alice.ID)
	requireKind(t, err, apperr.Conflict)
}

func TestSendRequestToSelf(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, alice.ID)
	requireKind(t, err, apperr.InvalidArgument)
}

func TestSendRequestUnknownReceiver(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, "nobody")
	requireKind(t, err, apperr.NotFound)

	_, err = f.svc.SendRequest(context.Background(), "", alice.ID)
	requireKind(t, err, apperr.Unauthenticated)
}

func TestSendRequestConcurrentPairYieldsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := alice.ID, bob.ID
			if i%2 == 1 {
				from, to = to, from
			}
			_, errs[i] = f.svc.SendRequest(ctx, from, to)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, ok)

	list, err := f.store.ListContactsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOnlyReceiverResolvesPending(t *testing.T) {
	for _, status := range []models.ContactStatus{models.ContactAccepted, models.ContactRejected} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			alice, bob := f.user(t, "alice"), f.user(t, "bob")

			d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
			require.NoError(t, err)

			_, err = f.svc.UpdateStatus(ctx, alice.ID, d.ID, status)
			requireKind(t, err, apperr.Forbidden)

			got, err := f.svc.UpdateStatus(ctx, bob.ID, d.ID, status)
			require.NoError(t, err)
			assert.Equal(t, status, got.Status)
		})
	}
}

func TestUpdateStatusNeverBackToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	for _, next := range []models.ContactStatus{"", models.ContactAccepted, models.ContactRejected, models.ContactBlocked} {
		if next != "" {
			_, err := f.svc.UpdateStatus(ctx, bob.ID, d.ID, next)
			require.NoError(t, err)
		}
		for _, viewer := range []string{alice.ID, bob.ID} {
			_, err := f.svc.UpdateStatus(ctx, viewer, d.ID, models.ContactPending)
			requireKind(t, err, apperr.InvalidArgument)
		}
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, bob.ID, d.ID, "friends")
	requireKind(t, err, apperr.InvalidArgument)
}

func TestUpdateStatusSetsTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	at := d.UpdatedAt.Add(time.Hour)
	f.svc.SetClock(func() time.Time { return at })

	got, err := f.svc.UpdateStatus(ctx, bob.ID, d.ID, models.ContactAccepted)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.True(t, d.CreatedAt.Equal(got.CreatedAt))
}

func TestRequesterMayBlockPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, alice.ID, d.ID, models.ContactBlocked)
	require.NoError(t, err)
	assert.Equal(t, models.ContactBlocked, got.Status)
}

// Transitions out of accepted, rejected, and blocked are not restricted to
// either party. This pins the current permissive behavior: the blocked party
// can lift a block, and the requester can accept a request the receiver
// rejected.
func TestNonPendingTransitionsAreUnrestricted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, bob.ID, d.ID, models.ContactRejected)
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, alice.ID, d.ID, models.ContactAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.ContactAccepted, got.Status)

	_, err = f.svc.UpdateStatus(ctx, alice.ID, d.ID, models.ContactBlocked)
	require.NoError(t, err)
	got, err = f.svc.UpdateStatus(ctx, bob.ID, d.ID, models.ContactAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.ContactAccepted, got.Status)
}

func TestPartyChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, mallory := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "mallory")
	d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.GetContact(ctx, mallory.ID, d.ID)
	requireKind(t, err, apperr.Forbidden)
	_, err = f.svc.UpdateStatus(ctx, mallory.ID, d.ID, models.ContactBlocked)
	requireKind(t, err, apperr.Forbidden)
	requireKind(t, f.svc.DeleteContact(ctx, mallory.ID, d.ID), apperr.Forbidden)

	_, err = f.svc.GetContact(ctx, alice.ID, d.ID+100)
	requireKind(t, err, apperr.NotFound)
	_, err = f.svc.UpdateStatus(ctx, alice.ID, d.ID+100, models.ContactBlocked)
	requireKind(t, err, apperr.NotFound)
	requireKind(t, f.svc.DeleteContact(ctx, alice.ID, d.ID+100), apperr.NotFound)

	got, err := f.svc.GetContact(ctx, bob.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "The bob", got.ReceiverDisplayName)
}

func TestDeleteContact(t *testing.T) {
	for _, by := range []string{"requester", "receiver"} {
		t.Run(by, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			alice, bob := f.user(t, "alice"), f.user(t, "bob")
			d, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
			require.NoError(t, err)
			_, err = f.svc.UpdateStatus(ctx, bob.ID, d.ID, models.ContactBlocked)
			require.NoError(t, err)

			viewer := alice.ID
			if by == "receiver" {
				viewer = bob.ID
			}
			require.NoError(t, f.svc.DeleteContact(ctx, viewer, d.ID))

			_, err = f.svc.GetContact(ctx, viewer, d.ID)
			requireKind(t, err, apperr.NotFound)

			// the pair is free again
			_, err = f.svc.SendRequest(ctx, bob.ID, alice.ID)
			require.NoError(t, err)
			assert.Equal(t, []cache.ContactEventType{
				cache.ContactRequested, cache.ContactStatusChanged, cache.ContactDeleted, cache.ContactRequested,
			}, f.events.types())
		})
	}
}

func TestListContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.store.SetClock(func() time.Time { return base })
	toBob, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	f.store.SetClock(func() time.Time { return base.Add(time.Minute) })
	fromCarol, err := f.svc.SendRequest(ctx, carol.ID, alice.ID)
	require.NoError(t, err)

	list, err := f.svc.ListContacts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, fromCarol.ID, list[0].ID)
	assert.Equal(t, carol.ID, list[0].UserID)
	assert.Equal(t, "carol@example.com", list[0].Email)
	assert.False(t, list[0].IsRequester)
	assert.Equal(t, toBob.ID, list[1].ID)
	assert.True(t, list[1].IsRequester)

	// accepting bumps the bob relationship to the top
	f.svc.SetClock(func() time.Time { return base.Add(time.Hour) })
	_, err = f.svc.UpdateStatus(ctx, bob.ID, toBob.ID, models.ContactAccepted)
	require.NoError(t, err)

	list, err = f.svc.ListContacts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, toBob.ID, list[0].ID)
	assert.Equal(t, models.ContactAccepted, list[0].Status)

	_, err = f.svc.ListContacts(ctx, "")
	requireKind(t, err, apperr.Unauthenticated)
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	for i := 0; i < 5; i++ {
		f.user(t, fmt.Sprintf("al%d", i))
	}
	bob := f.user(t, "bob")
	d, err := f.svc.SendRequest(ctx, alice.ID, f.mustFind(t, "al0").ID)
	require.NoError(t, err)

	results, err := f.svc.SearchUsers(ctx, alice.ID, SearchRequest{Query: "  AL ", Limit: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotEqual(t, alice.ID, r.UserID)
	}
	require.NotNil(t, results[0].ContactStatus)
	assert.Equal(t, models.ContactPending, *results[0].ContactStatus)
	assert.Equal(t, d.ID, *results[0].ContactID)
	assert.Nil(t, results[1].ContactStatus)
	assert.Nil(t, results[1].ContactID)

	// email matches too, and the default limit applies
	results, err = f.svc.SearchUsers(ctx, alice.ID, SearchRequest{Query: "@EXAMPLE.com"})
	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.Equal(t, bob.ID, results[5].UserID)
}

func TestSearchUsersValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	ctx := context.Background()

	for name, req := range map[string]SearchRequest{
		"empty query":    {Query: "   "},
		"limit too high": {Query: "a", Limit: 51},
		"negative limit": {Query: "a", Limit: -1},
		"query too long": {Query: strings.Repeat("x", 101)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SearchUsers(ctx, alice.ID, req)
			requireKind(t, err, apperr.InvalidArgument)
		})
	}

	_, err := f.svc.SearchUsers(ctx, "", SearchRequest{Query: "a"})
	requireKind(t, err, apperr.Unauthenticated)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("redis down")
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	_, err := f.svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, f.hook.LastEntry())
	assert.Equal(t, "failed to publish contact event", f.hook.LastEntry().Message)
}

// A requests B, B accepts, A blocks B: the row still occupies the pair.
func TestBlockedRelationshipStillOccupiesPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a-user"), f.user(t, "b-user")

	d, err := f.svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, b.ID, d.ID, models.ContactAccepted)
	require.NoError(t, err)

	ok, err := f.svc.AreContacts(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.UpdateStatus(ctx, a.ID, d.ID, models.ContactBlocked)
	require.NoError(t, err)

	ok, err = f.svc.AreContacts(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.SendRequest(ctx, b.ID, a.ID)
	requireKind(t, err, apperr.Conflict)
}

func TestAreContactsEdgeCases(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a-user")
	ctx := context.Background()

	for _, pair := range [][2]string{{"", a.ID}, {a.ID, ""}, {a.ID, a.ID}} {
		ok, err := f.svc.AreContacts(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func (f *fixture) mustFind(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := f.store.GetUserByEmail(context.Background(), username+"@example.com")
	require.NoError(t, err)
	return u
}
