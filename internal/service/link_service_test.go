package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkpulse/internal/database"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var linkNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

type linkFixture struct {
	links   *fakeLinkStore
	cache   *fakeCache
	counter *fakeCounter
	users   *fakeUsers
	pro     uuid.UUID
	service *LinkService
}

func newLinkFixture(t *testing.T) *linkFixture {
	t.Helper()
	f := &linkFixture{
		links:   newFakeLinkStore(&fakeClickStore{}),
		cache:   newFakeCache(),
		counter: newFakeCounter(),
		pro:     uuid.New(),
	}
	f.users = &fakeUsers{plans: map[uuid.UUID]*models.UserPlan{
		f.pro: {UserID: f.pro, Tier: TierPro, IsActive: true},
	}}

	cfg := testShortenerConfig()
	plans := newTestPlanLimiter(f.users, f.counter)
	f.service = NewLinkService(f.links, NewCodeGenerator(f.links, cfg, zap.NewNop()), plans, f.cache, time.Hour, cfg, zap.NewNop())
	f.service.now = func() time.Time { return linkNow }
	f.service.bcryptCost = bcrypt.MinCost
	return f
}

func TestLinkService_CreateGenerated(t *testing.T) {
	f := newLinkFixture(t)

	resp, err := f.service.Create(context.Background(), CreateLinkInput{
		URL:      "https://example.com/some/long/path",
		ClientIP: "10.0.0.1",
	})
	require.NoError(t, err)

	assert.Len(t, resp.ShortCode, 8)
	assert.Equal(t, "https://lp.test/"+resp.ShortCode, resp.ShortURL)
	assert.False(t, resp.Protected)
	assert.Nil(t, resp.ExpiresAt)

	stored := f.links.links[resp.ShortCode]
	require.NotNil(t, stored)
	assert.True(t, stored.IsActive)
	assert.Nil(t, stored.OwnerID)

	select {
	case key := <-f.cache.sets:
		assert.Equal(t, database.LinkCacheKey(resp.ShortCode), key)
	case <-time.After(time.Second):
		t.Fatal("new link was not cached")
	}
}

func TestLinkService_CreateCustomProtectedExpiring(t *testing.T) {
	f := newLinkFixture(t)

	resp, err := f.service.Create(context.Background(), CreateLinkInput{
		OwnerID:    &f.pro,
		URL:        "https://example.com/launch",
		Title:      "  Launch  ",
		CustomCode: "Launch-2025",
		Password:   "s3cret",
		ExpiresIn:  3600,
	})
	require.NoError(t, err)

	assert.Equal(t, "Launch-2025", resp.ShortCode)
	assert.True(t, resp.Protected)
	require.NotNil(t, resp.ExpiresAt)
	assert.Equal(t, linkNow.Add(time.Hour), *resp.ExpiresAt)

	stored := f.links.links["Launch-2025"]
	assert.Equal(t, "Launch", stored.Title)
	assert.True(t, stored.OwnedBy(f.pro))
	require.NotNil(t, stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*stored.PasswordHash), []byte("s3cret")))
}

func TestLinkService_CustomCodeConflictLeavesExistingLink(t *testing.T) {
	f := newLinkFixture(t)
	existing := f.links.add(&models.Link{ShortCode: "promo", OriginalURL: "https://first.example", IsActive: true})
	before := *existing

	_, err := f.service.Create(context.Background(), CreateLinkInput{
		OwnerID:    &f.pro,
		URL:        "https://second.example",
		CustomCode: "promo",
	})

	assert.ErrorIs(t, err, ErrCodeConflict)
	assert.Equal(t, before, *f.links.links["promo"])
	assert.Zero(t, f.links.creates)
}

func TestLinkService_LateConflict(t *testing.T) {
	t.Run("custom code conflict at insert", func(t *testing.T) {
		f := newLinkFixture(t)
		f.links.createErrs = []error{repository.ErrAlreadyExists}

		_, err := f.service.Create(context.Background(), CreateLinkInput{OwnerID: &f.pro, URL: "https://example.com", CustomCode: "raced"})

		assert.ErrorIs(t, err, ErrCodeConflict)
		assert.Equal(t, 1, f.links.creates)
	})

	t.Run("generated code is redrawn once", func(t *testing.T) {
		f := newLinkFixture(t)
		f.links.createErrs = []error{repository.ErrAlreadyExists}

		resp, err := f.service.Create(context.Background(), CreateLinkInput{URL: "https://example.com", ClientIP: "10.0.0.1"})

		require.NoError(t, err)
		assert.Equal(t, 2, f.links.creates)
		assert.Contains(t, f.links.links, resp.ShortCode)
	})

	t.Run("second generated conflict is exhaustion", func(t *testing.T) {
		f := newLinkFixture(t)
		f.links.createErrs = []error{repository.ErrAlreadyExists, repository.ErrAlreadyExists}

		_, err := f.service.Create(context.Background(), CreateLinkInput{URL: "https://example.com", ClientIP: "10.0.0.1"})

		assert.ErrorIs(t, err, ErrGenerationExhausted)
		assert.Equal(t, 2, f.links.creates)
	})
}

func TestLinkService_FailedCreateReleasesQuota(t *testing.T) {
	f := newLinkFixture(t)
	f.links.createErrs = []error{errors.New("connection reset")}

	_, err := f.service.Create(context.Background(), CreateLinkInput{URL: "https://example.com", ClientIP: "10.0.0.1"})

	assert.ErrorIs(t, err, ErrStorage)
	assert.Zero(t, f.counter.counts[database.QuotaKey("ip:10.0.0.1", planNow)])
}

func TestLinkService_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      CreateLinkInput
		wantErr error
	}{
		{"javascript scheme", CreateLinkInput{URL: "javascript:alert(1)"}, ErrInvalidURL},
		{"ftp scheme", CreateLinkInput{URL: "ftp://files.example.com/x"}, ErrInvalidURL},
		{"no host", CreateLinkInput{URL: "https:///nohost"}, ErrInvalidURL},
		{"code too short", CreateLinkInput{URL: "https://example.com", CustomCode: "ab"}, ErrInvalidCode},
		{"code with slash", CreateLinkInput{URL: "https://example.com", CustomCode: "a/b/c"}, ErrInvalidCode},
		{"reserved code", CreateLinkInput{URL: "https://example.com", CustomCode: "Health"}, ErrInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLinkFixture(t)
			tt.in.OwnerID = &f.pro

			_, err := f.service.Create(context.Background(), tt.in)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.links.creates)
		})
	}
}

func TestLinkService_PlanRejection(t *testing.T) {
	f := newLinkFixture(t)

	_, err := f.service.Create(context.Background(), CreateLinkInput{
		URL:        "https://example.com",
		CustomCode: "mine",
		ClientIP:   "10.0.0.1",
	})

	assert.ErrorIs(t, err, ErrFeatureNotInPlan)
	assert.Zero(t, f.links.creates)
}

func TestLinkService_Deactivate(t *testing.T) {
	f := newLinkFixture(t)
	link := f.links.add(&models.Link{ShortCode: "bye", OriginalURL: "https://example.com", OwnerID: &f.pro, IsActive: true})
	require.NoError(t, f.cache.SetJSON(context.Background(), database.LinkCacheKey("bye"), toCached(link), time.Hour))

	assert.ErrorIs(t, f.service.Deactivate(context.Background(), link.ID, uuid.New()), ErrNotFound)
	assert.True(t, f.links.links["bye"].IsActive)

	require.NoError(t, f.service.Deactivate(context.Background(), link.ID, f.pro))
	assert.False(t, f.links.links["bye"].IsActive)

	var cached cachedLink
	found, err := f.cache.GetJSON(context.Background(), database.LinkCacheKey("bye"), &cached)
	require.NoError(t, err)
	require.True(t, found, "deactivation leaves an inactive entry behind")
	assert.False(t, cached.IsActive)
	assert.Equal(t, link.ID, cached.ID)
}

func TestLinkService_DeactivateBeatsInFlightCacheFill(t *testing.T) {
	clicks := &fakeClickStore{}
	links := newFakeLinkStore(clicks)
	cache := newFakeCache()
	cache.fillGate = make(chan struct{})
	owner := uuid.New()

	cfg := testShortenerConfig()
	users := &fakeUsers{plans: map[uuid.UUID]*models.UserPlan{owner: {UserID: owner, Tier: TierPro, IsActive: true}}}
	service := NewLinkService(links, NewCodeGenerator(links, cfg, zap.NewNop()), newTestPlanLimiter(users, newFakeCounter()), cache, time.Hour, cfg, zap.NewNop())
	resolver := NewResolver(links, clicks, cache, time.Hour, nil, nil, zap.NewNop())

	link := links.add(&models.Link{ShortCode: "race", OriginalURL: "https://example.com", OwnerID: &owner, IsActive: true})

	// The miss starts a fill carrying the still-active link.
	_, err := resolver.Resolve(context.Background(), ResolveRequest{ShortCode: "race"})
	require.NoError(t, err)

	require.NoError(t, service.Deactivate(context.Background(), link.ID, owner))

	close(cache.fillGate)
	for i := 0; i < 2; i++ { // tombstone write, then the late fill
		select {
		case <-cache.sets:
		case <-time.After(time.Second):
			t.Fatal("cache fill never ran")
		}
	}

	res, err := resolver.Resolve(context.Background(), ResolveRequest{ShortCode: "race"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrGone)
	assert.Equal(t, 1, clicks.count(), "no click is recorded once the link is inactive")
}

func TestLinkService_ListByOwner(t *testing.T) {
	f := newLinkFixture(t)
	f.links.add(&models.Link{ShortCode: "one", OriginalURL: "https://example.com/1", OwnerID: &f.pro})
	f.links.add(&models.Link{ShortCode: "two", OriginalURL: "https://example.com/2"})

	links, err := f.service.ListByOwner(context.Background(), f.pro)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "one", links[0].ShortCode)

	f.links.getErr = errors.New("timeout")
	_, err = f.service.ListByOwner(context.Background(), f.pro)
	assert.ErrorIs(t, err, ErrStorage)
}
