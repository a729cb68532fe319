package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/enrich"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/repository"
)

// ===========================================
// In-memory fakes of the store interfaces
// ===========================================

type fakeLinkStore struct {
	mu     sync.Mutex
	links  map[string]*models.Link // by short code
	clicks *fakeClickStore

	existsCalls int
	existsFn    func(code string) bool // overrides the map when set
	existsErr   error
	getErr      error
	createErrs  []error // consumed one per Create call
	creates     int
}

func newFakeLinkStore(clicks *fakeClickStore) *fakeLinkStore {
	return &fakeLinkStore{links: make(map[string]*models.Link), clicks: clicks}
}

func (f *fakeLinkStore) add(link *models.Link) *models.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	f.links[link.ShortCode] = link
	return link
}

func (f *fakeLinkStore) Exists(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.existsFn != nil {
		return f.existsFn(code), nil
	}
	_, ok := f.links[code]
	return ok, nil
}

func (f *fakeLinkStore) Create(ctx context.Context, link *models.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := f.links[link.ShortCode]; ok {
		return repository.ErrAlreadyExists
	}
	stored := *link
	f.links[link.ShortCode] = &stored
	return nil
}

func (f *fakeLinkStore) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	l, ok := f.links[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (f *fakeLinkStore) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, l := range f.links {
		if l.ID == id && l.OwnedBy(ownerID) {
			copied := *l
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLinkStore) ListByOwnerWithClicks(ctx context.Context, ownerID uuid.UUID) ([]models.LinkWithClicks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := []models.LinkWithClicks{}
	for _, l := range f.links {
		if l.OwnedBy(ownerID) {
			out = append(out, models.LinkWithClicks{Link: *l, Clicks: f.clicks.countFor(l.ID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeLinkStore) Deactivate(ctx context.Context, id, ownerID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l.ID == id && l.OwnedBy(ownerID) {
			l.IsActive = false
			return l.ShortCode, nil
		}
	}
	return "", repository.ErrNotFound
}

type fakeClickStore struct {
	mu        sync.Mutex
	events    []models.ClickEvent
	appendErr error
	listErr   error
	listCalls int
}

func (f *fakeClickStore) Append(ctx context.Context, click *models.ClickEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, *click)
	return nil
}

func (f *fakeClickStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeClickStore) countFor(linkID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.events {
		if e.LinkID == linkID {
			n++
		}
	}
	return n
}

func (f *fakeClickStore) filter(keep func(e models.ClickEvent) bool) ([]models.ClickEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.ClickEvent{}
	for _, e := range f.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (f *fakeClickStore) ListSince(ctx context.Context, ids []uuid.UUID, since time.Time) ([]models.ClickEvent, error) {
	return f.filter(func(e models.ClickEvent) bool {
		return containsID(ids, e.LinkID) && !e.Timestamp.Before(since)
	})
}

func (f *fakeClickStore) ListBetween(ctx context.Context, ids []uuid.UUID, from, to time.Time) ([]models.ClickEvent, error) {
	return f.filter(func(e models.ClickEvent) bool {
		return containsID(ids, e.LinkID) && !e.Timestamp.Before(from) && e.Timestamp.Before(to)
	})
}

func (f *fakeClickStore) ListAllBetween(ctx context.Context, from, to time.Time) ([]models.ClickEvent, error) {
	return f.filter(func(e models.ClickEvent) bool {
		return !e.Timestamp.Before(from) && e.Timestamp.Before(to)
	})
}

type fakeDailyStore struct {
	upserts [][]models.DailyLinkStats
	err     error
}

func (f *fakeDailyStore) UpsertAll(ctx context.Context, stats []models.DailyLinkStats) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, stats)
	return nil
}

type fakeUsers struct {
	plans map[uuid.UUID]*models.UserPlan
	err   error
}

func (f *fakeUsers) GetPlan(ctx context.Context, id uuid.UUID) (*models.UserPlan, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	sets   chan string

	fillGate chan struct{} // when set, SetJSONIfAbsent waits for it
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte), sets: make(chan string, 16)}
}

func (f *fakeCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return false, f.getErr
	}
	data, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (f *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.data[key] = data
	f.mu.Unlock()
	f.sets <- key
	return nil
}

func (f *fakeCache) SetJSONIfAbsent(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.fillGate != nil {
		<-f.fillGate
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	f.mu.Lock()
	_, exists := f.data[key]
	if !exists {
		f.data[key] = data
	}
	f.mu.Unlock()
	f.sets <- key
	return !exists, nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	incErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) DecrementCounter(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]--
	return nil
}

type fakeEnricher struct {
	visitor enrich.Visitor
}

func (f fakeEnricher) Enrich(ctx context.Context, ip, userAgent string) enrich.Visitor {
	return f.visitor
}

type fakePublisher struct {
	published chan models.ClickEvent
	err       error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan models.ClickEvent, 16)}
}

func (f *fakePublisher) PublishClick(ctx context.Context, click models.ClickEvent) error {
	f.published <- click
	return f.err
}

type fakeAPIKeys struct {
	mu      sync.Mutex
	keys    map[string]*models.APIKey // by hash
	touched chan uuid.UUID
}

func newFakeAPIKeys() *fakeAPIKeys {
	return &fakeAPIKeys{keys: make(map[string]*models.APIKey), touched: make(chan uuid.UUID, 4)}
}

func (f *fakeAPIKeys) GetByKeyHash(ctx context.Context, hash string) (*models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[hash]
	if !ok || !k.IsActive {
		return nil, repository.ErrNotFound
	}
	return k, nil
}

func (f *fakeAPIKeys) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	f.touched <- id
	return nil
}

func (f *fakeAPIKeys) Create(ctx context.Context, key *models.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	f.keys[key.KeyHash] = key
	return nil
}
