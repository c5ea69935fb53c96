package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"contentcal/api/internal/auth"
	"contentcal/api/internal/config"
	"contentcal/api/internal/content"
	"contentcal/api/internal/export"
	"contentcal/api/internal/history"
	"contentcal/api/internal/localstore"
	"contentcal/api/internal/lock"
	"contentcal/api/internal/metrics"
	"contentcal/api/internal/reconcile"
	"contentcal/api/internal/store"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

type fakeLocks struct {
	mu    sync.Mutex
	locks map[string]content.Lock
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{locks: make(map[string]content.Lock)}
}

func (f *fakeLocks) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, l := range f.locks {
		if l.ExpiredAt(now) {
			delete(f.locks, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeLocks) Get(_ context.Context, contentID string) (*content.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[contentID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (f *fakeLocks) Insert(_ context.Context, l content.Lock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locks[l.ContentID]; ok {
		return store.ErrLockHeld
	}
	f.locks[l.ContentID] = l
	return nil
}

func (f *fakeLocks) Delete(_ context.Context, contentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.locks[contentID]
	delete(f.locks, contentID)
	return ok, nil
}

func (f *fakeLocks) Extend(_ context.Context, contentID string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[contentID]
	if !ok {
		return false, nil
	}
	l.ExpiresAt = expiresAt
	f.locks[contentID] = l
	return true, nil
}

// fakeItems keeps items per tenant and checks edit locks against fakeLocks.
type fakeItems struct {
	mu      sync.Mutex
	plans   map[string]content.Plan
	locks   *fakeLocks
	now     func() time.Time
	nextID  int
	loadErr error
}

func newFakeItems(locks *fakeLocks) *fakeItems {
	return &fakeItems{plans: make(map[string]content.Plan), locks: locks, now: func() time.Time { return testNow }}
}

func (f *fakeItems) stable(items content.Plan) content.Plan {
	out := items.Clone()
	for i := range out {
		if out[i].IsProvisional() {
			f.nextID++
			out[i].ID = fmt.Sprintf("item-%d", f.nextID)
		}
	}
	return out
}

func (f *fakeItems) Load(_ context.Context, tenant content.Tenant) (content.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	plan := f.plans[tenant.Key()].Clone()
	if plan == nil {
		plan = content.Plan{}
	}
	return plan, nil
}

func (f *fakeItems) Get(_ context.Context, itemID string, tenant content.Tenant) (content.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.plans[tenant.Key()] {
		if item.ID == itemID {
			return item.Clone(), nil
		}
	}
	return content.Item{}, store.ErrNotFound
}

func (f *fakeItems) Add(_ context.Context, item content.Item, tenant content.Tenant) (content.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.stable(content.Plan{item})[0]
	plan := append(f.plans[tenant.Key()], stored)
	plan.SortByDueDate()
	f.plans[tenant.Key()] = plan
	return stored, nil
}

func (f *fakeItems) AddMany(_ context.Context, items content.Plan, tenant content.Tenant) (content.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.stable(items)
	plan := append(f.plans[tenant.Key()], stored...)
	plan.SortByDueDate()
	f.plans[tenant.Key()] = plan
	return stored.Clone(), nil
}

func (f *fakeItems) ReplaceAll(_ context.Context, items content.Plan, tenant content.Tenant) (content.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.stable(items)
	stored.SortByDueDate()
	f.plans[tenant.Key()] = stored
	return stored.Clone(), nil
}

func (f *fakeItems) Update(ctx context.Context, item content.Item, tenant content.Tenant, lockToken string) error {
	held, _ := f.locks.Get(ctx, item.ID)
	if held == nil || held.ID != lockToken || held.UserID != tenant.UserID || held.ExpiredAt(f.now()) {
		return store.ErrLockRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	plan := f.plans[tenant.Key()]
	for i := range plan {
		if plan[i].ID == item.ID {
			plan[i] = item.Clone()
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeItems) SetCompleted(_ context.Context, itemID string, tenant content.Tenant, completed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan := f.plans[tenant.Key()]
	for i := range plan {
		if plan[i].ID == itemID {
			plan[i].Completed = completed
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeItems) Delete(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, plan := range f.plans {
		for i := range plan {
			if plan[i].ID == itemID {
				f.plans[key] = append(plan[:i], plan[i+1:]...)
				return nil
			}
		}
	}
	return store.ErrNotFound
}

type fakeWebsites struct {
	sites   []store.Website
	pingErr error
}

func (f *fakeWebsites) ListWebsites(_ context.Context, userID string) ([]store.Website, error) {
	out := make([]store.Website, 0)
	for _, site := range f.sites {
		if site.UserID == userID {
			out = append(out, site)
		}
	}
	return out, nil
}

func (f *fakeWebsites) GetWebsite(_ context.Context, userID, websiteID string) (store.Website, error) {
	for _, site := range f.sites {
		if site.UserID == userID && site.ID == websiteID {
			return site, nil
		}
	}
	return store.Website{}, store.ErrNotFound
}

func (f *fakeWebsites) CreateWebsite(_ context.Context, userID, name, url string) (store.Website, error) {
	if strings.TrimSpace(name) == "" {
		return store.Website{}, fmt.Errorf("%w: website name is required", content.ErrValidation)
	}
	site := store.Website{ID: fmt.Sprintf("site-%d", len(f.sites)+1), UserID: userID, Name: name, URL: url, CreatedAt: testNow}
	f.sites = append(f.sites, site)
	return site, nil
}

func (f *fakeWebsites) Ping(context.Context) error {
	return f.pingErr
}

type harness struct {
	server   http.Handler
	service  *Service
	items    *fakeItems
	locks    *fakeLocks
	websites *fakeWebsites
	redis    *miniredis.Miniredis
	metrics  *metrics.Metrics
	clock    *time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	kv, err := localstore.NewRedisKV("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	clock := testNow
	now := func() time.Time { return clock }

	locks := newFakeLocks()
	items := newFakeItems(locks)
	items.now = now
	websites := &fakeWebsites{sites: []store.Website{{ID: "site-1", UserID: "user-1", Name: "Acme", CreatedAt: testNow}}}
	m := metrics.New(nil)
	recorder := history.New(t.TempDir())

	local := func(sessionID string) reconcile.LocalStore {
		return localstore.NewPlanStore(kv.ForSession(sessionID), nil)
	}
	engine := reconcile.NewEngine(items, local, nil, HistoryHook(recorder), MetricsHook(m))

	svc := New(config.Config{JWTSecret: testSecret}, Deps{
		Items:    items,
		Websites: websites,
		Engine:   engine,
		Locks:    lock.NewManager(locks, lock.WithClock(now)),
		KV:       kv,
		History:  recorder,
		Exporter: export.NewServiceWithRenderer(func(context.Context, string, export.PageLayout) ([]byte, error) {
			return []byte("%PDF-1.4"), nil
		}),
		Metrics: m,
		Now:     now,
	})
	return &harness{
		server:   NewHTTPServer(svc, "*").Handler(),
		service:  svc,
		items:    items,
		locks:    locks,
		websites: websites,
		redis:    mr,
		metrics:  m,
		clock:    &clock,
	}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), userID, time.Hour)
	require.NoError(t, err)
	return token
}

type requestOption func(*http.Request)

func asUser(t *testing.T, userID, websiteID string) requestOption {
	token := tokenFor(t, userID)
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
		if websiteID != "" {
			r.Header.Set(headerWebsiteID, websiteID)
		}
	}
}

func asSession(sessionID string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(headerSessionID, sessionID)
	}
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func (h *harness) do(method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rr := httptest.NewRecorder()
	h.server.ServeHTTP(rr, req)
	return rr
}

func planJSON(ids ...string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf(`{"id":%q,"title":"Item %s","dueDate":"2025-03-%02dT00:00:00Z","contentType":"blog","contentStyle":"guide","keywords":["launch"]}`, id, id, 3+i)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
