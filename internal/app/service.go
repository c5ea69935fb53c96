package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"contentcal/api/internal/config"
	"contentcal/api/internal/content"
	"contentcal/api/internal/export"
	"contentcal/api/internal/history"
	"contentcal/api/internal/localstore"
	"contentcal/api/internal/lock"
	"contentcal/api/internal/logger"
	"contentcal/api/internal/metrics"
	"contentcal/api/internal/planner"
	"contentcal/api/internal/reconcile"
	"contentcal/api/internal/scheduler"
	"contentcal/api/internal/search"
	"contentcal/api/internal/store"
)

// ItemStore is the tenant-scoped item persistence behind single-item edits.
type ItemStore interface {
	Load(ctx context.Context, tenant content.Tenant) (content.Plan, error)
	Get(ctx context.Context, itemID string, tenant content.Tenant) (content.Item, error)
	Add(ctx context.Context, item content.Item, tenant content.Tenant) (content.Item, error)
	ReplaceAll(ctx context.Context, items content.Plan, tenant content.Tenant) (content.Plan, error)
	Update(ctx context.Context, item content.Item, tenant content.Tenant, lockToken string) error
	SetCompleted(ctx context.Context, itemID string, tenant content.Tenant, completed bool) error
	Delete(ctx context.Context, itemID string) error
}

type WebsiteStore interface {
	ListWebsites(ctx context.Context, userID string) ([]store.Website, error)
	GetWebsite(ctx context.Context, userID, websiteID string) (store.Website, error)
	CreateWebsite(ctx context.Context, userID, name, url string) (store.Website, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Service is assembled from. Search, History,
// Scheduler and Metrics are optional.
type Deps struct {
	Items     ItemStore
	Websites  WebsiteStore
	Engine    *reconcile.Engine
	Locks     *lock.Manager
	KV        *localstore.RedisKV
	Scheduler *scheduler.Scheduler
	Jobs      func() []scheduler.Job
	Search    *search.Service
	History   *history.Recorder
	Exporter  *export.Service
	Metrics   *metrics.Metrics
	Log       logger.Logger
	Now       func() time.Time
	Rand      func() *rand.Rand
}

type Service struct {
	cfg       config.Config
	items     ItemStore
	websites  WebsiteStore
	engine    *reconcile.Engine
	locks     *lock.Manager
	kv        *localstore.RedisKV
	subs      *localstore.Subscriptions
	scheduler *scheduler.Scheduler
	jobs      func() []scheduler.Job
	search    *search.Service
	history   *history.Recorder
	exporter  *export.Service
	metrics   *metrics.Metrics
	log       logger.Logger
	now       func() time.Time
	rng       func() *rand.Rand
}

func New(cfg config.Config, deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewService()
	}
	svc := &Service{
		cfg:       cfg,
		items:     deps.Items,
		websites:  deps.Websites,
		engine:    deps.Engine,
		locks:     deps.Locks,
		kv:        deps.KV,
		scheduler: deps.Scheduler,
		jobs:      deps.Jobs,
		search:    deps.Search,
		history:   deps.History,
		exporter:  deps.Exporter,
		metrics:   deps.Metrics,
		log:       deps.Log.With(logger.String("component", "app")),
		now:       deps.Now,
		rng:       deps.Rand,
	}
	if deps.KV != nil {
		svc.subs = localstore.NewSubscriptions(deps.KV)
	}
	return svc
}

var (
	errAuthRequired   = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to use this endpoint", nil)
	errTenantRequired = domainError(http.StatusBadRequest, "WEBSITE_REQUIRED", "X-Website-ID is required", nil)
)

func requireTenant(caller Caller) (content.Tenant, error) {
	if !caller.Authenticated() {
		return content.Tenant{}, errAuthRequired
	}
	tenant, ok := caller.Tenant()
	if !ok {
		return content.Tenant{}, errTenantRequired
	}
	return tenant, nil
}

// GenerateInput carries generator options as they arrive over the wire.
type GenerateInput struct {
	Keywords        []string `json:"keywords"`
	StartDate       string   `json:"startDate"`
	IncludeWeekends bool     `json:"includeWeekends"`
	ContentTypes    []string `json:"contentTypes"`
}

// Generate produces a candidate plan. Nothing is persisted.
func (s *Service) Generate(_ context.Context, input GenerateInput) (content.Plan, error) {
	opts := planner.Options{
		Keywords:        input.Keywords,
		StartDate:       content.DateOnly(s.now().UTC()),
		IncludeWeekends: input.IncludeWeekends,
	}
	if raw := strings.TrimSpace(input.StartDate); raw != "" {
		start, err := parseDate(raw)
		if err != nil {
			s.observeGenerate(err)
			return nil, err
		}
		opts.StartDate = start
	}
	for _, raw := range input.ContentTypes {
		t, err := content.ParseContentType(raw)
		if err != nil {
			s.observeGenerate(err)
			return nil, err
		}
		opts.ContentTypes = append(opts.ContentTypes, t)
	}

	var rng *rand.Rand
	if s.rng != nil {
		rng = s.rng()
	}
	plan, err := planner.Generate(opts, rng)
	s.observeGenerate(err)
	return plan, err
}

func (s *Service) observeGenerate(err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "invalid"
	}
	s.metrics.PlansGenerated.WithLabelValues(status).Inc()
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: startDate must be YYYY-MM-DD", content.ErrValidation)
	}
	return content.DateOnly(t.UTC()), nil
}

// PlanView is the persisted plan together with where it lives.
type PlanView struct {
	Items       content.Plan          `json:"items"`
	Destination reconcile.Destination `json:"destination"`
}

func (s *Service) Plan(ctx context.Context, caller Caller) (PlanView, error) {
	plan, destination, err := s.engine.Current(ctx, caller.Target())
	if err != nil {
		return PlanView{}, err
	}
	if plan == nil {
		plan = content.Plan{}
	}
	return PlanView{Items: plan, Destination: destination}, nil
}

// Status reports whether approving now would need a replace/append decision.
func (s *Service) Status(ctx context.Context, caller Caller) (reconcile.Outcome, error) {
	return s.engine.Inspect(ctx, caller.Target())
}

type ApproveInput struct {
	Plan       content.Plan `json:"plan"`
	Resolution string       `json:"resolution"`
}

func (s *Service) Approve(ctx context.Context, caller Caller, input ApproveInput) (reconcile.Outcome, error) {
	resolution, err := reconcile.ParseResolution(input.Resolution)
	if err != nil {
		return reconcile.Outcome{}, err
	}
	return s.engine.ApproveAndSave(ctx, reconcile.Request{
		Target:     caller.Target(),
		Candidate:  input.Plan,
		Resolution: resolution,
	})
}

func (s *Service) localPlan(sessionID string) *localstore.PlanStore {
	return localstore.NewPlanStore(s.kv.ForSession(sessionID), s.log)
}

// editLocal applies fn to the session's plan and saves the result.
func (s *Service) editLocal(ctx context.Context, caller Caller, fn func(content.Plan) (content.Plan, error)) error {
	sessionID := strings.TrimSpace(caller.SessionID)
	if sessionID == "" || s.kv == nil {
		return fmt.Errorf("%w: a tenant or session is required", content.ErrValidation)
	}
	local := s.localPlan(sessionID)
	plan, err := local.Load(ctx)
	if err != nil {
		return err
	}
	if plan == nil {
		plan = content.Plan{}
	}
	next, err := fn(plan)
	if err != nil {
		return err
	}
	next.SortByDueDate()
	return local.Save(ctx, next)
}

func indexOf(plan content.Plan, id string) int {
	for i, item := range plan {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) AddItem(ctx context.Context, caller Caller, item content.Item) (content.Item, error) {
	if strings.TrimSpace(item.ID) == "" {
		item.ID = content.NewProvisionalID()
	}
	if err := item.Validate(); err != nil {
		return content.Item{}, err
	}

	if tenant, ok := caller.Tenant(); ok {
		stored, err := s.items.Add(ctx, item, tenant)
		if err != nil {
			s.log.Error("Add item failed", logger.Error(err), logger.Tenant(tenant.UserID, tenant.WebsiteID))
			return content.Item{}, err
		}
		s.indexItem(tenant, stored)
		s.snapshot(ctx, tenant, caller.UserID, "Add "+stored.ID)
		return stored, nil
	}

	err := s.editLocal(ctx, caller, func(plan content.Plan) (content.Plan, error) {
		if indexOf(plan, item.ID) >= 0 {
			return nil, fmt.Errorf("%w: duplicate item id %s", content.ErrValidation, item.ID)
		}
		return append(plan, item.Clone()), nil
	})
	if err != nil {
		return content.Item{}, err
	}
	return item, nil
}

// UpdateItem replaces an item. Remote edits must present the token of a
// live lock the caller holds.
func (s *Service) UpdateItem(ctx context.Context, caller Caller, item content.Item, lockToken string) (content.Item, error) {
	if err := item.Validate(); err != nil {
		return content.Item{}, err
	}

	if tenant, ok := caller.Tenant(); ok {
		if err := s.items.Update(ctx, item, tenant, lockToken); err != nil {
			if !errors.Is(err, store.ErrLockRequired) && !errors.Is(err, store.ErrNotFound) {
				s.log.Error("Update item failed", logger.Error(err), logger.String("item_id", item.ID))
			}
			return content.Item{}, err
		}
		s.indexItem(tenant, item)
		s.snapshot(ctx, tenant, caller.UserID, "Edit "+item.ID)
		return item, nil
	}

	err := s.editLocal(ctx, caller, func(plan content.Plan) (content.Plan, error) {
		i := indexOf(plan, item.ID)
		if i < 0 {
			return nil, store.ErrNotFound
		}
		plan[i] = item.Clone()
		return plan, nil
	})
	if err != nil {
		return content.Item{}, err
	}
	return item, nil
}

// ToggleItem sets completed, or flips it when completed is nil.
func (s *Service) ToggleItem(ctx context.Context, caller Caller, itemID string, completed *bool) (content.Item, error) {
	if tenant, ok := caller.Tenant(); ok {
		item, err := s.items.Get(ctx, itemID, tenant)
		if err != nil {
			return content.Item{}, err
		}
		item.Completed = !item.Completed
		if completed != nil {
			item.Completed = *completed
		}
		if err := s.items.SetCompleted(ctx, itemID, tenant, item.Completed); err != nil {
			return content.Item{}, err
		}
		s.indexItem(tenant, item)
		return item, nil
	}

	var toggled content.Item
	err := s.editLocal(ctx, caller, func(plan content.Plan) (content.Plan, error) {
		i := indexOf(plan, itemID)
		if i < 0 {
			return nil, store.ErrNotFound
		}
		plan[i].Completed = !plan[i].Completed
		if completed != nil {
			plan[i].Completed = *completed
		}
		toggled = plan[i].Clone()
		return plan, nil
	})
	return toggled, err
}

// DeleteItem removes an item by id. The remote delete itself is not tenant
// scoped, so ownership is checked here first.
func (s *Service) DeleteItem(ctx context.Context, caller Caller, itemID string) error {
	if tenant, ok := caller.Tenant(); ok {
		if _, err := s.items.Get(ctx, itemID, tenant); err != nil {
			return err
		}
		if err := s.items.Delete(ctx, itemID); err != nil {
			return err
		}
		if s.search != nil {
			s.search.DeleteItem(itemID)
		}
		s.snapshot(ctx, tenant, caller.UserID, "Delete "+itemID)
		return nil
	}

	return s.editLocal(ctx, caller, func(plan content.Plan) (content.Plan, error) {
		i := indexOf(plan, itemID)
		if i < 0 {
			return nil, store.ErrNotFound
		}
		return append(plan[:i], plan[i+1:]...), nil
	})
}

func (s *Service) indexItem(tenant content.Tenant, item content.Item) {
	if s.search != nil {
		s.search.IndexItem(tenant, item)
	}
}

// snapshot records the tenant's current remote plan in history. Failures are
// logged only.
func (s *Service) snapshot(ctx context.Context, tenant content.Tenant, author, message string) {
	if s.history == nil {
		return
	}
	plan, err := s.items.Load(ctx, tenant)
	if err != nil {
		s.log.Warn("Load plan for snapshot failed", logger.Error(err))
		return
	}
	if _, err := s.history.Snapshot(tenant, plan, author, message); err != nil {
		s.log.Warn("Plan snapshot failed", logger.Error(err), logger.Tenant(tenant.UserID, tenant.WebsiteID))
	}
}

func (s *Service) AcquireLock(ctx context.Context, caller Caller, itemID string) (content.Lock, error) {
	if !caller.Authenticated() {
		return content.Lock{}, errAuthRequired
	}
	l, err := s.locks.Acquire(ctx, itemID, caller.UserID)
	s.observeLock("acquire", err)
	return l, err
}

func (s *Service) ReleaseLock(ctx context.Context, caller Caller, itemID string) error {
	if !caller.Authenticated() {
		return errAuthRequired
	}
	err := s.locks.Release(ctx, itemID)
	s.observeLock("release", err)
	return err
}

func (s *Service) RenewLock(ctx context.Context, caller Caller, itemID string) (bool, error) {
	if !caller.Authenticated() {
		return false, errAuthRequired
	}
	renewed, err := s.locks.Renew(ctx, itemID)
	s.observeLock("renew", err)
	return renewed, err
}

// LockState is the live lock on an item, if any.
type LockState struct {
	Locked bool          `json:"locked"`
	Lock   *content.Lock `json:"lock,omitempty"`
	Mine   bool          `json:"mine"`
}

func (s *Service) LockStatus(ctx context.Context, caller Caller, itemID string) (LockState, error) {
	current, err := s.locks.Current(ctx, itemID)
	if err != nil {
		return LockState{}, err
	}
	if current == nil {
		return LockState{}, nil
	}
	state := LockState{Locked: true, Lock: current, Mine: caller.Authenticated() && current.UserID == caller.UserID}
	if !state.Mine {
		// the token is a write credential; only its holder sees it
		masked := *current
		masked.ID = ""
		state.Lock = &masked
	}
	return state, nil
}

func (s *Service) observeLock(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, lock.ErrLocked):
		outcome = "locked"
	case errors.Is(err, lock.ErrStaleLockCleared):
		outcome = "stale"
	default:
		outcome = "error"
	}
	s.metrics.ObserveLock(operation, outcome)
}

// settingsKV scopes settings like plans: tenant first, then session.
func (s *Service) settingsKV(caller Caller) (*localstore.RedisKV, error) {
	if s.kv == nil {
		return nil, fmt.Errorf("%w: settings store is not configured", content.ErrTransport)
	}
	if tenant, ok := caller.Tenant(); ok {
		return s.kv.ForTenant(tenant), nil
	}
	if sessionID := strings.TrimSpace(caller.SessionID); sessionID != "" {
		return s.kv.ForSession(sessionID), nil
	}
	return nil, fmt.Errorf("%w: a tenant or session is required", content.ErrValidation)
}

func (s *Service) Settings(ctx context.Context, caller Caller) (localstore.Settings, error) {
	kv, err := s.settingsKV(caller)
	if err != nil {
		return localstore.Settings{}, err
	}
	return localstore.NewSettingsStore(kv).Load(ctx)
}

// SaveSettings stores the settings, updates the reminder subscription for
// tenants and re-arms the notification schedule.
func (s *Service) SaveSettings(ctx context.Context, caller Caller, settings localstore.Settings) (localstore.Settings, error) {
	kv, err := s.settingsKV(caller)
	if err != nil {
		return localstore.Settings{}, err
	}
	settingsStore := localstore.NewSettingsStore(kv)
	if err := settingsStore.Save(ctx, settings); err != nil {
		return localstore.Settings{}, err
	}

	if tenant, ok := caller.Tenant(); ok && s.subs != nil {
		saved, err := settingsStore.Load(ctx)
		if err != nil {
			return localstore.Settings{}, err
		}
		if saved.Enabled() {
			err = s.subs.Add(ctx, tenant)
		} else {
			err = s.subs.Remove(ctx, tenant)
		}
		if err != nil {
			return localstore.Settings{}, err
		}
	}

	if s.scheduler != nil && s.jobs != nil {
		if err := s.scheduler.Rearm(s.jobs()...); err != nil {
			s.log.Error("Re-arm schedule failed", logger.Error(err))
		}
	}
	return settingsStore.Load(ctx)
}

func (s *Service) Websites(ctx context.Context, caller Caller) ([]store.Website, error) {
	if !caller.Authenticated() {
		return nil, errAuthRequired
	}
	return s.websites.ListWebsites(ctx, caller.UserID)
}

type CreateWebsiteInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Service) CreateWebsite(ctx context.Context, caller Caller, input CreateWebsiteInput) (store.Website, error) {
	if !caller.Authenticated() {
		return store.Website{}, errAuthRequired
	}
	return s.websites.CreateWebsite(ctx, caller.UserID, input.Name, input.URL)
}

type SearchInput struct {
	Text        string
	ContentType string
	Limit       int
	Offset      int
}

func (s *Service) Search(ctx context.Context, caller Caller, input SearchInput) (search.Response, error) {
	tenant, err := requireTenant(caller)
	if err != nil {
		return search.Response{}, err
	}
	q := search.Query{Text: input.Text, Tenant: tenant, Limit: input.Limit, Offset: input.Offset}
	if strings.TrimSpace(input.ContentType) != "" {
		t, err := content.ParseContentType(input.ContentType)
		if err != nil {
			return search.Response{}, err
		}
		q.ContentType = t
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: strings.TrimSpace(input.Text), Backend: "none"}, nil
	}
	return s.search.Search(ctx, q), nil
}

func (s *Service) History(ctx context.Context, caller Caller, limit int) ([]history.Commit, error) {
	tenant, err := requireTenant(caller)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []history.Commit{}, nil
	}
	return s.history.Log(tenant, limit)
}

// RestoreHistory replaces the tenant's remote plan with the plan recorded
// at hash and records the restore as a new snapshot.
func (s *Service) RestoreHistory(ctx context.Context, caller Caller, hash string) (PlanView, error) {
	tenant, err := requireTenant(caller)
	if err != nil {
		return PlanView{}, err
	}
	if s.history == nil {
		return PlanView{}, history.ErrNoHistory
	}
	plan, err := s.history.PlanAt(tenant, hash)
	if err != nil {
		return PlanView{}, err
	}
	if err := plan.Validate(); err != nil {
		return PlanView{}, err
	}
	saved, err := s.items.ReplaceAll(ctx, plan, tenant)
	if err != nil {
		s.log.Error("Restore plan failed", logger.Error(err), logger.String("hash", hash))
		return PlanView{}, err
	}
	if _, err := s.history.Snapshot(tenant, saved, caller.UserID, "Restore "+hash); err != nil {
		s.log.Warn("Plan snapshot failed", logger.Error(err))
	}
	if s.search != nil {
		if err := s.search.IndexPlan(ctx, tenant, saved); err != nil {
			s.log.Warn("Index restored plan failed", logger.Error(err))
		}
	}
	return PlanView{Items: saved, Destination: reconcile.DestinationRemote}, nil
}

func (s *Service) Export(ctx context.Context, caller Caller, format export.Format, layout export.PageLayout) (*export.Result, error) {
	view, err := s.Plan(ctx, caller)
	if err != nil {
		return nil, err
	}
	req := export.Request{Title: "Content Calendar", Plan: view.Items, Format: format, Layout: layout}
	if tenant, ok := caller.Tenant(); ok && s.websites != nil {
		if site, err := s.websites.GetWebsite(ctx, tenant.UserID, tenant.WebsiteID); err == nil {
			req.WebsiteName = site.Name
			req.Title = site.Name + " Content Calendar"
		}
	}
	return s.exporter.Export(ctx, req)
}

// Ping checks Postgres and Redis.
func (s *Service) Ping(ctx context.Context) error {
	var errs []error
	if s.websites != nil {
		if err := s.websites.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if s.kv != nil {
		if err := s.kv.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
