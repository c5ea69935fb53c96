// Package reconcile decides how a freshly generated plan is merged with the
// plan a tenant already has, and persists the result to the right store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"contentcal/api/internal/content"
	"contentcal/api/internal/logger"
)

type Resolution string

const (
	ResolutionUndecided Resolution = ""
	ResolutionReplace   Resolution = "replace"
	ResolutionAppend    Resolution = "append"
)

func ParseResolution(raw string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(raw))); r {
	case ResolutionUndecided, ResolutionReplace, ResolutionAppend:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown resolution %q", content.ErrValidation, raw)
}

type Destination string

const (
	DestinationRemote Destination = "remote"
	DestinationLocal  Destination = "local"
)

// ErrDecisionRequired is returned when a plan already exists and the caller
// did not choose between replace and append.
var ErrDecisionRequired = errors.New("existing plan found, choose replace or append")

// RemoteStore is the tenant-scoped persistence the engine writes through.
type RemoteStore interface {
	Load(ctx context.Context, tenant content.Tenant) (content.Plan, error)
	AddMany(ctx context.Context, items content.Plan, tenant content.Tenant) (content.Plan, error)
	ReplaceAll(ctx context.Context, items content.Plan, tenant content.Tenant) (content.Plan, error)
}

// LocalStore is a single session's key-value plan.
type LocalStore interface {
	Load(ctx context.Context) (content.Plan, error)
	Save(ctx context.Context, plan content.Plan) error
}

// LocalResolver returns the local store for a session id.
type LocalResolver func(sessionID string) LocalStore

// Target selects where a plan lives. A valid tenant wins over a session.
type Target struct {
	Tenant    *content.Tenant
	SessionID string
}

func (t Target) remote() (content.Tenant, bool) {
	if t.Tenant != nil && t.Tenant.Valid() {
		return *t.Tenant, true
	}
	return content.Tenant{}, false
}

type Request struct {
	Target     Target
	Candidate  content.Plan
	Resolution Resolution
}

type Outcome struct {
	Saved         bool        `json:"saved"`
	Count         int         `json:"count"`
	Total         int         `json:"total"`
	Message       string      `json:"message"`
	Destination   Destination `json:"destination,omitempty"`
	Conflict      bool        `json:"conflict"`
	ExistingCount int         `json:"existingCount"`
	Resolution    Resolution  `json:"resolution,omitempty"`
}

// SaveEvent describes a completed save. Plan is the full persisted plan.
type SaveEvent struct {
	Tenant      content.Tenant
	SessionID   string
	Destination Destination
	Resolution  Resolution
	Written     int
	Plan        content.Plan
}

// Hook runs after a successful save. Errors are logged and never fail the save.
type Hook func(ctx context.Context, event SaveEvent) error

type Engine struct {
	remote RemoteStore
	local  LocalResolver
	hooks  []Hook
	log    logger.Logger
}

func NewEngine(remote RemoteStore, local LocalResolver, log logger.Logger, hooks ...Hook) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		remote: remote,
		local:  local,
		hooks:  hooks,
		log:    log.With(logger.String("component", "reconcile")),
	}
}

// Current loads the persisted plan for the target.
func (e *Engine) Current(ctx context.Context, target Target) (content.Plan, Destination, error) {
	if tenant, ok := target.remote(); ok {
		if e.remote == nil {
			return nil, DestinationRemote, fmt.Errorf("%w: remote store is not configured", content.ErrTransport)
		}
		plan, err := e.remote.Load(ctx, tenant)
		return plan, DestinationRemote, err
	}
	local, err := e.localStore(target)
	if err != nil {
		return nil, DestinationLocal, err
	}
	plan, err := local.Load(ctx)
	return plan, DestinationLocal, err
}

// Inspect reports how many items are already persisted for the target so a
// caller can present the replace/append choice before approving.
func (e *Engine) Inspect(ctx context.Context, target Target) (Outcome, error) {
	current, destination, err := e.Current(ctx, target)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Destination:   destination,
		Conflict:      len(current) > 0,
		ExistingCount: len(current),
	}, nil
}

// ApproveAndSave persists the candidate plan. With an existing plan and no
// resolution nothing is written and ErrDecisionRequired is returned along
// with the conflict details.
func (e *Engine) ApproveAndSave(ctx context.Context, req Request) (Outcome, error) {
	if _, err := ParseResolution(string(req.Resolution)); err != nil {
		return Outcome{}, err
	}
	candidate := req.Candidate.Clone()
	if len(candidate) == 0 {
		return Outcome{}, fmt.Errorf("%w: candidate plan is empty", content.ErrValidation)
	}

	current, destination, err := e.Current(ctx, req.Target)
	if err != nil {
		e.log.Error("Load current plan failed", logger.Error(err), logger.String("destination", string(destination)))
		return Outcome{}, err
	}

	resolution := req.Resolution
	if len(current) > 0 && resolution == ResolutionUndecided {
		return Outcome{
			Destination:   destination,
			Conflict:      true,
			ExistingCount: len(current),
		}, ErrDecisionRequired
	}
	if len(current) == 0 {
		resolution = ResolutionReplace
	}

	persisted := candidate
	if resolution == ResolutionAppend {
		persisted = content.Concat(current, candidate)
	}
	persisted.SortByDueDate()
	if err := persisted.Validate(); err != nil {
		return Outcome{}, err
	}

	var saved content.Plan
	switch destination {
	case DestinationRemote:
		saved, err = e.saveRemote(ctx, *req.Target.Tenant, current, candidate, resolution)
	default:
		saved, err = e.saveLocal(ctx, req.Target, persisted)
	}
	if err != nil {
		e.log.Error("Save plan failed", logger.Error(err),
			logger.String("destination", string(destination)),
			logger.String("resolution", string(resolution)))
		return Outcome{}, err
	}

	outcome := Outcome{
		Saved:         true,
		Count:         len(candidate),
		Total:         len(saved),
		Message:       fmt.Sprintf("Saved %d content items", len(candidate)),
		Destination:   destination,
		Conflict:      len(current) > 0,
		ExistingCount: len(current),
		Resolution:    resolution,
	}
	e.runHooks(ctx, SaveEvent{
		Tenant:      tenantOf(req.Target),
		SessionID:   req.Target.SessionID,
		Destination: destination,
		Resolution:  resolution,
		Written:     len(candidate),
		Plan:        saved,
	})
	return outcome, nil
}

func (e *Engine) saveRemote(ctx context.Context, tenant content.Tenant, current, candidate content.Plan, resolution Resolution) (content.Plan, error) {
	if resolution == ResolutionAppend {
		stored, err := e.remote.AddMany(ctx, candidate, tenant)
		if err != nil {
			return nil, err
		}
		merged := content.Concat(current, stored)
		merged.SortByDueDate()
		return merged, nil
	}
	return e.remote.ReplaceAll(ctx, candidate, tenant)
}

func (e *Engine) saveLocal(ctx context.Context, target Target, plan content.Plan) (content.Plan, error) {
	local, err := e.localStore(target)
	if err != nil {
		return nil, err
	}
	if err := local.Save(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *Engine) localStore(target Target) (LocalStore, error) {
	if strings.TrimSpace(target.SessionID) == "" || e.local == nil {
		return nil, fmt.Errorf("%w: a tenant or session is required", content.ErrValidation)
	}
	return e.local(target.SessionID), nil
}

func (e *Engine) runHooks(ctx context.Context, event SaveEvent) {
	for _, hook := range e.hooks {
		if err := hook(ctx, event); err != nil {
			e.log.Warn("Post-save hook failed", logger.Error(err), logger.String("destination", string(event.Destination)))
		}
	}
}

func tenantOf(target Target) content.Tenant {
	if tenant, ok := target.remote(); ok {
		return tenant
	}
	return content.Tenant{}
}
