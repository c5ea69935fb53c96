package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"contentcal/api/internal/content"
	"contentcal/api/internal/logger"
)

// PlanKey is the key holding the serialized plan.
const PlanKey = "contentCalendarPlan"

// PlanStore is the local persistence adapter for a single plan.
type PlanStore struct {
	kv  KV
	log logger.Logger
}

func NewPlanStore(kv KV, log logger.Logger) *PlanStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &PlanStore{kv: kv, log: log.With(logger.String("component", "localstore"))}
}

// Save writes plan and verifies the write by reading it back. A nil plan is
// rejected. On any integrity failure the previously stored value is restored.
func (s *PlanStore) Save(ctx context.Context, plan content.Plan) error {
	if plan == nil {
		return fmt.Errorf("%w: plan must be an array", content.ErrValidation)
	}

	snapshot := plan.Clone()
	if len(snapshot) != len(plan) {
		return fmt.Errorf("%w: copy has %d items, want %d", content.ErrIntegrity, len(snapshot), len(plan))
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: encode plan: %v", content.ErrIntegrity, err)
	}

	previous, hadPrevious, err := s.kv.Get(ctx, PlanKey)
	if err != nil {
		s.log.Warn("Read previous plan failed", logger.Error(err))
		return err
	}
	if err := s.kv.Set(ctx, PlanKey, string(payload)); err != nil {
		s.log.Warn("Write plan failed", logger.Error(err))
		return err
	}

	if err := s.verify(ctx, snapshot); err != nil {
		s.log.Error("Plan read-back mismatch, restoring previous value", logger.Error(err), logger.Int("items", len(snapshot)))
		s.restore(ctx, previous, hadPrevious)
		return err
	}

	s.log.Debug("Plan saved", logger.Int("items", len(snapshot)))
	return nil
}

// SaveJSON accepts a raw request body. Anything other than a JSON array is
// rejected before storage is touched.
func (s *PlanStore) SaveJSON(ctx context.Context, raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("%w: plan must be an array", content.ErrValidation)
	}
	var plan content.Plan
	if err := json.Unmarshal(trimmed, &plan); err != nil {
		if errors.Is(err, content.ErrIntegrity) {
			return err
		}
		return fmt.Errorf("%w: decode plan: %v", content.ErrValidation, err)
	}
	if plan == nil {
		plan = content.Plan{}
	}
	return s.Save(ctx, plan)
}

// Load returns the stored plan, or nil when nothing usable is stored.
func (s *PlanStore) Load(ctx context.Context) (content.Plan, error) {
	raw, ok, err := s.kv.Get(ctx, PlanKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var plan content.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		s.log.Warn("Stored plan is not a valid array, ignoring", logger.Error(err))
		return nil, nil
	}
	return plan, nil
}

func (s *PlanStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, PlanKey); err != nil {
		s.log.Warn("Clear plan failed", logger.Error(err))
		return err
	}
	return nil
}

func (s *PlanStore) verify(ctx context.Context, want content.Plan) error {
	stored, ok, err := s.kv.Get(ctx, PlanKey)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: plan missing after write", content.ErrIntegrity)
	}
	var readBack content.Plan
	if err := json.Unmarshal([]byte(stored), &readBack); err != nil {
		return fmt.Errorf("%w: stored plan unreadable: %v", content.ErrIntegrity, err)
	}
	if !content.SameIDs(readBack, want) {
		return fmt.Errorf("%w: stored %d items, want %d", content.ErrIntegrity, len(readBack), len(want))
	}
	return nil
}

func (s *PlanStore) restore(ctx context.Context, previous string, hadPrevious bool) {
	var err error
	if hadPrevious {
		err = s.kv.Set(ctx, PlanKey, previous)
	} else {
		err = s.kv.Delete(ctx, PlanKey)
	}
	if err != nil {
		s.log.Error("Restore previous plan failed", logger.Error(err))
	}
}
