package search

import (
	"context"
	"encoding/json"
	"strings"

	"contentcal/api/internal/content"
	"contentcal/api/internal/logger"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
	log   logger.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{meili: meili, pgfts: pgfts, log: log.With(logger.String("component", "search"))}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search never fails; backend errors produce an empty response.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if s.meiliReady() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "meilisearch"}
		}
		s.log.Warn("Meilisearch failed, falling back to pgfts", logger.Error(err))
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: "none"}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.log.Error("Pgfts search failed", logger.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: "pgfts"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: "pgfts"}
}

// IndexPlan makes the index mirror the tenant's persisted plan.
func (s *Service) IndexPlan(_ context.Context, tenant content.Tenant, plan content.Plan) error {
	if !s.meiliReady() || !tenant.Valid() {
		return nil
	}
	return s.meili.ReplaceTenant(tenant, recordsFor(tenant, plan))
}

// IndexItem indexes one item (fire-and-forget to Meilisearch).
func (s *Service) IndexItem(tenant content.Tenant, item content.Item) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexItems([]ItemRecord{RecordFor(tenant, item)}); err != nil {
			s.log.Warn("Index item failed", logger.String("item_id", item.ID), logger.Error(err))
		}
	}()
}

// DeleteItem removes an item from the index (fire-and-forget).
func (s *Service) DeleteItem(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.DeleteItem(id); err != nil {
			s.log.Warn("Delete item from index failed", logger.String("item_id", id), logger.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every stored item into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.meiliReady() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error("Reindex load failed", logger.Error(err))
		return
	}
	if err := s.meili.IndexItems(records); err != nil {
		s.log.Error("Reindex failed", logger.Error(err))
		return
	}
	s.log.Info("Reindexed items", logger.Int("count", len(records)))
}

func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

func decodeKeywords(raw string) []string {
	var keywords []string
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil || keywords == nil {
		return []string{}
	}
	return keywords
}
