package search

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

var ErrEngineUnavailable = errors.New("search engine unavailable")

// Service is the facade that tries the engine first and falls back to PG FTS.
type Service struct {
	engine Engine
	pgfts  *PgFTS
	logger zerolog.Logger
	async  func(func())
}

// NewService creates a search service. engine may be nil when Meilisearch is
// not configured.
func NewService(engine Engine, pgfts *PgFTS, logger zerolog.Logger) *Service {
	return &Service{
		engine: engine,
		pgfts:  pgfts,
		logger: logger,
		async:  func(f func()) { go f() },
	}
}

func (s *Service) engineReady() bool {
	return s != nil && s.engine != nil && s.engine.Healthy()
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	empty := Response{Results: []Result{}, Query: q.Text}
	if s == nil || q.WorkspaceID == "" {
		return empty
	}
	if s.engineReady() {
		results, total, err := s.engine.Search(q)
		if err == nil {
			return Response{Results: scoped(results, q.WorkspaceID), Total: total, Query: q.Text}
		}
		s.logger.Warn().Err(err).Msg("engine search failed, falling back to pgfts")
	}
	if s.pgfts == nil {
		return empty
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.logger.Error().Err(err).Str("workspace_id", q.WorkspaceID).Msg("pgfts search failed")
		return empty
	}
	return Response{Results: scoped(results, q.WorkspaceID), Total: total, Query: q.Text}
}

func (s *Service) IndexSite(record SiteRecord) {
	s.fire("index site", record.ID, func() error { return s.engine.IndexSites([]SiteRecord{record}) })
}

func (s *Service) IndexCampaign(record CampaignRecord) {
	s.fire("index campaign", record.ID, func() error { return s.engine.IndexCampaigns([]CampaignRecord{record}) })
}

func (s *Service) DeleteSite(id string) {
	s.fire("delete site", id, func() error { return s.engine.DeleteSite(id) })
}

func (s *Service) DeleteCampaign(id string) {
	s.fire("delete campaign", id, func() error { return s.engine.DeleteCampaign(id) })
}

func (s *Service) fire(op, id string, f func() error) {
	if !s.engineReady() {
		return
	}
	s.async(func() {
		if err := f(); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("search: " + op)
		}
	})
}

// ReindexAll loads every record from Postgres and pushes it to the engine.
func (s *Service) ReindexAll(ctx context.Context) (sites, campaigns int, err error) {
	if !s.engineReady() || s.pgfts == nil {
		return 0, 0, ErrEngineUnavailable
	}
	siteRecords, campaignRecords, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := s.engine.IndexSites(siteRecords); err != nil {
		return 0, 0, err
	}
	if err := s.engine.IndexCampaigns(campaignRecords); err != nil {
		return len(siteRecords), 0, err
	}
	return len(siteRecords), len(campaignRecords), nil
}

func scoped(results []Result, workspaceID string) []Result {
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		if result.WorkspaceID == workspaceID {
			filtered = append(filtered, result)
		}
	}
	return filtered
}
