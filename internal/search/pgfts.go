package search

import (
	"context"
	"fmt"
	"strings"

	"launchkit/api/internal/store"
)

// Backend is the relational side of search: the full-text fallback and the
// loaders used for reindexing.
type Backend interface {
	SearchWorkspace(ctx context.Context, workspaceID, query string, limit int) ([]store.SearchHit, error)
	AllSites(ctx context.Context) ([]store.Site, error)
	AllCampaigns(ctx context.Context) ([]store.Campaign, error)
}

// PgFTS answers queries with PostgreSQL full-text search when Meilisearch is
// not available.
type PgFTS struct {
	backend Backend
}

func NewPgFTS(backend Backend) *PgFTS {
	return &PgFTS{backend: backend}
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || strings.TrimSpace(q.WorkspaceID) == "" {
		return nil, 0, nil
	}
	hits, err := p.backend.SearchWorkspace(ctx, q.WorkspaceID, q.Text, limitOrDefault(q.Limit))
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		kind := Kind(hit.Kind)
		if q.Kind != "" && q.Kind != kind {
			continue
		}
		// The query is already scoped; this guards against a widened SQL filter.
		if hit.WorkspaceID != q.WorkspaceID {
			continue
		}
		results = append(results, Result{
			Kind:        kind,
			ID:          hit.ID,
			WorkspaceID: hit.WorkspaceID,
			SiteID:      hit.SiteID,
			Title:       hit.Title,
			Snippet:     hit.Subtitle,
		})
	}
	return results, len(results), nil
}

// LoadAllRecords returns every searchable record for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SiteRecord, []CampaignRecord, error) {
	sites, err := p.backend.AllSites(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load sites: %w", err)
	}
	campaigns, err := p.backend.AllCampaigns(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load campaigns: %w", err)
	}

	siteRecords := make([]SiteRecord, 0, len(sites))
	for _, site := range sites {
		siteRecords = append(siteRecords, SiteRecordFrom(site))
	}
	campaignRecords := make([]CampaignRecord, 0, len(campaigns))
	for _, campaign := range campaigns {
		campaignRecords = append(campaignRecords, CampaignRecordFrom(campaign))
	}
	return siteRecords, campaignRecords, nil
}

func SiteRecordFrom(site store.Site) SiteRecord {
	record := SiteRecord{
		ID:          site.ID,
		WorkspaceID: site.WorkspaceID,
		Name:        site.Name,
		Subdomain:   site.Subdomain,
		Description: site.Description,
	}
	if site.CustomDomain != nil {
		record.CustomDomain = *site.CustomDomain
	}
	return record
}

func CampaignRecordFrom(c store.Campaign) CampaignRecord {
	return CampaignRecord{
		ID:          c.ID,
		WorkspaceID: c.WorkspaceID,
		SiteID:      c.SiteID,
		Name:        c.Name,
		Slug:        c.Slug,
		Status:      c.Status,
	}
}
