package store

import (
	"context"
)

// SearchHit is one full-text match returned by the Postgres fallback.
type SearchHit struct {
	Kind        string
	ID          string
	WorkspaceID string
	SiteID      string
	Title       string
	Subtitle    string
	Rank        float64
}

// SearchWorkspace runs a full-text query over sites and campaigns of one
// workspace.
func (s *PostgresStore) SearchWorkspace(ctx context.Context, workspaceID, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH q AS (SELECT plainto_tsquery('simple', $2) AS query)
		SELECT 'site', s.id::text, s.workspace_id::text, s.id::text, s.name, s.subdomain, ts_rank(s.fts, q.query) AS rank
		FROM sites s, q
		WHERE s.workspace_id = $1 AND s.fts @@ q.query
		UNION ALL
		SELECT 'campaign', c.id::text, s.workspace_id::text, s.id::text, c.name, c.slug, ts_rank(c.fts, q.query) AS rank
		FROM campaigns c JOIN sites s ON s.id = c.site_id, q
		WHERE s.workspace_id = $1 AND c.fts @@ q.query
		ORDER BY rank DESC
		LIMIT $3`, workspaceID, query, limit)
	if err != nil {
		return nil, wrap("search workspace", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		if err := rows.Scan(&hit.Kind, &hit.ID, &hit.WorkspaceID, &hit.SiteID, &hit.Title, &hit.Subtitle, &hit.Rank); err != nil {
			return nil, wrap("scan search hit", err)
		}
		out = append(out, hit)
	}
	return out, wrap("iterate search hits", rows.Err())
}

// AllSites streams every site for search reindexing.
func (s *PostgresStore) AllSites(ctx context.Context) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY created_at`)
	if err != nil {
		return nil, wrap("load sites", err)
	}
	defer rows.Close()

	var out []Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, wrap("scan site", err)
		}
		out = append(out, site)
	}
	return out, wrap("iterate sites", rows.Err())
}

// AllCampaigns loads every campaign for search reindexing.
func (s *PostgresStore) AllCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+campaignColumns+campaignFrom+`ORDER BY c.created_at`)
	if err != nil {
		return nil, wrap("load campaigns", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, wrap("scan campaign", err)
		}
		out = append(out, c)
	}
	return out, wrap("iterate campaigns", rows.Err())
}
