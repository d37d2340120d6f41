package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
)

const campaignColumns = `c.id, c.site_id, s.workspace_id, c.name, c.slug, c.status, c.content,
	c.published_at, COALESCE(c.created_by::text, ''), c.created_at, c.updated_at`

const campaignFrom = ` FROM campaigns c JOIN sites s ON s.id = c.site_id `

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var content []byte
	var published sql.NullTime
	if err := row.Scan(&c.ID, &c.SiteID, &c.WorkspaceID, &c.Name, &c.Slug, &c.Status, &content, &published, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Campaign{}, err
	}
	c.Content = copyJSON(content)
	c.PublishedAt = nullTime(published)
	return c, nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, siteID, name, slug, createdBy string, content json.RawMessage) (Campaign, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (site_id, name, slug, content, created_by)
		VALUES ($1, $2, LOWER($3), $4::jsonb, $5)
		RETURNING id`,
		siteID, name, strings.TrimSpace(slug), jsonOrDefault(content, `{"blocks":[]}`), nullString(createdBy),
	).Scan(&id)
	if err != nil {
		return Campaign{}, wrap("insert campaign", err)
	}
	return s.GetCampaign(ctx, id)
}

func (s *PostgresStore) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	c, err := scanCampaign(s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+campaignFrom+`WHERE c.id = $1`, campaignID))
	if err != nil {
		return Campaign{}, wrap("lookup campaign", err)
	}
	return c, nil
}

// GetPublishedCampaign resolves a public page by site and slug.
func (s *PostgresStore) GetPublishedCampaign(ctx context.Context, siteID, slug string) (Campaign, error) {
	c, err := scanCampaign(s.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+campaignFrom+`WHERE c.site_id = $1 AND LOWER(c.slug) = LOWER($2) AND c.status = 'published'`,
		siteID, slug))
	if err != nil {
		return Campaign{}, wrap("lookup published campaign", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, siteID string) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+campaignColumns+campaignFrom+`WHERE c.site_id = $1 ORDER BY c.updated_at DESC`, siteID)
	if err != nil {
		return nil, wrap("list campaigns", err)
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

func (s *PostgresStore) UpdateCampaignContent(ctx context.Context, campaignID, name, slug string, content json.RawMessage) (Campaign, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET name = COALESCE(NULLIF($2, ''), name), slug = COALESCE(NULLIF(LOWER($3), ''), slug),
			content = $4::jsonb, updated_at = NOW()
		WHERE id = $1`,
		campaignID, name, strings.TrimSpace(slug), jsonOrDefault(content, `{"blocks":[]}`))
	if err != nil {
		return Campaign{}, wrap("update campaign", err)
	}
	if err := requireRow(res, "update campaign"); err != nil {
		return Campaign{}, err
	}
	return s.GetCampaign(ctx, campaignID)
}

// SetCampaignStatus moves a campaign between draft and published. Publishing
// stamps published_at; unpublishing keeps the last publish time.
func (s *PostgresStore) SetCampaignStatus(ctx context.Context, campaignID, status string) (Campaign, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $2,
			published_at = CASE WHEN $2 = 'published' THEN NOW() ELSE published_at END,
			updated_at = NOW()
		WHERE id = $1`, campaignID, status)
	if err != nil {
		return Campaign{}, wrap("set campaign status", err)
	}
	if err := requireRow(res, "set campaign status"); err != nil {
		return Campaign{}, err
	}
	return s.GetCampaign(ctx, campaignID)
}

func (s *PostgresStore) DeleteCampaign(ctx context.Context, campaignID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, campaignID)
	if err != nil {
		return wrap("delete campaign", err)
	}
	return requireRow(res, "delete campaign")
}
