package store

import (
	"context"
	"database/sql"
	"strings"
)

const siteColumns = `id, workspace_id, name, subdomain, custom_domain, description, created_at, updated_at`

func scanSite(row rowScanner) (Site, error) {
	var site Site
	var custom sql.NullString
	if err := row.Scan(&site.ID, &site.WorkspaceID, &site.Name, &site.Subdomain, &custom, &site.Description, &site.CreatedAt, &site.UpdatedAt); err != nil {
		return Site{}, err
	}
	site.CustomDomain = nullStringPtr(custom)
	return site, nil
}

type SiteInput struct {
	Name         string
	Subdomain    string
	CustomDomain string
	Description  string
}

func (s *PostgresStore) CreateSite(ctx context.Context, workspaceID string, in SiteInput) (Site, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sites (workspace_id, name, subdomain, custom_domain, description)
		VALUES ($1, $2, LOWER($3), NULLIF(LOWER($4), ''), $5)
		RETURNING `+siteColumns,
		workspaceID, in.Name, strings.TrimSpace(in.Subdomain), strings.TrimSpace(in.CustomDomain), in.Description,
	)
	site, err := scanSite(row)
	if err != nil {
		return Site{}, wrap("insert site", err)
	}
	return site, nil
}

func (s *PostgresStore) UpdateSite(ctx context.Context, siteID string, in SiteInput) (Site, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE sites
		SET name = $2, subdomain = LOWER($3), custom_domain = NULLIF(LOWER($4), ''), description = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+siteColumns,
		siteID, in.Name, strings.TrimSpace(in.Subdomain), strings.TrimSpace(in.CustomDomain), in.Description,
	)
	site, err := scanSite(row)
	if err != nil {
		return Site{}, wrap("update site", err)
	}
	return site, nil
}

func (s *PostgresStore) GetSite(ctx context.Context, siteID string) (Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, siteID))
	if err != nil {
		return Site{}, wrap("lookup site", err)
	}
	return site, nil
}

// GetSiteByHost resolves a public host. Hosts under rootDomain match by
// subdomain; anything else matches a custom domain.
func (s *PostgresStore) GetSiteByHost(ctx context.Context, host, rootDomain string) (Site, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	suffix := "." + strings.ToLower(rootDomain)
	var row *sql.Row
	if rootDomain != "" && strings.HasSuffix(host, suffix) {
		sub := strings.TrimSuffix(host, suffix)
		row = s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE LOWER(subdomain) = $1`, sub)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE LOWER(custom_domain) = $1`, host)
	}
	site, err := scanSite(row)
	if err != nil {
		return Site{}, wrap("lookup site by host", err)
	}
	return site, nil
}

func (s *PostgresStore) ListSites(ctx context.Context, workspaceID string) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE workspace_id = $1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, wrap("list sites", err)
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

func (s *PostgresStore) DeleteSite(ctx context.Context, siteID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, siteID)
	if err != nil {
		return wrap("delete site", err)
	}
	return requireRow(res, "delete site")
}

// SubdomainExists reports whether any site other than exceptSiteID owns sub.
func (s *PostgresStore) SubdomainExists(ctx context.Context, sub, exceptSiteID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM sites WHERE LOWER(subdomain) = LOWER($1) AND ($2 = '' OR id::text <> $2))`,
		strings.TrimSpace(sub), exceptSiteID,
	).Scan(&taken)
	if err != nil {
		return false, wrap("check subdomain", err)
	}
	return taken, nil
}
