package store

import (
	"context"
)

const assetColumns = `id, workspace_id, site_id, object_key, file_name, content_type, size_bytes, COALESCE(uploaded_by::text, ''), created_at`

func scanAsset(row rowScanner) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.SiteID, &a.ObjectKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.UploadedBy, &a.CreatedAt)
	return a, err
}

func (s *PostgresStore) InsertAsset(ctx context.Context, a Asset) (Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO assets (workspace_id, site_id, object_key, file_name, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+assetColumns,
		a.WorkspaceID, a.SiteID, a.ObjectKey, a.FileName, a.ContentType, a.SizeBytes, nullString(a.UploadedBy),
	)
	out, err := scanAsset(row)
	if err != nil {
		return Asset{}, wrap("insert asset", err)
	}
	return out, nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	a, err := scanAsset(s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, assetID))
	if err != nil {
		return Asset{}, wrap("lookup asset", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, siteID string) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE site_id = $1 ORDER BY created_at DESC`, siteID)
	if err != nil {
		return nil, wrap("list assets", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, wrap("scan asset", err)
		}
		out = append(out, a)
	}
	return out, wrap("iterate assets", rows.Err())
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, assetID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, assetID)
	if err != nil {
		return wrap("delete asset", err)
	}
	return requireRow(res, "delete asset")
}
