package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/media"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/store"
)

type uploadAssetForm struct {
	SiteID string `form:"site_id" validate:"required,max=64"`
}

func (s *Service) uploadAsset(ctx context.Context, c *call, form uploadAssetForm) (any, error) {
	access := c.scope.RequireSitePermission(ctx, form.SiteID, rbac.AnyMember...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	if s.media == nil || !s.media.Enabled() {
		return nil, fail(i18n.StorageDisabled)
	}

	file, header, err := c.r.FormFile("file")
	if err != nil {
		return nil, fail(i18n.InvalidData)
	}
	defer file.Close()
	if header.Size > media.MaxUploadBytes {
		return nil, fail(i18n.FileTooLarge)
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	sniff = sniff[:n]
	contentType := detectContentType(sniff, header.Header.Get("Content-Type"))
	if !media.AllowedContentType(contentType) {
		return nil, fail(i18n.UnsupportedFile)
	}

	site := access.Data.Site
	key := media.ObjectKey(site.WorkspaceID, site.ID, header.Filename, contentType)
	body := io.MultiReader(bytes.NewReader(sniff), file)
	if err := s.media.Put(ctx, key, body, header.Size, contentType); err != nil {
		return nil, err
	}

	asset, err := s.store.InsertAsset(ctx, store.Asset{
		WorkspaceID: site.WorkspaceID,
		SiteID:      site.ID,
		ObjectKey:   key,
		FileName:    header.Filename,
		ContentType: contentType,
		SizeBytes:   header.Size,
		UploadedBy:  access.Data.Session.UserID,
	})
	if err != nil {
		if delErr := s.media.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("object_key", key).Msg("remove orphaned upload")
		}
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.AssetUpload,
			ActorID:    access.Data.Session.UserID,
			TargetID:   asset.ID,
			TargetType: "asset",
			Metadata: map[string]any{
				"site_id":      site.ID,
				"file_name":    asset.FileName,
				"content_type": asset.ContentType,
				"size_bytes":   asset.SizeBytes,
			},
		},
		event: &realtime.Event{Type: "asset.uploaded", WorkspaceID: site.WorkspaceID, EntityType: "asset", EntityID: asset.ID},
	})
	return s.newAssetView(asset), nil
}

// detectContentType trusts the sniffed type and falls back to the declared
// one only when sniffing finds nothing specific.
func detectContentType(head []byte, declared string) string {
	contentType := http.DetectContentType(head)
	if contentType == "application/octet-stream" && declared != "" {
		contentType = declared
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return contentType
}

type deleteAssetForm struct {
	AssetID string `form:"asset_id" validate:"required,max=64"`
}

func (s *Service) deleteAsset(ctx context.Context, c *call, form deleteAssetForm) (any, error) {
	asset, err := s.store.GetAsset(ctx, form.AssetID)
	if err != nil {
		return nil, err
	}
	access := c.scope.RequireSitePermission(ctx, asset.SiteID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	if !media.KeyBelongsTo(asset.ObjectKey, access.Data.Site.WorkspaceID) {
		s.logger.Warn().
			Str("asset_id", asset.ID).
			Str("workspace_id", access.Data.Site.WorkspaceID).
			Msg("asset key outside workspace")
		return nil, fail(i18n.PermissionDenied)
	}

	if err := s.store.DeleteAsset(ctx, asset.ID); err != nil {
		return nil, err
	}
	if s.media != nil && s.media.Enabled() {
		if err := s.media.Delete(ctx, asset.ObjectKey); err != nil {
			s.logger.Warn().Err(err).Str("object_key", asset.ObjectKey).Msg("remove asset object")
		}
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.AssetDelete,
			ActorID:    access.Data.Session.UserID,
			TargetID:   asset.ID,
			TargetType: "asset",
			Metadata: map[string]any{
				"site_id":   asset.SiteID,
				"file_name": asset.FileName,
			},
		},
		event: &realtime.Event{Type: "asset.deleted", WorkspaceID: asset.WorkspaceID, EntityType: "asset", EntityID: asset.ID},
	})
	return map[string]any{"id": asset.ID}, nil
}

const maxDashboardWidgets = 50

type dashboardWidget struct {
	ID   string `json:"id" validate:"required,max=64"`
	Type string `json:"type" validate:"required,oneof=sites campaigns members activity search telemetry"`
	X    int    `json:"x" validate:"min=0,max=24"`
	Y    int    `json:"y" validate:"min=0,max=500"`
	W    int    `json:"w" validate:"min=1,max=24"`
	H    int    `json:"h" validate:"min=1,max=24"`
}

type saveDashboardForm struct {
	WorkspaceID string `form:"workspace_id" validate:"required,max=64"`
	Widgets     string `form:"widgets" validate:"required,json"`
}

// saveDashboardLayout stores a per-user preference. It changes no shared
// data so nothing is audited.
func (s *Service) saveDashboardLayout(ctx context.Context, c *call, form saveDashboardForm) (any, error) {
	var widgets []dashboardWidget
	if err := json.Unmarshal([]byte(form.Widgets), &widgets); err != nil || len(widgets) > maxDashboardWidgets {
		return nil, fail(i18n.InvalidData)
	}
	seen := make(map[string]struct{}, len(widgets))
	for _, widget := range widgets {
		if err := formValidator.Struct(widget); err != nil {
			return nil, fail(i18n.InvalidData)
		}
		if _, dup := seen[widget.ID]; dup {
			return nil, fail(i18n.InvalidData)
		}
		seen[widget.ID] = struct{}{}
	}

	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.AnyMember...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	encoded, err := json.Marshal(widgets)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveDashboardLayout(ctx, access.Data.Session.UserID, form.WorkspaceID, encoded); err != nil {
		return nil, err
	}
	return map[string]any{"widgets": widgets}, nil
}

type setLocaleForm struct {
	Locale string `form:"locale" validate:"required,bcp47_language_tag"`
}

func (s *Service) setLocale(_ context.Context, c *call, form setLocaleForm) (any, error) {
	if !i18n.Supported(form.Locale) {
		return nil, fail(i18n.InvalidData)
	}
	locale := i18n.New(i18n.Match(form.Locale)).Locale()
	setCookie(c.w, i18n.LocaleCookie, locale, yearOfCookies, s.cfg.CookieSecure)
	return map[string]any{"locale": locale}, nil
}

type setAppRoleForm struct {
	UserID string `form:"user_id" validate:"required,max=64"`
	Role   string `form:"role" validate:"required,oneof=user admin developer"`
}

func (s *Service) setAppRole(ctx context.Context, c *call, form setAppRoleForm) (any, error) {
	access := c.scope.RequireSession(ctx)
	if !access.Success {
		return nil, denied(access.Error)
	}
	actor := access.Data
	if !s.policy.Allow(actor.AppRole, rbac.ObjectUsers, rbac.ActionManage) {
		s.logger.Warn().
			Str("actor_id", actor.UserID).
			Str("app_role", actor.AppRole).
			Msg("app role change denied")
		return nil, fail(i18n.PermissionDenied)
	}
	target, err := s.store.GetUserByID(ctx, form.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetUserAppRole(ctx, target.ID, form.Role); err != nil {
		return nil, err
	}
	// Sessions carry the app role, so the target signs in again.
	if err := s.sessions.RevokeUser(ctx, target.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", target.ID).Msg("revoke sessions after role change")
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.UserAppRoleUpdate,
			ActorID:    actor.UserID,
			TargetID:   target.ID,
			TargetType: "user",
			Metadata: map[string]any{
				"from": target.AppRole,
				"to":   form.Role,
			},
		},
	})
	return map[string]any{"userId": target.ID, "appRole": form.Role}, nil
}
