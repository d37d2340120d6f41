package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"launchkit/api/internal/blocks"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/export"
	"launchkit/api/internal/guard"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/render"
	"launchkit/api/internal/revisions"
	"launchkit/api/internal/search"
	"launchkit/api/internal/store"
)

// cachedJSON serves a read from the cache scope, loading and storing it on a
// miss. Callers check access before calling.
func cachedJSON[T any](ctx context.Context, c *cache.Cache, scope cache.Scope, key string, load func() (T, error)) (T, error) {
	var value T
	if c.GetJSON(ctx, scope, key, &value) {
		return value, nil
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	c.SetJSON(ctx, scope, key, value)
	return value, nil
}

func queryInt(r *http.Request, name string, fallback, max int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func (s *HTTPServer) handleWorkspaces(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	if len(parts) == 0 {
		s.handleListWorkspaces(w, r)
		return
	}

	workspaceID := parts[0]
	roles := rbac.AnyMember
	if len(parts) == 2 && parts[1] == "invitations" {
		roles = rbac.OwnerOrAdmin
	}
	access := guard.FromContext(r.Context()).RequireWorkspacePermission(r.Context(), workspaceID, roles...)
	if !access.Success {
		writeMappedError(w, guardError(access.Error))
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetWorkspace(w, r, workspaceID, access.Data)
	case len(parts) == 2 && parts[1] == "sites":
		s.handleListSites(w, r, workspaceID)
	case len(parts) == 2 && parts[1] == "members":
		s.handleListMembers(w, r, workspaceID)
	case len(parts) == 2 && parts[1] == "invitations":
		s.handleListInvitations(w, r, workspaceID)
	case len(parts) == 2 && parts[1] == "dashboard":
		s.handleDashboard(w, r, workspaceID, access.Data.Session.UserID)
	case len(parts) == 2 && parts[1] == "search":
		s.handleSearch(w, r, workspaceID)
	case len(parts) == 2 && parts[1] == "events":
		s.handleEvents(w, r, workspaceID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	views, err := cachedJSON(r.Context(), s.service.cache, cache.Workspaces(session.UserID), "list", func() ([]workspaceView, error) {
		summaries, err := s.service.store.ListWorkspacesForUser(r.Context(), session.UserID)
		if err != nil {
			return nil, err
		}
		return mapSlice(summaries, func(ws store.WorkspaceSummary) workspaceView {
			return newWorkspaceView(ws.Workspace, ws.Role, ws.SiteCount)
		}), nil
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": views})
}

func (s *HTTPServer) handleGetWorkspace(w http.ResponseWriter, r *http.Request, workspaceID string, access guard.WorkspaceAccess) {
	workspace, err := s.service.store.GetWorkspace(r.Context(), workspaceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	sites, err := s.service.store.ListSites(r.Context(), workspaceID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspace": newWorkspaceView(workspace, string(access.Role), len(sites))})
}

func (s *HTTPServer) handleListSites(w http.ResponseWriter, r *http.Request, workspaceID string) {
	views, err := cachedJSON(r.Context(), s.service.cache, cache.SitesList(workspaceID), "all", func() ([]siteView, error) {
		sites, err := s.service.store.ListSites(r.Context(), workspaceID)
		if err != nil {
			return nil, err
		}
		return mapSlice(sites, newSiteView), nil
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": views})
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request, workspaceID string) {
	views, err := cachedJSON(r.Context(), s.service.cache, cache.Members(workspaceID), "all", func() ([]memberView, error) {
		members, err := s.service.store.ListMembers(r.Context(), workspaceID)
		if err != nil {
			return nil, err
		}
		return mapSlice(members, newMemberView), nil
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": views})
}

func (s *HTTPServer) handleListInvitations(w http.ResponseWriter, r *http.Request, workspaceID string) {
	views, err := cachedJSON(r.Context(), s.service.cache, cache.Invitations(workspaceID), "all", func() ([]invitationView, error) {
		invitations, err := s.service.store.ListInvitations(r.Context(), workspaceID)
		if err != nil {
			return nil, err
		}
		return mapSlice(invitations, newInvitationView), nil
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": views})
}

var defaultDashboard = json.RawMessage(`[{"id":"sites","type":"sites","x":0,"y":0,"w":8,"h":4},{"id":"activity","type":"activity","x":8,"y":0,"w":4,"h":4}]`)

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request, workspaceID, userID string) {
	layout, err := s.service.store.GetDashboardLayout(r.Context(), userID, workspaceID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"widgets": defaultDashboard, "default": true})
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"widgets": layout.Widgets, "updatedAt": layout.UpdatedAt})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, workspaceID string) {
	query := r.URL.Query()
	kind := search.Kind(query.Get("kind"))
	if kind != "" && kind != search.KindSite && kind != search.KindCampaign {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", "kind must be site or campaign", nil)
		return
	}
	text := strings.TrimSpace(query.Get("q"))
	if text == "" {
		writeJSON(w, http.StatusOK, search.Response{Results: []search.Result{}})
		return
	}
	writeJSON(w, http.StatusOK, s.service.search.Search(r.Context(), search.Query{
		WorkspaceID: workspaceID,
		Text:        text,
		Kind:        kind,
		Limit:       queryInt(r, "limit", 20, 100),
	}))
}

func (s *HTTPServer) handleSites(w http.ResponseWriter, r *http.Request, siteID string, rest []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	access := guard.FromContext(r.Context()).RequireSitePermission(r.Context(), siteID, rbac.AnyMember...)
	if !access.Success {
		writeMappedError(w, guardError(access.Error))
		return
	}

	switch {
	case len(rest) == 0:
		writeJSON(w, http.StatusOK, map[string]any{"site": newSiteView(access.Data.Site)})
	case len(rest) == 1 && rest[0] == "campaigns":
		views, err := cachedJSON(r.Context(), s.service.cache, cache.CampaignsList(siteID), "all", func() ([]campaignView, error) {
			campaigns, err := s.service.store.ListCampaigns(r.Context(), siteID)
			if err != nil {
				return nil, err
			}
			return mapSlice(campaigns, func(c store.Campaign) campaignView { return newCampaignView(c, false) }), nil
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"campaigns": views})
	case len(rest) == 1 && rest[0] == "assets":
		assets, err := s.service.store.ListAssets(r.Context(), siteID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assets": mapSlice(assets, s.service.newAssetView)})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleCampaigns(w http.ResponseWriter, r *http.Request, campaignID string, rest []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	access := guard.FromContext(r.Context()).RequireCampaignPermission(r.Context(), campaignID, rbac.AnyMember...)
	if !access.Success {
		writeMappedError(w, guardError(access.Error))
		return
	}
	campaign := access.Data.Campaign

	switch {
	case len(rest) == 0:
		writeJSON(w, http.StatusOK, map[string]any{"campaign": newCampaignView(campaign, true)})
	case len(rest) == 1 && rest[0] == "revisions":
		history, err := s.service.revisions.History(campaign.ID, queryInt(r, "limit", 50, 200))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": history})
	case len(rest) == 2 && rest[0] == "revisions":
		content, err := s.service.revisions.ContentAt(campaign.ID, rest[1])
		if errors.Is(err, revisions.ErrRevisionNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"hash": rest[1], "content": content})
	case len(rest) == 1 && rest[0] == "preview":
		s.handlePreview(w, r, access.Data.Site, campaign)
	case len(rest) == 1 && rest[0] == "export.pdf":
		s.handleExportPDF(w, r, access.Data.Site, campaign)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) pageFor(r *http.Request, site store.Site) render.Page {
	return render.Page{
		Lang:       i18n.FromRequest(r).Locale(),
		SiteName:   site.Name,
		TrackerURL: s.service.cfg.TrackerURL,
		Now:        time.Now(),
	}
}

func (s *HTTPServer) handlePreview(w http.ResponseWriter, r *http.Request, site store.Site, campaign store.Campaign) {
	doc, err := blocks.Parse(campaign.Content)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_CONTENT", i18n.FromRequest(r).T(i18n.InvalidContent), nil)
		return
	}
	html, err := render.Render(doc, s.pageFor(r, site))
	if err != nil {
		s.logger.Error().Err(err).Str("campaign_id", campaign.ID).Msg("render preview")
		writeMappedError(w, err)
		return
	}
	writeHTML(w, http.StatusOK, html)
}

func (s *HTTPServer) handleExportPDF(w http.ResponseWriter, r *http.Request, site store.Site, campaign store.Campaign) {
	if s.service.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available", nil)
		return
	}
	doc, err := blocks.Parse(campaign.Content)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_CONTENT", i18n.FromRequest(r).T(i18n.InvalidContent), nil)
		return
	}
	result, err := s.service.exporter.Campaign(r.Context(), doc, s.pageFor(r, site))
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available", nil)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("campaign_id", campaign.ID).Msg("export pdf")
		writeError(w, http.StatusInternalServerError, "EXPORT_FAILED", "PDF export failed", nil)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleAsset(w http.ResponseWriter, r *http.Request, assetID string) {
	asset, err := s.service.store.GetAsset(r.Context(), assetID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	access := guard.FromContext(r.Context()).RequireSitePermission(r.Context(), asset.SiteID, rbac.AnyMember...)
	if !access.Success {
		writeMappedError(w, guardError(access.Error))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"asset": s.service.newAssetView(asset)})
}

func (s *HTTPServer) handleSubdomainAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSession(w, r); !ok {
		return
	}
	query := r.URL.Query()
	available, reason, err := s.service.checkSubdomain(r.Context(), query.Get("subdomain"), query.Get("siteId"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	response := map[string]any{"available": available}
	if reason != "" {
		response["reason"] = reason
	}
	writeJSON(w, http.StatusOK, response)
}

// handleInvitationPreview lets the invitee see where an invitation leads
// before signing in. Only pending invitations are shown.
func (s *HTTPServer) handleInvitationPreview(w http.ResponseWriter, r *http.Request, token string) {
	invitation, err := s.service.store.GetInvitationByToken(r.Context(), token)
	if errors.Is(err, store.ErrNotFound) || (err == nil && invitation.Status != store.InvitationPending) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", i18n.FromRequest(r).T(i18n.InvitationGone), nil)
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitation": newInvitationView(invitation)})
}

func (s *HTTPServer) handleTelemetryIngest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EventType   string          `json:"eventType" validate:"required,max=64"`
		WorkspaceID string          `json:"workspaceId" validate:"max=64"`
		Metadata    json.RawMessage `json:"metadata"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := formValidator.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_EVENT", i18n.FromRequest(r).T(i18n.InvalidData), nil)
		return
	}

	event := store.TelemetryEvent{EventType: body.EventType, Source: "app", Metadata: body.Metadata}
	scope := guard.FromContext(r.Context())
	if session, ok := scope.Session(r.Context()); ok {
		event.UserID = session.UserID
		// Events only attach to workspaces the sender belongs to.
		if body.WorkspaceID != "" {
			if role, err := scope.GetMemberRole(r.Context(), body.WorkspaceID, session.UserID); err == nil && role != "" {
				event.WorkspaceID = body.WorkspaceID
			}
		}
	}
	if err := s.service.store.InsertTelemetryEvent(r.Context(), event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.EventType).Msg("insert telemetry event")
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func writeHTML(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}
