package app

import (
	"context"
	"errors"
	"strings"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/search"
	"launchkit/api/internal/store"
	"launchkit/api/internal/subdomain"
)

type createSiteForm struct {
	WorkspaceID  string `form:"workspace_id" validate:"required,max=64"`
	Name         string `form:"name" validate:"required,max=120"`
	Subdomain    string `form:"subdomain" validate:"required,subdomain"`
	CustomDomain string `form:"custom_domain" validate:"omitempty,fqdn,max=253"`
	Description  string `form:"description" validate:"max=500"`
}

func (s *Service) createSite(ctx context.Context, c *call, form createSiteForm) (any, error) {
	access := c.scope.RequireWorkspacePermission(ctx, form.WorkspaceID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}

	site, err := s.store.CreateSite(ctx, form.WorkspaceID, store.SiteInput{
		Name:         form.Name,
		Subdomain:    subdomain.Normalize(form.Subdomain),
		CustomDomain: strings.ToLower(form.CustomDomain),
		Description:  form.Description,
	})
	if err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.SiteCreate,
			ActorID:    access.Data.Session.UserID,
			TargetID:   site.ID,
			TargetType: "site",
			Metadata: map[string]any{
				"workspace_id": site.WorkspaceID,
				"name":         site.Name,
				"subdomain":    site.Subdomain,
			},
		},
		scopes: append([]cache.Scope{cache.SitesList(site.WorkspaceID)}, s.memberWorkspaceScopes(ctx, site.WorkspaceID)...),
		event:  siteEvent("site.created", site),
	})
	s.search.IndexSite(search.SiteRecordFrom(site))
	return newSiteView(site), nil
}

type updateSiteForm struct {
	SiteID       string `form:"site_id" validate:"required,max=64"`
	Name         string `form:"name" validate:"required,max=120"`
	Subdomain    string `form:"subdomain" validate:"required,subdomain"`
	CustomDomain string `form:"custom_domain" validate:"omitempty,fqdn,max=253"`
	Description  string `form:"description" validate:"max=500"`
}

func (s *Service) updateSite(ctx context.Context, c *call, form updateSiteForm) (any, error) {
	access := c.scope.RequireSitePermission(ctx, form.SiteID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	before := access.Data.Site

	site, err := s.store.UpdateSite(ctx, before.ID, store.SiteInput{
		Name:         form.Name,
		Subdomain:    subdomain.Normalize(form.Subdomain),
		CustomDomain: strings.ToLower(form.CustomDomain),
		Description:  form.Description,
	})
	if err != nil {
		return nil, err
	}

	slugs := s.publishedSlugs(ctx, site.ID)
	scopes := []cache.Scope{cache.SitesList(site.WorkspaceID), cache.Site(site.ID)}
	scopes = append(scopes, s.publicScopes(before, slugs...)...)
	scopes = append(scopes, s.publicScopes(site, slugs...)...)

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.SiteUpdate,
			ActorID:    access.Data.Session.UserID,
			TargetID:   site.ID,
			TargetType: "site",
			Metadata:   siteChanges(before, site),
		},
		scopes: scopes,
		event:  siteEvent("site.updated", site),
	})
	s.search.IndexSite(search.SiteRecordFrom(site))
	return newSiteView(site), nil
}

type deleteSiteForm struct {
	SiteID string `form:"site_id" validate:"required,max=64"`
}

func (s *Service) deleteSite(ctx context.Context, c *call, form deleteSiteForm) (any, error) {
	access := c.scope.RequireSitePermission(ctx, form.SiteID, rbac.OwnerOnly...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	site := access.Data.Site
	campaigns, err := s.store.ListCampaigns(ctx, site.ID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteSite(ctx, site.ID); err != nil {
		return nil, err
	}

	scopes := []cache.Scope{
		cache.SitesList(site.WorkspaceID),
		cache.Site(site.ID),
		cache.CampaignsList(site.ID),
	}
	scopes = append(scopes, s.memberWorkspaceScopes(ctx, site.WorkspaceID)...)
	scopes = append(scopes, s.publicScopes(site, slugsOf(campaigns)...)...)

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.SiteDelete,
			ActorID:    access.Data.Session.UserID,
			TargetID:   site.ID,
			TargetType: "site",
			Metadata: map[string]any{
				"workspace_id": site.WorkspaceID,
				"name":         site.Name,
				"subdomain":    site.Subdomain,
				"campaigns":    len(campaigns),
			},
		},
		scopes: scopes,
		event:  siteEvent("site.deleted", site),
	})
	s.forgetCampaigns(campaigns)
	s.search.DeleteSite(site.ID)
	return map[string]any{"id": site.ID}, nil
}

// publishedSlugs lists the slugs that can have a cached public page.
func (s *Service) publishedSlugs(ctx context.Context, siteID string) []string {
	campaigns, err := s.store.ListCampaigns(ctx, siteID)
	if err != nil {
		s.logger.Warn().Err(err).Str("site_id", siteID).Msg("list campaigns for invalidation")
		return nil
	}
	var slugs []string
	for _, campaign := range campaigns {
		if campaign.Status == store.CampaignPublished {
			slugs = append(slugs, campaign.Slug)
		}
	}
	return slugs
}

func slugsOf(campaigns []store.Campaign) []string {
	slugs := make([]string, 0, len(campaigns))
	for _, campaign := range campaigns {
		slugs = append(slugs, campaign.Slug)
	}
	return slugs
}

// siteHosts lists the public hosts a site answers on.
func (s *Service) siteHosts(site store.Site) []string {
	var hosts []string
	if site.Subdomain != "" && s.cfg.RootDomain != "" {
		hosts = append(hosts, strings.ToLower(site.Subdomain)+"."+strings.ToLower(s.cfg.RootDomain))
	}
	if site.CustomDomain != nil && *site.CustomDomain != "" {
		hosts = append(hosts, strings.ToLower(*site.CustomDomain))
	}
	return hosts
}

func (s *Service) publicScopes(site store.Site, slugs ...string) []cache.Scope {
	var scopes []cache.Scope
	for _, host := range s.siteHosts(site) {
		for _, slug := range slugs {
			scopes = append(scopes, cache.PublicPage(host, slug))
		}
	}
	return scopes
}

// forgetCampaigns drops the revision history and search entries of deleted
// campaigns.
func (s *Service) forgetCampaigns(campaigns []store.Campaign) {
	for _, campaign := range campaigns {
		if err := s.revisions.Remove(campaign.ID); err != nil {
			s.logger.Warn().Err(err).Str("campaign_id", campaign.ID).Msg("remove revision history")
		}
		s.search.DeleteCampaign(campaign.ID)
	}
}

func siteChanges(before, after store.Site) map[string]any {
	changes := map[string]any{}
	if before.Name != after.Name {
		changes["name"] = map[string]string{"from": before.Name, "to": after.Name}
	}
	if before.Subdomain != after.Subdomain {
		changes["subdomain"] = map[string]string{"from": before.Subdomain, "to": after.Subdomain}
	}
	if deref(before.CustomDomain) != deref(after.CustomDomain) {
		changes["custom_domain"] = map[string]string{"from": deref(before.CustomDomain), "to": deref(after.CustomDomain)}
	}
	if before.Description != after.Description {
		changes["description"] = true
	}
	return changes
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func siteEvent(eventType string, site store.Site) *realtime.Event {
	return &realtime.Event{
		Type:        eventType,
		WorkspaceID: site.WorkspaceID,
		EntityType:  "site",
		EntityID:    site.ID,
	}
}

// checkSubdomain reports whether a subdomain is free, ignoring exceptSiteID.
func (s *Service) checkSubdomain(ctx context.Context, value, exceptSiteID string) (bool, string, error) {
	normalized := subdomain.Normalize(value)
	if err := subdomain.Validate(normalized); err != nil {
		reason := "format"
		switch {
		case errors.Is(err, subdomain.ErrTooShort):
			reason = "too_short"
		case errors.Is(err, subdomain.ErrTooLong):
			reason = "too_long"
		case errors.Is(err, subdomain.ErrReserved):
			reason = "reserved"
		}
		return false, reason, nil
	}
	exists, err := s.store.SubdomainExists(ctx, normalized, exceptSiteID)
	if err != nil {
		return false, "", err
	}
	if exists {
		return false, "taken", nil
	}
	return true, "", nil
}
