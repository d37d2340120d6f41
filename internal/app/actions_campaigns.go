package app

import (
	"context"
	"encoding/json"
	"errors"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/blocks"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/guard"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/revisions"
	"launchkit/api/internal/search"
	"launchkit/api/internal/store"
)

type createCampaignForm struct {
	SiteID string `form:"site_id" validate:"required,max=64"`
	Name   string `form:"name" validate:"required,max=120"`
	Slug   string `form:"slug" validate:"required,slug"`
}

func (s *Service) createCampaign(ctx context.Context, c *call, form createCampaignForm) (any, error) {
	access := c.scope.RequireSitePermission(ctx, form.SiteID, rbac.AnyMember...)
	if !access.Success {
		return nil, denied(access.Error)
	}

	hero, err := blocks.NewBlock("hero")
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(blocks.Document{
		Meta:   blocks.Meta{Title: form.Name},
		Blocks: []blocks.Block{hero},
	})
	if err != nil {
		return nil, err
	}

	campaign, err := s.store.CreateCampaign(ctx, form.SiteID, form.Name, form.Slug, access.Data.Session.UserID, content)
	if err != nil {
		return nil, err
	}
	s.commitRevision(campaign, authorOf(access.Data.Session), "Create campaign")

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.CampaignCreate,
			ActorID:    access.Data.Session.UserID,
			TargetID:   campaign.ID,
			TargetType: "campaign",
			Metadata: map[string]any{
				"site_id": campaign.SiteID,
				"name":    campaign.Name,
				"slug":    campaign.Slug,
			},
		},
		scopes: []cache.Scope{cache.CampaignsList(campaign.SiteID)},
		event:  campaignEvent("campaign.created", access.Data.Site, campaign),
	})
	s.indexCampaign(campaign, access.Data.Site)
	return newCampaignView(campaign, true), nil
}

type saveCampaignContentForm struct {
	CampaignID string `form:"campaign_id" validate:"required,max=64"`
	Name       string `form:"name" validate:"omitempty,max=120"`
	Slug       string `form:"slug" validate:"omitempty,slug"`
	Content    string `form:"content" validate:"required,json,blocks"`
	Message    string `form:"message" validate:"max=200"`
}

func (s *Service) saveCampaignContent(ctx context.Context, c *call, form saveCampaignContentForm) (any, error) {
	access := c.scope.RequireCampaignPermission(ctx, form.CampaignID, rbac.AnyMember...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	before := access.Data.Campaign

	content, err := normalizedContent(json.RawMessage(form.Content))
	if err != nil {
		return nil, err
	}
	name := firstNonEmpty(form.Name, before.Name)
	slug := firstNonEmpty(form.Slug, before.Slug)

	campaign, err := s.store.UpdateCampaignContent(ctx, before.ID, name, slug, content)
	if err != nil {
		return nil, err
	}
	revision := s.commitRevision(campaign, authorOf(access.Data.Session), form.Message)

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.CampaignSave,
			ActorID:    access.Data.Session.UserID,
			TargetID:   campaign.ID,
			TargetType: "campaign",
			Metadata: map[string]any{
				"site_id":  campaign.SiteID,
				"revision": revision.Hash,
			},
		},
		scopes: s.campaignScopes(access.Data.Site, before, campaign),
		event:  campaignEvent("campaign.updated", access.Data.Site, campaign),
	})
	s.indexCampaign(campaign, access.Data.Site)
	return map[string]any{
		"campaign": newCampaignView(campaign, true),
		"revision": revision,
	}, nil
}

type campaignForm struct {
	CampaignID string `form:"campaign_id" validate:"required,max=64"`
}

func (s *Service) publishCampaign(ctx context.Context, c *call, form campaignForm) (any, error) {
	return s.setCampaignStatus(ctx, c, form.CampaignID, store.CampaignPublished)
}

func (s *Service) unpublishCampaign(ctx context.Context, c *call, form campaignForm) (any, error) {
	return s.setCampaignStatus(ctx, c, form.CampaignID, store.CampaignDraft)
}

func (s *Service) setCampaignStatus(ctx context.Context, c *call, campaignID, status string) (any, error) {
	access := c.scope.RequireCampaignPermission(ctx, campaignID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	before := access.Data.Campaign
	if status == store.CampaignPublished {
		if _, err := normalizedContent(before.Content); err != nil {
			return nil, err
		}
	}

	campaign, err := s.store.SetCampaignStatus(ctx, before.ID, status)
	if err != nil {
		return nil, err
	}

	action, eventType := audit.CampaignPublish, "campaign.published"
	if status == store.CampaignDraft {
		action, eventType = audit.CampaignUnpublish, "campaign.unpublished"
	}
	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     action,
			ActorID:    access.Data.Session.UserID,
			TargetID:   campaign.ID,
			TargetType: "campaign",
			Metadata: map[string]any{
				"site_id": campaign.SiteID,
				"slug":    campaign.Slug,
				"from":    before.Status,
			},
		},
		scopes: s.campaignScopes(access.Data.Site, before, campaign),
		event:  campaignEvent(eventType, access.Data.Site, campaign),
	})
	s.indexCampaign(campaign, access.Data.Site)
	return newCampaignView(campaign, false), nil
}

func (s *Service) deleteCampaign(ctx context.Context, c *call, form campaignForm) (any, error) {
	access := c.scope.RequireCampaignPermission(ctx, form.CampaignID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	campaign := access.Data.Campaign

	if err := s.store.DeleteCampaign(ctx, campaign.ID); err != nil {
		return nil, err
	}

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.CampaignDelete,
			ActorID:    access.Data.Session.UserID,
			TargetID:   campaign.ID,
			TargetType: "campaign",
			Metadata: map[string]any{
				"site_id": campaign.SiteID,
				"name":    campaign.Name,
				"slug":    campaign.Slug,
			},
		},
		scopes: s.campaignScopes(access.Data.Site, campaign, campaign),
		event:  campaignEvent("campaign.deleted", access.Data.Site, campaign),
	})
	s.forgetCampaigns([]store.Campaign{campaign})
	return map[string]any{"id": campaign.ID}, nil
}

type restoreRevisionForm struct {
	CampaignID string `form:"campaign_id" validate:"required,max=64"`
	Revision   string `form:"revision" validate:"required,hexadecimal,min=4,max=40"`
}

func (s *Service) restoreCampaignRevision(ctx context.Context, c *call, form restoreRevisionForm) (any, error) {
	access := c.scope.RequireCampaignPermission(ctx, form.CampaignID, rbac.OwnerOrAdmin...)
	if !access.Success {
		return nil, denied(access.Error)
	}
	before := access.Data.Campaign

	raw, err := s.revisions.ContentAt(before.ID, form.Revision)
	if errors.Is(err, revisions.ErrRevisionNotFound) {
		return nil, fail(i18n.NotFound)
	}
	if err != nil {
		return nil, err
	}
	content, err := normalizedContent(raw)
	if err != nil {
		return nil, err
	}

	campaign, err := s.store.UpdateCampaignContent(ctx, before.ID, before.Name, before.Slug, content)
	if err != nil {
		return nil, err
	}
	revision := s.commitRevision(campaign, authorOf(access.Data.Session), "Restore revision "+shortHash(form.Revision))

	s.settle(ctx, c, outcome{
		audit: &audit.Entry{
			Action:     audit.CampaignRestore,
			ActorID:    access.Data.Session.UserID,
			TargetID:   campaign.ID,
			TargetType: "campaign",
			Metadata: map[string]any{
				"site_id":       campaign.SiteID,
				"restored_from": form.Revision,
				"revision":      revision.Hash,
			},
		},
		scopes: s.campaignScopes(access.Data.Site, before, campaign),
		event:  campaignEvent("campaign.updated", access.Data.Site, campaign),
	})
	return map[string]any{
		"campaign": newCampaignView(campaign, true),
		"revision": revision,
	}, nil
}

// normalizedContent validates a block tree against the registry and returns
// it with defaults and block ids filled in.
func normalizedContent(raw json.RawMessage) (json.RawMessage, error) {
	doc, err := blocks.Parse(raw)
	if err != nil {
		return nil, fail(i18n.InvalidContent)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return encoded, nil
}

// commitRevision records content history. History is secondary to the
// stored content, so a failed commit is logged and an empty revision
// returned.
func (s *Service) commitRevision(campaign store.Campaign, author revisions.Author, message string) revisions.Revision {
	revision, err := s.revisions.Commit(campaign.ID, campaign.Content, author, message)
	if err != nil {
		s.logger.Warn().Err(err).Str("campaign_id", campaign.ID).Msg("commit campaign revision")
		return revisions.Revision{}
	}
	return revision
}

// campaignScopes covers the lists and public pages touched by a change from
// before to after.
func (s *Service) campaignScopes(site store.Site, before, after store.Campaign) []cache.Scope {
	scopes := []cache.Scope{cache.CampaignsList(after.SiteID)}
	if before.Status == store.CampaignPublished || after.Status == store.CampaignPublished {
		slugs := []string{after.Slug}
		if before.Slug != after.Slug {
			slugs = append(slugs, before.Slug)
		}
		scopes = append(scopes, s.publicScopes(site, slugs...)...)
	}
	return scopes
}

func (s *Service) indexCampaign(campaign store.Campaign, site store.Site) {
	if campaign.WorkspaceID == "" {
		campaign.WorkspaceID = site.WorkspaceID
	}
	s.search.IndexCampaign(search.CampaignRecordFrom(campaign))
}

func campaignEvent(eventType string, site store.Site, campaign store.Campaign) *realtime.Event {
	return &realtime.Event{
		Type:        eventType,
		WorkspaceID: site.WorkspaceID,
		EntityType:  "campaign",
		EntityID:    campaign.ID,
	}
}

func authorOf(session guard.Session) revisions.Author {
	return revisions.Author{Name: session.DisplayName, Email: session.Email}
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
