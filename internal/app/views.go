package app

import (
	"encoding/json"
	"time"

	"launchkit/api/internal/store"
)

type userView struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"displayName"`
	AppRole         string    `json:"appRole"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newUserView(u store.User) userView {
	return userView{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		AppRole:         u.AppRole,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
}

type workspaceView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	Role      string    `json:"role,omitempty"`
	SiteCount int       `json:"siteCount"`
	CreatedAt time.Time `json:"createdAt"`
}

func newWorkspaceView(w store.Workspace, role string, siteCount int) workspaceView {
	return workspaceView{
		ID:        w.ID,
		Name:      w.Name,
		OwnerID:   w.OwnerID,
		Role:      role,
		SiteCount: siteCount,
		CreatedAt: w.CreatedAt,
	}
}

type memberView struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func newMemberView(m store.WorkspaceMember) memberView {
	return memberView{
		UserID:    m.UserID,
		Role:      m.Role,
		Email:     m.UserEmail,
		Name:      m.UserName,
		CreatedAt: m.CreatedAt,
	}
}

type siteView struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspaceId"`
	Name         string    `json:"name"`
	Subdomain    string    `json:"subdomain"`
	CustomDomain *string   `json:"customDomain,omitempty"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newSiteView(site store.Site) siteView {
	return siteView{
		ID:           site.ID,
		WorkspaceID:  site.WorkspaceID,
		Name:         site.Name,
		Subdomain:    site.Subdomain,
		CustomDomain: site.CustomDomain,
		Description:  site.Description,
		CreatedAt:    site.CreatedAt,
	}
}

type campaignView struct {
	ID          string          `json:"id"`
	SiteID      string          `json:"siteId"`
	WorkspaceID string          `json:"workspaceId"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Status      string          `json:"status"`
	Content     json.RawMessage `json:"content,omitempty"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// newCampaignView omits content unless withContent is set; lists stay small.
func newCampaignView(c store.Campaign, withContent bool) campaignView {
	view := campaignView{
		ID:          c.ID,
		SiteID:      c.SiteID,
		WorkspaceID: c.WorkspaceID,
		Name:        c.Name,
		Slug:        c.Slug,
		Status:      c.Status,
		PublishedAt: c.PublishedAt,
		CreatedBy:   c.CreatedBy,
		UpdatedAt:   c.UpdatedAt,
	}
	if withContent {
		view.Content = c.Content
	}
	return view
}

type invitationView struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspaceId"`
	WorkspaceName string     `json:"workspaceName,omitempty"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	InvitedBy     string     `json:"invitedBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	AcceptedAt    *time.Time `json:"acceptedAt,omitempty"`
}

func newInvitationView(inv store.Invitation) invitationView {
	return invitationView{
		ID:            inv.ID,
		WorkspaceID:   inv.WorkspaceID,
		WorkspaceName: inv.WorkspaceName,
		Email:         inv.Email,
		Role:          inv.Role,
		Status:        inv.Status,
		InvitedBy:     inv.InvitedBy,
		CreatedAt:     inv.CreatedAt,
		AcceptedAt:    inv.AcceptedAt,
	}
}

type assetView struct {
	ID          string    `json:"id"`
	SiteID      string    `json:"siteId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Service) newAssetView(a store.Asset) assetView {
	return assetView{
		ID:          a.ID,
		SiteID:      a.SiteID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		URL:         s.cfg.AppURL + "/media/" + a.ObjectKey,
		CreatedAt:   a.CreatedAt,
	}
}

type auditView struct {
	ID               int64           `json:"id"`
	Action           string          `json:"action"`
	ActorID          string          `json:"actorId"`
	TargetEntityID   string          `json:"targetEntityId"`
	TargetEntityType string          `json:"targetEntityType"`
	Metadata         json.RawMessage `json:"metadata"`
	IPAddress        string          `json:"ipAddress"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func newAuditView(e store.AuditLogEntry) auditView {
	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	return auditView{
		ID:               e.ID,
		Action:           e.Action,
		ActorID:          e.ActorID,
		TargetEntityID:   e.TargetEntityID,
		TargetEntityType: e.TargetEntityType,
		Metadata:         metadata,
		IPAddress:        e.IPAddress,
		CreatedAt:        e.CreatedAt,
	}
}

type telemetryView struct {
	ID          int64           `json:"id"`
	EventType   string          `json:"eventType"`
	Source      string          `json:"source"`
	UserID      string          `json:"userId,omitempty"`
	WorkspaceID string          `json:"workspaceId,omitempty"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func newTelemetryView(e store.TelemetryEvent) telemetryView {
	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	return telemetryView{
		ID:          e.ID,
		EventType:   e.EventType,
		Source:      e.Source,
		UserID:      e.UserID,
		WorkspaceID: e.WorkspaceID,
		Metadata:    metadata,
		CreatedAt:   e.CreatedAt,
	}
}

// mapSlice converts store rows to views, never returning nil.
func mapSlice[T, V any](items []T, view func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, view(item))
	}
	return out
}
