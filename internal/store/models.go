package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                    string
	Email                 string
	DisplayName           string
	PasswordHash          string
	AppRole               string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Workspace struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkspaceSummary is a workspace as seen by one member.
type WorkspaceSummary struct {
	Workspace
	Role      string
	SiteCount int
}

type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	Role        string
	UserEmail   string
	UserName    string
	CreatedAt   time.Time
}

type Site struct {
	ID           string
	WorkspaceID  string
	Name         string
	Subdomain    string
	CustomDomain *string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Campaign struct {
	ID          string
	SiteID      string
	WorkspaceID string
	Name        string
	Slug        string
	Status      string
	Content     json.RawMessage
	PublishedAt *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	CampaignDraft     = "draft"
	CampaignPublished = "published"
)

type Invitation struct {
	ID            string
	WorkspaceID   string
	WorkspaceName string
	Email         string
	Role          string
	Status        string
	Token         string
	InvitedBy     string
	CreatedAt     time.Time
	AcceptedAt    *time.Time
}

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

type AuditLogEntry struct {
	ID               int64
	Action           string
	ActorID          string
	TargetEntityID   string
	TargetEntityType string
	Metadata         json.RawMessage
	IPAddress        string
	CreatedAt        time.Time
}

type AuditLogFilter struct {
	ActorID          string
	TargetEntityType string
	TargetEntityID   string
	Action           string
	Limit            int
}

type TelemetryEvent struct {
	ID          int64
	EventType   string
	Source      string
	UserID      string
	WorkspaceID string
	Metadata    json.RawMessage
	CreatedAt   time.Time
}

type Asset struct {
	ID          string
	WorkspaceID string
	SiteID      string
	ObjectKey   string
	FileName    string
	ContentType string
	SizeBytes   int64
	UploadedBy  string
	CreatedAt   time.Time
}

type DashboardLayout struct {
	UserID      string
	WorkspaceID string
	Widgets     json.RawMessage
	UpdatedAt   time.Time
}
