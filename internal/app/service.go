package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/auth"
	"launchkit/api/internal/authpw"
	"launchkit/api/internal/blocks"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/config"
	"launchkit/api/internal/email"
	"launchkit/api/internal/export"
	"launchkit/api/internal/guard"
	"launchkit/api/internal/logging"
	"launchkit/api/internal/media"
	"launchkit/api/internal/rbac"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/render"
	"launchkit/api/internal/revisions"
	"launchkit/api/internal/search"
	"launchkit/api/internal/session"
	"launchkit/api/internal/store"
)

type dataStore interface {
	Ping(context.Context) error

	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	CreateUser(context.Context, string, string, string, string, time.Time) (store.User, error)
	UpdateUserVerificationToken(context.Context, string, string, time.Time) error
	VerifyUserEmail(context.Context, string) (store.User, error)
	UpdateUserPassword(context.Context, string, string) error
	CreatePasswordReset(context.Context, string, string, time.Time) error
	ConsumePasswordReset(context.Context, string) (string, error)
	SetUserAppRole(context.Context, string, string) error
	ListUsers(context.Context, int) ([]store.User, error)

	CreateWorkspaceWithOwner(context.Context, string, string) (store.Workspace, error)
	GetWorkspace(context.Context, string) (store.Workspace, error)
	ListWorkspacesForUser(context.Context, string) ([]store.WorkspaceSummary, error)
	UpdateWorkspace(context.Context, string, string) (store.Workspace, error)
	DeleteWorkspace(context.Context, string) error
	GetMemberRole(context.Context, string, string) (string, error)
	ListMembers(context.Context, string) ([]store.WorkspaceMember, error)
	UpdateMemberRole(context.Context, string, string, string) error
	RemoveMember(context.Context, string, string) error

	CreateSite(context.Context, string, store.SiteInput) (store.Site, error)
	UpdateSite(context.Context, string, store.SiteInput) (store.Site, error)
	GetSite(context.Context, string) (store.Site, error)
	GetSiteByHost(context.Context, string, string) (store.Site, error)
	ListSites(context.Context, string) ([]store.Site, error)
	DeleteSite(context.Context, string) error
	SubdomainExists(context.Context, string, string) (bool, error)

	CreateCampaign(context.Context, string, string, string, string, json.RawMessage) (store.Campaign, error)
	GetCampaign(context.Context, string) (store.Campaign, error)
	GetPublishedCampaign(context.Context, string, string) (store.Campaign, error)
	ListCampaigns(context.Context, string) ([]store.Campaign, error)
	UpdateCampaignContent(context.Context, string, string, string, json.RawMessage) (store.Campaign, error)
	SetCampaignStatus(context.Context, string, string) (store.Campaign, error)
	DeleteCampaign(context.Context, string) error

	CreateInvitation(context.Context, string, string, string, string, string) (store.Invitation, error)
	GetInvitationByToken(context.Context, string) (store.Invitation, error)
	ListInvitations(context.Context, string) ([]store.Invitation, error)
	DeleteInvitation(context.Context, string, string) error
	AcceptInvitation(context.Context, string, string) (string, error)

	InsertAuditLog(context.Context, store.AuditLogEntry) error
	ListAuditLogs(context.Context, store.AuditLogFilter) ([]store.AuditLogEntry, error)

	InsertTelemetryEvent(context.Context, store.TelemetryEvent) error
	ListTelemetryEvents(context.Context, string, int) ([]store.TelemetryEvent, error)
	CountTelemetryEvents(context.Context, time.Time) ([]store.TelemetryCount, error)

	InsertAsset(context.Context, store.Asset) (store.Asset, error)
	GetAsset(context.Context, string) (store.Asset, error)
	ListAssets(context.Context, string) ([]store.Asset, error)
	DeleteAsset(context.Context, string) error

	GetDashboardLayout(context.Context, string, string) (store.DashboardLayout, error)
	SaveDashboardLayout(context.Context, string, string, json.RawMessage) error
}

type sessionStore interface {
	Create(context.Context, session.Data, time.Duration) (session.Data, error)
	Lookup(context.Context, string) (session.Data, error)
	Revoke(context.Context, string) error
	RevokeUser(context.Context, string) error
	Ping(context.Context) error
}

type assetStorage interface {
	Enabled() bool
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*media.Object, error)
	Delete(ctx context.Context, key string) error
}

type pdfExporter interface {
	Campaign(ctx context.Context, doc blocks.Document, page render.Page) (*export.Result, error)
}

type mailer interface {
	IsConfigured() bool
	SendInvitation(locale, to, inviterName, workspaceName, acceptURL string) error
	SendVerification(locale, to, userName, verificationURL string) error
	SendPasswordReset(locale, to, userName, resetURL string) error
}

// Deps are the collaborators built by cmd/api.
type Deps struct {
	Config    config.Config
	Store     *store.PostgresStore
	Sessions  *session.RedisStore
	Cache     *cache.Cache
	Hub       *realtime.Hub
	Search    *search.Service
	Revisions *revisions.Service
	Media     *media.Client
	Export    *export.Service
	Email     *email.Service
	Policy    *rbac.Policy
	Logger    zerolog.Logger
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	guard     *guard.Guard
	recorder  *audit.Recorder
	cache     *cache.Cache
	hub       *realtime.Hub
	search    *search.Service
	revisions *revisions.Service
	media     assetStorage
	exporter  pdfExporter
	mailer    mailer
	passwords *authpw.Service
	policy    *rbac.Policy
	logger    zerolog.Logger
	actions   map[string]action
}

func New(deps Deps) *Service {
	s := &Service{
		cfg:       deps.Config,
		store:     deps.Store,
		sessions:  deps.Sessions,
		cache:     deps.Cache,
		hub:       deps.Hub,
		search:    deps.Search,
		revisions: deps.Revisions,
		media:     deps.Media,
		exporter:  deps.Export,
		mailer:    deps.Email,
		policy:    deps.Policy,
		logger:    deps.Logger,
	}
	s.wire()
	return s
}

// wire builds the store-backed helpers and the action table.
func (s *Service) wire() {
	s.guard = guard.New(s.store, s.store, s.store, logging.Component(s.logger, "guard"))
	s.recorder = audit.NewRecorder(s.store, logging.Component(s.logger, "audit"))
	if s.passwords == nil {
		s.passwords = authpw.NewService(s.store)
	}
	s.actions = s.registerActions()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// NewScope creates the per-request guard scope. The session is resolved
// lazily from the request's token.
func (s *Service) NewScope(r *http.Request) *guard.Scope {
	token := auth.TokenFromRequest(r)
	return s.guard.NewScope(func(ctx context.Context) (guard.Session, error) {
		return s.sessionFromToken(ctx, token)
	})
}

func (s *Service) sessionFromToken(ctx context.Context, token string) (guard.Session, error) {
	if token == "" || s.sessions == nil {
		return guard.Session{}, guard.ErrNoSession
	}
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return guard.Session{}, guard.ErrNoSession
	}
	data, err := s.sessions.Lookup(ctx, claims.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return guard.Session{}, guard.ErrNoSession
	}
	if err != nil {
		return guard.Session{}, err
	}
	if data.UserID != claims.Subject {
		return guard.Session{}, guard.ErrNoSession
	}
	return guard.Session{
		ID:          data.ID,
		UserID:      data.UserID,
		Email:       data.Email,
		DisplayName: data.DisplayName,
		AppRole:     data.AppRole,
	}, nil
}

// startSession stores a server-side session and signs its token.
func (s *Service) startSession(ctx context.Context, user store.User) (string, error) {
	data, err := s.sessions.Create(ctx, session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AppRole:     string(rbac.NormalizeAppRole(user.AppRole)),
	}, s.cfg.SessionTTL)
	if err != nil {
		return "", err
	}
	return auth.IssueToken([]byte(s.cfg.SessionSecret), user.ID, data.ID, s.cfg.SessionTTL)
}

func (s *Service) smtpConfigured() bool {
	return s.mailer != nil && s.mailer.IsConfigured()
}
