// Package guard composes session resolution with permission checks. Guards
// return a Result and never an error.
package guard

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"launchkit/api/internal/rbac"
	"launchkit/api/internal/store"
)

type Code string

const (
	SessionNotFound  Code = "SESSION_NOT_FOUND"
	PermissionDenied Code = "PERMISSION_DENIED"
	NotFound         Code = "NOT_FOUND"
)

// ErrNoSession is returned by a SessionResolver when the request carries no
// valid session.
var ErrNoSession = errors.New("no session")

type Result[T any] struct {
	Success bool
	Data    T
	Error   Code
}

func allow[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func deny[T any](code Code) Result[T] {
	return Result[T]{Error: code}
}

type Session struct {
	ID          string
	UserID      string
	Email       string
	DisplayName string
	AppRole     string
}

type SiteAccess struct {
	Session Session
	Site    store.Site
	Role    rbac.WorkspaceRole
}

type CampaignAccess struct {
	Session  Session
	Site     store.Site
	Campaign store.Campaign
	Role     rbac.WorkspaceRole
}

type WorkspaceAccess struct {
	Session Session
	Role    rbac.WorkspaceRole
}

type SessionResolver func(ctx context.Context) (Session, error)

type SiteStore interface {
	GetSite(ctx context.Context, siteID string) (store.Site, error)
}

type CampaignStore interface {
	GetCampaign(ctx context.Context, campaignID string) (store.Campaign, error)
}

// Guard holds the lookups shared by every request scope.
type Guard struct {
	members   rbac.MembershipStore
	sites     SiteStore
	campaigns CampaignStore
	logger    zerolog.Logger
}

func New(members rbac.MembershipStore, sites SiteStore, campaigns CampaignStore, logger zerolog.Logger) *Guard {
	return &Guard{members: members, sites: sites, campaigns: campaigns, logger: logger}
}

// Scope is created once per request. The session is resolved at most once
// and membership roles are looked up at most once per workspace.
type Scope struct {
	guard   *Guard
	resolve SessionResolver

	sessionMu  sync.Mutex
	resolved   bool
	session    Session
	sessionErr error

	mu    sync.Mutex
	roles map[string]memoRole
}

type memoRole struct {
	role string
	err  error
}

func (g *Guard) NewScope(resolve SessionResolver) *Scope {
	return &Scope{guard: g, resolve: resolve, roles: make(map[string]memoRole)}
}

// Session resolves the request session once. Concurrent callers wait for
// the first resolution.
func (s *Scope) Session(ctx context.Context) (Session, bool) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if !s.resolved {
		s.resolved = true
		if s.resolve == nil {
			s.sessionErr = ErrNoSession
		} else {
			s.session, s.sessionErr = s.resolve(ctx)
			if s.sessionErr != nil && !errors.Is(s.sessionErr, ErrNoSession) {
				s.guard.logger.Error().Err(s.sessionErr).Msg("session lookup failed")
			}
		}
	}
	return s.session, s.sessionErr == nil
}

// Forget drops the memoized session so the next call resolves again. Used
// after sign-in and sign-out within the same request.
func (s *Scope) Forget() {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	s.resolved = false
	s.session = Session{}
	s.sessionErr = nil
}

// GetMemberRole memoizes membership lookups for the request. Transient
// errors are not cached.
func (s *Scope) GetMemberRole(ctx context.Context, workspaceID, userID string) (string, error) {
	key := workspaceID + "\x00" + userID
	s.mu.Lock()
	cached, ok := s.roles[key]
	s.mu.Unlock()
	if ok {
		return cached.role, cached.err
	}

	role, err := s.guard.members.GetMemberRole(ctx, workspaceID, userID)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		s.mu.Lock()
		s.roles[key] = memoRole{role: role, err: err}
		s.mu.Unlock()
	}
	return role, err
}

func (s *Scope) RequireSession(ctx context.Context) Result[Session] {
	session, ok := s.Session(ctx)
	if !ok {
		return deny[Session](SessionNotFound)
	}
	return allow(session)
}

func (s *Scope) RequireAppRole(ctx context.Context, roles ...rbac.AppRole) Result[Session] {
	session, ok := s.Session(ctx)
	if !ok {
		return deny[Session](SessionNotFound)
	}
	if !rbac.HasAppRole(session.AppRole, roles...) {
		s.guard.logger.Warn().
			Str("actor_id", session.UserID).
			Str("app_role", session.AppRole).
			Msg("app role denied")
		return deny[Session](PermissionDenied)
	}
	return allow(session)
}

func (s *Scope) RequireWorkspacePermission(ctx context.Context, workspaceID string, roles ...rbac.WorkspaceRole) Result[WorkspaceAccess] {
	session, ok := s.Session(ctx)
	if !ok {
		return deny[WorkspaceAccess](SessionNotFound)
	}
	if !rbac.HasWorkspacePermission(ctx, s, s.guard.logger, session.UserID, workspaceID, roles...) {
		s.warnDenied(session.UserID, workspaceID, "")
		return deny[WorkspaceAccess](PermissionDenied)
	}
	return allow(WorkspaceAccess{Session: session, Role: s.cachedRole(workspaceID, session.UserID)})
}

// RequireSitePermission authorizes against the site's parent workspace. A
// missing site is NOT_FOUND and no permission check runs.
func (s *Scope) RequireSitePermission(ctx context.Context, siteID string, roles ...rbac.WorkspaceRole) Result[SiteAccess] {
	session, ok := s.Session(ctx)
	if !ok {
		return deny[SiteAccess](SessionNotFound)
	}
	site, err := s.guard.sites.GetSite(ctx, siteID)
	if err != nil {
		return deny[SiteAccess](s.lookupFailure(err, "site", siteID))
	}
	if !rbac.HasWorkspacePermission(ctx, s, s.guard.logger, session.UserID, site.WorkspaceID, roles...) {
		s.warnDenied(session.UserID, site.WorkspaceID, siteID)
		return deny[SiteAccess](PermissionDenied)
	}
	return allow(SiteAccess{Session: session, Site: site, Role: s.cachedRole(site.WorkspaceID, session.UserID)})
}

// RequireCampaignPermission resolves campaign, then site, then workspace.
func (s *Scope) RequireCampaignPermission(ctx context.Context, campaignID string, roles ...rbac.WorkspaceRole) Result[CampaignAccess] {
	session, ok := s.Session(ctx)
	if !ok {
		return deny[CampaignAccess](SessionNotFound)
	}
	campaign, err := s.guard.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return deny[CampaignAccess](s.lookupFailure(err, "campaign", campaignID))
	}
	siteResult := s.RequireSitePermission(ctx, campaign.SiteID, roles...)
	if !siteResult.Success {
		return deny[CampaignAccess](siteResult.Error)
	}
	return allow(CampaignAccess{
		Session:  session,
		Site:     siteResult.Data.Site,
		Campaign: campaign,
		Role:     siteResult.Data.Role,
	})
}

func (s *Scope) lookupFailure(err error, kind, id string) Code {
	if errors.Is(err, store.ErrNotFound) {
		return NotFound
	}
	s.guard.logger.Error().Err(err).Str("target_type", kind).Str("target_id", id).Msg("guard lookup failed")
	return PermissionDenied
}

func (s *Scope) warnDenied(actorID, workspaceID, siteID string) {
	event := s.guard.logger.Warn().
		Str("actor_id", actorID).
		Str("workspace_id", workspaceID)
	if siteID != "" {
		event = event.Str("site_id", siteID)
	}
	event.Msg("workspace permission denied")
}

func (s *Scope) cachedRole(workspaceID, userID string) rbac.WorkspaceRole {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rbac.WorkspaceRole(s.roles[workspaceID+"\x00"+userID].role)
}

type scopeKey struct{}

func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the request scope, or an empty scope without a session.
func FromContext(ctx context.Context) *Scope {
	if scope, ok := ctx.Value(scopeKey{}).(*Scope); ok && scope != nil {
		return scope
	}
	return (&Guard{logger: zerolog.Nop()}).NewScope(nil)
}
