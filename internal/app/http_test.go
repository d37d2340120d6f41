package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"launchkit/api/internal/auth"
	"launchkit/api/internal/store"
)

func serve(svc *Service, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	NewHTTPServer(svc, "*").Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	rr := serve(svc, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if ok := decodeJSON(t, rr)["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestReadyEndpoint(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	rr := serve(svc, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if status := decodeJSON(t, rr)["status"]; status != "ready" {
		t.Errorf("expected status ready, got %v", status)
	}
}

func TestReadyEndpointDatabaseDown(t *testing.T) {
	fs := &fakeStore{pingFn: func(context.Context) error { return errors.New("connection refused") }}
	svc := newTestService(t, fs)

	rr := serve(svc, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["ok"] != false || body["status"] != "not_ready" {
		t.Errorf("unexpected body %v", body)
	}
	checks := body["checks"].(map[string]any)
	if db := checks["database"].(map[string]any); db["status"] != "error" {
		t.Errorf("expected database check error, got %v", db)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	svc := newTestService(t, &fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")

	rr := serve(svc, req)

	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}

func TestBlockRegistryEndpoint(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	rr := serve(svc, httptest.NewRequest(http.MethodGet, "/api/blocks", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	definitions, ok := decodeJSON(t, rr)["blocks"].([]any)
	if !ok || len(definitions) == 0 {
		t.Errorf("expected block definitions, got %v", definitions)
	}
}

const publishedContent = `{"meta":{"title":"Launch"},"blocks":[{"id":"b1","type":"hero","props":{"title":"Big launch","align":"center"}}]}`

func publicStore(siteLookups *int) *fakeStore {
	return &fakeStore{
		getSiteByHostFn: func(_ context.Context, host, rootDomain string) (store.Site, error) {
			*siteLookups++
			if host != "promo."+testRootDomain || rootDomain != testRootDomain {
				return store.Site{}, store.ErrNotFound
			}
			return promoSite(), nil
		},
		getPublishedCampaignFn: func(_ context.Context, siteID, slug string) (store.Campaign, error) {
			if siteID != "site-1" || slug != "index" {
				return store.Campaign{}, store.ErrNotFound
			}
			return store.Campaign{ID: "c-1", SiteID: siteID, Slug: slug, Status: store.CampaignPublished, Content: json.RawMessage(publishedContent)}, nil
		},
	}
}

func TestPublicPageRendersAndCaches(t *testing.T) {
	lookups := 0
	svc := newTestService(t, publicStore(&lookups))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "promo." + testRootDomain + ":8080"
		rr := serve(svc, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "Big launch") {
			t.Errorf("request %d: expected hero title in page", i)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("request %d: expected html content type, got %q", i, ct)
		}
	}
	if lookups != 1 {
		t.Errorf("expected the second request to be served from cache, got %d lookups", lookups)
	}
}

func TestPublicPageUnknownSlug(t *testing.T) {
	lookups := 0
	svc := newTestService(t, publicStore(&lookups))
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Host = "promo." + testRootDomain

	rr := serve(svc, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestPublicFormSubmissionRecordsTelemetry(t *testing.T) {
	lookups := 0
	fs := publicStore(&lookups)
	var recorded []store.TelemetryEvent
	fs.insertTelemetryEventFn = func(_ context.Context, event store.TelemetryEvent) error {
		recorded = append(recorded, event)
		return nil
	}
	svc := newTestService(t, fs)

	form := url.Values{"email": {"fan@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Host = "promo." + testRootDomain
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(svc, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/?submitted=1" {
		t.Errorf("unexpected redirect %q", loc)
	}
	if len(recorded) != 1 {
		t.Fatalf("expected one telemetry event, got %d", len(recorded))
	}
	event := recorded[0]
	if event.EventType != "form_submission" || event.WorkspaceID != "ws-1" || event.Source != "public" {
		t.Errorf("unexpected event %+v", event)
	}
	if !strings.Contains(string(event.Metadata), "fan@example.com") {
		t.Errorf("expected submitted field in metadata, got %s", event.Metadata)
	}
}

func hashedUser(t *testing.T, user store.User, password string) store.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user.PasswordHash = string(hash)
	return user
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "es")
	return req
}

func TestSignInStartsSession(t *testing.T) {
	user := hashedUser(t, ownerUser, "correct horse")
	fs := &fakeStore{
		getUserByEmailFn: func(_ context.Context, email string) (store.User, error) {
			if email != user.Email {
				return store.User{}, store.ErrNotFound
			}
			return user, nil
		},
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			if userID != user.ID {
				return store.User{}, store.ErrNotFound
			}
			return user, nil
		},
	}
	svc := newTestService(t, fs)

	rr := serve(svc, jsonRequest(http.MethodPost, "/api/auth/signin", `{"email":" Owner@Example.com ","password":"correct horse"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	token, _ := decodeJSON(t, rr)["token"].(string)
	if token == "" {
		t.Fatal("expected a token in the response")
	}
	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != token || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	rr = serve(svc, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for session, got %d", rr.Code)
	}
	sessionUser := decodeJSON(t, rr)["user"].(map[string]any)
	if sessionUser["id"] != user.ID {
		t.Errorf("unexpected session user %v", sessionUser)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	user := hashedUser(t, ownerUser, "correct horse")
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) { return user, nil },
	}
	svc := newTestService(t, fs)

	rr := serve(svc, jsonRequest(http.MethodPost, "/api/auth/signin", `{"email":"owner@example.com","password":"battery staple"}`))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if msg := decodeJSON(t, rr)["error"]; msg != "Correo o contraseña incorrectos." {
		t.Errorf("unexpected error %v", msg)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Error("expected no cookie on failed sign in")
	}
}

func TestSignInUnverifiedEmail(t *testing.T) {
	user := hashedUser(t, ownerUser, "correct horse")
	user.IsEmailVerified = false
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) { return user, nil },
	}
	svc := newTestService(t, fs)

	rr := serve(svc, jsonRequest(http.MethodPost, "/api/auth/signin", `{"email":"owner@example.com","password":"correct horse"}`))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
	if code := decodeJSON(t, rr)["code"]; code != "EMAIL_NOT_VERIFIED" {
		t.Errorf("unexpected code %v", code)
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, string) (store.User, error) { return ownerUser, nil },
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, ownerUser)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	if rr := serve(svc, req); rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	if rr := serve(svc, req); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected revoked token to be rejected, got %d", rr.Code)
	}
}

func TestSessionRequiresToken(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	rr := serve(svc, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestAdminAuditRequiresPolicy(t *testing.T) {
	admin := store.User{ID: "user-admin", Email: "admin@example.com", DisplayName: "Ada", AppRole: "admin"}
	fs := &fakeStore{
		listAuditLogsFn: func(_ context.Context, filter store.AuditLogFilter) ([]store.AuditLogEntry, error) {
			if filter.Action != "site.delete" || filter.Limit != 10 {
				t.Errorf("unexpected filter %+v", filter)
			}
			return []store.AuditLogEntry{{ID: 1, Action: "site.delete", ActorID: "user-owner"}}, nil
		},
	}
	svc := newTestService(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit?action=site.delete&limit=10", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: signedIn(t, svc, ownerUser)})
	if rr := serve(svc, req); rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403 for a regular user, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/audit?action=site.delete&limit=10", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: signedIn(t, svc, admin)})
	rr := serve(svc, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for an admin, got %d", rr.Code)
	}
	entries := decodeJSON(t, rr)["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if metadata := entries[0].(map[string]any)["metadata"]; metadata == nil {
		t.Error("expected metadata to default to an object")
	}
}

func TestSubdomainAvailability(t *testing.T) {
	fs := &fakeStore{
		subdomainExistsFn: func(_ context.Context, sub, exceptSiteID string) (bool, error) {
			return sub == "taken", nil
		},
	}
	svc := newTestService(t, fs)
	token := signedIn(t, svc, ownerUser)

	cases := []struct {
		subdomain string
		available bool
		reason    string
	}{
		{"fresh-launch", true, ""},
		{"TAKEN", false, "taken"},
		{"www", false, "reserved"},
		{"ab", false, "too_short"},
		{"-bad-", false, "format"},
	}
	for _, tc := range cases {
		t.Run(tc.subdomain, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/subdomains/availability?subdomain="+url.QueryEscape(tc.subdomain), nil)
			req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
			rr := serve(svc, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			body := decodeJSON(t, rr)
			if body["available"] != tc.available {
				t.Errorf("available = %v, want %v", body["available"], tc.available)
			}
			reason, _ := body["reason"].(string)
			if reason != tc.reason {
				t.Errorf("reason = %q, want %q", reason, tc.reason)
			}
		})
	}
}

func TestWorkspaceReadsRequireMembership(t *testing.T) {
	fs := &fakeStore{getMemberRoleFn: roleIn(map[string]string{})}
	svc := newTestService(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/ws-1/sites", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: signedIn(t, svc, memberUser)})
	rr := serve(svc, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}
