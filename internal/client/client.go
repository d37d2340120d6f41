// Package client talks to the Launchkit HTTP API. The operator CLI uses it
// to drive actions and the interactive availability and list helpers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ActionError is a failed action result. Message is already localized.
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// APIError is a non-2xx response from a JSON endpoint.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	token   string
	locale  string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLocale sends the locale cookie so action errors come back in that
// language.
func WithLocale(locale string) Option {
	return func(c *Client) { c.locale = locale }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type actionResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Action posts a form to /actions/{name} and returns the result data.
func (c *Client) Action(ctx context.Context, name string, form url.Values) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/actions/"+url.PathEscape(name), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post action %s: %w", name, err)
	}
	defer resp.Body.Close()

	var result actionResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode action %s: %w", name, err)
	}
	if !result.Success {
		return nil, &ActionError{Action: name, Message: result.Error}
	}
	return result.Data, nil
}

// SignIn exchanges credentials for a session token and keeps it for later
// calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/signin", body, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

// CheckSubdomain asks whether a subdomain is free. exceptSiteID lets a site
// keep its own subdomain.
func (c *Client) CheckSubdomain(ctx context.Context, subdomain, exceptSiteID string) (bool, error) {
	q := url.Values{"subdomain": {subdomain}}
	if exceptSiteID != "" {
		q.Set("siteId", exceptSiteID)
	}
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/subdomains/availability?"+q.Encode(), nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

type Site struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspaceId"`
	Name         string    `json:"name"`
	Subdomain    string    `json:"subdomain"`
	CustomDomain *string   `json:"customDomain"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (c *Client) ListSites(ctx context.Context, workspaceID string) ([]Site, error) {
	var out struct {
		Sites []Site `json:"sites"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/workspaces/"+url.PathEscape(workspaceID)+"/sites", nil, &out); err != nil {
		return nil, err
	}
	return out.Sites, nil
}

type AuditEntry struct {
	ID               int64           `json:"id"`
	Action           string          `json:"action"`
	ActorID          string          `json:"actorId"`
	TargetEntityID   string          `json:"targetEntityId"`
	TargetEntityType string          `json:"targetEntityType"`
	Metadata         json.RawMessage `json:"metadata"`
	IPAddress        string          `json:"ipAddress"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type AuditFilter struct {
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}

func (c *Client) ListAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	q := url.Values{}
	setIf(q, "actorId", filter.ActorID)
	setIf(q, "action", filter.Action)
	setIf(q, "targetType", filter.TargetType)
	setIf(q, "targetId", filter.TargetID)
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	var out struct {
		Entries []AuditEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/audit?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.locale != "" {
		req.AddCookie(&http.Cookie{Name: "NEXT_LOCALE_CHOSEN", Value: c.locale})
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
