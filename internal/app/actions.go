package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/blocks"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/guard"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/ratelimit"
	"launchkit/api/internal/realtime"
	"launchkit/api/internal/subdomain"
)

// ActionResult is the response of every form action.
type ActionResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ActiveWorkspaceCookie remembers the workspace the builder works in.
const ActiveWorkspaceCookie = "active_workspace_id"

// call is one action invocation.
type call struct {
	scope  *guard.Scope
	locale i18n.Localizer
	ip     string
	r      *http.Request
	w      http.ResponseWriter
}

func (c *call) actor(ctx context.Context) string {
	session, _ := c.scope.Session(ctx)
	return session.UserID
}

type action func(ctx context.Context, c *call, values map[string]any) (any, error)

// define binds a typed form to an action body. The form is decoded and
// validated before the body runs, so malformed input never reaches a guard.
func define[F any](body func(ctx context.Context, c *call, form F) (any, error)) action {
	return func(ctx context.Context, c *call, values map[string]any) (any, error) {
		var form F
		if err := decodeForm(values, &form); err != nil {
			return nil, fail(i18n.InvalidData)
		}
		if err := formValidator.Struct(form); err != nil {
			return nil, fail(validationKey(err))
		}
		return body(ctx, c, form)
	}
}

// validationKey picks the message for a failed form. A block tree that
// parses as JSON but breaks the registry gets the content message.
func validationKey(err error) i18n.Key {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		for _, field := range fields {
			if field.Tag() == "blocks" {
				return i18n.InvalidContent
			}
		}
	}
	return i18n.InvalidData
}

func (s *Service) registerActions() map[string]action {
	return map[string]action{
		"create-site":               define(s.createSite),
		"update-site":               define(s.updateSite),
		"delete-site":               define(s.deleteSite),
		"create-campaign":           define(s.createCampaign),
		"save-campaign-content":     define(s.saveCampaignContent),
		"publish-campaign":          define(s.publishCampaign),
		"unpublish-campaign":        define(s.unpublishCampaign),
		"delete-campaign":           define(s.deleteCampaign),
		"restore-campaign-revision": define(s.restoreCampaignRevision),
		"create-workspace":          define(s.createWorkspace),
		"update-workspace":          define(s.updateWorkspace),
		"delete-workspace":          define(s.deleteWorkspace),
		"switch-workspace":          define(s.switchWorkspace),
		"update-member-role":        define(s.updateMemberRole),
		"remove-member":             define(s.removeMember),
		"invite-member":             define(s.inviteMember),
		"revoke-invitation":         define(s.revokeInvitation),
		"accept-invitation":         define(s.acceptInvitation),
		"upload-asset":              define(s.uploadAsset),
		"delete-asset":              define(s.deleteAsset),
		"save-dashboard-layout":     define(s.saveDashboardLayout),
		"set-locale":                define(s.setLocale),
		"set-app-role":              define(s.setAppRole),
	}
}

func (s *Service) hasAction(name string) bool {
	_, ok := s.actions[name]
	return ok
}

// RunAction executes a named action. It never panics and never returns an
// internal error message to the caller.
func (s *Service) RunAction(ctx context.Context, name string, c *call) (result ActionResult) {
	logger := s.logger.With().Str("action", name).Logger()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("action panicked")
			result = ActionResult{Error: c.locale.T(i18n.GenericFailure)}
		}
	}()

	run, ok := s.actions[name]
	if !ok {
		return ActionResult{Error: c.locale.T(i18n.NotFound)}
	}
	data, err := run(ctx, c, formValues(c.r))
	if err != nil {
		key, expected := actionMessage(err)
		if expected {
			logger.Debug().Str("reason", string(key)).Msg("action rejected")
		} else {
			logger.Error().Err(err).Str("actor_id", c.actor(ctx)).Msg("action failed")
		}
		return ActionResult{Error: c.locale.T(key)}
	}
	return ActionResult{Success: true, Data: data}
}

// outcome lists the side effects of a successful mutation.
type outcome struct {
	audit  *audit.Entry
	scopes []cache.Scope
	event  *realtime.Event
}

// settle runs the post-mutation steps in order: audit, cache invalidation,
// realtime publish. None of them can fail the mutation.
func (s *Service) settle(ctx context.Context, c *call, out outcome) {
	if out.audit != nil {
		entry := *out.audit
		if entry.IPAddress == "" {
			entry.IPAddress = c.ip
		}
		s.recorder.Record(ctx, entry)
	}
	s.cache.Invalidate(ctx, out.scopes...)
	if out.event != nil {
		event := *out.event
		if event.ActorID == "" {
			event.ActorID = c.actor(ctx)
		}
		s.hub.Publish(ctx, event)
	}
}

func newCall(scope *guard.Scope, w http.ResponseWriter, r *http.Request) *call {
	return &call{
		scope:  scope,
		locale: i18n.FromRequest(r),
		ip:     ratelimit.ClientIP(r),
		r:      r,
		w:      w,
	}
}

// formValues flattens the parsed form. Single values become strings.
func formValues(r *http.Request) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	var form url.Values
	if r.MultipartForm != nil {
		form = r.MultipartForm.Value
	} else {
		form = r.PostForm
	}
	out := make(map[string]any, len(form))
	for key, values := range form {
		switch len(values) {
		case 0:
		case 1:
			out[key] = strings.TrimSpace(values[0])
		default:
			trimmed := make([]string, len(values))
			for i, v := range values {
				trimmed[i] = strings.TrimSpace(v)
			}
			out[key] = trimmed
		}
	}
	return out
}

func decodeForm(values map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("subdomain", func(fl validator.FieldLevel) bool {
		return subdomain.Validate(subdomain.Normalize(fl.Field().String())) == nil
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return len(value) <= 80 && slugPattern.MatchString(value)
	})
	_ = v.RegisterValidation("blocks", func(fl validator.FieldLevel) bool {
		return blocks.Validate(json.RawMessage(fl.Field().String())) == nil
	})
	return v
}

func setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, secure bool) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(maxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}

const yearOfCookies = 365 * 24 * time.Hour
