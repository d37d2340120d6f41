package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"launchkit/api/internal/blocks"
	"launchkit/api/internal/cache"
	"launchkit/api/internal/render"
	"launchkit/api/internal/store"
)

const (
	maxSubmissionBytes  = 64 << 10
	maxSubmissionFields = 50
	maxSubmissionValue  = 1000
)

const notFoundHTML = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>404</title></head><body><h1>404</h1></body></html>`

// handlePublicPage serves published campaigns on site hosts. "/" is the
// campaign with slug "index".
func (s *HTTPServer) handlePublicPage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/media/") {
		s.handleMedia(w, r, strings.TrimPrefix(r.URL.Path, "/media/"))
		return
	}

	slug := strings.Trim(r.URL.Path, "/")
	if slug == "" {
		slug = "index"
	}
	if strings.Contains(slug, "/") {
		writeHTML(w, http.StatusNotFound, notFoundHTML)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.servePublicPage(w, r, requestHost(r), slug)
	case http.MethodPost:
		if !s.allow(w, r, s.telemetryLimiter) {
			return
		}
		s.handleSubmission(w, r, requestHost(r), slug)
	default:
		writeHTML(w, http.StatusMethodNotAllowed, notFoundHTML)
	}
}

func (s *HTTPServer) servePublicPage(w http.ResponseWriter, r *http.Request, host, slug string) {
	scope := cache.PublicPage(host, slug)
	if html, ok := s.service.cache.Get(r.Context(), scope, "html"); ok {
		writePublicHTML(w, html)
		return
	}

	site, campaign, err := s.lookupPublished(r, host, slug)
	if errors.Is(err, store.ErrNotFound) {
		writeHTML(w, http.StatusNotFound, notFoundHTML)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("host", host).Str("slug", slug).Msg("resolve public page")
		writeHTML(w, http.StatusInternalServerError, notFoundHTML)
		return
	}

	doc, err := blocks.Parse(campaign.Content)
	if err != nil {
		s.logger.Warn().Err(err).Str("campaign_id", campaign.ID).Msg("published content invalid")
		writeHTML(w, http.StatusNotFound, notFoundHTML)
		return
	}
	html, err := render.Render(doc, render.Page{
		SiteName:   site.Name,
		TrackerURL: s.service.cfg.TrackerURL,
		Now:        time.Now(),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("campaign_id", campaign.ID).Msg("render public page")
		writeHTML(w, http.StatusInternalServerError, notFoundHTML)
		return
	}
	s.service.cache.Set(r.Context(), scope, "html", []byte(html))
	writePublicHTML(w, []byte(html))
}

func (s *HTTPServer) lookupPublished(r *http.Request, host, slug string) (store.Site, store.Campaign, error) {
	site, err := s.service.store.GetSiteByHost(r.Context(), host, s.service.cfg.RootDomain)
	if err != nil {
		return store.Site{}, store.Campaign{}, err
	}
	campaign, err := s.service.store.GetPublishedCampaign(r.Context(), site.ID, slug)
	if err != nil {
		return store.Site{}, store.Campaign{}, err
	}
	return site, campaign, nil
}

// handleSubmission records a form post from a public page as a telemetry
// event and redirects back to the page.
func (s *HTTPServer) handleSubmission(w http.ResponseWriter, r *http.Request, host, slug string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
	if err := r.ParseForm(); err != nil {
		writeHTML(w, http.StatusBadRequest, notFoundHTML)
		return
	}
	site, campaign, err := s.lookupPublished(r, host, slug)
	if errors.Is(err, store.ErrNotFound) {
		writeHTML(w, http.StatusNotFound, notFoundHTML)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("host", host).Msg("resolve submission target")
		writeHTML(w, http.StatusInternalServerError, notFoundHTML)
		return
	}

	fields := map[string]string{}
	for name, values := range r.PostForm {
		if len(fields) == maxSubmissionFields {
			break
		}
		value := strings.TrimSpace(strings.Join(values, ", "))
		if len(value) > maxSubmissionValue {
			value = value[:maxSubmissionValue]
		}
		fields[name] = value
	}
	metadata, err := json.Marshal(map[string]any{
		"site_id":     site.ID,
		"campaign_id": campaign.ID,
		"slug":        campaign.Slug,
		"fields":      fields,
	})
	if err != nil {
		writeHTML(w, http.StatusInternalServerError, notFoundHTML)
		return
	}
	if err := s.service.store.InsertTelemetryEvent(r.Context(), store.TelemetryEvent{
		EventType:   "form_submission",
		Source:      "public",
		WorkspaceID: site.WorkspaceID,
		Metadata:    metadata,
	}); err != nil {
		s.logger.Error().Err(err).Str("campaign_id", campaign.ID).Msg("record form submission")
		writeHTML(w, http.StatusInternalServerError, notFoundHTML)
		return
	}

	target := "/"
	if slug != "index" {
		target += slug
	}
	http.Redirect(w, r, target+"?submitted=1", http.StatusSeeOther)
}

func writePublicHTML(w http.ResponseWriter, html []byte) {
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeHTML(w, http.StatusOK, string(html))
}

// handleMedia streams an uploaded object. Keys are unguessable and assets
// appear on public pages, so no session is required.
func (s *HTTPServer) handleMedia(w http.ResponseWriter, r *http.Request, key string) {
	media := s.service.media
	if media == nil || !media.Enabled() || key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	obj, err := media.Get(r.Context(), key)
	if err != nil {
		s.logger.Debug().Err(err).Str("object_key", key).Msg("media lookup")
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	defer obj.Reader.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if !obj.LastModified.IsZero() {
		w.Header().Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Reader); err != nil {
		s.logger.Debug().Err(err).Str("object_key", key).Msg("stream media")
	}
}
