package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
)

const (
	idxSites     = "launchkit_sites"
	idxCampaigns = "launchkit_campaigns"
)

// Meili implements Engine via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  zerolog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string, logger zerolog.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxSites,
			filterable: []string{"workspaceId"},
			searchable: []string{"name", "subdomain", "customDomain", "description"},
		},
		{
			uid:        idxCampaigns,
			filterable: []string{"workspaceId", "siteId", "status"},
			searchable: []string{"name", "slug"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			m.logger.Debug().Err(err).Str("index", idx.uid).Msg("create index (may already exist)")
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn().Err(err).Str("index", idx.uid).Msg("update filterable attributes")
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.logger.Warn().Err(err).Str("index", idx.uid).Msg("update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info().Msg("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the site and campaign indexes, always filtered to the
// query's workspace.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	queries := buildQueries(q)
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		kind := indexKind(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, kind))
		}
	}
	return results, total, nil
}

func buildQueries(q Query) []*meili.SearchRequest {
	if strings.TrimSpace(q.WorkspaceID) == "" {
		return nil
	}
	targets := []struct {
		uid  string
		kind Kind
	}{
		{idxSites, KindSite},
		{idxCampaigns, KindCampaign},
	}
	var queries []*meili.SearchRequest
	for _, target := range targets {
		if q.Kind != "" && q.Kind != target.kind {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              target.uid,
			Query:                 q.Text,
			Limit:                 int64(limitOrDefault(q.Limit)),
			AttributesToHighlight: []string{"name"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			Filter:                workspaceFilter(q.WorkspaceID),
		})
	}
	return queries
}

func workspaceFilter(workspaceID string) string {
	return fmt.Sprintf("workspaceId = %q", workspaceID)
}

func indexKind(uid string) Kind {
	switch uid {
	case idxSites:
		return KindSite
	case idxCampaigns:
		return KindCampaign
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, kind Kind) Result {
	r := Result{
		Kind:        kind,
		ID:          decodeString(hit, "id"),
		WorkspaceID: decodeString(hit, "workspaceId"),
		Title:       firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name")),
	}
	switch kind {
	case KindSite:
		r.SiteID = r.ID
		r.Snippet = decodeString(hit, "subdomain")
	case KindCampaign:
		r.SiteID = decodeString(hit, "siteId")
		r.Snippet = decodeString(hit, "slug")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	s, _ := formatted[key].(string)
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexSites(records []SiteRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxSites).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexCampaigns(records []CampaignRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCampaigns).AddDocuments(records, nil)
	return err
}

func (m *Meili) DeleteSite(id string) error {
	_, err := m.client.Index(idxSites).DeleteDocument(id, nil)
	return err
}

func (m *Meili) DeleteCampaign(id string) error {
	_, err := m.client.Index(idxCampaigns).DeleteDocument(id, nil)
	return err
}
