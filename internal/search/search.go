package search

// Kind identifies the kind of entity in a search result.
type Kind string

const (
	KindSite     Kind = "site"
	KindCampaign Kind = "campaign"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Kind        Kind   `json:"kind"`
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	SiteID      string `json:"siteId"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
}

// Query describes a search request. WorkspaceID is mandatory; results never
// cross workspaces.
type Query struct {
	WorkspaceID string
	Text        string
	Kind        Kind // empty = all kinds
	Limit       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Engine is an external index that can answer queries and accept records.
type Engine interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexSites(records []SiteRecord) error
	IndexCampaigns(records []CampaignRecord) error
	DeleteSite(id string) error
	DeleteCampaign(id string) error
}

// SiteRecord is the data we index for a site.
type SiteRecord struct {
	ID           string `json:"id"`
	WorkspaceID  string `json:"workspaceId"`
	Name         string `json:"name"`
	Subdomain    string `json:"subdomain"`
	CustomDomain string `json:"customDomain"`
	Description  string `json:"description"`
}

// CampaignRecord is the data we index for a campaign.
type CampaignRecord struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	SiteID      string `json:"siteId"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Status      string `json:"status"`
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
