package models

import "time"

type Source string

const (
	SourceProductHunt Source = "product-hunt"
	SourceForum       Source = "forum"
	SourceCodeHost    Source = "code-host"
	SourceManual      Source = "manual"
)

type DiscoveredAgent struct {
	URL          string    `json:"url" bson:"url"`
	Title        string    `json:"title" bson:"title"`
	Description  string    `json:"description,omitempty" bson:"description,omitempty"`
	Source       Source    `json:"source" bson:"source"`
	DiscoveredAt time.Time `json:"discoveredAt" bson:"discovered_at"`
	// PublishedAt is when the source says the item appeared, if it says.
	PublishedAt *time.Time `json:"publishedAt,omitempty" bson:"published_at,omitempty"`
	Popularity  *float64   `json:"popularity,omitempty" bson:"popularity,omitempty"`
	Tags        []string   `json:"tags,omitempty" bson:"tags,omitempty"`
}

// PopularityOrZero treats a missing popularity signal as zero.
func (a DiscoveredAgent) PopularityOrZero() float64 {
	if a.Popularity == nil {
		return 0
	}
	return *a.Popularity
}

type RawDataItem struct {
	FullName       string `json:"full_name" bson:"full_name"`
	ProductWebsite string `json:"product_website" bson:"product_website"`
	Codename       string `json:"codename" bson:"codename"`
	LogoSrc        string `json:"logo_src" bson:"logo_src"`
	Punchline      string `json:"punchline" bson:"punchline"`
	Description    string `json:"description" bson:"description"`
	SiteContent    string `json:"site_content" bson:"site_content"`
}

type EnrichedDataItem struct {
	RawDataItem `bson:",inline"`
	Tags        []string `json:"tags" bson:"tags"`
	Labels      []string `json:"labels" bson:"labels"`
	Categories  string   `json:"categories" bson:"categories"`
}

type FailedItem[T any] struct {
	Item     T      `json:"item" bson:"item"`
	Error    string `json:"error" bson:"error"`
	Kind     string `json:"kind,omitempty" bson:"kind,omitempty"`
	Attempts int    `json:"attempts,omitempty" bson:"attempts,omitempty"`
}
