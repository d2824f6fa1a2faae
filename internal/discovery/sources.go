package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amankumarsingh77/directory_pipeline/internal/common/httpclient"
	"github.com/amankumarsingh77/directory_pipeline/models"
	"github.com/amankumarsingh77/directory_pipeline/pkg"
	"github.com/amankumarsingh77/directory_pipeline/pkg/retry"
	"github.com/mmcdole/gofeed"
)

// Source returns best-effort candidates from one external place.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.DiscoveredAgent, error)
}

func floatPtr(v float64) *float64 { return &v }

// fetchRetry retries rate limits, 5xx and network errors on the source APIs.
func fetchRetry() retry.Config {
	cfg := retry.WithRetries(2)
	cfg.InitialDelay = time.Second
	return cfg
}

// ProductHuntSource reads the public Product Hunt feed.
type ProductHuntSource struct {
	http    *httpclient.HttpClient
	feedURL string
	limit   int
	retry   retry.Config
	now     func() time.Time
}

func NewProductHuntSource(client *httpclient.HttpClient, feedURL string, limit int) *ProductHuntSource {
	return &ProductHuntSource{http: client, feedURL: feedURL, limit: limit, retry: fetchRetry(), now: time.Now}
}

func (s *ProductHuntSource) Name() string { return string(models.SourceProductHunt) }

func (s *ProductHuntSource) Fetch(ctx context.Context) ([]models.DiscoveredAgent, error) {
	var feed *gofeed.Feed
	err := retry.Retry(ctx, s.retry, func() error {
		resp, err := s.http.Get(ctx, s.feedURL, http.Header{"Accept": []string{"application/atom+xml, application/rss+xml"}})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if feed, err = gofeed.NewParser().Parse(resp.Body); err != nil {
			return fmt.Errorf("parse feed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	var items []models.DiscoveredAgent
	for _, entry := range feed.Items {
		link := entry.Link
		if link == "" && strings.HasPrefix(entry.GUID, "http") {
			link = entry.GUID
		}
		if link == "" {
			continue
		}
		items = append(items, models.DiscoveredAgent{
			URL:          link,
			Title:        strings.TrimSpace(entry.Title),
			Description:  strings.TrimSpace(entry.Description),
			Source:       models.SourceProductHunt,
			DiscoveredAt: now,
			PublishedAt:  entry.PublishedParsed,
			Tags:         entry.Categories,
		})
		if s.limit > 0 && len(items) >= s.limit {
			break
		}
	}
	return items, nil
}

// HackerNewsSource searches "Show HN" posts through the Algolia API.
type HackerNewsSource struct {
	http    *httpclient.HttpClient
	baseURL string
	queries []string
	limit   int
	retry   retry.Config
	now     func() time.Time
}

func NewHackerNewsSource(client *httpclient.HttpClient, baseURL string, queries []string, limit int) *HackerNewsSource {
	return &HackerNewsSource{http: client, baseURL: baseURL, queries: queries, limit: limit, retry: fetchRetry(), now: time.Now}
}

func (s *HackerNewsSource) Name() string { return string(models.SourceForum) }

type hnResponse struct {
	Hits []struct {
		ObjectID   string `json:"objectID"`
		Title      string `json:"title"`
		URL        string `json:"url"`
		Points     int    `json:"points"`
		CreatedAtI int64  `json:"created_at_i"`
	} `json:"hits"`
}

func (s *HackerNewsSource) Fetch(ctx context.Context) ([]models.DiscoveredAgent, error) {
	now := s.now()
	var items []models.DiscoveredAgent
	var lastErr error
	for _, q := range s.queries {
		params := url.Values{}
		params.Set("tags", "show_hn")
		params.Set("query", q)
		if s.limit > 0 {
			params.Set("hitsPerPage", strconv.Itoa(s.limit))
		}
		var resp hnResponse
		err := retry.Retry(ctx, s.retry, func() error {
			return s.http.GetJSON(ctx, s.baseURL+"?"+params.Encode(), nil, &resp)
		})
		if err != nil {
			lastErr = err
			continue
		}
		for _, hit := range resp.Hits {
			if hit.URL == "" {
				continue
			}
			item := models.DiscoveredAgent{
				URL:          hit.URL,
				Title:        strings.TrimSpace(strings.TrimPrefix(hit.Title, "Show HN:")),
				Source:       models.SourceForum,
				DiscoveredAt: now,
				Popularity:   floatPtr(float64(hit.Points)),
				Tags:         []string{"show_hn"},
			}
			if hit.CreatedAtI > 0 {
				published := time.Unix(hit.CreatedAtI, 0).UTC()
				item.PublishedAt = &published
			}
			items = append(items, item)
		}
	}
	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}

// GitHubSource searches repositories by topic and by free-text query.
type GitHubSource struct {
	http    *httpclient.HttpClient
	baseURL string
	token   string
	topics  []string
	queries []string
	limit   int
	retry   retry.Config
	now     func() time.Time
}

func NewGitHubSource(client *httpclient.HttpClient, baseURL, token string, topics, queries []string, limit int) *GitHubSource {
	return &GitHubSource{
		http:    client,
		baseURL: baseURL,
		token:   token,
		topics:  topics,
		queries: queries,
		limit:   limit,
		retry:   fetchRetry(),
		now:     time.Now,
	}
}

func (s *GitHubSource) Name() string { return string(models.SourceCodeHost) }

type ghResponse struct {
	Items []struct {
		FullName    string    `json:"full_name"`
		HTMLURL     string    `json:"html_url"`
		Homepage    string    `json:"homepage"`
		Description string    `json:"description"`
		Stars       int       `json:"stargazers_count"`
		Topics      []string  `json:"topics"`
		PushedAt    time.Time `json:"pushed_at"`
	} `json:"items"`
}

func (s *GitHubSource) Fetch(ctx context.Context) ([]models.DiscoveredAgent, error) {
	searches := make([]string, 0, len(s.topics)+len(s.queries))
	for _, topic := range s.topics {
		searches = append(searches, "topic:"+topic)
	}
	searches = append(searches, s.queries...)

	header := http.Header{"Accept": []string{"application/vnd.github+json"}}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	now := s.now()
	var items []models.DiscoveredAgent
	var lastErr error
	for _, q := range searches {
		params := url.Values{}
		params.Set("q", q)
		params.Set("sort", "stars")
		params.Set("order", "desc")
		if s.limit > 0 {
			params.Set("per_page", strconv.Itoa(s.limit))
		}
		var resp ghResponse
		err := retry.Retry(ctx, s.retry, func() error {
			return s.http.GetJSON(ctx, s.baseURL+"?"+params.Encode(), header.Clone(), &resp)
		})
		if err != nil {
			lastErr = err
			continue
		}
		for _, repo := range resp.Items {
			link := repo.HTMLURL
			if strings.HasPrefix(repo.Homepage, "http") {
				link = repo.Homepage
			}
			item := models.DiscoveredAgent{
				URL:          link,
				Title:        repo.FullName,
				Description:  repo.Description,
				Source:       models.SourceCodeHost,
				DiscoveredAt: now,
				Popularity:   floatPtr(float64(repo.Stars)),
				Tags:         repo.Topics,
			}
			if !repo.PushedAt.IsZero() {
				pushed := repo.PushedAt
				item.PublishedAt = &pushed
			}
			items = append(items, item)
		}
	}
	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}

// ManualSource turns a hand-maintained CSV of URLs into candidates.
type ManualSource struct {
	file string
	now  func() time.Time
}

func NewManualSource(file string) *ManualSource {
	return &ManualSource{file: file, now: time.Now}
}

func (s *ManualSource) Name() string { return string(models.SourceManual) }

func (s *ManualSource) Fetch(context.Context) ([]models.DiscoveredAgent, error) {
	urls, err := pkg.LoadSeedURLs(s.file)
	if err != nil {
		return nil, err
	}
	now := s.now()
	items := make([]models.DiscoveredAgent, 0, len(urls))
	for _, u := range urls {
		items = append(items, models.DiscoveredAgent{
			URL:          u,
			Source:       models.SourceManual,
			DiscoveredAt: now,
		})
	}
	return items, nil
}
