package crawler

import (
	"bytes"
	"context"
	"fmt"
	httpUrl "net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/amankumarsingh77/directory_pipeline/models"
)

const noDescription = "No Description"

var titleSeparators = []string{" | ", " - ", " – ", " — ", ": "}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

type WebCrawler interface {
	CrawlPage(ctx context.Context, url string) (*models.RawDataItem, error)
}

type pageCrawler struct {
	fetcher     Fetcher
	placeholder string
}

func NewPageCrawler(fetcher Fetcher, placeholder string) WebCrawler {
	return &pageCrawler{fetcher: fetcher, placeholder: placeholder}
}

func (c *pageCrawler) CrawlPage(ctx context.Context, url string) (*models.RawDataItem, error) {
	page, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return Extract(page, c.placeholder)
}

// Extract turns a rendered page into a raw directory record.
func Extract(page *Page, placeholder string) (*models.RawDataItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to read response : %v", err)
	}
	base, err := httpUrl.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", page.URL, err)
	}

	title := collapse(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimPrefix(base.Hostname(), "www.")
	}
	name, tagline := splitTitle(title)
	if tagline == "" {
		if og := collapse(doc.Find("meta[property='og:title']").AttrOr("content", "")); og != "" && og != title {
			tagline = og
		} else {
			tagline = name
		}
	}

	description := collapse(doc.Find("meta[name='description']").AttrOr("content", ""))
	if description == "" {
		description = noDescription
	}

	var headings []string
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			headings = append(headings, text)
		}
	})

	codename := Slugify(name)
	if codename == "" {
		codename = Slugify(strings.TrimPrefix(base.Hostname(), "www."))
	}

	return &models.RawDataItem{
		FullName:       name,
		ProductWebsite: page.URL,
		Codename:       codename,
		LogoSrc:        resolveLogo(doc, base, placeholder),
		Punchline:      tagline,
		Description:    description,
		SiteContent:    strings.Join(headings, " "),
	}, nil
}

func resolveLogo(doc *goquery.Document, base *httpUrl.URL, placeholder string) string {
	candidates := []string{
		doc.Find("meta[property='og:image']").AttrOr("content", ""),
		doc.Find("meta[name='twitter:image']").AttrOr("content", ""),
		doc.Find("meta[property='twitter:image']").AttrOr("content", ""),
		doc.Find("img[src]").First().AttrOr("src", ""),
		placeholder,
	}
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") {
			continue
		}
		ref, err := httpUrl.Parse(raw)
		if err != nil {
			continue
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}

func splitTitle(title string) (string, string) {
	for _, sep := range titleSeparators {
		if i := strings.Index(title, sep); i > 0 {
			name := strings.TrimSpace(title[:i])
			tagline := strings.TrimSpace(title[i+len(sep):])
			if name != "" && tagline != "" {
				return name, tagline
			}
		}
	}
	return title, ""
}

// Slugify lowercases s and joins its alphanumeric runs with '_', the form
// codenames are stored in.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
