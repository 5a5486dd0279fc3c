package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"forumscraper/pkg/config"
	errs "forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/models"
)

// RedditClient scrapes subreddit listings via the public JSON endpoints.
// No authentication; the listing "after" fullname is the resume token.
type RedditClient struct {
	http      *httpJSON
	baseURL   string
	subreddit string
	sort      string
	logger    logger.Logger
}

// NewRedditClient creates a client for one subreddit listing. queryValue is
// the subreddit name, optionally suffixed with the sort ("golang/top").
func NewRedditClient(cfg config.PlatformConfig, queryValue string, log logger.Logger) *RedditClient {
	if log == nil {
		log = logger.GetLogger()
	}

	subreddit := queryValue
	sort := "new"
	if idx := strings.IndexByte(queryValue, '/'); idx >= 0 {
		subreddit = queryValue[:idx]
		if s := queryValue[idx+1:]; s != "" {
			sort = s
		}
	}

	return &RedditClient{
		http:      newHTTPJSON(cfg.RequestTimeout, cfg.UserAgent, log),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		subreddit: subreddit,
		sort:      sort,
		logger:    log.WithField("platform", "reddit"),
	}
}

// Name returns the platform name
func (c *RedditClient) Name() string { return "reddit" }

// redditListing mirrors the subset of the listing response we consume
type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
}

// FetchPage fetches the listing page after resumeToken
func (c *RedditClient) FetchPage(ctx context.Context, resumeToken string, pageSize int) (*Page, error) {
	if c.subreddit == "" {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "subreddit is required")
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", pageSize))
	params.Set("raw_json", "1")
	if resumeToken != "" {
		params.Set("after", resumeToken)
	}
	endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, url.PathEscape(c.subreddit), c.sort, params.Encode())

	var listing redditListing
	if err := c.http.get(ctx, endpoint, &listing); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	page := &Page{}
	seenAuthors := make(map[string]bool)

	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		p := child.Data
		page.Items = append(page.Items, models.Item{
			Kind: models.ItemKindPost,
			Post: &models.Post{
				ID:        p.Name,
				Platform:  "reddit",
				Title:     p.Title,
				Author:    p.Author,
				Body:      p.Selftext,
				URL:       p.URL,
				Score:     p.Score,
				Comments:  p.NumComments,
				Subforum:  p.Subreddit,
				CreatedAt: time.Unix(int64(p.CreatedUTC), 0).UTC(),
				ScrapedAt: now,
			},
		})

		if p.Author != "" && p.Author != "[deleted]" && !seenAuthors[p.Author] {
			seenAuthors[p.Author] = true
			page.Items = append(page.Items, models.Item{
				Kind: models.ItemKindUser,
				User: &models.User{
					ID:        "reddit:" + p.Author,
					Platform:  "reddit",
					Username:  p.Author,
					ScrapedAt: now,
				},
			})
		}
	}

	page.NextResumeToken = listing.Data.After
	page.HasMore = listing.Data.After != "" && len(listing.Data.Children) > 0

	c.logger.DebugWithFields("listing page fetched", map[string]interface{}{
		"subreddit": c.subreddit,
		"sort":      c.sort,
		"items":     len(page.Items),
		"after":     page.NextResumeToken,
	})

	return page, nil
}
