package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"forumscraper/pkg/config"
	errs "forumscraper/pkg/errors"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/models"
)

// HackerNewsClient scrapes stories via the Firebase JSON API. The story id
// list for the requested category is fetched once and the resume token is the
// numeric offset into it.
type HackerNewsClient struct {
	http     *httpJSON
	baseURL  string
	category string
	logger   logger.Logger

	// ids caches the story id list for the lifetime of the client. A session
	// resumed in a fresh process refetches it; the offset token stays valid
	// enough for an opaque cursor (the list head may shift between runs).
	ids []int64
}

// NewHackerNewsClient creates a client for one story category
// (top, new, best, ask, show, job).
func NewHackerNewsClient(cfg config.PlatformConfig, queryValue string, log logger.Logger) *HackerNewsClient {
	if log == nil {
		log = logger.GetLogger()
	}

	category := strings.ToLower(strings.TrimSpace(queryValue))
	if category == "" {
		category = "top"
	}

	return &HackerNewsClient{
		http:     newHTTPJSON(cfg.RequestTimeout, cfg.UserAgent, log),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		category: category,
		logger:   log.WithField("platform", "hackernews"),
	}
}

// Name returns the platform name
func (c *HackerNewsClient) Name() string { return "hackernews" }

// hnItem mirrors the item endpoint response
type hnItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Time        int64  `json:"time"`
	Parent      int64  `json:"parent"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

// FetchPage fetches the next slice of the category's story id list
func (c *HackerNewsClient) FetchPage(ctx context.Context, resumeToken string, pageSize int) (*Page, error) {
	offset := 0
	if resumeToken != "" {
		parsed, err := strconv.Atoi(resumeToken)
		if err != nil || parsed < 0 {
			return nil, errs.New(errs.ErrorTypeParsing, 0, fmt.Sprintf("malformed resume token %q", resumeToken))
		}
		offset = parsed
	}

	if c.ids == nil {
		endpoint := fmt.Sprintf("%s/v0/%sstories.json", c.baseURL, c.category)
		var ids []int64
		if err := c.http.get(ctx, endpoint, &ids); err != nil {
			return nil, err
		}
		c.ids = ids
		c.logger.DebugWithFields("story id list fetched", map[string]interface{}{
			"category": c.category,
			"count":    len(ids),
		})
	}

	if offset >= len(c.ids) {
		return &Page{HasMore: false}, nil
	}

	end := offset + pageSize
	if end > len(c.ids) {
		end = len(c.ids)
	}

	now := time.Now().UTC()
	page := &Page{}
	seenAuthors := make(map[string]bool)

	for _, id := range c.ids[offset:end] {
		endpoint := fmt.Sprintf("%s/v0/item/%d.json", c.baseURL, id)
		var item hnItem
		if err := c.http.get(ctx, endpoint, &item); err != nil {
			return nil, err
		}
		if item.ID == 0 || item.Deleted || item.Dead {
			continue
		}

		switch item.Type {
		case "story", "job", "poll":
			page.Items = append(page.Items, models.Item{
				Kind: models.ItemKindPost,
				Post: &models.Post{
					ID:        fmt.Sprintf("hn:%d", item.ID),
					Platform:  "hackernews",
					Title:     item.Title,
					Author:    item.By,
					Body:      item.Text,
					URL:       item.URL,
					Score:     item.Score,
					Comments:  item.Descendants,
					Subforum:  c.category,
					CreatedAt: time.Unix(item.Time, 0).UTC(),
					ScrapedAt: now,
				},
			})
		case "comment":
			page.Items = append(page.Items, models.Item{
				Kind: models.ItemKindComment,
				Comment: &models.Comment{
					ID:        fmt.Sprintf("hn:%d", item.ID),
					Platform:  "hackernews",
					PostID:    fmt.Sprintf("hn:%d", item.Parent),
					Author:    item.By,
					Body:      item.Text,
					CreatedAt: time.Unix(item.Time, 0).UTC(),
					ScrapedAt: now,
				},
			})
		default:
			continue
		}

		if item.By != "" && !seenAuthors[item.By] {
			seenAuthors[item.By] = true
			page.Items = append(page.Items, models.Item{
				Kind: models.ItemKindUser,
				User: &models.User{
					ID:        "hn:" + item.By,
					Platform:  "hackernews",
					Username:  item.By,
					ScrapedAt: now,
				},
			})
		}
	}

	page.HasMore = end < len(c.ids)
	if page.HasMore {
		page.NextResumeToken = strconv.Itoa(end)
	}

	return page, nil
}
