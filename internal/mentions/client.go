package mentions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// maxWindowDays is the widest trailing window the upstream API accepts.
	maxWindowDays = 180

	// resultLimit caps how many mentions a single fetch returns.
	resultLimit = 20

	requestTimeout = 10 * time.Second
)

// Mention is a single piece of third-party content referencing the tracked
// keyword. It lives for one scheduling cycle only.
type Mention struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	Type        string         `json:"type"`
	Sentiment   string         `json:"sentiment"`
	Metrics     MentionMetrics `json:"metrics"`
	MentionedAt time.Time      `json:"mentioned_at"`
}

// MentionMetrics carries engagement counts. They are never surfaced in
// generated text.
type MentionMetrics struct {
	LikeCount int `json:"like_count"`
	ViewCount int `json:"view_count"`
}

// Result is a non-empty batch of mentions plus the upstream total count.
type Result struct {
	Items []Mention
	Total int
}

type searchResponse struct {
	Success  bool      `json:"success"`
	Data     []Mention `json:"data"`
	Metadata struct {
		Total int `json:"total"`
	} `json:"metadata"`
}

// Client fetches recent mentions from the aggregation API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a mentions API client.
func NewClient(apiKey, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// FetchRecent returns mentions of keyword within the trailing windowDays
// window, clamped to 180 days. A nil result is the normal outcome for an
// empty result set or any upstream failure; callers fall back to generic
// content.
func (c *Client) FetchRecent(ctx context.Context, keyword string, windowDays int) *Result {
	if windowDays > maxWindowDays {
		windowDays = maxWindowDays
	}

	to := c.now()
	from := to.Add(-time.Duration(windowDays) * 24 * time.Hour)

	params := url.Values{}
	params.Set("keywords", keyword)
	params.Set("from", strconv.FormatInt(from.Unix(), 10))
	params.Set("to", strconv.FormatInt(to.Unix(), 10))
	params.Set("limit", strconv.Itoa(resultLimit))
	params.Set("searchType", "or")

	reqURL := fmt.Sprintf("%s/mentions/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Error("failed to build mentions request", "error", err)
		return nil
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-elfa-api-key", c.apiKey)

	c.logger.Debug("requesting mentions", "keyword", keyword, "window_days", windowDays)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("mentions request failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("mentions API returned error status",
			"status", resp.StatusCode,
			"body", string(body))
		return nil
	}

	var search searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		c.logger.Error("failed to decode mentions response", "error", err)
		return nil
	}

	if !search.Success || len(search.Data) == 0 {
		c.logger.Info("no mentions found", "keyword", keyword)
		return nil
	}

	total := search.Metadata.Total
	if total == 0 {
		total = len(search.Data)
	}

	c.logger.Info("fetched mentions", "keyword", keyword, "count", len(search.Data), "total", total)

	return &Result{
		Items: search.Data,
		Total: total,
	}
}
