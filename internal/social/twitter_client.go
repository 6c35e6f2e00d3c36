package social

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"log/slog"
)

const twitterAPIBase = "https://api.twitter.com"

// TwitterClient is the primary publishing path: Twitter API v2 with
// OAuth 1.0a signed requests. It fails fast on authentication or rate-limit
// rejection; retry policy belongs to the caller.
type TwitterClient struct {
	apiKey            string
	apiSecret         string
	accessToken       string
	accessTokenSecret string
	bearerToken       string
	baseURL           string
	httpClient        *http.Client
	logger            *slog.Logger
}

// NewTwitterClient creates a new Twitter API client.
func NewTwitterClient(apiKey, apiSecret, accessToken, accessTokenSecret, bearerToken string, logger *slog.Logger) *TwitterClient {
	return &TwitterClient{
		apiKey:            apiKey,
		apiSecret:         apiSecret,
		accessToken:       accessToken,
		accessTokenSecret: accessTokenSecret,
		bearerToken:       bearerToken,
		baseURL:           twitterAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"errors,omitempty"`
}

// Post publishes text through the v2 tweets endpoint.
func (c *TwitterClient) Post(ctx context.Context, text string) error {
	apiURL := c.baseURL + "/2/tweets"

	bodyBytes, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal tweet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	authHeader, err := c.oauthHeader(http.MethodPost, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to generate OAuth header: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post tweet: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		// The error body is JSON from the API itself but may be HTML from
		// an intermediary; parse best-effort and always report the status.
		var apiErr tweetResponse
		if json.Unmarshal(respBytes, &apiErr) == nil && len(apiErr.Errors) > 0 {
			return fmt.Errorf("twitter API error (status %d): %s", resp.StatusCode, apiErr.Errors[0].Message)
		}
		return fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var tweetResp tweetResponse
	if err := json.Unmarshal(respBytes, &tweetResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Info("tweet posted via primary path",
		"tweet_id", tweetResp.Data.ID,
		"text_length", len(text))

	return nil
}

// VerifyCredentials probes the authenticated identity endpoint. Called once
// at startup; a failure here is fatal to the loop.
func (c *TwitterClient) VerifyCredentials(ctx context.Context) error {
	apiURL := c.baseURL + "/2/users/me"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to verify credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("invalid credentials (status %d): %s", resp.StatusCode, string(body))
	}

	var me struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err == nil && me.Data.Username != "" {
		c.logger.Info("primary path credentials verified", "username", me.Data.Username)
	} else {
		c.logger.Info("primary path credentials verified")
	}

	return nil
}

// oauthHeader generates an OAuth 1.0a authorization header for the request.
func (c *TwitterClient) oauthHeader(method, apiURL string, params map[string]string) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonceStr := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base64.StdEncoding.EncodeToString(nonce))

	oauthParams := map[string]string{
		"oauth_consumer_key":     c.apiKey,
		"oauth_nonce":            nonceStr,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_token":            c.accessToken,
		"oauth_version":          "1.0",
	}

	allParams := make(map[string]string, len(oauthParams)+len(params))
	for k, v := range oauthParams {
		allParams[k] = v
	}
	for k, v := range params {
		allParams[k] = v
	}

	paramPairs := make([]string, 0, len(allParams))
	for k, v := range allParams {
		paramPairs = append(paramPairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(paramPairs)
	paramString := strings.Join(paramPairs, "&")

	signatureBase := method + "&" + url.QueryEscape(apiURL) + "&" + url.QueryEscape(paramString)
	signingKey := url.QueryEscape(c.apiSecret) + "&" + url.QueryEscape(c.accessTokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(signatureBase))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authPairs := make([]string, 0, len(oauthParams))
	for k, v := range oauthParams {
		authPairs = append(authPairs, url.QueryEscape(k)+"=\""+url.QueryEscape(v)+"\"")
	}
	sort.Strings(authPairs)

	return "OAuth " + strings.Join(authPairs, ", "), nil
}
