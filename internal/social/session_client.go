package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"log/slog"
)

// SessionClient is the secondary publishing path: a username/password login
// performed once at startup yields a session token that subsequent posts
// ride on. Posts fail on session expiry or platform-side rejection.
type SessionClient struct {
	username string
	password string
	email    string
	baseURL  string

	sessionToken  string
	sessionExpiry time.Time

	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewSessionClient creates a session-based client. Login must be called
// before Post.
func NewSessionClient(username, password, email, baseURL string, logger *slog.Logger) *SessionClient {
	return &SessionClient{
		username: username,
		password: password,
		email:    email,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		now:    time.Now,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginResponse struct {
	Success    bool   `json:"success"`
	Token      string `json:"token"`
	ScreenName string `json:"screen_name"`
}

// Login performs the out-of-band session login. When the returned token is a
// JWT its exp claim is decoded (without signature verification, the token is
// opaque to us) so an expired session can be reported before the platform
// rejects a post.
func (c *SessionClient) Login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{
		Username: c.username,
		Password: c.password,
		Email:    c.email,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session/login", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("session login rejected (status %d): %s", resp.StatusCode, string(respBody))
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}

	if !login.Success || login.Token == "" {
		return fmt.Errorf("session login did not return a token")
	}
	if login.ScreenName == "" {
		return fmt.Errorf("session login did not return a profile username")
	}

	c.sessionToken = login.Token
	c.sessionExpiry = tokenExpiry(login.Token)

	if c.sessionExpiry.IsZero() {
		c.logger.Info("secondary path session established", "username", login.ScreenName)
	} else {
		c.logger.Info("secondary path session established",
			"username", login.ScreenName,
			"session_expires_at", c.sessionExpiry.Format(time.RFC3339))
	}

	return nil
}

// Post publishes text using the established session.
func (c *SessionClient) Post(ctx context.Context, text string) error {
	if c.sessionToken == "" {
		return fmt.Errorf("no session established, login first")
	}

	if !c.sessionExpiry.IsZero() && c.now().After(c.sessionExpiry) {
		return fmt.Errorf("session expired at %s", c.sessionExpiry.Format(time.RFC3339))
	}

	body, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal tweet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session/tweet", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.sessionToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post tweet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("session rejected (status %d): %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("post rejected (status %d): %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("tweet posted via secondary path", "text_length", len(text))

	return nil
}

// tokenExpiry extracts the exp claim from a JWT session token. Returns the
// zero time when the token is not a JWT or carries no expiry.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
