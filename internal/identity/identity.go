package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// AuthError reasons.
const (
	ReasonMissing = "missing"
	ReasonInvalid = "invalid_or_expired"
)

// AuthError indicates a caller credential that cannot be accepted.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "auth failed: " + e.Reason
}

// Subject is the stable identifier the identity service assigns a user.
type Subject string

// UserRecord is one identity as listed by the identity service.
type UserRecord struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UserPage is one page of listed identities.
type UserPage struct {
	Users         []UserRecord `json:"users"`
	NextPageToken string       `json:"nextPageToken"`
}

// Client is a minimal identity-service client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an identity client for the given service base URL.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type verifyRequest struct {
	IDToken string `json:"idToken"`
}

type verifyResponse struct {
	UID string `json:"uid"`
}

// VerifyToken validates an identity token and returns the stable subject id.
// An empty token fails with AuthError before any network call is made.
func (c *Client) VerifyToken(ctx context.Context, token string) (Subject, error) {
	if strings.TrimSpace(token) == "" {
		return "", &AuthError{Reason: ReasonMissing}
	}

	payload, err := json.Marshal(verifyRequest{IDToken: token})
	if err != nil {
		return "", fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/tokens:verify", strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity verify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read verify response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", &AuthError{Reason: ReasonInvalid}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("identity verify non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse verify response: %s", truncate(string(body), 400))
	}
	if parsed.UID == "" {
		return "", &AuthError{Reason: ReasonInvalid}
	}
	return Subject(parsed.UID), nil
}

// ListUsers returns one page of identities. pageToken "" starts at the first
// page; the returned NextPageToken is "" on the last page. pageSize is capped
// by the service at 1000.
func (c *Client) ListUsers(ctx context.Context, pageToken string, pageSize int) (UserPage, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/users?"+params.Encode(), nil)
	if err != nil {
		return UserPage{}, fmt.Errorf("create list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UserPage{}, fmt.Errorf("identity list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return UserPage{}, fmt.Errorf("read list response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UserPage{}, fmt.Errorf("identity list non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	var page UserPage
	if err := json.Unmarshal(body, &page); err != nil {
		return UserPage{}, fmt.Errorf("parse list response: %s", truncate(string(body), 400))
	}
	return page, nil
}

// DeleteUser removes an identity record from the identity service.
func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/v1/users/"+url.PathEscape(uid), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity delete request failed: %w", err)
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body) // drain

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("identity delete non-success status=%d uid=%s", resp.StatusCode, uid)
	}
	return nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
