package strava

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

	"github.com/Xa3rO1986/mikkeller-rc-sub000/pkg/config"
)

// Client talks to the Strava OAuth and REST endpoints. All endpoint URLs
// come from the config so tests can substitute a local server.
type Client struct {
	cfg    config.StravaConfig
	client *http.Client
}

func NewClient(cfg config.StravaConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthorizationURL builds the browser redirect URL for the OAuth consent
// screen.
func (c *Client) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Add("client_id", c.cfg.ClientID)
	params.Add("redirect_uri", c.cfg.RedirectURI)
	params.Add("response_type", "code")
	params.Add("scope", "read,activity:read")
	params.Add("state", state)

	return c.cfg.AuthorizeURL + "?" + params.Encode()
}

// ExchangeCode trades an authorization code for a token pair. The response
// includes the athlete profile.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)

	return c.tokenRequest(ctx, data)
}

// Refresh trades a refresh token for a new token pair. Strava may rotate
// the refresh token; callers must persist whatever comes back.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return c.tokenRequest(ctx, data)
}

func (c *Client) tokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("strava token error (%s): %s", resp.Status, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResp, nil
}

// ListActivities fetches exactly one page of the athlete's activities,
// unfiltered. Pages are 1-based.
func (c *Client) ListActivities(ctx context.Context, accessToken string, page, perPage int) ([]SummaryActivity, error) {
	params := url.Values{}
	params.Add("page", strconv.Itoa(page))
	params.Add("per_page", strconv.Itoa(perPage))

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.ActivitiesURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create activities request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("activities request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("strava activities error (%s): %s", resp.Status, string(body))
	}

	var activities []SummaryActivity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("failed to decode activities response: %w", err)
	}

	return activities, nil
}
