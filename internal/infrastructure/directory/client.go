// Package directory resolves parent accounts and notification settings against
// the Kidora account service's internal REST API.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Client implements orchestrator.Directory by calling the account service.
type Client struct {
	baseURL      string // e.g. "http://account-service:8080"
	serviceToken string // shared secret for internal endpoints

	httpClient *http.Client

	// Small in-memory cache so email gating does not hit the account service
	// on every send.
	mu        sync.RWMutex
	cacheTTL  time.Duration
	cacheData map[string]cacheEntry // key: "settings" | "parent:<id>" | "parents"
}

type cacheEntry struct {
	data      any
	expiresAt time.Time
}

// New creates a directory Client with a 30-second cache TTL.
func New(baseURL, serviceToken string) *Client {
	return &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL:     30 * time.Second,
		cacheData:    make(map[string]cacheEntry),
	}
}

// EmailEnabled reports the platform-wide "email notifications" setting.
func (c *Client) EmailEnabled(ctx context.Context) (bool, error) {
	const cacheKey = "settings"
	if cached, ok := c.fromCache(cacheKey); ok {
		return cached.(bool), nil
	}

	var settings struct {
		EmailNotifications bool `json:"email_notifications"`
	}
	if err := c.get(ctx, "/internal/settings/notifications", &settings); err != nil {
		return false, err
	}

	c.toCache(cacheKey, settings.EmailNotifications)
	return settings.EmailNotifications, nil
}

// ParentEmail returns the email address on file for a parent, or "" when the
// account has none.
func (c *Client) ParentEmail(ctx context.Context, parentID string) (string, error) {
	cacheKey := "parent:" + parentID
	if cached, ok := c.fromCache(cacheKey); ok {
		return cached.(string), nil
	}

	var parent struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.get(ctx, "/internal/parents/"+parentID, &parent); err != nil {
		return "", err
	}

	c.toCache(cacheKey, parent.Email)
	return parent.Email, nil
}

// AllParentIDs returns every active parent account id (paginated, max 1000).
func (c *Client) AllParentIDs(ctx context.Context) ([]string, error) {
	const cacheKey = "parents"
	if cached, ok := c.fromCache(cacheKey); ok {
		return cached.([]string), nil
	}

	var parents []struct {
		ID     string `json:"id"`
		Active bool   `json:"active"`
	}
	if err := c.get(ctx, "/internal/parents?active=true&max=1000", &parents); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(parents))
	for _, p := range parents {
		if p.Active {
			ids = append(ids, p.ID)
		}
	}

	c.toCache(cacheKey, ids)
	return ids, nil
}

// get performs an authenticated GET against the account service and decodes
// the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Service-Token", c.serviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("account service %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("account service %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) fromCache(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cacheData[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *Client) toCache(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheData[key] = cacheEntry{data: data, expiresAt: time.Now().Add(c.cacheTTL)}
}
