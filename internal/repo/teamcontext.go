package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/synapsestack/csaw-engine/internal/cache"
	"github.com/synapsestack/csaw-engine/internal/models"
	"github.com/synapsestack/csaw-engine/internal/utils"
)

const (
	defaultRequestTimeout = 10 * time.Second
	contextCacheTTL       = 2 * time.Minute
	messagesCacheTTL      = 30 * time.Second
)

// ContextProvider fetches team metadata and recent history from the
// collaboration backend.
type ContextProvider interface {
	TeamContext(ctx context.Context, teamID, projectID string) (models.TeamContext, error)
	RecentMessages(ctx context.Context, projectID string, limit int) ([]models.Message, error)
}

// ClientConfig configures the HTTP context-provider client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks JSON over HTTP to the collaboration backend and caches
// responses through a cache.Provider. A NoopProvider cache degrades it to a
// plain pass-through client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cache   cache.Provider
	logger  *slog.Logger
}

// NewClient validates the base URL and returns a context-provider client.
func NewClient(cfg ClientConfig, provider cache.Provider, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, utils.NewAppError("repo.NewClient", "base url is required", nil)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, utils.NewAppError("repo.NewClient", "invalid base url", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   provider,
		logger:  logger,
	}, nil
}

// TeamContext returns team metadata for threshold adaptation. A cache hit
// skips the backend entirely; a backend error with no cached copy surfaces
// to the caller, who falls back to zero-value context.
func (c *Client) TeamContext(ctx context.Context, teamID, projectID string) (models.TeamContext, error) {
	key := fmt.Sprintf("csaw:context:%s:%s", teamID, projectID)

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var cached models.TeamContext
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		_ = c.cache.Del(ctx, key)
	}

	path := fmt.Sprintf("/api/v1/teams/%s/projects/%s/context", url.PathEscape(teamID), url.PathEscape(projectID))
	var out models.TeamContext
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return models.TeamContext{}, err
	}

	if raw, err := json.Marshal(out); err == nil {
		if err := c.cache.Set(ctx, key, raw, contextCacheTTL); err != nil {
			c.logger.Debug("context cache write failed", slog.Any("error", err))
		}
	}
	return out, nil
}

// RecentMessages fetches the newest messages for a project, oldest first.
func (c *Client) RecentMessages(ctx context.Context, projectID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	key := fmt.Sprintf("csaw:messages:%s:%d", projectID, limit)

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var cached []models.Message
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		_ = c.cache.Del(ctx, key)
	}

	path := fmt.Sprintf("/api/v1/projects/%s/messages", url.PathEscape(projectID))
	query := url.Values{"limit": []string{fmt.Sprint(limit)}, "order": []string{"asc"}}

	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.getJSON(ctx, path, query, &out); err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(out.Messages); err == nil {
		if err := c.cache.Set(ctx, key, raw, messagesCacheTTL); err != nil {
			c.logger.Debug("messages cache write failed", slog.Any("error", err))
		}
	}
	return out.Messages, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return utils.NewAppError("repo.getJSON", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return utils.NewAppError("repo.getJSON", "backend unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return utils.NewAppError("repo.getJSON", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return utils.NewAppError("repo.getJSON",
			fmt.Sprintf("backend returned %d for %s", resp.StatusCode, path),
			fmt.Errorf("%s", bytes.TrimSpace(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return utils.NewAppError("repo.getJSON", "decode response", err)
	}
	return nil
}
