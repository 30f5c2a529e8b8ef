// Package publisher implements the two-phase story publishing protocol:
// create a media container, wait for the platform to settle it, then publish.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storybot/internal/infra"
	"storybot/internal/retry"
)

// Options controls how the gateway is configured.
type Options struct {
	BaseURL     string
	AccessToken string
	AccountID   string
	SettleDelay time.Duration
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// Gateway drives the publishing API.
type Gateway struct {
	baseURL     string
	accessToken string
	accountID   string
	settleDelay time.Duration
	httpClient  *http.Client
	logger      *infra.Logger

	publishPolicy retry.Policy
	createPolicy  retry.Policy

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewGateway builds a publishing gateway.
func NewGateway(opts Options) *Gateway {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	settle := opts.SettleDelay
	if settle == 0 {
		settle = 5 * time.Second
	}
	g := &Gateway{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		accessToken: opts.AccessToken,
		accountID:   opts.AccountID,
		settleDelay: settle,
		httpClient:  httpClient,
		logger:      opts.Logger,
		sleep:       sleepCtx,
	}
	// The publish phase retries on the container-not-ready signal; creation
	// only on plain transient failures.
	g.publishPolicy = retry.Policy{
		MaxAttempts:  5,
		InitialDelay: 3 * time.Second,
		MaxDelay:     15 * time.Second,
		Multiplier:   2,
		IsRetryable:  IsRetryable,
		OnRetry:      g.logRetry("publisher: publish retry"),
	}
	g.createPolicy = retry.Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		IsRetryable:  IsRetryable,
		OnRetry:      g.logRetry("publisher: create retry"),
	}
	return g
}

func (g *Gateway) logRetry(msg string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		if g.logger != nil {
			g.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg(msg)
		}
	}
}

// CreateContainer registers the image as a story media container and returns
// the container id.
func (g *Gateway) CreateContainer(ctx context.Context, imageURL, caption string) (string, error) {
	return retry.Do(ctx, g.createPolicy, func() (string, error) {
		form := url.Values{}
		form.Set("image_url", imageURL)
		form.Set("media_type", "STORIES")
		if caption != "" {
			form.Set("caption", caption)
		}
		return g.post(ctx, g.accountID+"/media", form)
	})
}

// Publish makes the container live and returns the published media id. The
// call is wrapped in the not-ready retry policy.
func (g *Gateway) Publish(ctx context.Context, containerID string) (string, error) {
	return retry.Do(ctx, g.publishPolicy, func() (string, error) {
		form := url.Values{}
		form.Set("creation_id", containerID)
		return g.post(ctx, g.accountID+"/media_publish", form)
	})
}

// CreateStory composes both phases plus the settle delay and is the sole
// public entry point used by the pipeline.
func (g *Gateway) CreateStory(ctx context.Context, imageURL, caption string) (string, error) {
	containerID, err := g.CreateContainer(ctx, imageURL, caption)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if g.logger != nil {
		g.logger.Debug().Str("container_id", containerID).Msg("publisher: container created")
	}

	g.sleep(ctx, g.settleDelay)

	publishedID, err := g.Publish(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("publish container %s: %w", containerID, err)
	}
	return publishedID, nil
}

type idResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (g *Gateway) post(ctx context.Context, path string, form url.Values) (string, error) {
	if g.accessToken == "" {
		return "", &APIError{Status: http.StatusUnauthorized, Code: "invalid_token", Message: "access token is not configured"}
	}
	form.Set("access_token", g.accessToken)

	endpoint := g.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("publishing api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var decoded idResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 400 {
			return "", &APIError{Status: resp.StatusCode, Code: "unknown", Message: string(raw)}
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", &APIError{Status: resp.StatusCode, Code: decoded.Error.Code, Message: decoded.Error.Message}
	}
	if resp.StatusCode >= 400 {
		return "", &APIError{Status: resp.StatusCode, Code: "unknown", Message: string(raw)}
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("publishing api returned no id")
	}
	return decoded.ID, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
