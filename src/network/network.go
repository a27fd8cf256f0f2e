package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stock-tracker/src/logger"
	"stock-tracker/src/models"
)

// -----------------------------------------------------------------------------

// Client performs REST requests against the market-data backend with
// bounded retries and exponential backoff.
type Client struct {
	Config *models.MConfig
	HTTP   *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MConfig, log *logger.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: log,
		HTTP: &http.Client{
			Timeout: time.Duration(cfg.API.RequestTimeout) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries.
func (c *Client) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	if c.Config.API.Token != "" {
		q.Add("token", c.Config.API.Token)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()

	maxRetries := c.Config.API.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Exponential backoff between attempts, cancellable
			select {
			case <-time.After(time.Duration(i*i) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalUrl, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			c.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		if resp.StatusCode == 429 {
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (status %d)", resp.StatusCode)
			c.Logger.Warning("Request rate limited, backing off")
			continue
		}

		if resp.StatusCode != 200 {
			resp.Body.Close()
			lastErr = fmt.Errorf("bad status: %d", resp.StatusCode)
			c.Logger.Info("Bad status %d for %s", resp.StatusCode, reqUrl.Path)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %v", lastErr)
}
