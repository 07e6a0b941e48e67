package vpngate

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/errors"

	"vpnproxy/internal/logger"
)

const DefaultAPIURL = "http://www.vpngate.net/api/iphone/"

type ClientConfig struct {
	APIURL     string
	Timeout    time.Duration
	UserAgent  string
	Retries    int
	RetryDelay time.Duration
}

// Client downloads the public server list.
type Client struct {
	client     *http.Client
	apiURL     string
	userAgent  string
	retries    int
	retryDelay time.Duration
	logger     *logger.Logger
}

func NewClientWithConfig(config ClientConfig) *Client {
	retries := config.Retries
	if retries < 1 {
		retries = 1
	}
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		apiURL:     apiURL,
		userAgent:  config.UserAgent,
		retries:    retries,
		retryDelay: config.RetryDelay,
		logger:     logger.New("vpngate"),
	}
}

// Fetch downloads and parses the server list, retrying failed attempts.
func (c *Client) Fetch(ctx context.Context) ([]ServerRecord, error) {
	id := logger.GenerateID()
	c.logger.Info(id, "Fetching the latest server list from %s", c.apiURL)

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		records, err := c.fetchOnce(ctx)
		if err == nil {
			c.logger.Info(id, "Parsed %d server records", len(records))
			return records, nil
		}
		lastErr = err
		c.logger.Warn(id, "Attempt %d/%d failed: %v", attempt, c.retries, err)

		if attempt == c.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Annotate(ctx.Err(), "server list fetch cancelled")
		case <-time.After(c.retryDelay):
		}
	}

	return nil, errors.Annotatef(lastErr, "unable to fetch server list after %d attempts", c.retries)
}

func (c *Client) fetchOnce(ctx context.Context) ([]ServerRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch server list")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code when retrieving server list: %d", resp.StatusCode)
	}

	return ParseRecords(resp.Body)
}
