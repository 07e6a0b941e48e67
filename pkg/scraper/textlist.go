package scraper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vpnproxy/internal/logger"
)

// TextListScraper reads plain "host:port" or "scheme://host:port" lists,
// one proxy per line.
type TextListScraper struct {
	client    *http.Client
	userAgent string
	urls      []string
	logger    *logger.Logger
}

var defaultTextLists = []string{
	"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
	"https://raw.githubusercontent.com/clarketm/proxy-list/master/proxy-list-raw.txt",
	"https://raw.githubusercontent.com/proxifly/free-proxy-list/main/proxies/all/data.txt",
}

func NewTextListScraperWithConfig(config ScraperConfig) *TextListScraper {
	return &TextListScraper{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		userAgent: config.UserAgent,
		urls:      defaultTextLists,
		logger:    logger.New("textlist"),
	}
}

func (t *TextListScraper) Name() string {
	return "textlist"
}

func (t *TextListScraper) Scrape(ctx context.Context) ([]Proxy, error) {
	var allProxies []Proxy
	failed := 0

	for _, listURL := range t.urls {
		proxies, err := fetchProxyList(ctx, t.client, listURL, userAgent(t.userAgent), "http")
		if err != nil {
			t.logger.WarnBg("List %s failed: %v", listURL, err)
			failed++
			continue
		}
		allProxies = append(allProxies, proxies...)
	}

	if failed == len(t.urls) && failed > 0 {
		return nil, fmt.Errorf("all %d text lists failed", failed)
	}

	t.logger.InfoBg("Text lists collected %d proxies", len(allProxies))
	return allProxies, nil
}

func fetchProxyList(ctx context.Context, client *http.Client, listURL, ua, proxyType string) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return parseProxyLines(resp.Body, proxyType)
}

// parseProxyLines accepts "host:port" and "scheme://host:port" lines, skipping
// blanks, comments and anything malformed.
func parseProxyLines(reader io.Reader, defaultType string) ([]Proxy, error) {
	var proxies []Proxy
	scanner := bufio.NewScanner(reader)
	now := time.Now()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		proxyType := defaultType
		if scheme, rest, ok := strings.Cut(line, "://"); ok {
			proxyType = strings.ToLower(scheme)
			line = rest
		}

		// clarketm lists append metadata after a space
		if i := strings.IndexByte(line, ' '); i >= 0 {
			line = line[:i]
		}

		host, portStr, ok := strings.Cut(line, ":")
		if !ok || host == "" {
			continue
		}

		port, err := strconv.Atoi(portStr)
		if err != nil || !validPort(port) {
			continue
		}

		proxies = append(proxies, Proxy{
			Host:     host,
			Port:     port,
			Type:     proxyType,
			LastSeen: now,
		})
	}

	return proxies, scanner.Err()
}
