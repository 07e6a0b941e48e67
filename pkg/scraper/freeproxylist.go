package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"vpnproxy/internal/logger"
)

const DefaultPageURL = "https://free-proxy-list.net/"

// FreeProxyListScraper reads the HTML table published by free-proxy-list.net
// and its mirrors.
type FreeProxyListScraper struct {
	client       *http.Client
	pageURL      string
	userAgent    string
	limit        int
	requireHTTPS bool
	logger       *logger.Logger
}

func NewFreeProxyListScraperWithConfig(config ScraperConfig) *FreeProxyListScraper {
	pageURL := config.PageURL
	if pageURL == "" {
		pageURL = DefaultPageURL
	}
	return &FreeProxyListScraper{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		pageURL:      pageURL,
		userAgent:    config.UserAgent,
		limit:        config.Limit,
		requireHTTPS: config.RequireHTTPS,
		logger:       logger.New("freeproxylist"),
	}
}

func (f *FreeProxyListScraper) Name() string {
	return "freeproxylist"
}

func (f *FreeProxyListScraper) Scrape(ctx context.Context) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent(f.userAgent))
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	proxies, err := parseProxyTable(resp.Body, f.limit, f.requireHTTPS)
	if err != nil {
		return nil, err
	}

	f.logger.InfoBg("Free proxy list collected %d proxies from the first %d rows", len(proxies), f.limit)
	return proxies, nil
}

// parseProxyTable reads up to limit rows of the first table body. Columns are
// IP, port, code, country, anonymity, google, https, last checked.
func parseProxyTable(r io.Reader, limit int, requireHTTPS bool) ([]Proxy, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var proxies []Proxy
	seen := make(map[string]bool)
	now := time.Now()

	doc.Find("tbody tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}

		cells := row.Find("td")
		https := strings.Contains(strings.ToLower(cells.Eq(6).Text()), "yes")
		if requireHTTPS && !https {
			return true
		}

		host := strings.TrimSpace(cells.Eq(0).Text())
		port, err := strconv.Atoi(strings.TrimSpace(cells.Eq(1).Text()))
		if host == "" || err != nil || !validPort(port) {
			return true
		}

		proxyType := "http"
		if https {
			proxyType = "https"
		}

		proxy := Proxy{
			Host:     host,
			Port:     port,
			Type:     proxyType,
			Country:  strings.TrimSpace(cells.Eq(3).Text()),
			LastSeen: now,
		}
		if !seen[proxy.Address()] {
			seen[proxy.Address()] = true
			proxies = append(proxies, proxy)
		}
		return true
	})

	return proxies, nil
}
