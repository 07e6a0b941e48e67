package scraper

import (
	"context"
	"fmt"

	"vpnproxy/internal/logger"
)

type MultiScraper struct {
	scrapers []Scraper
	logger   *logger.Logger
}

func NewMultiScraper(scrapers ...Scraper) *MultiScraper {
	return &MultiScraper{
		scrapers: scrapers,
		logger:   logger.New("multiscraper"),
	}
}

func NewMultiScraperWithConfig(config ScraperConfig) *MultiScraper {
	var scrapers []Scraper

	for _, source := range config.Sources {
		switch source {
		case "freeproxylist":
			scrapers = append(scrapers, NewFreeProxyListScraperWithConfig(config))
		case "proxyscrape":
			scrapers = append(scrapers, NewProxyScrapeAPIWithConfig(config))
		case "textlist":
			scrapers = append(scrapers, NewTextListScraperWithConfig(config))
		}
	}

	if len(scrapers) == 0 {
		scrapers = []Scraper{NewFreeProxyListScraperWithConfig(config)}
	}

	return NewMultiScraper(scrapers...)
}

// ScrapeAll runs every source in order and keeps the first occurrence of each
// address. It fails only when every source fails.
func (m *MultiScraper) ScrapeAll(ctx context.Context) ([]Proxy, error) {
	var allProxies []Proxy
	seen := make(map[string]bool)
	failed := 0

	for _, scraper := range m.scrapers {
		if err := ctx.Err(); err != nil {
			return allProxies, err
		}

		proxies, err := scraper.Scrape(ctx)
		if err != nil {
			m.logger.WarnBg("Scraper %s failed: %v", scraper.Name(), err)
			failed++
			continue
		}

		uniqueCount := 0
		for _, proxy := range proxies {
			key := proxy.Address()
			if !seen[key] {
				seen[key] = true
				allProxies = append(allProxies, proxy)
				uniqueCount++
			}
		}

		m.logger.InfoBg("Scraper %s: %d total, %d unique", scraper.Name(), len(proxies), uniqueCount)
	}

	if failed > 0 && failed == len(m.scrapers) {
		return nil, fmt.Errorf("all %d scrapers failed", failed)
	}

	m.logger.InfoBg("Total unique proxies collected: %d", len(allProxies))
	return allProxies, nil
}
