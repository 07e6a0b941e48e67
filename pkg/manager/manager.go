// Package manager runs one scrape-and-check pass over the configured proxy
// sources and summarizes the outcome.
package manager

import (
	"context"
	"fmt"
	"sort"

	"vpnproxy/internal/logger"
	"vpnproxy/pkg/checker"
	"vpnproxy/pkg/scraper"
)

// ProxySource yields candidate proxies. *scraper.MultiScraper satisfies it.
type ProxySource interface {
	ScrapeAll(ctx context.Context) ([]scraper.Proxy, error)
}

// ProxyChecker probes proxies. Both *checker.Checker and *checker.DBChecker
// satisfy it.
type ProxyChecker interface {
	CheckProxies(ctx context.Context, proxies []scraper.Proxy) []checker.CheckResult
}

type Manager struct {
	source  ProxySource
	checker ProxyChecker
	limit   int
	logger  *logger.Logger
}

// NewManager builds a manager; limit caps how many scraped proxies are
// checked, 0 checks all of them.
func NewManager(source ProxySource, c ProxyChecker, limit int) *Manager {
	return &Manager{
		source:  source,
		checker: c,
		limit:   limit,
		logger:  logger.New("manager"),
	}
}

type Report struct {
	Scraped int
	Results []checker.CheckResult
	Stats   Stats
}

// Healthy returns the proxies that passed the check.
func (r Report) Healthy() []scraper.Proxy {
	return checker.FilterHealthyProxies(r.Results)
}

type Stats struct {
	TotalProxies int
	HealthyCount int
	CachedCount  int
	ByStatus     map[string]int
	TypeCount    map[string]int
	CountryCount map[string]int
}

// Countries returns the countries with at least one healthy proxy, sorted.
func (s Stats) Countries() []string {
	countries := make([]string, 0, len(s.CountryCount))
	for country := range s.CountryCount {
		countries = append(countries, country)
	}
	sort.Strings(countries)
	return countries
}

// Run scrapes, checks and reports. An empty scrape is not an error.
func (m *Manager) Run(ctx context.Context) (Report, error) {
	id := logger.GenerateID()
	m.logger.Info(id, "Refreshing proxy list...")

	proxies, err := m.source.ScrapeAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to scrape proxies: %w", err)
	}

	report := Report{Scraped: len(proxies)}
	if m.limit > 0 && len(proxies) > m.limit {
		m.logger.Debug(id, "Limiting check to %d of %d proxies", m.limit, len(proxies))
		proxies = proxies[:m.limit]
	}
	if len(proxies) == 0 {
		m.logger.Warn(id, "No proxies scraped")
		report.Stats = Summarize(nil)
		return report, nil
	}

	m.logger.Info(id, "Scraped %d proxies, checking health of %d...", report.Scraped, len(proxies))

	report.Results = m.checker.CheckProxies(ctx, proxies)
	report.Stats = Summarize(report.Results)

	m.logger.Info(id, "Found %d healthy proxies out of %d checked", report.Stats.HealthyCount, report.Stats.TotalProxies)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// Summarize counts results by status. Type and country counts only include
// healthy proxies.
func Summarize(results []checker.CheckResult) Stats {
	stats := Stats{
		TotalProxies: len(results),
		ByStatus:     make(map[string]int),
		TypeCount:    make(map[string]int),
		CountryCount: make(map[string]int),
	}

	for _, result := range results {
		stats.ByStatus[result.Status.String()]++
		if result.Cached {
			stats.CachedCount++
		}
		if result.Status != checker.StatusHealthy {
			continue
		}
		stats.HealthyCount++
		stats.TypeCount[result.Proxy.Type]++
		if result.Proxy.Country != "" {
			stats.CountryCount[result.Proxy.Country]++
		}
	}

	return stats
}
