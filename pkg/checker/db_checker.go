package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vpnproxy/internal/database"
	"vpnproxy/internal/database/models/model"
	"vpnproxy/pkg/scraper"
)

// DBChecker is a checker that uses SQLite for caching proxy health status
type DBChecker struct {
	*Checker
	dbService     *database.Service
	checkInterval time.Duration
}

// NewDBChecker wraps checker with a result cache; proxies probed within
// checkInterval are answered from the database.
func NewDBChecker(checker *Checker, dbService *database.Service, checkInterval time.Duration) *DBChecker {
	return &DBChecker{
		Checker:       checker,
		dbService:     dbService,
		checkInterval: checkInterval,
	}
}

// CheckProxies checks proxies but skips those checked recently
func (c *DBChecker) CheckProxies(ctx context.Context, proxies []scraper.Proxy) []CheckResult {
	if len(proxies) == 0 {
		return nil
	}

	c.logger.InfoBg("Checking %d proxies with caching (skip if checked within %v)", len(proxies), c.checkInterval)

	addresses := make([]string, 0, len(proxies))
	proxyByAddr := make(map[string]scraper.Proxy, len(proxies))
	for _, proxy := range proxies {
		addr := proxy.Address()
		if _, dup := proxyByAddr[addr]; dup {
			continue
		}
		addresses = append(addresses, addr)
		proxyByAddr[addr] = proxy
	}

	existing, err := c.dbService.GetProxiesByAddresses(ctx, addresses)
	if err != nil {
		c.logger.WarnBg("Failed to get existing proxies, checking all: %v", err)
		return c.Checker.CheckProxies(ctx, proxies)
	}

	cutoff := time.Now().Add(-c.checkInterval)
	dbProxies := make(map[string]*model.Proxies, len(addresses))
	var toCheck []scraper.Proxy
	var cached []CheckResult

	for _, addr := range addresses {
		proxy := proxyByAddr[addr]
		dbProxy, ok := existing[addr]
		if !ok {
			dbProxy, err = c.dbService.UpsertProxy(ctx, proxy)
			if err != nil {
				c.logger.WarnBg("Failed to upsert new proxy %s: %v", addr, err)
				toCheck = append(toCheck, proxy)
				continue
			}
		}
		dbProxies[addr] = dbProxy

		if dbProxy.LastCheckedAt == nil || dbProxy.LastCheckedAt.Before(cutoff) {
			toCheck = append(toCheck, proxy)
			continue
		}
		cached = append(cached, cachedResult(proxy, dbProxy))
	}

	c.logger.InfoBg("%d proxies need checking, %d answered from cache", len(toCheck), len(cached))

	fresh := c.Checker.CheckProxies(ctx, toCheck)

	updates := make(map[int32]database.HealthUpdate, len(fresh))
	skipped := 0
	for _, result := range fresh {
		if !probed(ctx, result) {
			skipped++
			continue
		}
		dbProxy, ok := dbProxies[result.Proxy.Address()]
		if !ok || dbProxy.ID == nil {
			continue
		}
		updates[*dbProxy.ID] = database.HealthUpdate{
			Status:       result.Status.String(),
			StatusCode:   result.StatusCode,
			ResponseTime: result.ResponseTime,
			Error:        result.Error,
			CheckedAt:    result.CheckedAt,
		}
	}

	if skipped > 0 {
		c.logger.WarnBg("%d proxies were not probed before the run ended, not caching them", skipped)
	}

	if len(updates) > 0 {
		// persist even when ctx was cancelled mid-check
		updateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := c.dbService.BatchUpdateProxyHealth(updateCtx, updates); err != nil {
			c.logger.WarnBg("Failed to batch update proxy health: %v", err)
		}
		cancel()
	}

	results := append(fresh, cached...)
	sortResults(results)
	return results
}

// probed reports whether result reflects the proxy rather than the caller
// giving up on the run.
func probed(ctx context.Context, result CheckResult) bool {
	if result.Skipped {
		return false
	}
	if err := ctx.Err(); err != nil && errors.Is(result.Error, err) {
		return false
	}
	return true
}

func cachedResult(proxy scraper.Proxy, dbProxy *model.Proxies) CheckResult {
	result := CheckResult{
		Proxy:  proxy,
		Status: ParseStatus(dbProxy.Status),
		Cached: true,
	}
	if dbProxy.LastCheckedAt != nil {
		result.CheckedAt = *dbProxy.LastCheckedAt
	}
	if dbProxy.ResponseTimeMs != nil {
		result.ResponseTime = time.Duration(*dbProxy.ResponseTimeMs) * time.Millisecond
	}
	if dbProxy.StatusCode != nil {
		result.StatusCode = int(*dbProxy.StatusCode)
	}
	return result
}

// GetHealthyProxiesFromDB returns healthy proxies from the database
func (c *DBChecker) GetHealthyProxiesFromDB(ctx context.Context) ([]scraper.Proxy, error) {
	dbProxies, err := c.dbService.GetHealthyProxies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get healthy proxies from database: %w", err)
	}

	proxies := make([]scraper.Proxy, 0, len(dbProxies))
	for _, dbProxy := range dbProxies {
		proxy := scraper.Proxy{
			Host: dbProxy.Host,
			Port: int(dbProxy.Port),
			Type: dbProxy.ProxyType,
		}
		if dbProxy.Country != nil {
			proxy.Country = *dbProxy.Country
		}
		if dbProxy.LastHealthyAt != nil {
			proxy.LastSeen = *dbProxy.LastHealthyAt
		}
		proxies = append(proxies, proxy)
	}

	return proxies, nil
}

// CleanupOldProxies removes proxies that haven't been healthy for a long time
func (c *DBChecker) CleanupOldProxies(ctx context.Context, maxAge time.Duration) (int64, error) {
	return c.dbService.CleanupOldProxies(ctx, maxAge)
}

// GetStats returns database proxy statistics
func (c *DBChecker) GetStats(ctx context.Context) (database.ProxyStats, error) {
	return c.dbService.GetProxyStats(ctx)
}
