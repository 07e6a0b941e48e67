package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnproxy/pkg/scraper"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "proxies.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db)
}

func TestUpsertProxyKeepsIdentity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertProxy(ctx, scraper.Proxy{Host: "1.1.1.1", Port: 80, Type: "http", Country: "Germany"})
	require.NoError(t, err)
	require.NotNil(t, first.ID)
	assert.Equal(t, "unknown", first.Status)

	second, err := svc.UpsertProxy(ctx, scraper.Proxy{Host: "1.1.1.1", Port: 80, Type: "https", Country: "Japan"})
	require.NoError(t, err)
	assert.Equal(t, *first.ID, *second.ID)
	assert.Equal(t, "https", second.ProxyType)
	require.NotNil(t, second.Country)
	assert.Equal(t, "Japan", *second.Country)

	got, err := svc.GetProxyByHostPort(ctx, "1.1.1.1", 80)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *first.ID, *got.ID)

	missing, err := svc.GetProxyByHostPort(ctx, "9.9.9.9", 80)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetProxiesByAddresses(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, p := range []scraper.Proxy{
		{Host: "1.1.1.1", Port: 80, Type: "http"},
		{Host: "2.2.2.2", Port: 3128, Type: "http"},
	} {
		_, err := svc.UpsertProxy(ctx, p)
		require.NoError(t, err)
	}

	found, err := svc.GetProxiesByAddresses(ctx, []string{"1.1.1.1:80", "2.2.2.2:80", "3.3.3.3:1"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, "1.1.1.1:80")

	empty, err := svc.GetProxiesByAddresses(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBatchUpdateProxyHealth(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	good, err := svc.UpsertProxy(ctx, scraper.Proxy{Host: "1.1.1.1", Port: 80, Type: "http", Country: "Germany"})
	require.NoError(t, err)
	bad, err := svc.UpsertProxy(ctx, scraper.Proxy{Host: "2.2.2.2", Port: 80, Type: "socks5"})
	require.NoError(t, err)

	checkedAt := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, svc.BatchUpdateProxyHealth(ctx, map[int32]HealthUpdate{
		*good.ID: {Status: "healthy", StatusCode: 200, ResponseTime: 150 * time.Millisecond, CheckedAt: checkedAt},
		*bad.ID:  {Status: "timeout", ResponseTime: 3 * time.Second, Error: errors.New("i/o timeout"), CheckedAt: checkedAt},
	}))
	require.NoError(t, svc.BatchUpdateProxyHealth(ctx, map[int32]HealthUpdate{
		*bad.ID: {Status: "unhealthy", StatusCode: 502, CheckedAt: checkedAt},
	}))

	healthy, err := svc.GetHealthyProxies(ctx)
	require.NoError(t, err)
	require.Len(t, healthy, 1)
	assert.Equal(t, "1.1.1.1", healthy[0].Host)
	require.NotNil(t, healthy[0].StatusCode)
	assert.EqualValues(t, 200, *healthy[0].StatusCode)
	require.NotNil(t, healthy[0].ResponseTimeMs)
	assert.EqualValues(t, 150, *healthy[0].ResponseTimeMs)
	require.NotNil(t, healthy[0].LastHealthyAt)
	assert.True(t, checkedAt.Equal(*healthy[0].LastHealthyAt))

	failing, err := svc.GetProxyByHostPort(ctx, "2.2.2.2", 80)
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", failing.Status)
	assert.EqualValues(t, 2, failing.FailCount)
	assert.Nil(t, failing.LastHealthyAt)

	history, err := svc.GetCheckHistory(ctx, *bad.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "unhealthy", history[0].Status)
	assert.Equal(t, "timeout", history[1].Status)
	require.NotNil(t, history[1].ErrorMessage)
	assert.Equal(t, "i/o timeout", *history[1].ErrorMessage)

	limited, err := svc.GetCheckHistory(ctx, *bad.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	stats, err := svc.GetProxyStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Healthy)
	assert.Equal(t, map[string]int{"http": 1, "socks5": 1}, stats.ByType)
	assert.Equal(t, map[string]int{"healthy": 1, "unhealthy": 1}, stats.ByStatus)
	assert.Equal(t, map[string]int{"Germany": 1}, stats.ByCountry)
}

func TestCleanupOldProxies(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpsertProxy(ctx, scraper.Proxy{Host: "1.1.1.1", Port: 80, Type: "http"})
	require.NoError(t, err)

	removed, err := svc.CleanupOldProxies(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed, "recently seen proxies are kept")

	old := formatTime(time.Now().Add(-48 * time.Hour))
	_, err = svc.db.ExecContext(ctx, `UPDATE proxies SET first_seen_at = ?`, old)
	require.NoError(t, err)

	removed, err = svc.CleanupOldProxies(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	stats, err := svc.GetProxyStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}
