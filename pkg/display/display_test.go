package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vpnproxy/pkg/checker"
	"vpnproxy/pkg/manager"
	"vpnproxy/pkg/scraper"
	"vpnproxy/pkg/selector"
)

func TestCatalogListsCountriesInOrder(t *testing.T) {
	catalog := selector.Catalog{
		"Japan": {CountryLong: "Japan", IP: "219.100.37.1", Ping: "12", Speed: "90000000", Sessions: "4", Uptime: "7200000", Payload: "eA=="},
		"Korea": {CountryLong: "Korea", IP: "1.2.3.4", Ping: "-", Speed: "1500000", Payload: "eA=="},
	}
	var out bytes.Buffer

	NewPrinter(&out).Catalog(catalog, []string{"Japan", "Korea"})
	text := out.String()

	assert.True(t, strings.HasPrefix(text, "Choose Country : "))
	assert.Contains(t, text, "1. Japan\nIP: 219.100.37.1\nPing: 12 ms\nSpeed: 90 Mbps\nSessions: 4\nUptime: 2 hours\n")
	assert.Contains(t, text, "2. Korea\nIP: 1.2.3.4\nPing: - ms\nSpeed: 1.5 Mbps\n")
	assert.Less(t, strings.Index(text, "Japan"), strings.Index(text, "Korea"))
	assert.NotContains(t, text, "\u001b[", "no colors when not a terminal")
}

func TestCheckResults(t *testing.T) {
	results := []checker.CheckResult{
		{Proxy: scraper.Proxy{Host: "1.1.1.1", Port: 80, Type: "http"}, Status: checker.StatusHealthy, StatusCode: 200, ResponseTime: 120 * time.Millisecond},
		{Proxy: scraper.Proxy{Host: "2.2.2.2", Port: 80, Type: "http"}, Status: checker.StatusTimeout, Error: errors.New("timeout")},
	}
	var out bytes.Buffer

	NewPrinter(&out).CheckResults(results)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "1.1.1.1:80")
	assert.Contains(t, lines[0], "HTTP 200")
	assert.Contains(t, lines[0], "120ms")
	assert.Contains(t, lines[1], "timeout")
	assert.Equal(t, "1/2 proxies alive", lines[2])
}

func TestStats(t *testing.T) {
	var out bytes.Buffer
	NewPrinter(&out).Stats(manager.Stats{
		TotalProxies: 3,
		HealthyCount: 2,
		ByStatus:     map[string]int{"timeout": 1, "healthy": 2},
		TypeCount:    map[string]int{"https": 2},
		CountryCount: map[string]int{"Japan": 1, "Germany": 1},
	})

	assert.Equal(t, "Status: healthy=2, timeout=1\nTypes: https=2\nCountries: Germany=1, Japan=1\n", out.String())

	out.Reset()
	NewPrinter(&out).Stats(manager.Stats{})
	assert.Equal(t, "No proxies checked\n", out.String())
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "", formatUptime(""))
	assert.Equal(t, "", formatUptime("abc"))
	assert.Equal(t, "", formatUptime("0"))
	assert.Equal(t, "1 minute", formatUptime("60000"))
	assert.Equal(t, "a long while", formatUptime("9000000000000000000"))
}

func TestWarning(t *testing.T) {
	var out bytes.Buffer
	NewPrinter(&out).Warning("Removed %d stale proxies", 3)
	assert.Equal(t, "Removed 3 stale proxies\n", out.String())
}
