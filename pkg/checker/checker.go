package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	netproxy "golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"vpnproxy/internal/logger"
	"vpnproxy/pkg/scraper"
)

type ProxyStatus int

const (
	StatusUnknown ProxyStatus = iota
	StatusHealthy
	StatusUnhealthy
	StatusTimeout
	StatusError
)

func (s ProxyStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of ProxyStatus.String.
func ParseStatus(s string) ProxyStatus {
	switch s {
	case "healthy":
		return StatusHealthy
	case "unhealthy":
		return StatusUnhealthy
	case "timeout":
		return StatusTimeout
	case "error":
		return StatusError
	default:
		return StatusUnknown
	}
}

type CheckResult struct {
	Proxy        scraper.Proxy
	Status       ProxyStatus
	StatusCode   int
	ResponseTime time.Duration
	Error        error
	CheckedAt    time.Time
	Cached       bool
	// Skipped is set when the probe never ran, e.g. ctx ended while waiting
	// for the rate limiter.
	Skipped bool
}

type Checker struct {
	testURL    string
	timeout    time.Duration
	maxWorkers int
	userAgent  string
	limiter    *rate.Limiter
	logger     *logger.Logger
}

type CheckerConfig struct {
	TestURL    string
	Timeout    time.Duration
	MaxWorkers int
	UserAgent  string
	// RateLimit caps probes started per second; 0 disables the limit.
	RateLimit float64
}

func NewCheckerWithConfig(config CheckerConfig) *Checker {
	c := &Checker{
		testURL:    config.TestURL,
		timeout:    config.Timeout,
		maxWorkers: config.MaxWorkers,
		userAgent:  config.UserAgent,
		logger:     logger.New("checker"),
	}
	if c.maxWorkers < 1 {
		c.maxWorkers = 1
	}
	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return c
}

func (c *Checker) CheckProxy(ctx context.Context, proxy scraper.Proxy) CheckResult {
	start := time.Now()
	result := CheckResult{
		Proxy:     proxy,
		CheckedAt: start,
	}

	result.Status, result.StatusCode, result.Error = c.testProxy(ctx, proxy)
	result.ResponseTime = time.Since(start)

	return result
}

// CheckProxies probes proxies concurrently and returns the results sorted by
// address. Proxies not started before ctx is done are reported as errors.
func (c *Checker) CheckProxies(ctx context.Context, proxies []scraper.Proxy) []CheckResult {
	if len(proxies) == 0 {
		return nil
	}

	workers := c.maxWorkers
	if workers > len(proxies) {
		workers = len(proxies)
	}

	p := pool.NewWithResults[CheckResult]().WithMaxGoroutines(workers)
	for _, proxy := range proxies {
		p.Go(func() CheckResult {
			if err := c.wait(ctx); err != nil {
				return CheckResult{Proxy: proxy, Status: StatusError, Error: err, CheckedAt: time.Now(), Skipped: true}
			}
			return c.CheckProxy(ctx, proxy)
		})
	}
	results := p.Wait()

	sortResults(results)

	healthy := GetHealthyCount(results)
	c.logger.InfoBg("Checked %d proxies: %d healthy", len(results), healthy)
	for status, group := range GroupByStatus(results) {
		if status != StatusHealthy {
			c.logger.DebugBg("  %s: %d", status, len(group))
		}
	}

	return results
}

func sortResults(results []CheckResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Proxy.Address() < results[j].Proxy.Address()
	})
}

func (c *Checker) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Checker) testProxy(ctx context.Context, proxy scraper.Proxy) (ProxyStatus, int, error) {
	transport, err := c.transportFor(proxy)
	if err != nil {
		return StatusError, 0, err
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.testURL, nil)
	if err != nil {
		return StatusError, 0, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/plain, application/json")
	req.Header.Set("Connection", "close")

	resp, err := client.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return StatusTimeout, 0, err
		}
		if isConnectionError(err) {
			return StatusUnhealthy, 0, err
		}
		return StatusError, 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return StatusHealthy, resp.StatusCode, nil
	}

	return StatusUnhealthy, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
}

// transportFor builds a one-shot transport routed through proxy. HTTP and
// HTTPS proxies use CONNECT/forwarding, SOCKS proxies a SOCKS5 dialer.
func (c *Checker) transportFor(proxy scraper.Proxy) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		DisableKeepAlives:     true,
		DisableCompression:    true,
		TLSHandshakeTimeout:   c.timeout,
		ResponseHeaderTimeout: c.timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	switch proxy.Type {
	case "socks4", "socks5":
		dialer, err := createSOCKSDialer(proxy.Host, proxy.Port, c.timeout)
		if err != nil {
			return nil, err
		}
		contextDialer, ok := dialer.(netproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS dialer for %s does not support contexts", proxy.Address())
		}
		transport.DialContext = contextDialer.DialContext
	default:
		proxyURL, err := buildProxyURL(proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		transport.DialContext = (&net.Dialer{Timeout: c.timeout}).DialContext
	}

	return transport, nil
}

func buildProxyURL(proxy scraper.Proxy) (*url.URL, error) {
	// free lists mark CONNECT-capable proxies as "https"; they still speak plain HTTP
	return url.Parse(fmt.Sprintf("http://%s", proxy.Address()))
}

// createSOCKSDialer creates a SOCKS5 dialer; most SOCKS4 servers on public
// lists also accept SOCKS5 greetings.
func createSOCKSDialer(host string, port int, timeout time.Duration) (netproxy.Dialer, error) {
	proxyAddr := fmt.Sprintf("%s:%d", host, port)
	dialer, err := netproxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
	}
	return dialer, nil
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "connection reset")
}

func FilterHealthyProxies(results []CheckResult) []scraper.Proxy {
	var healthy []scraper.Proxy
	for _, result := range results {
		if result.Status == StatusHealthy {
			healthy = append(healthy, result.Proxy)
		}
	}
	return healthy
}

func GetHealthyCount(results []CheckResult) int {
	count := 0
	for _, result := range results {
		if result.Status == StatusHealthy {
			count++
		}
	}
	return count
}

func GroupByStatus(results []CheckResult) map[ProxyStatus][]CheckResult {
	groups := make(map[ProxyStatus][]CheckResult)
	for _, result := range results {
		groups[result.Status] = append(groups[result.Status], result)
	}
	return groups
}
