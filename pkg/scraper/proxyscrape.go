package scraper

import (
	"context"
	"net/http"

	"vpnproxy/internal/logger"
)

const proxyScrapeURL = "https://api.proxyscrape.com/v4/free-proxy-list/get?request=get_proxies&proxy_format=protocolipport&format=text"

type ProxyScrapeAPI struct {
	client    *http.Client
	apiURL    string
	userAgent string
	logger    *logger.Logger
}

func NewProxyScrapeAPIWithConfig(config ScraperConfig) *ProxyScrapeAPI {
	return &ProxyScrapeAPI{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		apiURL:    proxyScrapeURL,
		userAgent: config.UserAgent,
		logger:    logger.New("proxyscrape"),
	}
}

func (p *ProxyScrapeAPI) Name() string {
	return "proxyscrape"
}

func (p *ProxyScrapeAPI) Scrape(ctx context.Context) ([]Proxy, error) {
	proxies, err := fetchProxyList(ctx, p.client, p.apiURL, userAgent(p.userAgent), "http")
	if err != nil {
		return nil, err
	}

	httpCount := 0
	socksCount := 0
	for _, proxy := range proxies {
		switch proxy.Type {
		case "http", "https":
			httpCount++
		case "socks4", "socks5":
			socksCount++
		}
	}
	p.logger.InfoBg("ProxyScrape collected: %d HTTP/HTTPS, %d SOCKS", httpCount, socksCount)

	return proxies, nil
}
