package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/corpix/uarand"
)

// RandomUserAgent makes scrapers pick a fresh user agent per request.
const RandomUserAgent = "random"

type Proxy struct {
	Host     string
	Port     int
	Type     string
	Country  string
	LastSeen time.Time
}

func (p Proxy) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

type Scraper interface {
	Name() string
	Scrape(ctx context.Context) ([]Proxy, error)
}

type ScraperConfig struct {
	Timeout      time.Duration
	UserAgent    string
	Sources      []string
	PageURL      string
	Limit        int
	RequireHTTPS bool
}

func userAgent(configured string) string {
	if configured == RandomUserAgent {
		return uarand.GetRandom()
	}
	return configured
}

func validPort(port int) bool {
	return port > 0 && port < 65536
}
