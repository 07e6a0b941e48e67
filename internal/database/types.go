package database

import (
	"time"
)

// timeLayout is how timestamps are stored; SQLite compares them as text.
const timeLayout = "2006-01-02 15:04:05"

const statusHealthy = "healthy"

// HealthUpdate is the outcome of one probe to be persisted
type HealthUpdate struct {
	Status       string
	StatusCode   int
	ResponseTime time.Duration
	Error        error
	CheckedAt    time.Time
}

// Healthy reports whether the probe succeeded
func (u HealthUpdate) Healthy() bool {
	return u.Status == statusHealthy
}

// ProxyStats contains statistics about the proxy database
type ProxyStats struct {
	Total     int            `json:"total"`
	Healthy   int            `json:"healthy"`
	ByType    map[string]int `json:"by_type"`
	ByStatus  map[string]int `json:"by_status"`
	ByCountry map[string]int `json:"by_country"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}
