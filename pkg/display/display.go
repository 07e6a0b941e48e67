// Package display renders server catalogs and proxy check results for a terminal.
package display

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"vpnproxy/pkg/checker"
	"vpnproxy/pkg/manager"
	"vpnproxy/pkg/selector"
)

const (
	reset  = "\u001b[0m"
	red    = "\u001b[31m"
	green  = "\u001b[32m"
	yellow = "\u001b[33m"
	blue   = "\u001b[36m"
)

type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter enables colors only when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{out: out, color: color}
}

func (p *Printer) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + reset
}

func (p *Printer) Banner(text string) {
	fmt.Fprintln(p.out, p.paint(blue, text))
}

func (p *Printer) Notice(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.paint(green, fmt.Sprintf(format, args...)))
}

func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.paint(red, fmt.Sprintf(format, args...)))
}

// Catalog prints one numbered entry per country in order.
func (p *Printer) Catalog(catalog selector.Catalog, order []string) {
	fmt.Fprintln(p.out, p.paint(yellow, "Choose Country : "))
	for i, country := range order {
		record, ok := catalog[country]
		if !ok {
			continue
		}
		fmt.Fprintln(p.out, p.paint(green, fmt.Sprintf("\n%d. %s", i+1, country)))
		fmt.Fprintf(p.out, "IP: %s\n", record.IP)
		fmt.Fprintf(p.out, "Ping: %s ms\n", orDash(record.Ping))
		fmt.Fprintf(p.out, "Speed: %s\n", humanize.SIWithDigits(record.SpeedBits(), 1, "bps"))
		if record.Sessions != "" {
			fmt.Fprintf(p.out, "Sessions: %s\n", record.Sessions)
		}
		if uptime := formatUptime(record.Uptime); uptime != "" {
			fmt.Fprintf(p.out, "Uptime: %s\n", uptime)
		}
	}
}

// CheckResults prints one line per probed proxy followed by a summary.
func (p *Printer) CheckResults(results []checker.CheckResult) {
	healthy := 0
	for _, r := range results {
		line := fmt.Sprintf("%-22s %-6s %-9s", r.Proxy.Address(), r.Proxy.Type, r.Status)
		if r.StatusCode != 0 {
			line += fmt.Sprintf(" HTTP %d", r.StatusCode)
		}
		line += fmt.Sprintf(" %v", r.ResponseTime.Round(time.Millisecond))

		if r.Status == checker.StatusHealthy {
			healthy++
			fmt.Fprintln(p.out, p.paint(green, line))
		} else {
			fmt.Fprintln(p.out, p.paint(red, line))
		}
	}
	fmt.Fprintln(p.out, p.paint(yellow, fmt.Sprintf("%d/%d proxies alive", healthy, len(results))))
}

// Stats prints per-status counts and the healthy proxies by type and country.
func (p *Printer) Stats(stats manager.Stats) {
	if stats.TotalProxies == 0 {
		fmt.Fprintln(p.out, p.paint(red, "No proxies checked"))
		return
	}
	fmt.Fprintf(p.out, "Status: %s\n", joinCounts(stats.ByStatus))
	if stats.CachedCount > 0 {
		fmt.Fprintf(p.out, "Cached: %d\n", stats.CachedCount)
	}
	if len(stats.TypeCount) > 0 {
		fmt.Fprintf(p.out, "Types: %s\n", joinCounts(stats.TypeCount))
	}
	if len(stats.CountryCount) > 0 {
		fmt.Fprintf(p.out, "Countries: %s\n", joinCounts(stats.CountryCount))
	}
}

func joinCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" || s == "-" {
		return "-"
	}
	return s
}

// maxUptimeMs is the largest uptime that fits a time.Duration.
const maxUptimeMs = math.MaxInt64 / int64(time.Millisecond)

// formatUptime renders a millisecond uptime as a relative duration.
func formatUptime(ms string) string {
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil || v <= 0 {
		return ""
	}
	if v > maxUptimeMs {
		v = maxUptimeMs
	}
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-time.Duration(v)*time.Millisecond), now, "", ""))
}
