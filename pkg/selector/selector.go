// Package selector picks the best VPN server for each country.
package selector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"vpnproxy/pkg/vpngate"
)

// Catalog maps a country name to its best server. It is built once by
// SelectBest and not modified afterwards.
type Catalog map[string]vpngate.ServerRecord

// Countries returns the catalog keys in display order.
func (c Catalog) Countries() []string {
	countries := make([]string, 0, len(c))
	for country := range c {
		countries = append(countries, country)
	}
	sort.Strings(countries)
	return countries
}

// Lookup finds a country by name, ignoring case.
func (c Catalog) Lookup(name string) (string, vpngate.ServerRecord, bool) {
	if r, ok := c[name]; ok {
		return name, r, true
	}
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for country, r := range c {
		if fold.String(country) == want {
			return country, r, true
		}
	}
	return "", vpngate.ServerRecord{}, false
}

type Options struct {
	// ExactMatch groups records by case-insensitive equality instead of
	// substring containment.
	ExactMatch bool
}

// SelectionError reports a user choice that does not map to a country.
type SelectionError struct {
	Input string
	Max   int
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q: choose a number between 1 and %d", e.Input, e.Max)
}

// SelectBest groups records by country and keeps the highest scoring record
// with a payload for each. A record belongs to every observed country name
// its own country field contains, ignoring case.
func SelectBest(records []vpngate.ServerRecord) Catalog {
	return SelectBestWith(records, Options{})
}

func SelectBestWith(records []vpngate.ServerRecord, opts Options) Catalog {
	fold := cases.Fold()

	var countries []string
	seen := make(map[string]bool)
	for _, r := range records {
		country := r.Country()
		if country == "" || seen[country] {
			continue
		}
		seen[country] = true
		countries = append(countries, country)
	}

	candidates := make([]vpngate.ServerRecord, 0, len(records))
	folded := make([]string, 0, len(records))
	for _, r := range records {
		if !r.HasPayload() {
			continue
		}
		candidates = append(candidates, r)
		folded = append(folded, fold.String(r.Country()))
	}

	catalog := make(Catalog)
	for _, country := range countries {
		target := fold.String(country)

		var (
			best      vpngate.ServerRecord
			bestScore float64
			bestOK    bool
			found     bool
		)
		for i, r := range candidates {
			if !matches(folded[i], target, opts.ExactMatch) {
				continue
			}
			score, ok := r.NormalizedScore()
			if !found || better(score, ok, bestScore, bestOK) {
				best, bestScore, bestOK, found = r, score, ok, true
			}
		}

		if found {
			catalog[country] = best
		}
	}

	return catalog
}

func matches(country, target string, exact bool) bool {
	if exact {
		return country == target
	}
	return strings.Contains(country, target)
}

// better reports whether a strictly outranks b. Unparseable scores rank
// below every number.
func better(a float64, aOK bool, b float64, bOK bool) bool {
	switch {
	case aOK && !bOK:
		return true
	case !aOK:
		return false
	default:
		return a > b
	}
}

// ChooseByIndex resolves a 1-based choice against the displayed order.
func ChooseByIndex(catalog Catalog, displayOrder []string, index int) (vpngate.ServerRecord, error) {
	if index < 1 || index > len(displayOrder) {
		return vpngate.ServerRecord{}, &SelectionError{Input: strconv.Itoa(index), Max: len(displayOrder)}
	}

	record, ok := catalog[displayOrder[index-1]]
	if !ok {
		return vpngate.ServerRecord{}, &SelectionError{Input: strconv.Itoa(index), Max: len(displayOrder)}
	}
	return record, nil
}

// ParseChoice converts raw user input to an index within 1..max.
func ParseChoice(input string, max int) (int, error) {
	trimmed := strings.TrimSpace(input)
	index, err := strconv.Atoi(trimmed)
	if err != nil || index < 1 || index > max {
		return 0, &SelectionError{Input: trimmed, Max: max}
	}
	return index, nil
}
