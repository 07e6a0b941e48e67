package vpngate

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"
)

// MinFields is the smallest field count a parsed line needs to be kept.
const MinFields = 2

// Column names used by the VPN Gate CSV API.
const (
	ColHostName     = "HostName"
	ColIP           = "IP"
	ColScore        = "Score"
	ColPing         = "Ping"
	ColSpeed        = "Speed"
	ColCountryLong  = "CountryLong"
	ColCountryShort = "CountryShort"
	ColSessions     = "NumVpnSessions"
	ColUptime       = "Uptime"
	ColTotalUsers   = "TotalUsers"
	ColTotalTraffic = "TotalTraffic"
	ColLogType      = "LogType"
	ColOperator     = "Operator"
	ColMessage      = "Message"
	ColConfigData   = "OpenVPN_ConfigData_Base64"
)

// DefaultHeader is the column layout served by the API, used when a
// response carries no header line.
var DefaultHeader = []string{
	ColHostName, ColIP, ColScore, ColPing, ColSpeed, ColCountryLong, ColCountryShort,
	ColSessions, ColUptime, ColTotalUsers, ColTotalTraffic, ColLogType, ColOperator,
	ColMessage, ColConfigData,
}

// ServerRecord is one parsed line of the server list.
type ServerRecord struct {
	HostName     string
	IP           string
	Score        string
	Ping         string
	Speed        string
	CountryLong  string
	CountryShort string
	Sessions     string
	Uptime       string
	Operator     string
	// Payload is the base64 encoded OpenVPN profile; may be empty.
	Payload string

	fields []string
}

// NewRecord maps fields onto header columns. Columns missing from fields
// are left empty. The profile is always the last field of a row wider than
// the header, since free-text columns may contain commas.
func NewRecord(header, fields []string) ServerRecord {
	get := func(name string) string {
		for i, h := range header {
			if h == name && i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
		}
		return ""
	}

	payload := get(ColConfigData)
	if len(fields) > len(header) {
		payload = strings.TrimSpace(fields[len(fields)-1])
	}

	return ServerRecord{
		HostName:     get(ColHostName),
		IP:           get(ColIP),
		Score:        get(ColScore),
		Ping:         get(ColPing),
		Speed:        get(ColSpeed),
		CountryLong:  get(ColCountryLong),
		CountryShort: get(ColCountryShort),
		Sessions:     get(ColSessions),
		Uptime:       get(ColUptime),
		Operator:     get(ColOperator),
		Payload:      payload,
		fields:       append([]string(nil), fields...),
	}
}

// Country is the name records are grouped by.
func (r ServerRecord) Country() string {
	return r.CountryLong
}

// Fields returns a copy of the raw fields the record was parsed from.
func (r ServerRecord) Fields() []string {
	return append([]string(nil), r.fields...)
}

// HasPayload reports whether the record carries a profile.
func (r ServerRecord) HasPayload() bool {
	return r.Payload != ""
}

// NormalizedScore returns the score as a number, or false when it does not parse.
func (r ServerRecord) NormalizedScore() (float64, bool) {
	return NormalizeScore(r.Score)
}

// Config decodes the payload into the raw profile bytes.
func (r ServerRecord) Config() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Payload)
}

// SpeedBits returns the advertised line speed in bits per second, 0 if unknown.
func (r ServerRecord) SpeedBits() float64 {
	v, ok := NormalizeScore(r.Speed)
	if !ok {
		return 0
	}
	return v
}

// NormalizeScore parses a decimal that may use ',' as separator.
func NormalizeScore(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
