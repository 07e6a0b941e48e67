package vpngate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleList = "*vpn_servers\r\n" +
	"#HostName,IP,Score,Ping,Speed,CountryLong,CountryShort,NumVpnSessions,Uptime,TotalUsers,TotalTraffic,LogType,Operator,Message,OpenVPN_ConfigData_Base64\r\n" +
	"public-vpn-1,1.2.3.4,120345,12,98765432,Japan,JP,40,3600000,1000,123456,2weeks,op1,,Y2xpZW50\r\n" +
	"public-vpn-2,5.6.7.8,98000,30,1234567,United States,US,10,7200000,50,999,2weeks,op2,,\r\n" +
	"broken\r\n" +
	"*\r\n"

func TestParseRecords(t *testing.T) {
	records, err := ParseRecords(strings.NewReader(sampleList))
	require.NoError(t, err)
	require.Len(t, records, 2)

	jp := records[0]
	assert.Equal(t, "public-vpn-1", jp.HostName)
	assert.Equal(t, "1.2.3.4", jp.IP)
	assert.Equal(t, "Japan", jp.Country())
	assert.Equal(t, "JP", jp.CountryShort)
	assert.Equal(t, "Y2xpZW50", jp.Payload)
	assert.Equal(t, float64(98765432), jp.SpeedBits())
	assert.Len(t, jp.Fields(), 15)

	cfg, err := jp.Config()
	require.NoError(t, err)
	assert.Equal(t, "client", string(cfg))

	us := records[1]
	assert.Equal(t, "United States", us.Country())
	assert.False(t, us.HasPayload())
}

func TestParseRecordsWithoutHeaderUsesDefaultLayout(t *testing.T) {
	body := "h,9.9.9.9,5,1,1,Korea Republic of,KR,1,1,1,1,x,op,,QUJD\n"
	records, err := ParseRecords(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Korea Republic of", records[0].Country())
	assert.Equal(t, "QUJD", records[0].Payload)
}

func TestParseRecordsShortRowLeavesMissingColumnsEmpty(t *testing.T) {
	body := "#HostName,IP,Score,Ping,Speed,CountryLong\nhost,1.1.1.1,7\n"
	records, err := ParseRecords(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].Score)
	assert.Empty(t, records[0].Country())
	assert.False(t, records[0].HasPayload())
}

func TestParseRecordsMessageWithComma(t *testing.T) {
	body := "#HostName,IP,Score,Ping,Speed,CountryLong,CountryShort,NumVpnSessions,Uptime,TotalUsers,TotalTraffic,LogType,Operator,Message,OpenVPN_ConfigData_Base64\n" +
		"h,9.9.9.9,5,1,1,Japan,JP,1,1,1,1,x,op,hello, world,Y2xpZW50\n"
	records, err := ParseRecords(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "Y2xpZW50", records[0].Payload)
	assert.Equal(t, "op", records[0].Operator)
	cfg, err := records[0].Config()
	require.NoError(t, err)
	assert.Equal(t, "client", string(cfg))
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,5", 1.5, true},
		{"2.0", 2, true},
		{" 120345 ", 120345, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"1,2,3", 0, false},
		{"Inf", 0, false},
		{"-infinity", 0, false},
		{"1e999", 0, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeScore(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestNewClientWithConfigDefaults(t *testing.T) {
	c := NewClientWithConfig(ClientConfig{})
	assert.Equal(t, DefaultAPIURL, c.apiURL)
	assert.Equal(t, 1, c.retries)
}

func TestClientFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	c := NewClientWithConfig(ClientConfig{APIURL: srv.URL, Timeout: time.Second, UserAgent: "test-agent", Retries: 1})
	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "test-agent", gotUA)
}

func TestClientFetchRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	c := NewClientWithConfig(ClientConfig{APIURL: srv.URL, Timeout: time.Second, UserAgent: "ua", Retries: 3, RetryDelay: time.Millisecond})
	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientFetchGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClientWithConfig(ClientConfig{APIURL: srv.URL, Timeout: time.Second, UserAgent: "ua", Retries: 2, RetryDelay: time.Millisecond})
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
