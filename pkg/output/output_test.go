package output

import (
	"bytes"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnproxy/pkg/selector"
	"vpnproxy/pkg/vpngate"
)

const profile = "client\ndev tun\nproto tcp\nremote 219.100.37.1 443\n"

func record(payload string) vpngate.ServerRecord {
	return vpngate.ServerRecord{
		HostName:     "public-vpn-1",
		IP:           "219.100.37.1",
		Score:        "1000",
		Ping:         "12",
		Speed:        "90000000",
		CountryLong:  "Japan",
		CountryShort: "JP",
		Sessions:     "10",
		Payload:      base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

func TestSaveWritesDecodedProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewProfileWriter(fs, "profiles", ".ovpn", true)

	path, err := w.Save("Japan", record(profile))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("profiles", "Japan.ovpn"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, profile, string(data))
}

func TestSaveOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "Japan.ovpn", []byte("old"), 0o644))

	_, err := NewProfileWriter(fs, "", ".ovpn", false).Save("Japan", record(profile))
	assert.ErrorIs(t, err, ErrExists)
	data, _ := afero.ReadFile(fs, "Japan.ovpn")
	assert.Equal(t, "old", string(data))

	_, err = NewProfileWriter(fs, "", ".ovpn", true).Save("Japan", record(profile))
	require.NoError(t, err)
	data, _ = afero.ReadFile(fs, "Japan.ovpn")
	assert.Equal(t, profile, string(data))
}

func TestSaveRejectsBadPayload(t *testing.T) {
	rec := record(profile)
	rec.Payload = "not base64!"

	_, err := NewProfileWriter(afero.NewMemMapFs(), ".", ".ovpn", true).Save("Japan", rec)
	assert.Error(t, err)
}

func TestPathSanitizesCountry(t *testing.T) {
	w := NewProfileWriter(afero.NewMemMapFs(), "out", ".ovpn", true)

	path, err := w.Path("Korea Republic of")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "Korea Republic of.ovpn"), path)

	path, err = w.Path("../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out", ".._etc_passwd.ovpn"), path)

	_, err = w.Path("  ")
	assert.Error(t, err)
}

func TestWriteCatalogCSV(t *testing.T) {
	catalog := selector.Catalog{"Japan": record(profile)}
	var buf bytes.Buffer

	require.NoError(t, WriteCatalogCSV(&buf, catalog, []string{"Japan", "Missing"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "index,country,country_code,host_name,ip,score,ping,speed,sessions,operator", lines[0])
	assert.Equal(t, "1,Japan,JP,public-vpn-1,219.100.37.1,1000,12,90000000,10,", lines[1])
}

func TestWriteCatalogCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCatalogCSV(&buf, selector.Catalog{}, nil))
	assert.True(t, strings.HasPrefix(buf.String(), "index,country"))
}

func TestExportCatalog(t *testing.T) {
	fs := afero.NewMemMapFs()
	catalog := selector.Catalog{"Japan": record(profile)}

	require.NoError(t, ExportCatalog(fs, "servers.csv", catalog, catalog.Countries()))
	data, err := afero.ReadFile(fs, "servers.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Japan,JP")
}
