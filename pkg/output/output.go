// Package output writes decoded OpenVPN profiles and catalog exports.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jszwec/csvutil"
	"github.com/spf13/afero"

	"vpnproxy/internal/logger"
	"vpnproxy/pkg/selector"
	"vpnproxy/pkg/vpngate"
)

var ErrExists = errors.New("profile already exists")

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "\x00", "")

type ProfileWriter struct {
	fs        afero.Fs
	dir       string
	ext       string
	overwrite bool
	logger    *logger.Logger
}

// NewProfileWriter writes profiles under dir on fs. Pass afero.NewOsFs() for
// the real filesystem.
func NewProfileWriter(fs afero.Fs, dir, ext string, overwrite bool) *ProfileWriter {
	if dir == "" {
		dir = "."
	}
	return &ProfileWriter{
		fs:        fs,
		dir:       dir,
		ext:       ext,
		overwrite: overwrite,
		logger:    logger.New("output"),
	}
}

// Path returns where the profile for country is written.
func (w *ProfileWriter) Path(country string) (string, error) {
	name := strings.TrimSpace(filenameReplacer.Replace(country))
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid profile name %q", country)
	}
	return filepath.Join(w.dir, name+w.ext), nil
}

// Save decodes the record's payload and writes it as <dir>/<country><ext>.
func (w *ProfileWriter) Save(country string, record vpngate.ServerRecord) (string, error) {
	data, err := record.Config()
	if err != nil {
		return "", fmt.Errorf("failed to decode profile for %s: %w", country, err)
	}

	path, err := w.Path(country)
	if err != nil {
		return "", err
	}

	if mime := mimetype.Detect(data); !mime.Is("text/plain") {
		w.logger.WarnBg("Profile for %s looks like %s, not text", country, mime.String())
	}

	if !w.overwrite {
		exists, err := afero.Exists(w.fs, path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if exists {
			return "", fmt.Errorf("%s: %w", path, ErrExists)
		}
	}

	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", w.dir, err)
	}
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	w.logger.DebugBg("Wrote %d bytes to %s", len(data), path)
	return path, nil
}

type catalogRow struct {
	Index       int    `csv:"index"`
	Country     string `csv:"country"`
	CountryCode string `csv:"country_code"`
	HostName    string `csv:"host_name"`
	IP          string `csv:"ip"`
	Score       string `csv:"score"`
	Ping        string `csv:"ping"`
	Speed       string `csv:"speed"`
	Sessions    string `csv:"sessions"`
	Operator    string `csv:"operator,omitempty"`
}

// WriteCatalogCSV writes one row per country in order, numbered like the
// interactive menu.
func WriteCatalogCSV(w io.Writer, catalog selector.Catalog, order []string) error {
	rows := make([]catalogRow, 0, len(order))
	for i, country := range order {
		record, ok := catalog[country]
		if !ok {
			continue
		}
		rows = append(rows, catalogRow{
			Index:       i + 1,
			Country:     country,
			CountryCode: record.CountryShort,
			HostName:    record.HostName,
			IP:          record.IP,
			Score:       record.Score,
			Ping:        record.Ping,
			Speed:       record.Speed,
			Sessions:    record.Sessions,
			Operator:    record.Operator,
		})
	}

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	var err error
	if len(rows) == 0 {
		err = enc.EncodeHeader(catalogRow{})
	} else {
		err = enc.Encode(rows)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// ExportCatalog writes the catalog CSV to path on fs.
func ExportCatalog(fs afero.Fs, path string, catalog selector.Catalog, order []string) error {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := WriteCatalogCSV(f, catalog, order); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
