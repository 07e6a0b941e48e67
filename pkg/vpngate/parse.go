package vpngate

import (
	"io"
	"strings"

	"github.com/juju/errors"
)

// ParseRecords reads the line oriented server list. The first line starting
// with '#' names the columns; banner and terminator lines such as
// "*vpn_servers" and "*" fall below MinFields and are dropped.
//
// The list is not strict CSV: its banner lines have a different width than
// the rows, so lines are split on ',' directly.
func ParseRecords(r io.Reader) ([]ServerRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Annotate(err, "unable to read server list")
	}

	text := strings.ReplaceAll(string(data), "\r", "")

	var (
		header  []string
		records []ServerRecord
	)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Split(line, ",")
		if len(fields) < MinFields {
			continue
		}

		if header == nil && strings.HasPrefix(fields[0], "#") {
			header = make([]string, len(fields))
			for i, f := range fields {
				header[i] = strings.TrimSpace(strings.TrimPrefix(f, "#"))
			}
			continue
		}

		if header == nil {
			header = DefaultHeader
		}
		records = append(records, NewRecord(header, fields))
	}

	return records, nil
}
