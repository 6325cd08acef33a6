package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// LoadCSV reads a feature-enriched daily bar file into a Table. The file must
// have a header row with a timestamp column ("date" or "time") plus
// open/high/low/close/volume; every other numeric column becomes a feature.
// Files ending in .xz are decompressed on the fly.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		r = xr
	}
	return ReadCSV(r)
}

// ReadCSV parses bar rows from r. See LoadCSV for the expected layout.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	timeCol := -1
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		if header[i] == "date" || header[i] == "time" || header[i] == "timestamp" {
			timeCol = i
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("no date/time column in header %v", header)
	}

	var times []time.Time
	columns := make(map[string][]float64, len(header)-1)
	for i, h := range header {
		if i != timeCol {
			columns[h] = nil
		}
	}

	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		ts, err := parseTime(rec[timeCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		times = append(times, ts)
		for i, h := range header {
			if i == timeCol {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				v = math.NaN()
			}
			columns[h] = append(columns[h], v)
		}
		row++
	}
	if row == 0 {
		return nil, fmt.Errorf("no bar rows")
	}

	t, err := FromColumns(times, columns)
	if err != nil {
		return nil, err
	}
	if err := t.RequirePrices(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
