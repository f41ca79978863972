package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domrepo "github.com/vpnsgde/gold-quant/internal/domain/repository"
	"github.com/vpnsgde/gold-quant/pkg/util"
)

const (
	metaDateLayout = "2006.01.02"
	metaTimeLayout = "15:04"
)

// CSVPriceSource reads closes from a CSV export. Two layouts are accepted:
// separate Date (YYYY.MM.DD) and Time (HH:MM) columns, or a single
// datetime/timestamp column holding RFC3339, "2006-01-02 15:04:05" or unix
// seconds (see util.ParseTime). Headers are matched case-insensitively.
type CSVPriceSource struct {
	Path string
}

func NewCSVPriceSource(path string) *CSVPriceSource {
	return &CSVPriceSource{Path: path}
}

// LatestSeries returns the last n rows of the file. The timeframe is ignored
// since the file has a fixed sampling interval.
func (s *CSVPriceSource) LatestSeries(_ context.Context, symbol string, n int, _ domrepo.Timeframe) (*models.PriceSeries, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	series, err := ReadPriceCSV(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return series.Tail(n), nil
}

// ReadPriceCSV parses a price CSV into a series.
func ReadPriceCSV(r io.Reader, symbol string) (*models.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty csv", models.ErrInput)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	closeIdx, ok := cols["close"]
	if !ok {
		return nil, fmt.Errorf("%w: missing Close column", models.ErrInput)
	}
	parseTime, err := timeParser(cols)
	if err != nil {
		return nil, err
	}

	var pts []models.PricePoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrInput, line, err)
		}
		if closeIdx >= len(rec) {
			return nil, fmt.Errorf("%w: line %d: missing close value", models.ErrInput, line)
		}
		ts, err := parseTime(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrInput, line, err)
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: close: %v", models.ErrInput, line, err)
		}
		pts = append(pts, models.PricePoint{Time: ts, Close: c})
	}
	return models.NewPriceSeries(symbol, pts)
}

func timeParser(cols map[string]int) (func([]string) (time.Time, error), error) {
	if di, ok := cols["date"]; ok {
		ti, hasTime := cols["time"]
		return func(rec []string) (time.Time, error) {
			if di >= len(rec) || (hasTime && ti >= len(rec)) {
				return time.Time{}, errors.New("short record")
			}
			if !hasTime {
				return time.ParseInLocation(metaDateLayout, strings.TrimSpace(rec[di]), time.UTC)
			}
			return time.ParseInLocation(metaDateLayout+" "+metaTimeLayout,
				strings.TrimSpace(rec[di])+" "+strings.TrimSpace(rec[ti]), time.UTC)
		}, nil
	}
	for _, name := range []string{"datetime", "timestamp", "time"} {
		if idx, ok := cols[name]; ok {
			return func(rec []string) (time.Time, error) {
				if idx >= len(rec) {
					return time.Time{}, errors.New("short record")
				}
				return parseTimestamp(strings.TrimSpace(rec[idx]))
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: missing Date/Time or datetime column", models.ErrInput)
}

func parseTimestamp(v string) (time.Time, error) {
	if t, ok := util.ParseTime(v); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}
