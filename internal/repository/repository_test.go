package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
	domrepo "github.com/vpnsgde/gold-quant/internal/domain/repository"
)

const metaCSV = `Date,Time,Open,High,Low,Close,Volume
2024.01.02,10:00,2060.1,2061.0,2059.5,2060.5,120
2024.01.02,10:05,2060.5,2062.0,2060.0,2061.7,98
2024.01.02,10:10,2061.7,2061.9,2058.8,2059.2,143
`

func TestReadPriceCSVDateTimeColumns(t *testing.T) {
	s, err := ReadPriceCSV(strings.NewReader(metaCSV), "XAUUSD")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	require.Equal(t, time.Date(2024, 1, 2, 10, 5, 0, 0, time.UTC), s.At(1).Time)
	require.InDelta(t, 2059.2, s.Last().Close, 1e-12)
}

func TestReadPriceCSVSingleTimestampColumn(t *testing.T) {
	in := "timestamp,close\n1700000000,10\n1700000300,11\n"
	s, err := ReadPriceCSV(strings.NewReader(in), "X")
	require.NoError(t, err)
	require.Equal(t, 300*time.Second, s.At(1).Time.Sub(s.At(0).Time))

	in = "datetime,Close\n2024-03-01T00:00:00Z,5\n2024-03-01 00:05:00,6\n"
	s, err = ReadPriceCSV(strings.NewReader(in), "X")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
}

func TestReadPriceCSVErrors(t *testing.T) {
	cases := map[string]string{
		"missing close": "Date,Time,Open\n2024.01.02,10:00,1\n",
		"missing time":  "Open,Close\n1,2\n",
		"bad close":     "Date,Time,Close\n2024.01.02,10:00,abc\n",
		"non-positive":  "Date,Time,Close\n2024.01.02,10:00,0\n",
		"unordered":     "Date,Time,Close\n2024.01.02,10:05,1\n2024.01.02,10:00,2\n",
		"empty":         "",
	}
	for name, in := range cases {
		_, err := ReadPriceCSV(strings.NewReader(in), "X")
		if !errors.Is(err, models.ErrInput) {
			t.Fatalf("%s: expected ErrInput, got %v", name, err)
		}
	}
}

func TestCSVPriceSourceReturnsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xau.csv")
	require.NoError(t, os.WriteFile(path, []byte(metaCSV), 0o644))

	s, err := NewCSVPriceSource(path).LatestSeries(context.Background(), "XAUUSD", 2, domrepo.TF5m)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	require.InDelta(t, 2061.7, s.At(0).Close, 1e-12)
}

func TestTableForTF(t *testing.T) {
	got, err := tableForTF("market", domrepo.TF5m)
	require.NoError(t, err)
	require.Equal(t, "market.candles_5m", got)

	_, err = tableForTF("market", domrepo.Timeframe("1h"))
	require.ErrorIs(t, err, models.ErrInput)
}

func TestStepsInsertArgs(t *testing.T) {
	r := 0.001
	rows := []models.ForecastRow{
		{Step: 1, MeanReturn: &r, PriceMean: 10, PriceLower: 9, PriceUpper: 11},
		{Step: 2, PriceMean: 10.1, PriceLower: 8.9, PriceUpper: 11.2},
	}
	q, args := stepsInsert("market", "run-1", "XAUUSD", rows)
	require.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 18)
	require.Equal(t, uint32(2), args[11])
}

func TestRunInsertWithoutOrder(t *testing.T) {
	tbl := &models.ForecastTable{Symbol: "XAUUSD", Meta: models.ForecastMeta{Method: models.MethodGBM}}
	_, args := runInsert("market", "run-1", tbl)
	require.Nil(t, args[9])
	require.Equal(t, []string{}, args[13])
}
