package output

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func fiveMinuteSeries(t *testing.T, n int) *models.PriceSeries {
	t.Helper()
	pts := make([]models.PricePoint, n)
	for i := range pts {
		pts[i] = models.PricePoint{Time: t0.Add(time.Duration(i) * 5 * time.Minute), Close: 2000 + float64(i)}
	}
	s, err := models.NewPriceSeries("XAUUSD", pts)
	require.NoError(t, err)
	return s
}

func samplePath() *models.ForecastPath {
	mr, v := 0.001, 0.0001
	return &models.ForecastPath{
		Steps: []models.ForecastStep{
			{Step: 1, MeanReturn: &mr, Variance: &v, MeanPrice: 2002, LowerPrice: 1990, UpperPrice: 2014},
			{Step: 2, MeanPrice: 2003, LowerPrice: 1980, UpperPrice: 2025},
		},
		Meta: models.ForecastMeta{Method: models.MethodArimaGarch, Confidence: 0.95},
	}
}

func TestForecastIndexSpacing(t *testing.T) {
	idx := ForecastIndex(t0, 5*time.Minute, 3)
	require.Equal(t, []time.Time{
		t0.Add(5 * time.Minute),
		t0.Add(10 * time.Minute),
		t0.Add(15 * time.Minute),
	}, idx)
}

func TestInferInterval(t *testing.T) {
	times := []time.Time{t0, t0.Add(time.Minute), t0.Add(2 * time.Minute), t0.Add(time.Hour), t0.Add(time.Hour + time.Minute)}
	d, err := InferInterval(times)
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)

	_, err = InferInterval([]time.Time{t0})
	require.ErrorIs(t, err, models.ErrInput)
}

func TestNormalize(t *testing.T) {
	s := fiveMinuteSeries(t, 10)
	tbl, err := Normalize(samplePath(), s, 0)
	require.NoError(t, err)
	require.Equal(t, "XAUUSD", tbl.Symbol)
	require.Equal(t, 5*time.Minute, tbl.Interval)
	require.Equal(t, 2009.0, tbl.LastPrice)
	require.Len(t, tbl.Rows, 2)
	require.Equal(t, s.Last().Time.Add(5*time.Minute), tbl.Rows[0].Time)
	require.Equal(t, s.Last().Time.Add(10*time.Minute), tbl.Rows[1].Time)
	require.NotNil(t, tbl.Rows[0].MeanReturn)
	require.Nil(t, tbl.Rows[1].Variance)
	require.Equal(t, models.MethodArimaGarch, tbl.Meta.Method)
}

func TestNormalizeExplicitInterval(t *testing.T) {
	tbl, err := Normalize(samplePath(), fiveMinuteSeries(t, 3), time.Hour)
	require.NoError(t, err)
	require.Equal(t, tbl.LastTime.Add(2*time.Hour), tbl.Rows[1].Time)
}

func TestNormalizeMalformed(t *testing.T) {
	s := fiveMinuteSeries(t, 3)
	_, err := Normalize(&models.ForecastPath{}, s, 0)
	require.ErrorIs(t, err, ErrMalformedPath)

	p := samplePath()
	p.Steps[1].Step = 3
	_, err = Normalize(p, s, 0)
	require.ErrorIs(t, err, ErrMalformedPath)
}

func TestWriteCSV(t *testing.T) {
	tbl, err := Normalize(samplePath(), fiveMinuteSeries(t, 3), 0)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, Header, recs[0])
	require.Equal(t, []string{"2024-03-01 10:15:00", "1", "0.001", "0.0001", "2002", "1990", "2014"}, recs[1])
	require.Equal(t, "", recs[2][2])
	require.Equal(t, "", recs[2][3])
}

func TestHistory(t *testing.T) {
	s := fiveMinuteSeries(t, 10)
	h := History(s, 3)
	require.Len(t, h, 3)
	require.Equal(t, s.Last(), h[2])
	require.Nil(t, History(s, 0))
}
