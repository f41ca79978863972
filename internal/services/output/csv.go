package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/vpnsgde/gold-quant/internal/domain/models"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// Header is the CSV column order.
var Header = []string{"datetime", "step", "mean_return", "variance", "price_mean", "price_lower", "price_upper"}

// WriteCSV writes one row per step. Absent mean_return and variance are empty.
func WriteCSV(w io.Writer, t *models.ForecastTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range t.Rows {
		rec := []string{
			r.Time.Format(csvTimeLayout),
			strconv.Itoa(r.Step),
			optional(r.MeanReturn),
			optional(r.Variance),
			formatFloat(r.PriceMean),
			formatFloat(r.PriceLower),
			formatFloat(r.PriceUpper),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write step %d: %w", r.Step, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
