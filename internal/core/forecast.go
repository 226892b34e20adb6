package core

import (
	"errors"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// ForecastWindow is the number of most recent months the forecast looks at.
const ForecastWindow = 6

var ErrNotEnoughData = errors.New("not enough data")

type Forecast struct {
	Months        []Month
	PredictedNext decimal.Decimal
}

// ForecastNextMonth fits a least squares line through the last ForecastWindow
// monthly totals (ordered oldest first) and extrapolates one month ahead.
// A single month predicts itself; negative predictions clamp to zero.
func ForecastNextMonth(totals []MonthlyTotal) (Forecast, error) {
	if len(totals) == 0 {
		return Forecast{}, ErrNotEnoughData
	}
	if len(totals) > ForecastWindow {
		totals = totals[len(totals)-ForecastWindow:]
	}

	months := make([]Month, len(totals))
	xs := make([]float64, len(totals))
	ys := make([]float64, len(totals))
	for i, t := range totals {
		months[i] = t.Month
		xs[i] = float64(i)
		ys[i] = t.Total.InexactFloat64()
	}

	if len(totals) == 1 {
		return Forecast{Months: months, PredictedNext: RoundCents(totals[0].Total)}, nil
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	predicted := slope*float64(len(totals)) + intercept
	if predicted < 0 {
		predicted = 0
	}
	return Forecast{Months: months, PredictedNext: RoundCents(decimal.NewFromFloat(predicted))}, nil
}
