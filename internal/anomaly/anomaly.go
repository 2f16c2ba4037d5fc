// Package anomaly flags outlier transaction amounts by z-score over
// the run's valid Records. Flags are advisory: they travel with the
// run summary to the notifier and never change a Record's verdict.
package anomaly

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the z-score above which an amount is flagged.
const DefaultThreshold = 3.0

// Detect returns the indices of amounts whose absolute z-score exceeds
// the threshold. Fewer than two samples, or a zero standard deviation,
// flags nothing. Population standard deviation is used, matching the
// statistic the alert thresholds were tuned against.
func Detect(amounts []decimal.Decimal, threshold float64) []int {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(amounts) < 2 {
		return nil
	}

	values := make([]float64, len(amounts))
	var sum float64
	for i, a := range amounts {
		values[i] = a.InexactFloat64()
		sum += values[i]
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	std := math.Sqrt(variance)
	if std == 0 {
		return nil
	}

	var flagged []int
	for i, v := range values {
		if math.Abs(v-mean)/std > threshold {
			flagged = append(flagged, i)
		}
	}
	return flagged
}
