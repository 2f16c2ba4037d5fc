package anomaly

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func amounts(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestDetect_FlagsOutlier(t *testing.T) {
	// Nineteen everyday amounts and one enormous transfer.
	vals := make([]float64, 0, 20)
	for i := 0; i < 19; i++ {
		vals = append(vals, 100+float64(i))
	}
	vals = append(vals, 1_000_000)

	flagged := Detect(amounts(vals...), DefaultThreshold)
	if !reflect.DeepEqual(flagged, []int{19}) {
		t.Errorf("flagged = %v, want [19]", flagged)
	}
}

func TestDetect_NoOutliers(t *testing.T) {
	flagged := Detect(amounts(100, 102, 98, 101, 99, 103, 97), DefaultThreshold)
	if len(flagged) != 0 {
		t.Errorf("flagged = %v, want none", flagged)
	}
}

func TestDetect_DegenerateInputs(t *testing.T) {
	if got := Detect(nil, DefaultThreshold); got != nil {
		t.Errorf("nil input flagged %v", got)
	}
	if got := Detect(amounts(42), DefaultThreshold); got != nil {
		t.Errorf("single sample flagged %v", got)
	}
	// Identical amounts: zero standard deviation flags nothing.
	if got := Detect(amounts(50, 50, 50, 50), DefaultThreshold); got != nil {
		t.Errorf("constant series flagged %v", got)
	}
}

func TestDetect_ThresholdControlsSensitivity(t *testing.T) {
	series := amounts(10, 10, 10, 10, 10, 10, 10, 10, 10, 30)

	strict := Detect(series, 1.0)
	if len(strict) == 0 {
		t.Error("low threshold should flag the bump")
	}
	lax := Detect(series, 10.0)
	if len(lax) != 0 {
		t.Errorf("high threshold flagged %v", lax)
	}
}

func TestDetect_NonPositiveThresholdUsesDefault(t *testing.T) {
	series := amounts(10, 10, 10, 10, 30)

	got := Detect(series, 0)
	want := Detect(series, DefaultThreshold)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Detect with zero threshold = %v, want %v", got, want)
	}
}
