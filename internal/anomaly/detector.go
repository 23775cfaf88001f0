package anomaly

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Reason strings stored on flagged readings.
const (
	ReasonRollback = "meter rollback: current value below previous"
)

// Detector flags readings whose consumption looks wrong so a landlord can
// review them. Flags never change what is billed.
type Detector struct {
	spikeThreshold            decimal.Decimal
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            decimal.NewFromFloat(spikeThreshold),
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// Check inspects one reading against the consumption history of the same
// meter and apartment. It returns the review reason, or "" when the
// reading looks normal.
func (d *Detector) Check(current, previous decimal.Decimal, history []decimal.Decimal) string {
	if current.LessThan(previous) {
		return ReasonRollback
	}

	// Need enough history for spike detection
	if len(history) < d.minDataPointsForDetection || len(history) == 0 {
		return ""
	}

	average := decimal.Avg(history[0], history[1:]...)
	consumption := current.Sub(previous)

	if average.IsPositive() && consumption.GreaterThan(d.spikeThreshold.Mul(average)) {
		return fmt.Sprintf("sudden spike detected: consumption %s exceeds %sx rolling average %s",
			consumption.StringFixed(2), d.spikeThreshold.String(), average.StringFixed(2))
	}

	return ""
}
