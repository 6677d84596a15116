package forecast

import (
	"fmt"
	"time"

	"github.com/Mindburn-Labs/covenant/pkg/decay"
)

// RateSeries buckets violations into periods consecutive windows of length
// period beginning at start. Each bucket holds the summed severity of the
// violations whose timestamp falls in [bucketStart, bucketStart+period).
// Violations outside the covered range are ignored.
func RateSeries(violations []decay.ViolationRecord, start time.Time, period time.Duration, periods int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: period must be > 0, got %s", ErrInvalidConfig, period)
	}
	if periods < 1 {
		return nil, fmt.Errorf("%w: periods must be >= 1, got %d", ErrInvalidConfig, periods)
	}

	series := make([]float64, periods)
	end := start.Add(time.Duration(periods) * period)
	for i, v := range violations {
		if v.Severity < 0 {
			return nil, fmt.Errorf("%w: violations[%d].severity must be >= 0, got %v", ErrInvalidConfig, i, v.Severity)
		}
		if v.Timestamp.Before(start) || !v.Timestamp.Before(end) {
			continue
		}
		series[int(v.Timestamp.Sub(start)/period)] += v.Severity
	}
	return series, nil
}
