package billing

import "time"

// BucketDuration converts a wall-clock elapsed duration into whole hours
// plus a quarter-hour minute bucket. The elapsed seconds are rounded
// half-up to the nearest bucket: 37m30s is equidistant between 30 and 45
// and rounds up to 45. Sub-minute runs round to the nearest bucket too,
// which for anything under 7m30s is simply (0, 0).
//
// The server measures elapsed time as now-startedAt rather than trusting
// client tick counts, so suspended tabs and clock skew cannot drift the
// recorded duration. Normalizing to discrete buckets is a deliberate
// policy choice over free-form fractional hours.
func BucketDuration(elapsed time.Duration) (hours float64, minutes int) {
	if elapsed < 0 {
		return 0, 0
	}
	// Half-up rounding to quarter hours, in integer seconds.
	quarters := (int64(elapsed/time.Second) + 450) / 900
	return float64(quarters / 4), int(quarters%4) * 15
}
