package voice

import "time"

// SetCallOfferTimeoutForTest overrides callOfferTimeout for the duration
// of a test and returns the previous value to restore on cleanup.
func SetCallOfferTimeoutForTest(d time.Duration) time.Duration {
	prev := callOfferTimeout
	callOfferTimeout = d
	return prev
}
