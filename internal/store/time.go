package store

import "time"

func timeFromUnixNano(nano uint64) time.Time {
	return time.Unix(0, int64(nano)).UTC()
}
