package backfill

import (
	"regexp"
	"strconv"
	"time"
)

// Photo object names encode the capture time as epoch milliseconds:
// ticket-<epoch-millis>-<random>.<ext>. Names written before the epoch
// field grew past ten digits never existed, so the pattern requires at
// least ten.
var namePattern = regexp.MustCompile(`^ticket-(\d{10,})-`)

// ParseCaptureTime extracts the embedded capture timestamp from an
// object name. The second return is false when the name does not follow
// the pattern; such objects cannot be matched to tickets.
func ParseCaptureTime(name string) (time.Time, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
