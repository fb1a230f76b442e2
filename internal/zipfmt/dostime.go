package zipfmt

import "time"

var (
	dosEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	dosLimit = time.Date(2107, time.December, 31, 23, 59, 58, 0, time.UTC)
)

// DOSDateTime packs t into MS-DOS date and time fields using t's own
// wall-clock fields. Seconds are truncated to 2-second resolution. Times
// before 1980-01-01 clamp to the epoch and times after 2107 clamp to the
// last representable instant.
func DOSDateTime(t time.Time) (date, clock uint16) {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	wall := time.Date(year, month, day, hour, minute, sec, 0, time.UTC)
	switch {
	case wall.Before(dosEpoch):
		wall = dosEpoch
	case wall.After(dosLimit):
		wall = dosLimit
	}
	year, month, day = wall.Date()
	hour, minute, sec = wall.Clock()

	date = uint16(day + int(month)<<5 + (year-1980)<<9) //nolint:gosec // clamped to 1980-2107
	clock = uint16(sec/2 + minute<<5 + hour<<11)        //nolint:gosec // bounded by clock fields
	return date, clock
}
