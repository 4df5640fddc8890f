package tables

import "time"

// TimeParts holds the calendar fields decomposed from a playback start time.
type TimeParts struct {
	Hour    int32
	Day     int32
	Week    int32
	Month   int32
	Year    int32
	Weekday int32
}

// FromEpochMillis converts epoch milliseconds to the playback start time.
// Fractional seconds are discarded; the result is in UTC.
func FromEpochMillis(ms int64) time.Time {
	return time.Unix(ms/1000, 0).UTC()
}

// Decompose derives calendar fields from a start time.
// Weekday numbering is 1=Sunday through 7=Saturday; Week is the ISO 8601
// week of year.
func Decompose(t time.Time) TimeParts {
	_, week := t.ISOWeek()
	return TimeParts{
		Hour:    int32(t.Hour()),
		Day:     int32(t.Day()),
		Week:    int32(week),
		Month:   int32(t.Month()),
		Year:    int32(t.Year()),
		Weekday: int32(t.Weekday()) + 1,
	}
}
