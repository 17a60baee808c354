package firebird

import (
	"fmt"
	"time"
)

// The native calendar types: dates are whole days relative to the
// Modified Julian Date epoch (17 November 1858), times are units of
// 1/10000 second since midnight, timestamps combine the two.
const (
	timeUnitsPerSecond = 10000
	timeUnitsPerMinute = 60 * timeUnitsPerSecond
	timeUnitsPerHour   = 60 * timeUnitsPerMinute
)

var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// decodeDate converts a native day count to year, month and day.
func decodeDate(days int32) (year int, month int, day int) {
	t := mjdEpoch.AddDate(0, 0, int(days))
	return t.Year(), int(t.Month()), t.Day()
}

// decodeTime splits a native time-of-day counter into clock components.
// frac is the sub-second part in units of 1/10000 second.
func decodeTime(units uint32) (hour int, minute int, sec int, frac int) {
	hour = int(units / timeUnitsPerHour)
	minute = int(units/timeUnitsPerMinute) % 60
	sec = int(units/timeUnitsPerSecond) % 60
	frac = int(units % timeUnitsPerSecond)
	return hour, minute, sec, frac
}

// formatDate renders a native date as "YYYY-MM-DD".
func formatDate(days int32) string {
	year, month, day := decodeDate(days)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// formatTimeOfDay renders a native time as "HH:MM:SS.ffff".
func formatTimeOfDay(units uint32) string {
	hour, minute, sec, frac := decodeTime(units)
	return fmt.Sprintf("%02d:%02d:%02d.%04d", hour, minute, sec, frac)
}

// formatTimestamp renders a native timestamp as
// "YYYY-MM-DD HH:MM:SS.ffff".
func formatTimestamp(days int32, units uint32) string {
	return formatDate(days) + " " + formatTimeOfDay(units)
}

// shiftTime applies a zone offset in minutes to a UTC time-of-day,
// wrapping around midnight. The sub-second part is unaffected.
func shiftTime(units uint32, offsetMinutes int) uint32 {
	const unitsPerDay = 24 * timeUnitsPerHour
	shifted := int64(units) + int64(offsetMinutes)*timeUnitsPerMinute
	shifted %= unitsPerDay
	if shifted < 0 {
		shifted += unitsPerDay
	}
	return uint32(shifted)
}

// shiftTimestamp applies a zone offset in minutes to a UTC timestamp,
// carrying overflow into the day count.
func shiftTimestamp(days int32, units uint32, offsetMinutes int) (int32, uint32) {
	const unitsPerDay = 24 * timeUnitsPerHour
	shifted := int64(units) + int64(offsetMinutes)*timeUnitsPerMinute
	dayShift := shifted / unitsPerDay
	shifted %= unitsPerDay
	if shifted < 0 {
		dayShift--
		shifted += unitsPerDay
	}
	return days + int32(dayShift), uint32(shifted)
}
