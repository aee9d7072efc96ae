package blockfs

import (
	"time"
)

// ParseDate reads the given input as a date in the 16 bit DOS format, which is used for the
// write date of the file records:
//  Bits 0–4: Day of month, valid value range 1-31 inclusive.
//  Bits 5–8: Month of year, 1 = January, valid value range 1–12 inclusive.
//  Bits 9–15: Count of years from 1980, valid value range 0–127 inclusive (1980–2107).
// It returns a time.Time which has always a time of 00:00:00.000000000 UTC.
//
// As value 0 for day and month is invalid, time.Time{} is returned in that case,
// so time.Time.IsZero() can be used.
func ParseDate(input uint16) time.Time {
	dayOfMonth := input & 0x1F
	monthOfYear := input & 0x1E0 >> 5
	yearSince1980 := input & 0xFE00 >> 9

	if dayOfMonth == 0 || monthOfYear == 0 {
		return time.Time{}
	}

	return time.Date(1980+int(yearSince1980), time.Month(monthOfYear), int(dayOfMonth), 0, 0, 0, 0, time.UTC)
}

// ParseTime reads the given input as a time in the 16 bit DOS format with a granularity of 2 seconds:
//  Bits 0–4: 2-second count, valid value range 0–29 inclusive (0 – 58 seconds).
//  Bits 5–10: Minutes, valid value range 0–59 inclusive.
//  Bits 11–15: Hours, valid value range 0–23 inclusive.
// It returns a time.Time which has always a date of January 1, year 1.
//
// Bigger values than the valid ones are just added to the time, limited to 23:59:59.
func ParseTime(input uint16) time.Time {
	seconds := int(input&0x1F) * 2
	minutes := input & 0x7E0 >> 5
	hours := input & 0xF800 >> 11

	result := time.Date(1, 1, 1, int(hours), int(minutes), seconds, 0, time.UTC)

	if result.Day() > 1 {
		return time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC)
	}

	return result
}

// ParseDateTime combines a DOS date and time. An invalid date results in time.Time{}.
func ParseDateTime(date, clock uint16) time.Time {
	d := ParseDate(date)
	if d.IsZero() {
		return time.Time{}
	}

	t := ParseTime(clock)
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// FormatDateTime encodes t (in UTC) as DOS date and time.
// Times before 1980 are stored as 0, which ParseDateTime reads as time.Time{};
// times after 2107 are clamped to the last representable day.
func FormatDateTime(t time.Time) (date uint16, clock uint16) {
	t = t.UTC()
	if t.Year() < 1980 {
		return 0, 0
	}
	if t.Year() > 2107 {
		t = time.Date(2107, 12, 31, 23, 59, 58, 0, time.UTC)
	}

	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	clock = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, clock
}
