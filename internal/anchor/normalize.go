package anchor

import (
	"strconv"
	"strings"
	"time"
)

const (
	minYear = 1900
	maxYear = 2100
)

// normalized is the output of a rule's normalizer: a resolved date, an
// optional range end, and the precision of the reading.
type normalized struct {
	date      time.Time
	endDate   *time.Time
	precision Precision
}

// normalizeFunc turns a regex submatch into a normalized date. ok=false means
// the match is unparseable and the candidate is silently dropped.
type normalizeFunc func(groups []string, ref time.Time) (normalized, bool)

// validYMD checks calendar validity: year window, month range, day against the
// month's actual length (leap years included), then a round-trip through
// time.Date. time.Date normalizes overflow (Feb 30 → Mar 2), so reconstructed
// components must equal the inputs.
func validYMD(year, month, day int) (time.Time, bool) {
	if year < minYear || year > maxYear {
		return time.Time{}, false
	}
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	if day < 1 || day > daysInMonth(year, month) {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}

// normalizeYMD builds a day-precision date from three numeric groups.
func normalizeYMD(y, m, d string) (normalized, bool) {
	t, ok := validYMD(atoi(y), atoi(m), atoi(d))
	if !ok {
		return normalized{}, false
	}
	return normalized{date: t, precision: PrecisionDay}, true
}

// normalizeYM builds a month-precision date pinned to the first of the month.
func normalizeYM(y, m string) (normalized, bool) {
	t, ok := validYMD(atoi(y), atoi(m), 1)
	if !ok {
		return normalized{}, false
	}
	return normalized{date: t, precision: PrecisionMonth}, true
}

// englishMonths maps English month names (and common abbreviations) to numbers.
var englishMonths = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may":  5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

func monthNumber(name string) int {
	if n, ok := englishMonths[strings.ToLower(strings.TrimSpace(name))]; ok {
		return n
	}
	return -1
}

// relativeUnits maps Korean and English unit tokens to a calendar unit.
var relativeUnits = map[string]string{
	"일": "day", "day": "day", "days": "day",
	"주": "week", "week": "week", "weeks": "week",
	"개월": "month", "달": "month", "month": "month", "months": "month",
	"년": "year", "year": "year", "years": "year",
}

// shiftByUnit moves ref by n units; future units ignore the sign convention
// of the caller (pass negative n for "ago").
func shiftByUnit(ref time.Time, n int, unit string) (time.Time, Precision, bool) {
	switch relativeUnits[strings.ToLower(strings.TrimSpace(unit))] {
	case "day":
		return ref.AddDate(0, 0, n), PrecisionDay, true
	case "week":
		return ref.AddDate(0, 0, 7*n), PrecisionDay, true
	case "month":
		return ref.AddDate(0, n, 0), PrecisionApproximate, true
	case "year":
		return ref.AddDate(n, 0, 0), PrecisionApproximate, true
	}
	return time.Time{}, "", false
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
