// Package dates reconciles the heterogeneous time-axis tokens returned by
// e-Stat into canonical month-start timestamps.
//
// Observed encodings include "2023年1月", "2022年度", "202301", "20230115",
// "2023年", plain years, and assorted ISO-ish strings, sometimes mixed within
// a single statistical table.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Month is the canonical calendar axis unit: midnight UTC on the first day of
// a month.
type Month = time.Time

// fiscalStartMonth is the calendar month a Japanese fiscal year (年度) begins.
const fiscalStartMonth = time.April

type matcher struct {
	accepts func(string) bool
	parse   func(string) (time.Time, bool)
}

var (
	yearMonthRe = regexp.MustCompile(`^(\d{4})年(\d{1,2})月$`)
	fiscalRe    = regexp.MustCompile(`^(\d{4})年度$`)
	yearOnlyRe  = regexp.MustCompile(`^(\d{4})年$`)
	digitsRe    = regexp.MustCompile(`^\d+$`)
)

// matchers is tried in order; the first matcher whose accepts returns true
// owns the token, whether or not its parse then succeeds. The order is part
// of the contract and must not change.
var matchers = []matcher{
	{accepts: yearMonthRe.MatchString, parse: parseYearMonth},
	{accepts: fiscalRe.MatchString, parse: parseFiscalYear},
	{accepts: yearOnlyRe.MatchString, parse: parseCalendarYear},
	{accepts: isDigits(6), parse: parseYYYYMM},
	{accepts: isDigits(8), parse: parseYYYYMMDD},
	{accepts: func(string) bool { return true }, parse: parseGeneric},
}

// NormalizeMonth maps an arbitrary date-like token to the first day of its
// month in UTC. The second return value is false for tokens no matcher could
// interpret; a bad token never causes an error, only an invalid result.
func NormalizeMonth(token string) (Month, bool) {
	s := strings.TrimSpace(token)
	if s == "" {
		return time.Time{}, false
	}

	for _, m := range matchers {
		if m.accepts(s) {
			return m.parse(s)
		}
	}
	return time.Time{}, false
}

func monthStart(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func parseYearMonth(s string) (time.Time, bool) {
	g := yearMonthRe.FindStringSubmatch(s)
	year, _ := strconv.Atoi(g[1])
	month, _ := strconv.Atoi(g[2])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return monthStart(year, time.Month(month)), true
}

func parseFiscalYear(s string) (time.Time, bool) {
	g := fiscalRe.FindStringSubmatch(s)
	year, _ := strconv.Atoi(g[1])
	return monthStart(year, fiscalStartMonth), true
}

func parseCalendarYear(s string) (time.Time, bool) {
	g := yearOnlyRe.FindStringSubmatch(s)
	year, _ := strconv.Atoi(g[1])
	return monthStart(year, time.January), true
}

func isDigits(length int) func(string) bool {
	return func(s string) bool {
		return len(s) == length && digitsRe.MatchString(s)
	}
}

func parseYYYYMM(s string) (time.Time, bool) {
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[4:])
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return monthStart(year, time.Month(month)), true
}

// parseYYYYMMDD truncates daily granularity to the month start; the day
// digits only have to form a valid calendar date.
func parseYYYYMMDD(s string) (time.Time, bool) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	return monthStart(t.Year(), t.Month()), true
}

// genericLayouts are tried last, for tokens carrying no Japanese markers and
// no purely numeric shape. Covers four-digit bare years via "2006".
var genericLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-01",
	"2006/01",
	"2006年1月2日",
	"2006",
}

func parseGeneric(s string) (time.Time, bool) {
	for _, layout := range genericLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return monthStart(t.Year(), t.Month()), true
	}
	return time.Time{}, false
}

// AddMonths advances a month-start timestamp by n calendar months, keeping it
// on a month boundary.
func AddMonths(m Month, n int) Month {
	return m.AddDate(0, n, 0)
}

// MonthsBetween returns the number of whole calendar months from a to b.
// Both arguments must be month-start timestamps.
func MonthsBetween(a, b Month) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
