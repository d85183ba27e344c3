// pkg/date/date.go - Normalization of ISO-8601-like date prefixes to epoch seconds
package date

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/mapillary/pkg/mlyerr"
)

// Now is the sentinel meaning the current time
const Now = "*"

// pattern is one accepted prefix form; groups hold year, month, day, hour, minute, second, millis
type pattern struct {
	name string
	re   *regexp.Regexp
}

// patterns are tried longest first, first match wins
var patterns = []pattern{
	{"datetime-with-millis", regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})\.(\d{1,3})$`)},
	{"datetime-with-seconds", regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})$`)},
	{"datetime-with-minutes", regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2})$`)},
	{"datetime-with-hour", regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2})$`)},
	{"date", regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)},
	{"year-month", regexp.MustCompile(`^(\d{4})-(\d{2})$`)},
	{"year", regexp.MustCompile(`^(\d{4})$`)},
}

// Formats lists the accepted input layouts for help text
func Formats() []string {
	return []string{
		"YYYY-MM-DDTHH:MM:SS.fff",
		"YYYY-MM-DDTHH:MM:SS",
		"YYYY-MM-DDTHH:MM",
		"YYYY-MM-DDTHH",
		"YYYY-MM-DD",
		"YYYY-MM",
		"YYYY",
		Now,
	}
}

// fields holds parsed components; unspecified ones keep their zero defaults
type fields struct {
	year, month, day, hour, minute, second, millis int
}

// ToUnix normalizes s to Unix epoch seconds in UTC. now supplies the
// current time for the "*" sentinel and the upper bound on year.
func ToUnix(s string, now time.Time) (int64, error) {
	t, err := Parse(s, now)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// Parse normalizes s to a UTC time, see ToUnix
func Parse(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == Now {
		return now.UTC(), nil
	}
	if s == "" {
		return time.Time{}, &mlyerr.InvalidDateError{Input: s, Reason: "must not be empty"}
	}

	f, ok := match(s)
	if !ok {
		return time.Time{}, &mlyerr.InvalidDateError{
			Input:  s,
			Reason: "does not match any accepted format (" + strings.Join(Formats(), ", ") + ")",
		}
	}
	if err := f.validate(s, now.UTC().Year()); err != nil {
		return time.Time{}, err
	}

	return time.Date(f.year, time.Month(f.month), f.day, f.hour, f.minute, f.second,
		f.millis*int(time.Millisecond), time.UTC), nil
}

func match(s string) (fields, bool) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}

		f := fields{month: 1, day: 1}
		targets := []*int{&f.year, &f.month, &f.day, &f.hour, &f.minute, &f.second}
		groups := m[1:]
		for i, g := range groups {
			if i == len(targets) {
				// fractional seconds, right-padded to millis
				f.millis, _ = strconv.Atoi((g + "00")[:3])
				break
			}
			*targets[i], _ = strconv.Atoi(g)
		}
		return f, true
	}
	return fields{}, false
}

func (f fields) validate(input string, currentYear int) error {
	bad := func(field, reason string) error {
		return &mlyerr.InvalidDateError{Input: input, Field: field, Reason: reason}
	}

	if f.year > currentYear {
		return bad("year", "must not be after "+strconv.Itoa(currentYear))
	}
	if f.month < 1 || f.month > 12 {
		return bad("month", "must be between 1 and 12")
	}
	if f.day < 1 || f.day > 31 {
		return bad("day", "must be between 1 and 31")
	}
	if last := daysIn(f.year, f.month); f.day > last {
		return bad("day", "must not exceed "+strconv.Itoa(last)+" for this month")
	}
	if f.hour > 23 {
		return bad("hour", "must be between 0 and 23")
	}
	if f.minute > 59 {
		return bad("minute", "must be between 0 and 59")
	}
	if f.second > 59 {
		return bad("second", "must be between 0 and 59")
	}
	return nil
}

func daysIn(year, month int) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
