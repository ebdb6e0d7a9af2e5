package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatTime turns a 24h "HH:MM" into 12h notation ("13:30" -> "1:30 PM").
// Input that is not HH:MM is returned as is.
func FormatTime(value string) string {
	hours, minutes, ok := strings.Cut(value, ":")
	if !ok {
		return value
	}
	hour, err := strconv.Atoi(hours)
	if err != nil || hour < 0 || hour > 23 {
		return value
	}
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour
	switch {
	case hour == 0:
		display = 12
	case hour > 12:
		display = hour - 12
	}
	return fmt.Sprintf("%d:%s %s", display, minutes, period)
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	RequestLayout,
}

// ParseDateTime parses the date formats the upstream returns. Values without
// an offset are read in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("appointment: unrecognised date %q", value)
}

// FormatDateTime renders an upstream date as a long es-MX date with time,
// e.g. "2 de noviembre de 2026, 09:00". Unparseable input is returned as is.
func FormatDateTime(value string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t, err := ParseDateTime(value, loc)
	if err != nil {
		return value
	}
	t = t.In(loc)
	return fmt.Sprintf("%d de %s de %d, %02d:%02d", t.Day(), spanishMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// DateBounds returns the selectable date window: from tomorrow up to three
// months ahead, as "YYYY-MM-DD".
func DateBounds(now time.Time, loc *time.Location) (minDate, maxDate string) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	return now.AddDate(0, 0, 1).Format(DateLayout), now.AddDate(0, 3, 0).Format(DateLayout)
}

// LoadLocation resolves the display timezone, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
