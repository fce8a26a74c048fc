package values

import (
	"fmt"
	"strings"
	"time"
)

// Datetime holds a calendar date, a wall-clock time, or both.
type Datetime struct {
	Year, Month, Day     int
	Hour, Minute, Second int
	HasDate, HasTime     bool
}

func DateFromYMD(year, month, day int) (Datetime, bool) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return Datetime{}, false
	}
	return Datetime{Year: year, Month: month, Day: day, HasDate: true}, true
}

func DateFromTime(t time.Time) Datetime {
	return Datetime{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), HasDate: true}
}

// Time converts to a UTC time. A missing date part yields year 1.
func (d Datetime) Time() time.Time {
	y, m, day := 1, 1, 1
	if d.HasDate {
		y, m, day = d.Year, d.Month, d.Day
	}
	return time.Date(y, time.Month(m), day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

// Format expands [year], [month], [day], [hour], [minute] and [second].
func (d Datetime) Format(pattern string) string {
	r := strings.NewReplacer(
		"[year]", fmt.Sprintf("%04d", d.Year),
		"[month]", fmt.Sprintf("%02d", d.Month),
		"[day]", fmt.Sprintf("%02d", d.Day),
		"[hour]", fmt.Sprintf("%02d", d.Hour),
		"[minute]", fmt.Sprintf("%02d", d.Minute),
		"[second]", fmt.Sprintf("%02d", d.Second),
	)
	return r.Replace(pattern)
}

func (d Datetime) Display() string {
	switch {
	case d.HasDate && d.HasTime:
		return d.Format("[year]-[month]-[day] [hour]:[minute]:[second]")
	case d.HasTime:
		return d.Format("[hour]:[minute]:[second]")
	}
	return d.Format("[year]-[month]-[day]")
}

func (d Datetime) Repr() string {
	var parts []string
	if d.HasDate {
		parts = append(parts,
			fmt.Sprintf("year: %d", d.Year),
			fmt.Sprintf("month: %d", d.Month),
			fmt.Sprintf("day: %d", d.Day),
		)
	}
	if d.HasTime {
		parts = append(parts,
			fmt.Sprintf("hour: %d", d.Hour),
			fmt.Sprintf("minute: %d", d.Minute),
			fmt.Sprintf("second: %d", d.Second),
		)
	}
	return "datetime(" + strings.Join(parts, ", ") + ")"
}
