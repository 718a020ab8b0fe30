/*
Copyright © 2025 the ClimExt authors.
This file is part of ClimExt.

ClimExt is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ClimExt is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ClimExt.  If not, see <http://www.gnu.org/licenses/>.
*/

package climext

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeAxis is a decoded CF-convention time coordinate. Climate model
// output uses several calendars; the fixed-length ones (360_day, noleap,
// all_leap) cannot be represented with time.Time, so year lookups are
// done with calendar-specific day arithmetic instead.
type TimeAxis struct {
	// Values are the raw time offsets as stored in the file.
	Values []float64
	// Units is the CF units attribute, e.g. "days since 1850-01-01".
	Units string
	// Calendar is the CF calendar attribute; empty means standard.
	Calendar string

	perDay    float64   // stored units per day: 1 for days, 24 for hours
	epoch     time.Time // epoch for standard calendars
	epochYear int       // epoch year for fixed-length calendars and annual units
	epochDay  int       // day of year of the epoch (1-based) for fixed-length calendars
	daysInYr  int       // days per year for fixed-length calendars, 0 for standard
	yearOnly  bool      // Values count whole years
}

var monthDays = map[int][]int{
	365: {31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	366: {31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	360: {30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
}

// NewTimeAxis decodes a time coordinate from its raw values and its CF
// units and calendar attributes. Units of the form "<interval> since
// <date>" are supported for intervals of years, days, hours, minutes
// and seconds; units of "year" (or an empty units string) mean the
// values are calendar years themselves.
func NewTimeAxis(values []float64, units, calendar string) (*TimeAxis, error) {
	t := &TimeAxis{
		Values:   values,
		Units:    units,
		Calendar: calendar,
	}

	switch strings.ToLower(calendar) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		t.daysInYr = 0
	case "noleap", "365_day":
		t.daysInYr = 365
	case "all_leap", "366_day":
		t.daysInYr = 366
	case "360_day":
		t.daysInYr = 360
	default:
		return nil, fmt.Errorf("climext: unsupported calendar %q", calendar)
	}

	u := strings.TrimSpace(strings.ToLower(units))
	if u == "" || u == "year" || u == "years" {
		t.yearOnly = true
		return t, nil
	}

	parts := strings.SplitN(u, " since ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("climext: unsupported time units %q", units)
	}
	switch strings.TrimSpace(parts[0]) {
	case "days", "day", "d":
		t.perDay = 1
	case "hours", "hour", "hrs", "h":
		t.perDay = 24
	case "minutes", "minute", "min":
		t.perDay = 1440
	case "seconds", "second", "sec", "s":
		t.perDay = 86400
	case "years", "year":
		// Annual data is sometimes written as "years since" an epoch.
		// Only the epoch's year is significant at annual resolution.
		year, _, _, _, err := parseEpoch(parts[1])
		if err != nil {
			return nil, fmt.Errorf("climext: time units %q: %v", units, err)
		}
		t.yearOnly = true
		t.epochYear = year
		return t, nil
	default:
		return nil, fmt.Errorf("climext: unsupported time units %q", units)
	}

	year, month, day, dayFrac, err := parseEpoch(parts[1])
	if err != nil {
		return nil, fmt.Errorf("climext: time units %q: %v", units, err)
	}
	if t.daysInYr == 0 {
		t.epoch = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).
			Add(time.Duration(dayFrac * 24 * float64(time.Hour)))
	} else {
		months := monthDays[t.daysInYr]
		if month < 1 || month > 12 || day < 1 || day > months[month-1] {
			return nil, fmt.Errorf("climext: time units %q: invalid epoch date", units)
		}
		t.epochYear = year
		t.epochDay = day
		for _, m := range months[:month-1] {
			t.epochDay += m
		}
	}
	return t, nil
}

// parseEpoch parses a CF epoch date of the form "YYYY-MM-DD", optionally
// followed by a time of day.
func parseEpoch(s string) (year, month, day int, dayFrac float64, err error) {
	s = strings.TrimSpace(s)
	s = strings.Replace(s, "t", " ", 1)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, 0, 0, fmt.Errorf("missing epoch date")
	}
	if _, err = fmt.Sscanf(fields[0], "%d-%d-%d", &year, &month, &day); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid epoch date %q", fields[0])
	}
	if len(fields) > 1 {
		var h, m int
		var sec float64
		n, _ := fmt.Sscanf(fields[1], "%d:%d:%f", &h, &m, &sec)
		if n < 2 {
			return 0, 0, 0, 0, fmt.Errorf("invalid epoch time %q", fields[1])
		}
		dayFrac = (float64(h)*3600 + float64(m)*60 + sec) / 86400
	}
	return year, month, day, dayFrac, nil
}

// Len returns the number of time steps.
func (t *TimeAxis) Len() int { return len(t.Values) }

// Copy returns a deep copy of t.
func (t *TimeAxis) Copy() *TimeAxis {
	o := *t
	o.Values = append([]float64{}, t.Values...)
	return &o
}

// Year returns the calendar year of time step i.
func (t *TimeAxis) Year(i int) int {
	v := t.Values[i]
	if t.yearOnly {
		return t.epochYear + int(math.Floor(v+0.5))
	}
	if t.daysInYr == 0 {
		// A single multiplication keeps integer offsets exact, so
		// steps falling on a year boundary decode to the right side
		// of it.
		return t.epoch.Add(time.Duration(v * (86400e9 / t.perDay))).Year()
	}
	abs := int(math.Floor(v/t.perDay)) + t.epochDay - 1 // whole days since the start of the epoch year
	return t.epochYear + floorDiv(abs, t.daysInYr)
}

// YearRange returns the index range [start, end) of the time steps
// falling within the given calendar year, and reports whether there are
// any. The time axis is assumed to be sorted, as CF requires.
func (t *TimeAxis) YearRange(year int) (start, end int, ok bool) {
	start = -1
	for i := range t.Values {
		if t.Year(i) == year {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// Nearest returns the index of the time step whose calendar year is
// closest to the given year. Ties go to the earlier step.
func (t *TimeAxis) Nearest(year int) int {
	best, bestDist := 0, -1
	for i := range t.Values {
		d := t.Year(i) - year
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
