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
	"path/filepath"
	"strconv"
	"strings"
)

// ModelRun identifies one climate-projection file, parsed from the
// naming convention used by the ESGF archive:
//
//	<variable>_day_<model>_<scenario>_<variant>_<grid>_<start>-<end>.nc
//
// where start and end are dates of the form YYYYMMDD. Model names may
// contain hyphens but not underscores.
type ModelRun struct {
	Path     string
	Variable string
	Model    string
	Scenario string
	Variant  string
	Grid     string
	// StartYear and EndYear are the years of the file's first and last
	// dates, inclusive.
	StartYear int
	EndYear   int
}

// ParseModelFileName parses the base name of path into a ModelRun. The
// name is validated against the naming convention once, here, so that
// later stages can rely on the descriptor fields.
func ParseModelFileName(path string) (*ModelRun, error) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".nc") {
		return nil, fmt.Errorf("climext: model file %s does not end in .nc", name)
	}
	parts := strings.Split(strings.TrimSuffix(name, ".nc"), "_")
	if len(parts) != 7 {
		return nil, fmt.Errorf("climext: model file name %s does not have the form "+
			"<variable>_day_<model>_<scenario>_<variant>_<grid>_<start>-<end>.nc", name)
	}
	if parts[1] != "day" {
		return nil, fmt.Errorf("climext: model file %s is not from the daily (day) table", name)
	}
	r := &ModelRun{
		Path:     path,
		Variable: parts[0],
		Model:    parts[2],
		Scenario: parts[3],
		Variant:  parts[4],
		Grid:     parts[5],
	}
	for _, p := range []string{r.Variable, r.Model, r.Scenario, r.Variant, r.Grid} {
		if p == "" {
			return nil, fmt.Errorf("climext: model file name %s has an empty field", name)
		}
	}
	if !strings.HasPrefix(r.Variant, "r") {
		return nil, fmt.Errorf("climext: model file %s: %q is not a variant label", name, r.Variant)
	}

	dates := strings.Split(parts[6], "-")
	if len(dates) != 2 {
		return nil, fmt.Errorf("climext: model file %s: %q is not a <start>-<end> date range", name, parts[6])
	}
	var err error
	if r.StartYear, err = dateYear(dates[0]); err != nil {
		return nil, fmt.Errorf("climext: model file %s: %v", name, err)
	}
	if r.EndYear, err = dateYear(dates[1]); err != nil {
		return nil, fmt.Errorf("climext: model file %s: %v", name, err)
	}
	if r.StartYear > r.EndYear {
		return nil, fmt.Errorf("climext: model file %s: date range is inverted", name)
	}
	return r, nil
}

// dateYear extracts the year from a YYYYMMDD date.
func dateYear(s string) (int, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("%q is not a YYYYMMDD date", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%q is not a YYYYMMDD date", s)
		}
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0, fmt.Errorf("%q is not a YYYYMMDD date", s)
	}
	return y, nil
}

// CoversYear reports whether the file's date range includes any part of
// the given year.
func (r *ModelRun) CoversYear(year int) bool {
	return year >= r.StartYear && year <= r.EndYear
}
