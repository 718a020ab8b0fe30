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

package regions

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"
)

// Names reads a region-name lookup table, mapping region identifiers
// to human-readable names. The table must have a header row, region
// identifiers in its first column, and the names in a column headed
// "Region". Comma-separated (.csv) and Excel (.xlsx) files are
// supported.
func Names(filename string) (map[int]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return namesFromCSV(filename)
	case ".xlsx":
		return namesFromXLSX(filename)
	}
	return nil, fmt.Errorf("regions: region name table %s: unsupported file type", filename)
}

func namesFromCSV(filename string) (map[int]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("regions: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("regions: reading %s: %v", filename, err)
	}
	return namesFromRows(filename, rows)
}

func namesFromXLSX(filename string) (map[int]string, error) {
	f, err := xlsx.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("regions: opening %s: %v", filename, err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("regions: region name table %s has no sheets", filename)
	}
	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		// Skip blank rows.
		if len(row.Cells) == 0 {
			continue
		}
		r := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			r[i] = c.Value
		}
		rows = append(rows, r)
	}
	return namesFromRows(filename, rows)
}

func namesFromRows(filename string, rows [][]string) (map[int]string, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("regions: region name table %s is empty", filename)
	}
	nameCol := -1
	for i, h := range rows[0] {
		if strings.TrimSpace(h) == "Region" {
			nameCol = i
		}
	}
	if nameCol < 1 {
		return nil, fmt.Errorf("regions: region name table %s has no Region column", filename)
	}
	o := make(map[int]string, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= nameCol {
			return nil, fmt.Errorf("regions: region name table %s: row %v has no name", filename, row)
		}
		// Region identifiers may be written as floats, e.g. "11.0".
		id, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil || id != math.Trunc(id) {
			return nil, fmt.Errorf("regions: region name table %s: invalid region id %q", filename, row[0])
		}
		o[int(id)] = strings.TrimSpace(row[nameCol])
	}
	return o, nil
}
