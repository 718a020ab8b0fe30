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

package ensemble

import (
	"encoding/csv"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spatialmodel/climext/regions"
)

// columnName builds a summary column name such as
// "2030_ssp585_model-mean". Output quantities other than the default
// day count keep their name in the column, such as
// "2030_ssp585_exposure_model-mean".
func columnName(output string, g GroupKey, std bool) string {
	suffix := "model-mean"
	if std {
		suffix = "model-std"
	}
	if output == regions.VarExceedanceDays {
		return g.Label() + "_" + suffix
	}
	return g.Label() + "_" + output + "_" + suffix
}

// WriteCSV writes the summary as a CSV table joined with the given
// region names. The header holds IMAGE_region and Region followed by
// the across-model mean columns and then the standard-deviation
// columns, with groups ordered as in the summary. There is one row per
// entry of names, in identifier order; regions with results but no
// name are left out, and cells with no data are empty. The file is
// staged in a temporary file that is renamed into place on success.
func (s *Summary) WriteCSV(path string, names map[int]string) error {
	ids := make([]int, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	type colRef struct {
		output string
		group  GroupKey
		std    bool
	}
	header := []string{"IMAGE_region", "Region"}
	var cols []colRef
	for _, std := range []bool{false, true} {
		for _, output := range s.outputs {
			for _, g := range s.groups {
				cols = append(cols, colRef{output: output, group: g, std: std})
				header = append(header, columnName(output, g, std))
			}
		}
	}

	records := [][]string{header}
	for _, id := range ids {
		rec := []string{strconv.Itoa(id), names[id]}
		for _, c := range cols {
			var v float64
			var ok bool
			if c.std {
				v, ok = s.Std(c.output, c.group, id)
			} else {
				v, ok = s.Mean(c.output, c.group, id)
			}
			if !ok || math.IsNaN(v) {
				rec = append(rec, "")
			} else {
				rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
		records = append(records, rec)
	}

	w, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return fmt.Errorf("ensemble: %v", err)
	}
	tmp := w.Name()
	if err := csv.NewWriter(w).WriteAll(records); err != nil {
		w.Close()
		os.Remove(tmp)
		return fmt.Errorf("ensemble: writing %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ensemble: writing %s: %v", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ensemble: %v", err)
	}
	return nil
}
