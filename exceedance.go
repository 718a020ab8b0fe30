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
	"errors"
	"fmt"

	"github.com/ctessum/sparse"
)

// ErrYearOutsideRun reports that a requested year is not covered by a
// model run's date range. Callers iterating over a directory of runs
// treat it as a signal to skip the year for that run rather than fail.
var ErrYearOutsideRun = errors.New("climext: year outside model run date range")

// ModelData is an open climate-projection file together with its parsed
// ModelRun descriptor and decoded time axis. Lat and Lon are the
// aligned grid coordinates: latitude ascending and longitude on the
// -180 to 180 convention, matching the layers returned by Layer.
type ModelData struct {
	Run   *ModelRun
	Units string
	Time  *TimeAxis
	Lat   []float64
	Lon   []float64

	ds   *Dataset
	info *varInfo
}

// OpenModelRun parses the name of the file at path, opens it, and
// decodes its time axis. The variable named in the file name must be
// present with dimensions (time, latitude, longitude).
func OpenModelRun(path string) (*ModelData, error) {
	run, err := ParseModelFileName(path)
	if err != nil {
		return nil, err
	}
	ds, err := OpenDataset(path)
	if err != nil {
		return nil, err
	}
	md := &ModelData{Run: run, ds: ds}
	if md.info, err = ds.varInfo(run.Variable); err != nil {
		ds.Close()
		return nil, err
	}
	if !md.info.hasTime {
		ds.Close()
		return nil, fmt.Errorf("climext: variable %s in %s has no time dimension", run.Variable, path)
	}
	md.Units = attrString(ds.cf.Header, run.Variable, "units")
	if md.Time, err = ds.timeAxis(md.info.dims[0], md.info.lens[0]); err != nil {
		ds.Close()
		return nil, err
	}
	if md.Time.Len() == 0 {
		ds.Close()
		return nil, fmt.Errorf("climext: %s has an empty time axis", path)
	}

	// The aligned grid coordinates come from aligning the first layer.
	l0, err := md.Layer(0)
	if err != nil {
		ds.Close()
		return nil, err
	}
	md.Lat, md.Lon = l0.Lat, l0.Lon
	return md, nil
}

// Close closes the underlying file.
func (m *ModelData) Close() error { return m.ds.Close() }

// Layer reads the two-dimensional layer at time index t, aligned to
// ascending latitude and -180 to 180 longitude. Values keep the file's
// units.
func (m *ModelData) Layer(t int) (*Field, error) {
	l, err := m.ds.ReadLayer(m.Run.Variable, t)
	if err != nil {
		return nil, err
	}
	return Align(l, AlignOptions{ShiftLongitude: true})
}

// ExceedanceCount counts, for each grid cell, the days of the given
// year on which the model value strictly exceeds the threshold. The
// threshold field is converted to Celsius and regridded onto the model
// grid with bilinear interpolation before comparison; when the grids
// already coincide the threshold values are used unchanged. Comparisons
// against NaN never count, so cells the model or the regridded
// threshold leave undefined report zero days.
//
// If the run's date range does not include year, ErrYearOutsideRun is
// returned. A file whose name promises the year but whose time axis
// does not contain it is malformed, which is an error.
func ExceedanceCount(md *ModelData, threshold *Field, year int) (*IntField, error) {
	if !md.Run.CoversYear(year) {
		return nil, ErrYearOutsideRun
	}
	i0, i1, ok := md.Time.YearRange(year)
	if !ok {
		return nil, fmt.Errorf("climext: %s names years %d-%d but its time axis has no days in %d",
			md.Run.Path, md.Run.StartYear, md.Run.EndYear, year)
	}

	offset, err := celsiusOffset(md.Units)
	if err != nil {
		return nil, fmt.Errorf("climext: variable %s in %s: %v", md.Run.Variable, md.Run.Path, err)
	}

	thr, err := Align(threshold, AlignOptions{ToCelsius: true, ShiftLongitude: true})
	if err != nil {
		return nil, err
	}
	thrGrid, err := Interpolate(thr, md.Lat, md.Lon)
	if err != nil {
		return nil, err
	}

	counts := sparse.ZerosDenseInt(len(md.Lat), len(md.Lon))
	for t := i0; t < i1; t++ {
		layer, err := md.Layer(t)
		if err != nil {
			return nil, err
		}
		for i, v := range layer.Data.Elements {
			if v-offset > thrGrid.Data.Elements[i] {
				counts.Elements[i]++
			}
		}
	}
	return &IntField{
		Name: "exceedance_days",
		Lat:  md.Lat,
		Lon:  md.Lon,
		Data: counts,
	}, nil
}
