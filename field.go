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

// Package climext calculates climate-hazard indices from gridded climate
// model output. It computes percentile thresholds from a historical
// reanalysis archive, processing the data in latitude bands to bound
// memory use, and counts the days in climate-projection files that exceed
// those thresholds, for subsequent aggregation into population-weighted
// regional statistics.
package climext

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Version gives this version of ClimExt.
const Version = "0.1.0"

// Field holds one variable on a regular latitude-longitude grid.
// Lat and Lon hold cell-center coordinates in degrees, sorted ascending
// after alignment. Data is arranged as (time, latitude, longitude) when
// Time is non-nil and (latitude, longitude) otherwise.
type Field struct {
	Name  string
	Units string
	Lat   []float64
	Lon   []float64
	Time  *TimeAxis
	Data  *sparse.DenseArray
}

// Check returns an error if the data dimensions do not match the
// coordinate vectors.
func (f *Field) Check() error {
	want := []int{len(f.Lat), len(f.Lon)}
	if f.Time != nil {
		want = append([]int{f.Time.Len()}, want...)
	}
	if len(f.Data.Shape) != len(want) {
		return fmt.Errorf("climext: variable %s has %d dimensions but %d coordinate vectors",
			f.Name, len(f.Data.Shape), len(want))
	}
	for i, n := range want {
		if f.Data.Shape[i] != n {
			return fmt.Errorf("climext: variable %s: dimension %d has length %d but its coordinate has length %d",
				f.Name, i, f.Data.Shape[i], n)
		}
	}
	return nil
}

// Bounds returns the horizontal extent of the grid.
func (f *Field) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: f.Lon[0], Y: f.Lat[0]},
		Max: geom.Point{X: f.Lon[len(f.Lon)-1], Y: f.Lat[len(f.Lat)-1]},
	}
}

// Copy returns a deep copy of f.
func (f *Field) Copy() *Field {
	o := &Field{
		Name:  f.Name,
		Units: f.Units,
		Lat:   append([]float64{}, f.Lat...),
		Lon:   append([]float64{}, f.Lon...),
		Data:  f.Data.Copy(),
	}
	if f.Time != nil {
		o.Time = f.Time.Copy()
	}
	return o
}

// SameGrid reports whether f and o share exactly the same horizontal
// coordinates.
func (f *Field) SameGrid(o *Field) bool {
	return floats.Equal(f.Lat, o.Lat) && floats.Equal(f.Lon, o.Lon)
}

// Layer returns the two-dimensional field at time index i.
func (f *Field) Layer(i int) (*Field, error) {
	if f.Time == nil {
		return nil, fmt.Errorf("climext: variable %s has no time axis to take a layer from", f.Name)
	}
	if i < 0 || i >= f.Time.Len() {
		return nil, fmt.Errorf("climext: time index %d out of range for variable %s (%d steps)",
			i, f.Name, f.Time.Len())
	}
	ny, nx := len(f.Lat), len(f.Lon)
	return &Field{
		Name:  f.Name,
		Units: f.Units,
		Lat:   f.Lat,
		Lon:   f.Lon,
		Data:  f.Data.Subset([]int{i, 0, 0}, []int{i, ny - 1, nx - 1}),
	}, nil
}

// IntField holds integer values, such as day counts, on a regular
// latitude-longitude grid.
type IntField struct {
	Name string
	Lat  []float64
	Lon  []float64
	Data *sparse.DenseArrayInt
}

// Float converts f to a floating-point field.
func (f *IntField) Float() *Field {
	d := sparse.ZerosDense(f.Data.Shape...)
	for i, v := range f.Data.Elements {
		d.Elements[i] = float64(v)
	}
	return &Field{
		Name: f.Name,
		Lat:  append([]float64{}, f.Lat...),
		Lon:  append([]float64{}, f.Lon...),
		Data: d,
	}
}

// checkAscending returns an error if the given coordinate vector is
// empty or not strictly increasing.
func checkAscending(name string, c []float64) error {
	if len(c) == 0 {
		return fmt.Errorf("climext: coordinate %s is empty", name)
	}
	for i := 1; i < len(c); i++ {
		if c[i] <= c[i-1] || math.IsNaN(c[i]) {
			return fmt.Errorf("climext: coordinate %s is not strictly increasing at index %d", name, i)
		}
	}
	return nil
}
