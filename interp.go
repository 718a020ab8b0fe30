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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Interpolate regrids the two-dimensional field f onto the given
// latitude and longitude coordinates using bilinear interpolation.
// Target cells outside the source extent become NaN. When the target
// coordinates exactly equal the source coordinates the data is returned
// unchanged. The source and target extents must overlap.
func Interpolate(f *Field, lat, lon []float64) (*Field, error) {
	out, done, err := interpSetup(f, lat, lon)
	if done || err != nil {
		return out, err
	}

	jj, wy := bracketAll(f.Lat, lat)
	ii, wx := bracketAll(f.Lon, lon)
	for j := range lat {
		for i := range lon {
			if jj[j] < 0 || ii[i] < 0 {
				out.Data.Set(math.NaN(), j, i)
				continue
			}
			v := lerp(
				lerp(f.Data.Get(jj[j], ii[i]), jx(f, jj[j], ii[i], 0, 1), wx[i]),
				lerp(jx(f, jj[j], ii[i], 1, 0), jx(f, jj[j], ii[i], 1, 1), wx[i]),
				wy[j])
			out.Data.Set(v, j, i)
		}
	}
	return out, nil
}

// jx returns the source value offset from (j, i), clipping at the grid
// edge so exact hits on the last row or column stay in range.
func jx(f *Field, j, i, dj, di int) float64 {
	if j+dj > len(f.Lat)-1 {
		dj = 0
	}
	if i+di > len(f.Lon)-1 {
		di = 0
	}
	return f.Data.Get(j+dj, i+di)
}

// lerp interpolates between a and b. A zero or unit weight returns the
// corresponding endpoint exactly, so a NaN at the opposite endpoint does
// not leak into cells that fall exactly on a source row or column.
func lerp(a, b, w float64) float64 {
	if w == 0 {
		return a
	}
	if w == 1 {
		return b
	}
	return a + w*(b-a)
}

// InterpolateNearest regrids the two-dimensional field f onto the given
// coordinates, assigning each target cell the value of the nearest
// source cell. Target cells outside the source extent become NaN.
// Categorical fields such as region masks should use this instead of
// Interpolate so that no new category values are invented.
func InterpolateNearest(f *Field, lat, lon []float64) (*Field, error) {
	out, done, err := interpSetup(f, lat, lon)
	if done || err != nil {
		return out, err
	}

	jj := nearestAll(f.Lat, lat)
	ii := nearestAll(f.Lon, lon)
	for j := range lat {
		for i := range lon {
			if jj[j] < 0 || ii[i] < 0 {
				out.Data.Set(math.NaN(), j, i)
				continue
			}
			out.Data.Set(f.Data.Get(jj[j], ii[i]), j, i)
		}
	}
	return out, nil
}

// interpSetup validates the source field and target coordinates and
// prepares the output field. If the target grid equals the source grid,
// done is true and out is a copy of the input.
func interpSetup(f *Field, lat, lon []float64) (out *Field, done bool, err error) {
	if f.Time != nil {
		return nil, false, fmt.Errorf("climext: cannot interpolate variable %s while it has a time axis", f.Name)
	}
	if err := f.Check(); err != nil {
		return nil, false, err
	}
	for _, c := range []struct {
		name string
		v    []float64
	}{{CoordLat, f.Lat}, {CoordLon, f.Lon}, {CoordLat, lat}, {CoordLon, lon}} {
		if err := checkAscending(c.name, c.v); err != nil {
			return nil, false, err
		}
	}

	if floats.Equal(f.Lat, lat) && floats.Equal(f.Lon, lon) {
		return f.Copy(), true, nil
	}

	target := &geom.Bounds{
		Min: geom.Point{X: lon[0], Y: lat[0]},
		Max: geom.Point{X: lon[len(lon)-1], Y: lat[len(lat)-1]},
	}
	if !f.Bounds().Overlaps(target) {
		return nil, false, fmt.Errorf("climext: variable %s: source grid %+v does not overlap target grid %+v",
			f.Name, f.Bounds(), target)
	}

	out = &Field{
		Name:  f.Name,
		Units: f.Units,
		Lat:   append([]float64{}, lat...),
		Lon:   append([]float64{}, lon...),
		Data:  sparse.ZerosDense(len(lat), len(lon)),
	}
	return out, false, nil
}

// bracketAll locates each target coordinate between two source
// coordinates, returning the lower index and the interpolation weight.
// Indices are -1 for targets outside the source range.
func bracketAll(src, dst []float64) (idx []int, w []float64) {
	idx = make([]int, len(dst))
	w = make([]float64, len(dst))
	for k, x := range dst {
		idx[k], w[k] = bracket(src, x)
	}
	return idx, w
}

func bracket(c []float64, x float64) (int, float64) {
	n := len(c)
	if math.IsNaN(x) || x < c[0] || x > c[n-1] {
		return -1, 0
	}
	i := sort.SearchFloat64s(c, x)
	if i == 0 {
		return 0, 0
	}
	return i - 1, (x - c[i-1]) / (c[i] - c[i-1])
}

// nearestAll finds the index of the source coordinate nearest to each
// target coordinate, or -1 for targets outside the source range.
func nearestAll(src, dst []float64) []int {
	idx := make([]int, len(dst))
	for k, x := range dst {
		idx[k] = nearest(src, x)
	}
	return idx
}

func nearest(c []float64, x float64) int {
	j, w := bracket(c, x)
	if j < 0 {
		return -1
	}
	if w > 0.5 {
		return j + 1
	}
	return j
}
