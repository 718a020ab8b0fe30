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

	"github.com/ctessum/sparse"
)

// Canonical coordinate names, following the ERA5 convention. Input files
// that name their coordinates differently have them renamed to these
// when they are read.
const (
	CoordLat  = "latitude"
	CoordLon  = "longitude"
	CoordTime = "valid_time"
)

// coordSynonyms maps the coordinate names used by the various modeling
// groups to their canonical equivalents.
var coordSynonyms = map[string]string{
	CoordLat: CoordLat, "lat": CoordLat, "Lat": CoordLat, "LAT": CoordLat,
	"nav_lat": CoordLat, "lat_bnds": CoordLat,
	CoordLon: CoordLon, "lon": CoordLon, "Lon": CoordLon, "LON": CoordLon,
	"nav_lon": CoordLon, "lon_bnds": CoordLon,
	CoordTime: CoordTime, "time": CoordTime, "Time": CoordTime, "time_bnds": CoordTime,
}

// canonicalCoord returns the canonical name for the given coordinate
// name, or an error if the name is not recognized.
func canonicalCoord(name string) (string, error) {
	if c, ok := coordSynonyms[name]; ok {
		return c, nil
	}
	return "", fmt.Errorf("climext: unrecognized coordinate name %q", name)
}

// AlignOptions specify the transformations that Align applies.
type AlignOptions struct {
	// ToCelsius converts the values to degrees Celsius. The conversion
	// is driven by the units attribute: Kelvin data has 273.15
	// subtracted, data already in Celsius is left alone, and anything
	// else is an error.
	ToCelsius bool

	// ShiftLongitude moves longitudes from the 0 to 360 degree
	// convention to -180 to 180 and re-sorts the columns to keep the
	// coordinate ascending.
	ShiftLongitude bool
}

// Align returns a copy of f with the requested transformations applied.
// The input is not modified. Applying Align twice with the same options
// gives the same result as applying it once.
func Align(f *Field, o AlignOptions) (*Field, error) {
	out := f.Copy()
	if o.ToCelsius {
		if err := toCelsius(out); err != nil {
			return nil, err
		}
	}
	if o.ShiftLongitude {
		shiftLongitude(out)
	}
	return out, nil
}

// kelvinUnits and celsiusUnits hold the units attribute spellings in use
// across the CMIP and reanalysis archives.
var (
	kelvinUnits  = map[string]bool{"K": true, "Kelvin": true, "kelvin": true}
	celsiusUnits = map[string]bool{"degC": true, "C": true, "celsius": true,
		"Celsius": true, "degrees_Celsius": true, "deg_C": true}
)

// celsiusOffset returns the amount to subtract from values carrying the
// given units attribute to obtain degrees Celsius.
func celsiusOffset(units string) (float64, error) {
	if kelvinUnits[units] {
		return 273.15, nil
	}
	if celsiusUnits[units] {
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert units %q to Celsius", units)
}

func toCelsius(f *Field) error {
	offset, err := celsiusOffset(f.Units)
	if err != nil {
		return fmt.Errorf("climext: variable %s: %v", f.Name, err)
	}
	if offset != 0 {
		for i, v := range f.Data.Elements {
			f.Data.Elements[i] = v - offset
		}
	}
	f.Units = "degC"
	return nil
}

// normalizeLat flips the latitude coordinate and the data rows when the
// file stores latitude in descending order, as the ERA5 archive does.
func normalizeLat(f *Field) {
	ny := len(f.Lat)
	if ny < 2 || f.Lat[0] < f.Lat[ny-1] {
		return
	}
	for i, j := 0, ny-1; i < j; i, j = i+1, j-1 {
		f.Lat[i], f.Lat[j] = f.Lat[j], f.Lat[i]
	}
	nx := len(f.Lon)
	nt := 1
	if f.Time != nil {
		nt = f.Time.Len()
	}
	for t := 0; t < nt; t++ {
		base := t * ny * nx
		for i, j := 0, ny-1; i < j; i, j = i+1, j-1 {
			ri, rj := base+i*nx, base+j*nx
			for k := 0; k < nx; k++ {
				f.Data.Elements[ri+k], f.Data.Elements[rj+k] = f.Data.Elements[rj+k], f.Data.Elements[ri+k]
			}
		}
	}
}

// shiftLongitude wraps longitudes into [-180, 180) and permutes the
// data columns so the coordinate stays ascending. Data already on the
// -180 to 180 convention comes through unchanged.
func shiftLongitude(f *Field) {
	nx := len(f.Lon)
	shifted := make([]float64, nx)
	for i, v := range f.Lon {
		shifted[i] = math.Mod(math.Mod(v+180, 360)+360, 360) - 180
	}
	perm := make([]int, nx)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return shifted[perm[a]] < shifted[perm[b]] })

	identity := true
	for i, p := range perm {
		if p != i {
			identity = false
			break
		}
	}

	lon := make([]float64, nx)
	for i, p := range perm {
		lon[i] = shifted[p]
	}
	f.Lon = lon
	if identity {
		return
	}

	out := sparse.ZerosDense(f.Data.Shape...)
	ncols := nx
	nrows := len(f.Data.Elements) / ncols
	for r := 0; r < nrows; r++ {
		base := r * ncols
		for i, p := range perm {
			out.Elements[base+i] = f.Data.Elements[base+p]
		}
	}
	f.Data = out
}
