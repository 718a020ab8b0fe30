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
	"testing"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

func TestCanonicalCoord(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"lat", CoordLat},
		{"Lat", CoordLat},
		{"nav_lat", CoordLat},
		{"latitude", CoordLat},
		{"LON", CoordLon},
		{"lon_bnds", CoordLon},
		{"time", CoordTime},
		{"time_bnds", CoordTime},
		{"valid_time", CoordTime},
	}
	for _, test := range tests {
		got, err := canonicalCoord(test.name)
		if err != nil {
			t.Errorf("canonicalCoord(%q): %v", test.name, err)
		} else if got != test.want {
			t.Errorf("canonicalCoord(%q) = %q; want %q", test.name, got, test.want)
		}
	}
	if _, err := canonicalCoord("x"); err == nil {
		t.Error("canonicalCoord(\"x\"): expected error")
	}
}

func TestCelsiusOffset(t *testing.T) {
	tests := []struct {
		units string
		want  float64
	}{
		{"K", 273.15},
		{"kelvin", 273.15},
		{"degC", 0},
		{"degrees_Celsius", 0},
	}
	for _, test := range tests {
		got, err := celsiusOffset(test.units)
		if err != nil {
			t.Errorf("celsiusOffset(%q): %v", test.units, err)
		} else if got != test.want {
			t.Errorf("celsiusOffset(%q) = %g; want %g", test.units, got, test.want)
		}
	}
	for _, units := range []string{"", "m s-1", "k"} {
		if _, err := celsiusOffset(units); err == nil {
			t.Errorf("celsiusOffset(%q): expected error", units)
		}
	}
}

func TestAlignToCelsius(t *testing.T) {
	const tolerance = 1.0e-10

	f := testField("t2m", []float64{0, 10}, []float64{0, 90},
		[]float64{273.15, 283.15, 303.15, 274.15})
	f.Units = "K"

	out, err := Align(f, AlignOptions{ToCelsius: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.Units != "degC" {
		t.Errorf("units = %q; want degC", out.Units)
	}
	want := []float64{0, 10, 30, 1}
	for i, w := range want {
		if h := out.Data.Elements[i]; h != w && different(h, w, tolerance) {
			t.Errorf("element %d = %g; want %g", i, h, w)
		}
	}
	if f.Data.Elements[0] != 273.15 || f.Units != "K" {
		t.Error("Align modified its input")
	}

	// Converting a second time must change nothing.
	out2, err := Align(out, AlignOptions{ToCelsius: true})
	if err != nil {
		t.Fatal(err)
	}
	for i, w := range out.Data.Elements {
		if out2.Data.Elements[i] != w {
			t.Errorf("second conversion changed element %d from %g to %g", i, w, out2.Data.Elements[i])
		}
	}
}

func TestAlignUnknownUnits(t *testing.T) {
	f := testField("t2m", []float64{0}, []float64{0}, []float64{1})
	f.Units = "m s-1"
	if _, err := Align(f, AlignOptions{ToCelsius: true}); err == nil {
		t.Error("expected error for unconvertible units")
	}
}

func TestAlignShiftLongitude(t *testing.T) {
	f := testField("t2m", []float64{0, 10}, []float64{0, 90, 180, 270},
		[]float64{
			1, 2, 3, 4,
			5, 6, 7, 8,
		})

	out, err := Align(f, AlignOptions{ShiftLongitude: true})
	if err != nil {
		t.Fatal(err)
	}
	wantLon := []float64{-180, -90, 0, 90}
	if !floats.Equal(out.Lon, wantLon) {
		t.Fatalf("longitude = %v; want %v", out.Lon, wantLon)
	}
	want := []float64{
		3, 4, 1, 2,
		7, 8, 5, 6,
	}
	for i, w := range want {
		if out.Data.Elements[i] != w {
			t.Errorf("element %d = %g; want %g", i, out.Data.Elements[i], w)
		}
	}
	if f.Lon[0] != 0 || f.Data.Elements[0] != 1 {
		t.Error("Align modified its input")
	}

	// A grid already on the -180 to 180 convention passes through
	// unchanged.
	out2, err := Align(out, AlignOptions{ShiftLongitude: true})
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(out2.Lon, wantLon) {
		t.Errorf("second shift changed longitude to %v", out2.Lon)
	}
	for i, w := range want {
		if out2.Data.Elements[i] != w {
			t.Errorf("second shift changed element %d from %g to %g", i, w, out2.Data.Elements[i])
		}
	}
}

func TestAlignShiftLongitude3D(t *testing.T) {
	axis, err := NewTimeAxis([]float64{0, 1}, "days since 2000-01-01", "noleap")
	if err != nil {
		t.Fatal(err)
	}
	d := sparse.ZerosDense(2, 2, 4)
	for i := range d.Elements {
		d.Elements[i] = float64(i)
	}
	f := &Field{
		Name: "t2m", Units: "degC",
		Lat: []float64{0, 10}, Lon: []float64{0, 90, 180, 270},
		Time: axis, Data: d,
	}

	out, err := Align(f, AlignOptions{ShiftLongitude: true})
	if err != nil {
		t.Fatal(err)
	}
	perm := []int{2, 3, 0, 1}
	for r := 0; r < 4; r++ { // 2 time steps x 2 rows
		for i, p := range perm {
			want := float64(r*4 + p)
			if got := out.Data.Elements[r*4+i]; got != want {
				t.Errorf("row %d element %d = %g; want %g", r, i, got, want)
			}
		}
	}
}

func TestNormalizeLat(t *testing.T) {
	f := testField("t2m", []float64{20, 10, 0}, []float64{0, 90},
		[]float64{
			1, 2,
			3, 4,
			5, 6,
		})
	normalizeLat(f)
	if !floats.Equal(f.Lat, []float64{0, 10, 20}) {
		t.Fatalf("latitude = %v; want ascending", f.Lat)
	}
	want := []float64{
		5, 6,
		3, 4,
		1, 2,
	}
	for i, w := range want {
		if f.Data.Elements[i] != w {
			t.Errorf("element %d = %g; want %g", i, f.Data.Elements[i], w)
		}
	}

	// An ascending grid is left alone.
	normalizeLat(f)
	if !floats.Equal(f.Lat, []float64{0, 10, 20}) || f.Data.Elements[0] != 5 {
		t.Error("normalizeLat changed an ascending grid")
	}
}

func TestNormalizeLat3D(t *testing.T) {
	axis, err := NewTimeAxis([]float64{0, 1}, "days since 2000-01-01", "noleap")
	if err != nil {
		t.Fatal(err)
	}
	d := sparse.ZerosDense(2, 3, 2)
	for i := range d.Elements {
		d.Elements[i] = float64(i)
	}
	f := &Field{
		Name: "t2m", Units: "K",
		Lat: []float64{20, 10, 0}, Lon: []float64{0, 90},
		Time: axis, Data: d,
	}
	normalizeLat(f)
	want := []float64{
		4, 5, 2, 3, 0, 1, // time step 0, rows reversed
		10, 11, 8, 9, 6, 7, // time step 1
	}
	for i, w := range want {
		if f.Data.Elements[i] != w {
			t.Errorf("element %d = %g; want %g", i, f.Data.Elements[i], w)
		}
	}
}
