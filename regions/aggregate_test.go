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
	"math"
	"testing"

	"github.com/ctessum/sparse"

	"github.com/spatialmodel/climext"
)

// aggField builds a two-dimensional field on the given grid.
func aggField(name string, lat, lon, vals []float64) *climext.Field {
	d := sparse.ZerosDense(len(lat), len(lon))
	copy(d.Elements, vals)
	return &climext.Field{Name: name, Lat: lat, Lon: lon, Data: d}
}

func TestAggregate(t *testing.T) {
	lat, lon := []float64{0}, []float64{0, 10}
	index := aggField("exceedance_days", lat, lon, []float64{5, 15})
	pop := aggField("GPOP", lat, lon, []float64{10, 30})
	mask := aggField("GREG", lat, lon, []float64{7, 7})

	got, err := Aggregate(index, pop, mask)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d regions; want 1", len(got))
	}
	r, ok := got[7]
	if !ok {
		t.Fatal("region 7 missing from the result")
	}
	if want := 12.5; r.WeightedMean != want {
		t.Errorf("weighted mean is %g; want %g", r.WeightedMean, want)
	}
	if want := 40.0; r.Population != want {
		t.Errorf("population is %g; want %g", r.Population, want)
	}
	if r.Cells != 2 {
		t.Errorf("cell count is %d; want 2", r.Cells)
	}
}

func TestAggregateSkipsCells(t *testing.T) {
	nan := math.NaN()
	lat, lon := []float64{0, 10}, []float64{0, 10}
	index := aggField("exceedance_days", lat, lon, []float64{3, 8, 7, nan})
	pop := aggField("GPOP", lat, lon, []float64{10, 999, nan, 50})
	mask := aggField("GREG", lat, lon, []float64{1, nan, 1, 2})

	got, err := Aggregate(index, pop, mask)
	if err != nil {
		t.Fatal(err)
	}
	// The unassigned cell and the NaN-population cell are dropped, so
	// region 1 keeps one cell; region 2's only cell has a NaN index
	// value, leaving it with no contributing cells at all.
	if len(got) != 1 {
		t.Fatalf("got %d regions (%v); want 1", len(got), got)
	}
	r := got[1]
	if r.WeightedMean != 3 || r.Population != 10 || r.Cells != 1 {
		t.Errorf("region 1 is %+v; want mean 3, population 10, 1 cell", r)
	}
}

func TestAggregateZeroPopulation(t *testing.T) {
	lat, lon := []float64{0}, []float64{0, 10}
	index := aggField("exceedance_days", lat, lon, []float64{5, 9})
	pop := aggField("GPOP", lat, lon, []float64{0, 0})
	mask := aggField("GREG", lat, lon, []float64{3, 3})

	got, err := Aggregate(index, pop, mask)
	if err != nil {
		t.Fatal(err)
	}
	r := got[3]
	if !math.IsNaN(r.WeightedMean) {
		t.Errorf("weighted mean of a zero-population region is %g; want NaN", r.WeightedMean)
	}
	if r.Population != 0 || r.Cells != 2 {
		t.Errorf("region 3 is %+v; want population 0 over 2 cells", r)
	}
}

func TestAggregateErrors(t *testing.T) {
	lat, lon := []float64{0}, []float64{0, 10}
	index := aggField("exceedance_days", lat, lon, []float64{5, 15})
	pop := aggField("GPOP", lat, lon, []float64{10, 30})
	mask := aggField("GREG", lat, []float64{0, 20}, []float64{7, 7})
	if _, err := Aggregate(index, pop, mask); err == nil {
		t.Error("expected an error for mismatched grids")
	}

	axis, err := climext.NewTimeAxis([]float64{2000}, "years", "")
	if err != nil {
		t.Fatal(err)
	}
	withTime := aggField("exceedance_days", lat, lon, []float64{5, 15})
	withTime.Time = axis
	withTime.Data = sparse.ZerosDense(1, 1, 2)
	if _, err := Aggregate(withTime, pop, aggField("GREG", lat, lon, []float64{7, 7})); err == nil {
		t.Error("expected an error for a field with a time axis")
	}
}

func TestOutputsDefault(t *testing.T) {
	o, err := NewOutputs(nil)
	if err != nil {
		t.Fatal(err)
	}
	names := o.Names()
	if len(names) != 1 || names[0] != VarExceedanceDays {
		t.Fatalf("default output names are %v; want [%s]", names, VarExceedanceDays)
	}
	got, err := o.Evaluate(Totals{WeightedMean: 12.5, Population: 40, Cells: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got[VarExceedanceDays] != 12.5 {
		t.Errorf("default output is %g; want 12.5", got[VarExceedanceDays])
	}
}

func TestOutputsExpressions(t *testing.T) {
	o, err := NewOutputs(map[string]string{
		"exposure":   "ExceedanceDays * Population",
		"population": "Population",
	})
	if err != nil {
		t.Fatal(err)
	}
	names := o.Names()
	if len(names) != 2 || names[0] != "exposure" || names[1] != "population" {
		t.Fatalf("output names are %v; want [exposure population]", names)
	}
	got, err := o.Evaluate(Totals{WeightedMean: 2.5, Population: 100, Cells: 4})
	if err != nil {
		t.Fatal(err)
	}
	if got["exposure"] != 250 {
		t.Errorf("exposure is %g; want 250", got["exposure"])
	}
	if got["population"] != 100 {
		t.Errorf("population is %g; want 100", got["population"])
	}

	// A zero-population region's NaN mean flows through expressions.
	got, err = o.Evaluate(Totals{WeightedMean: math.NaN()})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(got["exposure"]) {
		t.Errorf("exposure for an undefined mean is %g; want NaN", got["exposure"])
	}
}

func TestOutputsErrors(t *testing.T) {
	if _, err := NewOutputs(map[string]string{"bad": "Days + 1"}); err == nil {
		t.Error("expected an error for an undefined variable")
	}
	if _, err := NewOutputs(map[string]string{"bad": "1 +"}); err == nil {
		t.Error("expected an error for an unparseable expression")
	}

	o, err := NewOutputs(map[string]string{"flag": "ExceedanceDays > 1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Evaluate(Totals{WeightedMean: 3}); err == nil {
		t.Error("expected an error for a non-numeric output")
	}
}
