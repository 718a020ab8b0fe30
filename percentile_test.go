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
	"path/filepath"
	"strings"
	"testing"
)

func ExampleQuantile() {
	// Four days of daily maximum temperature in degrees Celsius.
	temps := []float64{31, 27, 30, 28}

	// Quantiles interpolate linearly between the sorted samples.
	fmt.Println(Quantile(temps, 0.5))
	fmt.Println(Quantile(temps, 0.75))
	// Output:
	// 29
	// 30.25
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		x    []float64
		q    float64
		want float64
	}{
		{[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.95, 9.55},
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{1, 2, 3, 4}, 0.25, 1.75},
		{[]float64{3, 1, 2}, 0.5, 2},
		{[]float64{5}, 0.5, 5},
		{[]float64{1, 2}, 0.999, 1.999},
		{nil, 0.5, math.NaN()},
	}
	for _, test := range tests {
		got := Quantile(append([]float64{}, test.x...), test.q)
		if math.IsNaN(test.want) {
			if !math.IsNaN(got) {
				t.Errorf("Quantile(%v, %g) = %g; want NaN", test.x, test.q, got)
			}
			continue
		}
		if math.Abs(got-test.want) > 1e-9 {
			t.Errorf("Quantile(%v, %g) = %g; want %g", test.x, test.q, got, test.want)
		}
	}
}

func TestThresholdVarName(t *testing.T) {
	tests := []struct {
		q    float64
		want string
	}{
		{0.95, "t2m_max_p95"},
		{0.5, "t2m_max_p50"},
		{0.99, "t2m_max_p99"},
		{0.975, "t2m_max_p98"},
	}
	for _, test := range tests {
		if got := ThresholdVarName(test.q); got != test.want {
			t.Errorf("ThresholdVarName(%g) = %q; want %q", test.q, got, test.want)
		}
	}
}

func TestPercentileFileNames(t *testing.T) {
	cfg := &PercentileConfig{
		DataPath:   "/data/era5",
		FilePrefix: "era5",
		StartYear:  1995,
		EndYear:    2024,
	}
	if got, want := cfg.InputFile(2001), filepath.Join("/data/era5", "era5_t2m_max_day_2001.nc"); got != want {
		t.Errorf("InputFile = %q; want %q", got, want)
	}
	if got, want := cfg.OutputFile(0.95), filepath.Join("/data/era5", "era5_t2m_max_1995-2024_p95.nc"); got != want {
		t.Errorf("OutputFile = %q; want %q", got, want)
	}
}

func TestPercentileConfigCheck(t *testing.T) {
	good := PercentileConfig{FilePrefix: "era5", VarName: "t2m", StartYear: 2001, EndYear: 2002, Step: 10}
	bad := []func(*PercentileConfig){
		func(c *PercentileConfig) { c.StartYear, c.EndYear = 2002, 2001 },
		func(c *PercentileConfig) { c.Step = 0 },
		func(c *PercentileConfig) { c.Step = -3 },
		func(c *PercentileConfig) { c.VarName = "" },
		func(c *PercentileConfig) { c.Quantiles = []float64{0.95, 1} },
		func(c *PercentileConfig) { c.Quantiles = []float64{0} },
	}
	if err := good.check(); err != nil {
		t.Fatal(err)
	}
	for i, mod := range bad {
		cfg := good
		mod(&cfg)
		if _, err := cfg.Run(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

// writePercentileArchive writes a small synthetic reanalysis archive and
// returns the expected quantiles of each cell's samples in Celsius.
// Every cell's samples are its base value on seven days and base+5 on
// one, so quantile level q of the eight samples is base plus
// interpolation into the gap.
func writePercentileArchive(t *testing.T, dir string) (latDesc, lon []float64, baseC func(la, lo float64) float64) {
	latDesc = []float64{30, 20, 10, 0}
	lon = []float64{0, 90, 180, 270}
	for _, year := range []int{2001, 2002} {
		data := make([]float32, 0, 4*len(latDesc)*len(lon))
		for ti := 0; ti < 4; ti++ {
			for _, la := range latDesc {
				for _, lo := range lon {
					v := 280 + la + lo/90
					if year == 2001 && ti == 0 {
						v += 5
					}
					data = append(data, float32(v))
				}
			}
		}
		writeTestNC(t, filepath.Join(dir, fmt.Sprintf("era5_t2m_max_day_%d.nc", year)), testNC{
			dims:      []string{"valid_time", "latitude", "longitude"},
			lens:      []int{4, len(latDesc), len(lon)},
			coords:    [][]float64{{0, 1, 2, 3}, latDesc, lon},
			varName:   "t2m",
			varUnits:  "K",
			timeUnits: fmt.Sprintf("days since %d-01-01", year),
			data:      data,
		})
	}
	baseC = func(la, lo float64) float64 { return 280 + la + lo/90 - 273.15 }
	return latDesc, lon, baseC
}

func TestPercentileRun(t *testing.T) {
	const tolerance = 1.0e-4
	dir := t.TempDir()
	_, _, baseC := writePercentileArchive(t, dir)

	cfg := &PercentileConfig{
		DataPath:   dir,
		FilePrefix: "era5",
		VarName:    "t2m",
		StartYear:  2001,
		EndYear:    2002,
		Step:       3, // does not divide the four rows evenly
		Quantiles:  []float64{0.5, 0.95},
		MsgChan:    make(chan string),
	}
	var msgs int
	done := make(chan struct{})
	go func() {
		for range cfg.MsgChan {
			msgs++
		}
		close(done)
	}()
	paths, err := cfg.Run()
	close(cfg.MsgChan)
	<-done
	if err != nil {
		t.Fatal(err)
	}
	if msgs == 0 {
		t.Error("no progress messages received")
	}
	want := []string{cfg.OutputFile(0.5), cfg.OutputFile(0.95)}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("Run returned %v; want %v", paths, want)
	}

	// With 7 samples at base and 1 at base+5, the median is base and
	// the 95th percentile is base+3.25.
	for k, offset := range []float64{0, 3.25} {
		ds, err := OpenDataset(paths[k])
		if err != nil {
			t.Fatal(err)
		}
		f, err := ds.ReadField(ThresholdVarName(cfg.Quantiles[k]))
		ds.Close()
		if err != nil {
			t.Fatal(err)
		}
		if f.Units != "degC" {
			t.Errorf("%s units = %q; want degC", paths[k], f.Units)
		}
		if err := checkAscending(CoordLat, f.Lat); err != nil {
			t.Error(err)
		}
		for j, la := range f.Lat {
			for i, lo := range f.Lon {
				w := baseC(la, lo) + offset
				if got := f.Data.Get(j, i); got != w && different(got, w, tolerance) {
					t.Errorf("%s[%g][%g] = %g; want %g", f.Name, la, lo, got, w)
				}
			}
		}
	}
}

// TestPercentileRunBanding checks that the band width has no effect on
// the result.
func TestPercentileRunBanding(t *testing.T) {
	dir := t.TempDir()
	writePercentileArchive(t, dir)

	cfg := &PercentileConfig{
		DataPath:   dir,
		FilePrefix: "era5",
		VarName:    "t2m",
		StartYear:  2001,
		EndYear:    2002,
		Step:       100, // one band
	}
	if _, err := cfg.Run(); err != nil {
		t.Fatal(err)
	}
	ds, err := OpenDataset(cfg.OutputFile(0.95))
	if err != nil {
		t.Fatal(err)
	}
	wide, err := ds.ReadField(ThresholdVarName(0.95))
	ds.Close()
	if err != nil {
		t.Fatal(err)
	}

	cfg.Step = 1
	if _, err := cfg.Run(); err != nil {
		t.Fatal(err)
	}
	ds, err = OpenDataset(cfg.OutputFile(0.95))
	if err != nil {
		t.Fatal(err)
	}
	narrow, err := ds.ReadField(ThresholdVarName(0.95))
	ds.Close()
	if err != nil {
		t.Fatal(err)
	}

	for i, w := range wide.Data.Elements {
		if narrow.Data.Elements[i] != w {
			t.Errorf("element %d: step 1 gives %g, one band gives %g", i, narrow.Data.Elements[i], w)
		}
	}
}

func TestPercentileRunMissingYear(t *testing.T) {
	dir := t.TempDir()
	writePercentileArchive(t, dir) // years 2001 and 2002 only

	cfg := &PercentileConfig{
		DataPath:   dir,
		FilePrefix: "era5",
		VarName:    "t2m",
		StartYear:  2001,
		EndYear:    2003,
		Step:       10,
	}
	_, err := cfg.Run()
	if err == nil {
		t.Fatal("expected error for a missing archive year")
	}
	if !strings.Contains(err.Error(), "2003") {
		t.Errorf("error %q does not name the missing year", err)
	}
}

func TestPercentileRunGridMismatch(t *testing.T) {
	dir := t.TempDir()
	writePercentileArchive(t, dir)

	// Overwrite 2002 with a different longitude grid.
	writeTestNC(t, filepath.Join(dir, "era5_t2m_max_day_2002.nc"), testNC{
		dims:      []string{"valid_time", "latitude", "longitude"},
		lens:      []int{1, 4, 2},
		coords:    [][]float64{{0}, {30, 20, 10, 0}, {0, 180}},
		varName:   "t2m",
		varUnits:  "K",
		timeUnits: "days since 2002-01-01",
		data:      make([]float32, 8),
	})

	cfg := &PercentileConfig{
		DataPath:   dir,
		FilePrefix: "era5",
		VarName:    "t2m",
		StartYear:  2001,
		EndYear:    2002,
		Step:       10,
	}
	_, err := cfg.Run()
	if err == nil {
		t.Fatal("expected error for mismatched grids")
	}
	if !strings.Contains(err.Error(), "does not match") {
		t.Errorf("unexpected error: %v", err)
	}
}
