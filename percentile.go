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
	"sort"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// PercentileConfig specifies the calculation of percentile threshold
// fields from an archive of daily-maximum reanalysis data.
type PercentileConfig struct {
	// DataPath is the directory holding the archive. One file per year
	// is expected, named <FilePrefix>_t2m_max_day_<year>.nc, each with
	// dimensions (valid_time, latitude, longitude).
	DataPath string

	// FilePrefix is the archive naming prefix, for example "era5".
	FilePrefix string

	// VarName is the variable read from each archive file.
	VarName string

	// StartYear and EndYear delimit the reference period, inclusive.
	StartYear, EndYear int

	// Step is the number of latitude rows processed per band. The full
	// reference period is held in memory for one band at a time, so
	// smaller steps use less memory.
	Step int

	// Quantiles are the quantile levels to compute, each in (0, 1).
	// If empty, the 0.95 level is computed.
	Quantiles []float64

	// MsgChan, if non-nil, receives progress messages.
	MsgChan chan string
}

func (cfg *PercentileConfig) check() error {
	if cfg.StartYear > cfg.EndYear {
		return fmt.Errorf("climext: percentile year range %d-%d is inverted", cfg.StartYear, cfg.EndYear)
	}
	if cfg.Step <= 0 {
		return fmt.Errorf("climext: percentile latitude step must be positive; got %d", cfg.Step)
	}
	if cfg.VarName == "" {
		return fmt.Errorf("climext: percentile variable name is not set")
	}
	for _, q := range cfg.Quantiles {
		if q <= 0 || q >= 1 {
			return fmt.Errorf("climext: quantile %g is outside (0, 1)", q)
		}
	}
	return nil
}

func (cfg *PercentileConfig) msg(format string, args ...interface{}) {
	if cfg.MsgChan != nil {
		cfg.MsgChan <- fmt.Sprintf(format, args...)
	}
}

// InputFile returns the path of the archive file for the given year.
func (cfg *PercentileConfig) InputFile(year int) string {
	return filepath.Join(cfg.DataPath, fmt.Sprintf("%s_t2m_max_day_%d.nc", cfg.FilePrefix, year))
}

// OutputFile returns the path the threshold field for quantile level q
// is written to.
func (cfg *PercentileConfig) OutputFile(q float64) string {
	return filepath.Join(cfg.DataPath, fmt.Sprintf("%s_t2m_max_%d-%d_p%d.nc",
		cfg.FilePrefix, cfg.StartYear, cfg.EndYear, int(q*100+0.5)))
}

// ThresholdVarName returns the name given to the threshold variable for
// quantile level q, for example "t2m_max_p95".
func ThresholdVarName(q float64) string {
	return fmt.Sprintf("t2m_max_p%d", int(q*100+0.5))
}

// gridRef holds the coordinates of the first archive year, in file
// order, against which all other years are checked.
type gridRef struct {
	year     int
	lat, lon []float64
}

// Run computes the configured quantiles of the daily values over the
// reference period and writes one threshold field per quantile, in
// degrees Celsius, to OutputFile. The archive is processed in latitude
// bands so that only Step rows of the (year, day) sample cube are in
// memory at a time. A missing or malformed archive year is an error; no
// partial output is left behind. Run returns the paths it wrote.
func (cfg *PercentileConfig) Run() ([]string, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	qs := cfg.Quantiles
	if len(qs) == 0 {
		qs = []float64{0.95}
	}

	ref, err := cfg.referenceGrid()
	if err != nil {
		return nil, err
	}
	ny, nx := len(ref.lat), len(ref.lon)

	outs := make([]*sparse.DenseArray, len(qs))
	for k := range outs {
		outs[k] = sparse.ZerosDense(ny, nx)
	}

	for j0 := 0; j0 < ny; j0 += cfg.Step {
		j1 := j0 + cfg.Step
		if j1 > ny {
			j1 = ny
		}
		cfg.msg("Processing latitude rows %d-%d of %d", j0, j1, ny)

		// days collects one band-sized slice per day over all years.
		var days [][]float32
		for year := cfg.StartYear; year <= cfg.EndYear; year++ {
			if days, err = cfg.readBandYear(ref, year, j0, j1, days); err != nil {
				return nil, err
			}
		}

		samples := make([]float64, 0, len(days))
		for r := 0; r < j1-j0; r++ {
			for c := 0; c < nx; c++ {
				samples = samples[:0]
				off := r*nx + c
				for _, day := range days {
					if v := float64(day[off]); !math.IsNaN(v) {
						samples = append(samples, v)
					}
				}
				sort.Float64s(samples)
				for k, q := range qs {
					outs[k].Set(quantileSorted(samples, q), j0+r, c)
				}
			}
		}
	}

	paths := make([]string, len(qs))
	for k, q := range qs {
		f := &Field{
			Name:  ThresholdVarName(q),
			Units: "degC",
			Lat:   append([]float64{}, ref.lat...),
			Lon:   append([]float64{}, ref.lon...),
			Data:  outs[k],
		}
		normalizeLat(f)
		paths[k] = cfg.OutputFile(q)
		if err := WriteField(paths[k], f); err != nil {
			return nil, err
		}
		cfg.msg("Wrote %s", paths[k])
	}
	return paths, nil
}

// referenceGrid reads the coordinates of the first archive year.
func (cfg *PercentileConfig) referenceGrid() (*gridRef, error) {
	d, err := OpenDataset(cfg.InputFile(cfg.StartYear))
	if err != nil {
		return nil, fmt.Errorf("climext: archive year %d: %v", cfg.StartYear, err)
	}
	defer d.Close()
	v, err := d.varInfo(cfg.VarName)
	if err != nil {
		return nil, err
	}
	if !v.hasTime {
		return nil, fmt.Errorf("climext: variable %s in %s has no time dimension", cfg.VarName, d.path)
	}
	ref := &gridRef{year: cfg.StartYear}
	if ref.lat, err = d.readCoord(v.dims[1], v.lens[1]); err != nil {
		return nil, err
	}
	if ref.lon, err = d.readCoord(v.dims[2], v.lens[2]); err != nil {
		return nil, err
	}
	return ref, nil
}

// readBandYear appends each day of the given year, restricted to
// latitude rows [j0, j1), to days. Values are converted to degrees
// Celsius as they are read.
func (cfg *PercentileConfig) readBandYear(ref *gridRef, year, j0, j1 int, days [][]float32) ([][]float32, error) {
	path := cfg.InputFile(year)
	d, err := OpenDataset(path)
	if err != nil {
		return nil, fmt.Errorf("climext: archive year %d: %v", year, err)
	}
	defer d.Close()

	v, err := d.varInfo(cfg.VarName)
	if err != nil {
		return nil, err
	}
	if !v.hasTime {
		return nil, fmt.Errorf("climext: variable %s in %s has no time dimension", cfg.VarName, path)
	}
	lat, err := d.readCoord(v.dims[1], v.lens[1])
	if err != nil {
		return nil, err
	}
	lon, err := d.readCoord(v.dims[2], v.lens[2])
	if err != nil {
		return nil, err
	}
	if !floats.Equal(lat, ref.lat) || !floats.Equal(lon, ref.lon) {
		return nil, fmt.Errorf("climext: archive year %d grid does not match year %d", year, ref.year)
	}
	offset, err := celsiusOffset(attrString(d.cf.Header, cfg.VarName, "units"))
	if err != nil {
		return nil, fmt.Errorf("climext: %s: %v", path, err)
	}

	for t := 0; t < v.lens[0]; t++ {
		b, err := d.readBand(cfg.VarName, v, t, j0, j1)
		if err != nil {
			return nil, err
		}
		if offset != 0 {
			for i := range b {
				b[i] -= float32(offset)
			}
		}
		days = append(days, b)
	}
	return days, nil
}

// Quantile returns the quantile q (between 0 and 1) of x, interpolating
// linearly between order statistics; this matches the default quantile
// definition used by numerical analysis packages. x is sorted in place
// and must not contain NaN; an empty x returns NaN.
func Quantile(x []float64, q float64) float64 {
	sort.Float64s(x)
	return quantileSorted(x, q)
}

func quantileSorted(x []float64, q float64) float64 {
	n := len(x)
	if n == 0 {
		return math.NaN()
	}
	h := q * float64(n-1)
	l := int(h)
	if l >= n-1 {
		return x[n-1]
	}
	return x[l] + (h-float64(l))*(x[l+1]-x[l])
}
