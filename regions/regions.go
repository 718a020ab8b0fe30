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

// Package regions aggregates gridded climate indices into
// population-weighted regional statistics, using the gridded population
// and world-region classification files of the IMAGE integrated
// assessment framework.
package regions

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"

	"github.com/spatialmodel/climext"
	"github.com/spatialmodel/climext/internal/hash"
)

const (
	// PopVarName is the variable holding people per grid cell in the
	// population files.
	PopVarName = "GPOP"
	// MaskVarName is the variable holding region identifiers in the
	// region mask file.
	MaskVarName = "GREG"
)

// DefaultScenario is the socioeconomic scenario used when a Loader
// does not specify one.
const DefaultScenario = "SSP1_M"

// Loader reads the gridded population and region mask files and
// interpolates them onto model grids. Model files come on many
// different grids, so interpolation results are cached in memory,
// keyed by target grid; aggregating several years or models that
// share a grid only pays for each interpolation once.
//
// The fields returned by Population and Mask are shared with other
// callers and must not be modified.
type Loader struct {
	// Dir is the directory holding the population files
	// (GPOP_<scenario>.nc) and the region mask file (GREG.nc).
	Dir string

	// Scenario selects which population file to read, for example
	// "SSP2_CP". If it is empty, DefaultScenario is used.
	Scenario string

	// MaxCacheEntries is the number of interpolated fields to keep in
	// memory. If it is less than one, 10 entries are kept.
	MaxCacheEntries int

	loadPopOnce sync.Once
	popCache    *requestcache.Cache

	loadMaskOnce sync.Once
	maskCache    *requestcache.Cache
}

// PopulationFile returns the path of the population file the loader
// reads.
func (l *Loader) PopulationFile() string {
	scenario := l.Scenario
	if scenario == "" {
		scenario = DefaultScenario
	}
	return filepath.Join(l.Dir, "GPOP_"+scenario+".nc")
}

// MaskFile returns the path of the region mask file the loader reads.
func (l *Loader) MaskFile() string {
	return filepath.Join(l.Dir, "GREG.nc")
}

func (l *Loader) cacheSize() int {
	if l.MaxCacheEntries < 1 {
		return 10
	}
	return l.MaxCacheEntries
}

type popRequest struct {
	Lat, Lon []float64
	Year     int
}

// Population returns the gridded population count for the stored year
// nearest to the requested year, interpolated bilinearly onto the
// given grid. Cells outside the population file's extent are NaN.
func (l *Loader) Population(ctx context.Context, year int, lat, lon []float64) (*climext.Field, error) {
	l.loadPopOnce.Do(func() {
		l.popCache = requestcache.NewCache(l.populationWorker, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(l.cacheSize()))
	})
	req := popRequest{Lat: lat, Lon: lon, Year: year}
	r := l.popCache.NewRequest(ctx, req, fmt.Sprintf("pop_%d_%s", year, hash.Hash(req)))
	resultI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return resultI.(*climext.Field), nil
}

func (l *Loader) populationWorker(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(popRequest)
	d, err := climext.OpenDataset(l.PopulationFile())
	if err != nil {
		return nil, err
	}
	defer d.Close()
	axis, err := d.TimeAxis(PopVarName)
	if err != nil {
		return nil, err
	}
	layer, err := d.ReadLayer(PopVarName, axis.Nearest(req.Year))
	if err != nil {
		return nil, err
	}
	f, err := climext.Interpolate(layer, req.Lat, req.Lon)
	if err != nil {
		return nil, fmt.Errorf("regions: interpolating population: %v", err)
	}
	return f, nil
}

type maskRequest struct {
	Lat, Lon []float64
}

// Mask returns the region classification map interpolated onto the
// given grid. The mask is categorical, so each target cell takes the
// value of the nearest source cell rather than a blend of neighbors.
// Cells with no region assigned, and cells outside the mask's extent,
// are NaN.
func (l *Loader) Mask(ctx context.Context, lat, lon []float64) (*climext.Field, error) {
	l.loadMaskOnce.Do(func() {
		l.maskCache = requestcache.NewCache(l.maskWorker, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(l.cacheSize()))
	})
	req := maskRequest{Lat: lat, Lon: lon}
	r := l.maskCache.NewRequest(ctx, req, "mask_"+hash.Hash(req))
	resultI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return resultI.(*climext.Field), nil
}

func (l *Loader) maskWorker(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(maskRequest)
	d, err := climext.OpenDataset(l.MaskFile())
	if err != nil {
		return nil, err
	}
	defer d.Close()
	f, err := d.ReadField(MaskVarName)
	if err != nil {
		return nil, err
	}
	// Some region mask files carry a time dimension even though the
	// classification does not change; average it away.
	if f.Time != nil {
		f = timeMean(f)
	}
	out, err := climext.InterpolateNearest(f, req.Lat, req.Lon)
	if err != nil {
		return nil, fmt.Errorf("regions: interpolating region mask: %v", err)
	}
	return out, nil
}

// timeMean averages f over its time dimension, ignoring NaN values.
// Cells that are NaN at every time step stay NaN.
func timeMean(f *climext.Field) *climext.Field {
	nt, ny, nx := f.Data.Shape[0], f.Data.Shape[1], f.Data.Shape[2]
	o := &climext.Field{
		Name:  f.Name,
		Units: f.Units,
		Lat:   append([]float64{}, f.Lat...),
		Lon:   append([]float64{}, f.Lon...),
		Data:  sparse.ZerosDense(ny, nx),
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			var sum float64
			var n int
			for t := 0; t < nt; t++ {
				v := f.Data.Get(t, j, i)
				if math.IsNaN(v) {
					continue
				}
				sum += v
				n++
			}
			if n == 0 {
				o.Data.Set(math.NaN(), j, i)
			} else {
				o.Data.Set(sum/float64(n), j, i)
			}
		}
	}
	return o
}
