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

// Package ensemble runs a climate index over an archive of climate
// model projections and summarizes the results across models.
//
// Each model file is indexed separately for each requested year, the
// gridded index is aggregated into population-weighted regional
// values, and the per-region results of the models sharing a scenario
// and year are reduced to an across-model mean and standard deviation.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/ctessum/sparse"

	"github.com/spatialmodel/climext"
	"github.com/spatialmodel/climext/regions"
)

// An Indexer computes one year of a gridded climate index from a model
// run and aggregates it by region.
//
// Index returns climext.ErrYearOutsideRun when the run does not cover
// the requested year, so that callers can skip the combination.
type Indexer interface {
	Index(ctx context.Context, run *climext.ModelRun, year int) (map[int]regions.Totals, error)
}

// ExceedanceIndexer counts the days in a year on which the model's
// daily values strictly exceed a fixed local threshold, and aggregates
// the counts by region.
type ExceedanceIndexer struct {
	// Threshold holds the local threshold values, such as a historical
	// temperature percentile.
	Threshold *climext.Field

	// Loader supplies the population and region mask fields.
	Loader *regions.Loader
}

// Index returns the population-weighted mean number of exceedance days
// in each region for one model file and year.
func (x *ExceedanceIndexer) Index(ctx context.Context, run *climext.ModelRun, year int) (map[int]regions.Totals, error) {
	if !run.CoversYear(year) {
		return nil, climext.ErrYearOutsideRun
	}
	md, err := climext.OpenModelRun(run.Path)
	if err != nil {
		return nil, err
	}
	defer md.Close()
	count, err := climext.ExceedanceCount(md, x.Threshold, year)
	if err != nil {
		return nil, err
	}
	return aggregate(ctx, x.Loader, count.Float(), year)
}

// Reduction selects how a year of daily records is collapsed into one
// annual value in each grid cell.
type Reduction int

const (
	// ReduceMean takes the mean of the year's records, ignoring NaNs.
	ReduceMean Reduction = iota
	// ReduceMax takes the largest of the year's records, ignoring NaNs.
	ReduceMax
)

// PrecomputedIndexer reads an index that is already stored in the
// model files, such as a fire weather index, reduces each year's daily
// records to a single value per grid cell, and aggregates the result
// by region. Cells that are NaN on every day of the year stay NaN and
// drop out of the regional aggregates.
type PrecomputedIndexer struct {
	// Loader supplies the population and region mask fields.
	Loader *regions.Loader

	// Reduce selects the annual reduction; the default is ReduceMean.
	Reduce Reduction
}

// Index returns the population-weighted regional means of the annual
// reduction of the run's stored index for one year.
func (p *PrecomputedIndexer) Index(ctx context.Context, run *climext.ModelRun, year int) (map[int]regions.Totals, error) {
	if !run.CoversYear(year) {
		return nil, climext.ErrYearOutsideRun
	}
	md, err := climext.OpenModelRun(run.Path)
	if err != nil {
		return nil, err
	}
	defer md.Close()
	i0, i1, ok := md.Time.YearRange(year)
	if !ok {
		return nil, fmt.Errorf("ensemble: %s names years %d-%d but its time axis has no days in %d",
			run.Path, run.StartYear, run.EndYear, year)
	}

	acc := sparse.ZerosDense(len(md.Lat), len(md.Lon))
	n := make([]int, len(acc.Elements))
	for t := i0; t < i1; t++ {
		layer, err := md.Layer(t)
		if err != nil {
			return nil, err
		}
		for i, v := range layer.Data.Elements {
			if math.IsNaN(v) {
				continue
			}
			switch {
			case n[i] == 0:
				acc.Elements[i] = v
			case p.Reduce == ReduceMax:
				if v > acc.Elements[i] {
					acc.Elements[i] = v
				}
			default:
				acc.Elements[i] += v
			}
			n[i]++
		}
	}
	for i, c := range n {
		switch {
		case c == 0:
			acc.Elements[i] = math.NaN()
		case p.Reduce == ReduceMean:
			acc.Elements[i] /= float64(c)
		}
	}

	index := &climext.Field{
		Name:  run.Variable,
		Units: md.Units,
		Lat:   md.Lat,
		Lon:   md.Lon,
		Data:  acc,
	}
	return aggregate(ctx, p.Loader, index, year)
}

// aggregate joins a gridded index with the population and region mask
// fields on the index's own grid.
func aggregate(ctx context.Context, l *regions.Loader, index *climext.Field, year int) (map[int]regions.Totals, error) {
	pop, err := l.Population(ctx, year, index.Lat, index.Lon)
	if err != nil {
		return nil, err
	}
	mask, err := l.Mask(ctx, index.Lat, index.Lon)
	if err != nil {
		return nil, err
	}
	return regions.Aggregate(index, pop, mask)
}

// DefaultPattern matches daily-maximum temperature projection files.
const DefaultPattern = "tasmax_day_*.nc"

// Config specifies one ensemble run: which model files to index, for
// which years, and how.
type Config struct {
	// ModelDir is the directory holding the model projection files,
	// named according to the ESGF convention.
	ModelDir string

	// Pattern is the file-name glob that selects model files within
	// ModelDir. If it is empty, DefaultPattern is used.
	Pattern string

	// Years are the calendar years to index. Model files whose date
	// range does not cover a year are skipped for that year.
	Years []int

	// Indexer computes and aggregates the index for one model file and
	// year.
	Indexer Indexer

	// MsgChan, if non-nil, receives progress messages.
	MsgChan chan string
}

func (c *Config) check() error {
	if c.ModelDir == "" {
		return fmt.Errorf("ensemble: model directory is not set")
	}
	if len(c.Years) == 0 {
		return fmt.Errorf("ensemble: no years requested")
	}
	if c.Indexer == nil {
		return fmt.Errorf("ensemble: no indexer configured")
	}
	return nil
}

func (c *Config) msg(format string, args ...interface{}) {
	if c.MsgChan != nil {
		c.MsgChan <- fmt.Sprintf(format, args...)
	}
}

// Run applies the configured indexer to every matching model file and
// requested year, and collects the per-region results into a table
// with one column per (model, scenario, year). Model scenarios are
// taken from the file names, so one run may span several scenarios.
func (c *Config) Run(ctx context.Context) (*Table, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	pattern := c.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	files, err := filepath.Glob(filepath.Join(c.ModelDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("ensemble: bad model file pattern %q: %v", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("ensemble: no model files match %s", filepath.Join(c.ModelDir, pattern))
	}
	sort.Strings(files)

	table := NewTable()
	for _, file := range files {
		run, err := climext.ParseModelFileName(file)
		if err != nil {
			return nil, err
		}
		for _, year := range c.Years {
			totals, err := c.Indexer.Index(ctx, run, year)
			if err == climext.ErrYearOutsideRun {
				continue
			}
			if err != nil {
				return nil, err
			}
			key := ColumnKey{Year: year, Model: run.Model, Scenario: run.Scenario}
			if err := table.Add(key, totals); err != nil {
				return nil, err
			}
			c.msg("Indexed %s for %d", filepath.Base(file), year)
		}
	}
	return table, nil
}
