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

package ensemble

import (
	"fmt"
	"math"
	"sort"

	"github.com/GaryBoone/GoStats/stats"

	"github.com/spatialmodel/climext/regions"
)

// ColumnKey identifies one column of a result table: the index for one
// model run in one year.
type ColumnKey struct {
	Year     int
	Model    string
	Scenario string
}

// GroupKey identifies the set of table columns that are averaged
// together in a summary: all models sharing a scenario and year.
type GroupKey struct {
	Year     int
	Scenario string
}

// Label returns the year and scenario joined in the form used in
// summary column names, for example "2030_ssp585".
func (g GroupKey) Label() string {
	return fmt.Sprintf("%d_%s", g.Year, g.Scenario)
}

// Table collects per-region aggregates with one column per model run
// and year. Columns keep the order they were added in.
type Table struct {
	cols  []ColumnKey
	cells map[ColumnKey]map[int]regions.Totals
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{cells: make(map[ColumnKey]map[int]regions.Totals)}
}

// Add appends a column of per-region totals to the table, which
// retains the given map. Adding the same key twice is an error.
func (t *Table) Add(key ColumnKey, totals map[int]regions.Totals) error {
	if _, ok := t.cells[key]; ok {
		return fmt.Errorf("ensemble: duplicate results for model %s, scenario %s, year %d",
			key.Model, key.Scenario, key.Year)
	}
	t.cols = append(t.cols, key)
	t.cells[key] = totals
	return nil
}

// Columns returns the column keys in the order they were added.
func (t *Table) Columns() []ColumnKey {
	return append([]ColumnKey{}, t.cols...)
}

// Groups returns the (year, scenario) groups of the table's columns in
// the order each group first appears.
func (t *Table) Groups() []GroupKey {
	var gs []GroupKey
	seen := make(map[GroupKey]bool)
	for _, col := range t.cols {
		g := GroupKey{Year: col.Year, Scenario: col.Scenario}
		if !seen[g] {
			seen[g] = true
			gs = append(gs, g)
		}
	}
	return gs
}

// Regions returns the sorted identifiers of every region that appears
// in any column.
func (t *Table) Regions() []int {
	seen := make(map[int]bool)
	for _, col := range t.cells {
		for id := range col {
			seen[id] = true
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Totals returns the totals stored for one column and region. The
// second return is false if the region has no data in that column.
func (t *Table) Totals(key ColumnKey, region int) (regions.Totals, bool) {
	tt, ok := t.cells[key][region]
	return tt, ok
}

type summaryCell struct {
	output string
	group  GroupKey
	region int
}

// Summary holds across-model statistics for each output quantity,
// (year, scenario) group and region.
type Summary struct {
	outputs []string
	groups  []GroupKey
	regions []int
	mean    map[summaryCell]float64
	std     map[summaryCell]float64
}

// Summarize evaluates the given outputs for every column of the table
// and reduces each (year, scenario) group of model runs to the mean
// and sample standard deviation across models, separately for every
// region and output quantity. A nil outputs evaluates the default
// output set. NaN values, and regions absent from a run, do not
// contribute to the statistics; a cell with a single contributing
// model reports a NaN standard deviation.
func (t *Table) Summarize(outputs *regions.Outputs) (*Summary, error) {
	if outputs == nil {
		var err error
		if outputs, err = regions.NewOutputs(nil); err != nil {
			return nil, err
		}
	}
	s := &Summary{
		outputs: outputs.Names(),
		groups:  t.Groups(),
		regions: t.Regions(),
		mean:    make(map[summaryCell]float64),
		std:     make(map[summaryCell]float64),
	}

	vals := make(map[summaryCell][]float64)
	for _, col := range t.cols {
		g := GroupKey{Year: col.Year, Scenario: col.Scenario}
		for id, totals := range t.cells[col] {
			res, err := outputs.Evaluate(totals)
			if err != nil {
				return nil, err
			}
			for name, v := range res {
				if math.IsNaN(v) {
					continue
				}
				c := summaryCell{output: name, group: g, region: id}
				vals[c] = append(vals[c], v)
			}
		}
	}
	for c, v := range vals {
		s.mean[c] = stats.StatsMean(v)
		if len(v) < 2 {
			s.std[c] = math.NaN()
		} else {
			s.std[c] = stats.StatsSampleStandardDeviation(v)
		}
	}
	return s, nil
}

// Outputs returns the names of the summarized output quantities.
func (s *Summary) Outputs() []string {
	return append([]string{}, s.outputs...)
}

// Groups returns the summarized (year, scenario) groups in the order
// each first appeared in the table.
func (s *Summary) Groups() []GroupKey {
	return append([]GroupKey{}, s.groups...)
}

// Regions returns the sorted identifiers of the summarized regions.
func (s *Summary) Regions() []int {
	return append([]int{}, s.regions...)
}

// Mean returns the across-model mean for one output, group and region.
// The second return is false if no model contributed a value.
func (s *Summary) Mean(output string, g GroupKey, region int) (float64, bool) {
	v, ok := s.mean[summaryCell{output: output, group: g, region: region}]
	return v, ok
}

// Std returns the across-model sample standard deviation for one
// output, group and region; it is NaN when only one model contributed.
// The second return is false if no model contributed a value.
func (s *Summary) Std(output string, g GroupKey, region int) (float64, bool) {
	v, ok := s.std[summaryCell{output: output, group: g, region: region}]
	return v, ok
}
