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
	"fmt"
	"log"
	"math"

	"github.com/gonum/floats"

	"github.com/spatialmodel/climext"
)

// Totals holds the aggregate values for one region.
type Totals struct {
	// WeightedMean is the population-weighted mean of the index values
	// over the region's cells.
	WeightedMean float64

	// Population is the summed population of the cells that
	// contributed to the mean.
	Population float64

	// Cells is the number of contributing grid cells.
	Cells int
}

// Aggregate groups the cells of the index field by the region
// identifiers in mask and computes the population-weighted mean index
// value, sum(index_i * population_i) / sum(population_i), of each
// region. The three fields must be co-registered on the same grid;
// their flattened cells correspond position by position.
//
// Cells with an undefined (NaN) region are dropped, as are cells where
// the index or the population is NaN. A region whose contributing
// cells hold no population has an undefined mean; it is reported as
// NaN and a warning is logged rather than failing the run.
func Aggregate(index, pop, mask *climext.Field) (map[int]Totals, error) {
	for _, f := range []*climext.Field{index, pop, mask} {
		if f.Time != nil {
			return nil, fmt.Errorf("regions: variable %s still has a time axis", f.Name)
		}
		if err := f.Check(); err != nil {
			return nil, err
		}
	}
	if !index.SameGrid(pop) || !index.SameGrid(mask) {
		return nil, fmt.Errorf("regions: variables %s, %s and %s are not on the same grid",
			index.Name, pop.Name, mask.Name)
	}

	type cells struct {
		x, p []float64
	}
	groups := make(map[int]*cells)
	for i, r := range mask.Data.Elements {
		if math.IsNaN(r) {
			continue
		}
		x, p := index.Data.Elements[i], pop.Data.Elements[i]
		if math.IsNaN(x) || math.IsNaN(p) {
			continue
		}
		// Region identifiers are stored as floating-point values.
		id := int(math.Round(r))
		g := groups[id]
		if g == nil {
			g = new(cells)
			groups[id] = g
		}
		g.x = append(g.x, x)
		g.p = append(g.p, p)
	}

	o := make(map[int]Totals, len(groups))
	for id, g := range groups {
		var xBar float64
		for i, pi := range g.p {
			xBar += pi * g.x[i]
		}
		pSum := floats.Sum(g.p)
		t := Totals{Population: pSum, Cells: len(g.x)}
		if pSum == 0 {
			log.Printf("regions: region %d has zero population; reporting no data for %s", id, index.Name)
			t.WeightedMean = math.NaN()
		} else {
			t.WeightedMean = xBar / pSum
		}
		o[id] = t
	}
	return o, nil
}
