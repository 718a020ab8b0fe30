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
	"sort"

	"github.com/Knetic/govaluate"
)

// Variables available to output expressions.
const (
	// VarExceedanceDays is the population-weighted mean index value of
	// a region.
	VarExceedanceDays = "ExceedanceDays"
	// VarPopulation is the summed population of a region's cells.
	VarPopulation = "Population"
)

// Outputs defines the per-region quantities to report. Each output is
// named by a key and calculated by evaluating the corresponding
// expression over the variables VarExceedanceDays and VarPopulation,
// so for example a population-exposure quantity in units of
// person-days is defined by the expression
// "ExceedanceDays * Population" without any code changes.
type Outputs struct {
	names []string
	exprs map[string]*govaluate.EvaluableExpression
}

// NewOutputs compiles the given output definitions, mapping output
// names to expressions. If defs is empty, a single output reporting
// VarExceedanceDays directly is used.
func NewOutputs(defs map[string]string) (*Outputs, error) {
	if len(defs) == 0 {
		defs = map[string]string{VarExceedanceDays: VarExceedanceDays}
	}
	o := &Outputs{exprs: make(map[string]*govaluate.EvaluableExpression, len(defs))}
	for name, def := range defs {
		expr, err := govaluate.NewEvaluableExpression(def)
		if err != nil {
			return nil, fmt.Errorf("regions: output %s: %v", name, err)
		}
		for _, v := range expr.Vars() {
			if v != VarExceedanceDays && v != VarPopulation {
				return nil, fmt.Errorf("regions: output %s uses undefined variable '%s'", name, v)
			}
		}
		o.exprs[name] = expr
		o.names = append(o.names, name)
	}
	sort.Strings(o.names)
	return o, nil
}

// Names returns the output names in sorted order.
func (o *Outputs) Names() []string {
	return append([]string{}, o.names...)
}

// Evaluate calculates the outputs for one region's totals.
func (o *Outputs) Evaluate(t Totals) (map[string]float64, error) {
	params := map[string]interface{}{
		VarExceedanceDays: t.WeightedMean,
		VarPopulation:     t.Population,
	}
	out := make(map[string]float64, len(o.exprs))
	for name, expr := range o.exprs {
		v, err := expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("regions: evaluating output %s: %v", name, err)
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("regions: output %s evaluates to %T; expected a number", name, v)
		}
		out[name] = f
	}
	return out, nil
}
