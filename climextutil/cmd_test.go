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

package climextutil

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

// TestDefaults runs before any test changes the global configuration,
// so the values seen here are the registered flag defaults.
func TestDefaults(t *testing.T) {
	if got := Cfg.GetString("Index.Type"); got != "exceedance" {
		t.Errorf("Index.Type = %q; want exceedance", got)
	}
	if got := Cfg.GetString("Index.Pattern"); got != "tasmax_day_*.nc" {
		t.Errorf("Index.Pattern = %q; want tasmax_day_*.nc", got)
	}
	if got := Cfg.GetString("Regions.Scenario"); got != "SSP1_M" {
		t.Errorf("Regions.Scenario = %q; want SSP1_M", got)
	}
	if got := Cfg.GetInt("Historical.StartYear"); got != 1995 {
		t.Errorf("Historical.StartYear = %d; want 1995", got)
	}
	years, err := toIntSliceE(Cfg.Get("Index.Years"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2025, 2030, 2050}; !reflect.DeepEqual(years, want) {
		t.Errorf("Index.Years = %v; want %v", years, want)
	}
	vars := GetStringMapString("Index.OutputVariables", Cfg)
	if want := map[string]string{"ExceedanceDays": "ExceedanceDays"}; !reflect.DeepEqual(vars, want) {
		t.Errorf("Index.OutputVariables = %v; want %v", vars, want)
	}
}

func TestVersionCmd(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "ClimExt v") {
		t.Errorf("unexpected version output %q", buf.String())
	}
}
