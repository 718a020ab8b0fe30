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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/climext"
	"github.com/spatialmodel/climext/ensemble"
	"github.com/spatialmodel/climext/regions"
	"github.com/spf13/cast"
)

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: Index.OutputFile="climext_summary.csv")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("climext: the Index.OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// toIntSliceE converts a viper configuration value to a slice of ints,
// accounting for the fact that it might be a JSON string if it was set
// from a command line argument.
func toIntSliceE(s interface{}) ([]int, error) {
	switch v := s.(type) {
	case []int:
		return v, nil
	case []interface{}:
		o := make([]int, len(v))
		for i, val := range v {
			iv, err := cast.ToIntE(val)
			if err != nil {
				return nil, err
			}
			o[i] = iv
		}
		return o, nil
	case string:
		var o []int
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid type %T for integer list", s)
	}
}

// toFloat64SliceE converts a viper configuration value to a slice of
// float64s with the same provisions as toIntSliceE.
func toFloat64SliceE(s interface{}) ([]float64, error) {
	switch v := s.(type) {
	case []float64:
		return v, nil
	case []interface{}:
		o := make([]float64, len(v))
		for i, val := range v {
			fv, err := cast.ToFloat64E(val)
			if err != nil {
				return nil, err
			}
			o[i] = fv
		}
		return o, nil
	case []string:
		o := make([]float64, len(v))
		for i, val := range v {
			fv, err := cast.ToFloat64E(val)
			if err != nil {
				return nil, err
			}
			o[i] = fv
		}
		return o, nil
	case string:
		var o []float64
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid type %T for number list", s)
	}
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// percentileConfig unmarshals a viper configuration for the historical
// percentile calculation.
func percentileConfig(cfg *viper.Viper) (*climext.PercentileConfig, error) {
	dataPath := os.ExpandEnv(cfg.GetString("Historical.DataPath"))
	if dataPath == "" {
		return nil, fmt.Errorf("climext: the Historical.DataPath configuration variable is not specified")
	}
	quantiles, err := toFloat64SliceE(cfg.Get("Historical.Quantiles"))
	if err != nil {
		return nil, fmt.Errorf("climext: reading Historical.Quantiles: %v", err)
	}
	return &climext.PercentileConfig{
		DataPath:   dataPath,
		FilePrefix: os.ExpandEnv(cfg.GetString("Historical.FilePrefix")),
		VarName:    cfg.GetString("Historical.VarName"),
		StartYear:  cfg.GetInt("Historical.StartYear"),
		EndYear:    cfg.GetInt("Historical.EndYear"),
		Step:       cfg.GetInt("Historical.Step"),
		Quantiles:  quantiles,
	}, nil
}

// regionLoader unmarshals a viper configuration for the population and
// region mask data.
func regionLoader(cfg *viper.Viper) (*regions.Loader, error) {
	dir := os.ExpandEnv(cfg.GetString("Regions.DataDir"))
	if dir == "" {
		return nil, fmt.Errorf("climext: the Regions.DataDir configuration variable is not specified")
	}
	return &regions.Loader{
		Dir:             dir,
		Scenario:        cfg.GetString("Regions.Scenario"),
		MaxCacheEntries: cfg.GetInt("Regions.MaxCacheEntries"),
	}, nil
}

// readThreshold reads the variable varName from the threshold file
// written by the historical command.
func readThreshold(file, varName string) (*climext.Field, error) {
	ds, err := climext.OpenDataset(file)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return ds.ReadField(varName)
}

// indexer unmarshals a viper configuration for the climate index to be
// calculated.
func indexer(cfg *viper.Viper, l *regions.Loader) (ensemble.Indexer, error) {
	switch t := cfg.GetString("Index.Type"); t {
	case "exceedance":
		file := os.ExpandEnv(cfg.GetString("Index.ThresholdFile"))
		if file == "" {
			return nil, fmt.Errorf("climext: the Index.ThresholdFile configuration variable is not specified")
		}
		threshold, err := readThreshold(file, cfg.GetString("Index.ThresholdVar"))
		if err != nil {
			return nil, err
		}
		return &ensemble.ExceedanceIndexer{Threshold: threshold, Loader: l}, nil
	case "precomputed":
		var reduce ensemble.Reduction
		switch r := cfg.GetString("Index.Reduction"); r {
		case "mean":
			reduce = ensemble.ReduceMean
		case "max":
			reduce = ensemble.ReduceMax
		default:
			return nil, fmt.Errorf("the Index.Reduction variable in the configuration file "+
				"needs to be set to either mean or max, but is currently set to `%s`", r)
		}
		return &ensemble.PrecomputedIndexer{Loader: l, Reduce: reduce}, nil
	default:
		return nil, fmt.Errorf("the Index.Type variable in the configuration file "+
			"needs to be set to either exceedance or precomputed, but is currently set to `%s`", t)
	}
}
