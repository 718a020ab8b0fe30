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

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/climext"
	"github.com/spatialmodel/climext/ensemble"
	"github.com/spatialmodel/climext/regions"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by the commands in this package.
var Log logrus.FieldLogger = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to ClimExt.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Historical.DataPath",
			usage: `
              Historical.DataPath is the directory holding the historical
              daily-maximum temperature archive, with one file per year.
              It can contain environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{historicalCmd.Flags()},
		},
		{
			name: "Historical.FilePrefix",
			usage: `
              Historical.FilePrefix is the naming prefix of the archive
              files, which are expected to be named
              <FilePrefix>_t2m_max_day_<year>.nc.`,
			defaultVal: "era5",
			flagsets:   []*pflag.FlagSet{historicalCmd.Flags()},
		},
		{
			name: "Historical.VarName",
			usage: `
              Historical.VarName is the variable read from each archive file.`,
			defaultVal: "t2m",
			flagsets:   []*pflag.FlagSet{historicalCmd.Flags()},
		},
		{
			name: "Historical.StartYear",
			usage: `
              Historical.StartYear is the first year of the reference
              period (inclusive).`,
			defaultVal: 1995,
			flagsets:   []*pflag.FlagSet{historicalCmd.Flags()},
		},
		{
			name: "Historical.EndYear",
			usage: `
              Historical.EndYear is the last year of the reference
              period (inclusive).`,
			defaultVal: 2024,
			flagsets:   []*pflag.FlagSet{historicalCmd.Flags()},
		},
		{
			name: "Historical.Step",
			usage: `
              Historical.Step is the number of latitude rows held in memory
              at a time. Smaller values use less memory.`,
			defaultVal: 30,
			flagsets:   []*pflag.FlagSet{historicalCmd.Flags()},
		},
		{
			name: "Historical.Quantiles",
			usage: `
              Historical.Quantiles lists the quantile levels to compute,
              each between zero and one.`,
			defaultVal: []string{"0.95"},
			flagsets:   []*pflag.FlagSet{historicalCmd.Flags()},
		},
		{
			name: "Index.ModelDir",
			usage: `
              Index.ModelDir is the directory holding the climate model
              projection files. It can contain environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.Pattern",
			usage: `
              Index.Pattern is the file name pattern that selects the model
              files within Index.ModelDir.`,
			defaultVal: ensemble.DefaultPattern,
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.Years",
			usage: `
              Index.Years lists the projection years to process. Model files
              whose date ranges do not include a year are skipped for that
              year.`,
			defaultVal: []int{2025, 2030, 2050},
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.ThresholdFile",
			usage: `
              Index.ThresholdFile is the threshold field written by the
              historical command. It is required when Index.Type is
              'exceedance', and can contain environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.ThresholdVar",
			usage: `
              Index.ThresholdVar is the variable read from
              Index.ThresholdFile.`,
			defaultVal: "t2m_max_p95",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.Type",
			usage: `
              Index.Type chooses the index to calculate: 'exceedance' counts
              the days in each year that are above the threshold field, and
              'precomputed' reduces an index already present in the model
              files over the days of each year.`,
			defaultVal: "exceedance",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.Reduction",
			usage: `
              Index.Reduction chooses how a precomputed index is reduced
              over the days of each year: 'mean' or 'max'. It is ignored
              when Index.Type is 'exceedance'.`,
			defaultVal: "mean",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.OutputFile",
			usage: `
              Index.OutputFile is the path of the CSV file that the regional
              summary is written to. It can contain environment variables.`,
			defaultVal: "climext_summary.csv",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Index.OutputVariables",
			usage: `
              Index.OutputVariables specifies which variables should be
              summarized, mapping output names to expressions over the
              variables ExceedanceDays and Population.`,
			defaultVal: map[string]string{"ExceedanceDays": "ExceedanceDays"},
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Regions.DataDir",
			usage: `
              Regions.DataDir is the directory holding the gridded population
              files (GPOP_<scenario>.nc) and the region mask file (GREG.nc).
              It can contain environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Regions.Scenario",
			usage: `
              Regions.Scenario selects the socioeconomic scenario of the
              population file, for example 'SSP2_CP'.`,
			defaultVal: regions.DefaultScenario,
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Regions.NamesFile",
			usage: `
              Regions.NamesFile is the CSV or XLSX table mapping region
              identifiers to region names. It can contain environment
              variables.`,
			defaultVal: "IMAGE_regions.csv",
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
		{
			name: "Regions.MaxCacheEntries",
			usage: `
              Regions.MaxCacheEntries is the number of interpolated
              population and mask fields kept in memory.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{indexCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CLIMEXT")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(historicalCmd)
	Root.AddCommand(indexCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("climext: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "climext",
	Short: "A climate hazard exposure model.",
	Long: `ClimExt estimates the exposure of regional populations to extreme
climate hazards in climate model projections.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CLIMEXT_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of ClimExt.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ClimExt v%s\n", climext.Version)
	},
	DisableAutoGenTag: true,
}

// historicalCmd is a command that computes percentile thresholds from
// the historical archive.
var historicalCmd = &cobra.Command{
	Use:   "historical",
	Short: "Compute historical percentile thresholds",
	Long: `historical computes percentile threshold fields from an archive of
historical daily-maximum temperature data as specified by information
in the configuration file, and saves one threshold file per quantile
level for use with the index command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunHistorical(Cfg)
	},
	DisableAutoGenTag: true,
}

// indexCmd is a command that runs a climate index over the model
// archive and summarizes the results by region.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Summarize a climate index by region",
	Long: `index runs a climate index over an archive of climate model projection
files, averages the result over the population of each region, and writes
the mean and standard deviation across models for each region to a CSV
file, with one column group per projection year and scenario.

	Index variables:
	ExceedanceDays: The population-weighted mean number of days per year
		on which the index variable exceeds its historical threshold.
	Population: The total population of the region.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunIndex(Cfg)
	},
	DisableAutoGenTag: true,
}
