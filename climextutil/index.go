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
	"context"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/climext/ensemble"
	"github.com/spatialmodel/climext/regions"
)

// RunIndex runs the configured climate index over the climate model
// archive and writes the population-weighted mean and standard deviation
// across models for each region to a CSV file.
func RunIndex(cfg *viper.Viper) error {
	outputFile, err := checkOutputFile(cfg.GetString("Index.OutputFile"))
	if err != nil {
		return err
	}
	outputs, err := regions.NewOutputs(GetStringMapString("Index.OutputVariables", cfg))
	if err != nil {
		return err
	}
	namesFile := os.ExpandEnv(cfg.GetString("Regions.NamesFile"))
	if namesFile == "" {
		return fmt.Errorf("climext: the Regions.NamesFile configuration variable is not specified")
	}
	names, err := regions.Names(namesFile)
	if err != nil {
		return err
	}
	l, err := regionLoader(cfg)
	if err != nil {
		return err
	}
	idx, err := indexer(cfg, l)
	if err != nil {
		return err
	}
	modelDir := os.ExpandEnv(cfg.GetString("Index.ModelDir"))
	if modelDir == "" {
		return fmt.Errorf("climext: the Index.ModelDir configuration variable is not specified")
	}
	years, err := toIntSliceE(cfg.Get("Index.Years"))
	if err != nil {
		return fmt.Errorf("climext: reading Index.Years: %v", err)
	}

	// Start a function to receive and print log messages.
	msgLog := make(chan string)
	go func() {
		for msg := range msgLog {
			Log.Info(msg)
		}
	}()

	c := ensemble.Config{
		ModelDir: modelDir,
		Pattern:  cfg.GetString("Index.Pattern"),
		Years:    years,
		Indexer:  idx,
		MsgChan:  msgLog,
	}
	table, err := c.Run(context.Background())
	if err != nil {
		return err
	}
	summary, err := table.Summarize(outputs)
	if err != nil {
		return err
	}
	if err := summary.WriteCSV(outputFile, names); err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"models":  len(table.Columns()),
		"regions": len(summary.Regions()),
		"file":    outputFile,
	}).Info("wrote regional summary")
	return nil
}
