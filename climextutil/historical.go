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
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
)

// RunHistorical computes percentile threshold fields from the historical
// archive described by the configuration and saves one threshold file
// per quantile level.
func RunHistorical(cfg *viper.Viper) error {
	c, err := percentileConfig(cfg)
	if err != nil {
		return err
	}

	// Start a function to receive and print log messages.
	msgLog := make(chan string)
	go func() {
		for msg := range msgLog {
			Log.Info(msg)
		}
	}()
	c.MsgChan = msgLog

	files, err := c.Run()
	if err != nil {
		return err
	}
	for _, f := range files {
		Log.WithFields(logrus.Fields{
			"file": f,
		}).Info("wrote threshold field")
	}
	return nil
}
