/*
Copyright © 2020 the demandgrid authors.
This file is part of demandgrid.

demandgrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

demandgrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with demandgrid.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package demandgrid assembles spatially disaggregated electricity demand
// datasets for energy-system optimization models. It apportions national
// hourly load time series down to sub-national regions, using raster-based
// zonal statistics (land-use and population pixel counts per region) as the
// allocation weights, while conserving the total demand at every level of
// aggregation.
package demandgrid

import "github.com/sirupsen/logrus"

// Version gives the version number.
const Version = "0.4.0"

// Log is the logger used for warnings about recoverable data problems
// (missing sectors, unknown countries, share-table fallbacks) and for
// stage progress. By default it is the logrus standard logger.
var Log = logrus.StandardLogger()

// Observer is an optional callback that is invoked at coarse checkpoints
// of long-running stages, once per processed region or country. done is
// the number of finished items and total the number of items overall.
type Observer func(stage string, done, total int)
