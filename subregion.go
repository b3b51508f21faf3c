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

package demandgrid

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// SubregionLoad holds the final hourly load series of each subregion.
type SubregionLoad struct {
	Hours int
	Data  map[string][]float64
}

// Subregions returns the sorted subregion names in the table.
func (l *SubregionLoad) Subregions() []string {
	o := make([]string, 0, len(l.Data))
	for s := range l.Data {
		o = append(o, s)
	}
	sort.Strings(o)
	return o
}

// AggregateSubregions computes the hourly load of each subregion from its
// country-parts. Each part's series is the sum of its population count
// multiplied by its country's residential per-unit load and, for every
// land-use category, its pixel count multiplied by the country's
// per-category per-unit load. Parts whose country is not present in the
// per-unit table come from inconsistent geometry data; they are dropped
// with a warning rather than aborting the aggregation. Parts sharing a
// subregion are summed regardless of which country they came from.
func AggregateSubregions(parts []*Region, partStats *ZonalTable, perUnit *PerUnitLoad, obs Observer) *SubregionLoad {
	known := make(map[string]bool)
	for k := range perUnit.Data {
		known[k.Country] = true
	}
	categories := make([]string, 0, len(partStats.Columns))
	for _, c := range partStats.Columns {
		if c != PopulationColumn {
			categories = append(categories, c)
		}
	}

	out := &SubregionLoad{Hours: perUnit.Hours, Data: make(map[string][]float64)}
	for i, part := range parts {
		if !known[part.Country] {
			Log.Warnf("demandgrid: dropping country-part %s: country %s is unknown", part.Name, part.Country)
			continue
		}
		series := out.Data[part.Subregion()]
		if series == nil {
			series = make([]float64, perUnit.Hours)
			out.Data[part.Subregion()] = series
		}
		if pop := partStats.Get(part.Name, PopulationColumn); pop > 0 {
			floats.AddScaled(series, pop, perUnit.Data[LanduseKey{Country: part.Country, Landuse: ResidentialSector}])
		}
		for _, lu := range categories {
			count := partStats.Get(part.Name, lu)
			if count == 0 {
				continue
			}
			if pu, ok := perUnit.Data[LanduseKey{Country: part.Country, Landuse: lu}]; ok {
				floats.AddScaled(series, count, pu)
			}
		}
		if obs != nil {
			obs("subregion aggregation", i+1, len(parts))
		}
	}
	return out
}
