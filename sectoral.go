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
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/ctessum/unit"
	"gonum.org/v1/gonum/floats"
)

// SectorKey indexes an hourly series by country and demand sector.
type SectorKey struct {
	Country, Sector string
}

// SectoralLoad holds the hourly load of each demand sector in each
// country. For every hour, the sectors of a country sum to the country's
// original total hourly load.
type SectoralLoad struct {
	Hours int
	Data  map[SectorKey][]float64
}

// Countries returns the sorted country codes present in the table.
func (l *SectoralLoad) Countries() []string {
	set := make(map[string]bool)
	for k := range l.Data {
		set[k.Country] = true
	}
	o := make([]string, 0, len(set))
	for c := range set {
		o = append(o, c)
	}
	sort.Strings(o)
	return o
}

// A ShareTable holds the fractional share of each demand sector in each
// country's total electricity demand. Lookups fall back to the shares of
// a designated default country when a country is absent from the table.
type ShareTable struct {
	// Default is the country whose shares substitute for countries
	// missing from the table.
	Default string

	Shares map[string]map[string]float64
}

// ReadShares reads a country/sector share table from the CSV file at
// filename. The first column holds country codes and the remaining column
// headers name the sectors. defaultCountry designates the fallback row; it
// must be present in the table.
func ReadShares(filename, defaultCountry string) (*ShareTable, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening share table: %v", err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading share table %s: %v", filename, err)
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("demandgrid: share table %s is empty", filename)
	}
	t := &ShareTable{Default: defaultCountry, Shares: make(map[string]map[string]float64)}
	sectors := lines[0][1:]
	for _, line := range lines[1:] {
		row := make(map[string]float64, len(sectors))
		for j, s := range sectors {
			v, err := strconv.ParseFloat(line[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("demandgrid: share table %s row %s: %v", filename, line[0], err)
			}
			row[s] = v
		}
		t.Shares[line[0]] = row
	}
	if _, ok := t.Shares[defaultCountry]; !ok {
		return nil, fmt.Errorf("demandgrid: default country %s is not in share table %s", defaultCountry, filename)
	}
	return t, nil
}

// lookup returns the share for the given country and sector from the
// primary table only.
func (t *ShareTable) lookup(country, sector string) (float64, bool) {
	row, ok := t.Shares[country]
	if !ok {
		return 0, false
	}
	v, ok := row[sector]
	return v, ok
}

// Share returns the fractional share of a sector in a country's demand.
// The lookup is layered: the country's own row is consulted first, then
// the default country's row; if neither holds the sector, an error is
// returned.
func (t *ShareTable) Share(country, sector string) (float64, error) {
	if v, ok := t.lookup(country, sector); ok {
		return v, nil
	}
	if v, ok := t.lookup(t.Default, sector); ok {
		return v, nil
	}
	return 0, fmt.Errorf("demandgrid: no share for sector %s in country %s or default country %s",
		sector, country, t.Default)
}

// DisaggregateSectors splits each country's hourly total load into
// per-sector hourly series. Each sector's normalized demand profile is
// scaled by the country's share for that sector, and the result is
// renormalized hour by hour against the country's actual total, so that
// for every hour the sectors sum exactly to the original total regardless
// of the raw scale of the profiles. Countries absent from the share table
// use the default country's shares (reported with a warning). The sector
// list must include the residential sector; downstream allocation relies
// on its series existing for every country.
func DisaggregateSectors(total map[string][]float64, profiles map[string][]float64, shares *ShareTable, sectors []string) (*SectoralLoad, error) {
	resIncluded := false
	for _, s := range sectors {
		if s == ResidentialSector {
			resIncluded = true
			break
		}
	}
	if !resIncluded {
		return nil, fmt.Errorf("demandgrid: the sector list %v does not include the residential sector %s", sectors, ResidentialSector)
	}
	hours := -1
	for c, series := range total {
		if hours == -1 {
			hours = len(series)
		} else if len(series) != hours {
			return nil, fmt.Errorf("demandgrid: hourly load for country %s has %d values but should have %d", c, len(series), hours)
		}
	}
	if hours <= 0 {
		return nil, fmt.Errorf("demandgrid: no hourly load data")
	}
	for _, s := range sectors {
		p, ok := profiles[s]
		if !ok {
			return nil, fmt.Errorf("demandgrid: no demand profile for sector %s", s)
		}
		if len(p) != hours {
			return nil, fmt.Errorf("demandgrid: demand profile for sector %s has %d values but should have %d", s, len(p), hours)
		}
	}

	out := &SectoralLoad{Hours: hours, Data: make(map[SectorKey][]float64)}
	countries := make([]string, 0, len(total))
	for c := range total {
		countries = append(countries, c)
	}
	sort.Strings(countries)
	for _, c := range countries {
		if _, ok := shares.Shares[c]; !ok {
			Log.Warnf("demandgrid: country %s is not in the sector share table; using shares of %s", c, shares.Default)
		}
		raw := make(map[string][]float64, len(sectors))
		scale := make([]float64, hours)
		for _, s := range sectors {
			share, err := shares.Share(c, s)
			if err != nil {
				return nil, err
			}
			r := make([]float64, hours)
			floats.AddScaled(r, share, profiles[s])
			raw[s] = r
			floats.Add(scale, r)
		}
		var undistributed int
		for h := 0; h < hours; h++ {
			if scale[h] == 0 && total[c][h] != 0 {
				undistributed++
			}
		}
		if undistributed > 0 {
			Log.Warnf("demandgrid: country %s has %d hours with a nonzero total but all-zero sector profiles; their load cannot be distributed", c, undistributed)
		}
		for _, s := range sectors {
			series := make([]float64, hours)
			for h := 0; h < hours; h++ {
				// An hour where all sector profiles are zero carries no
				// load to distribute.
				if scale[h] == 0 {
					continue
				}
				series[h] = raw[s][h] / scale[h] * total[c][h]
			}
			out.Data[SectorKey{Country: c, Sector: s}] = series
		}
	}
	return out, nil
}

// megawattHour is one megawatt-hour in SI units (joules).
const megawattHour = 3.6e9

// YearlyTotals sums each country-sector hourly series to a yearly total,
// expressed as an energy unit.
func YearlyTotals(l *SectoralLoad) map[SectorKey]*unit.Unit {
	o := make(map[SectorKey]*unit.Unit, len(l.Data))
	for k, series := range l.Data {
		o[k] = unit.New(floats.Sum(series)*megawattHour, unit.Joule)
	}
	return o
}

// LanduseKey indexes an hourly series by country and land-use category.
// The residential sector appears as the pseudo-category RES.
type LanduseKey struct {
	Country, Landuse string
}

// PerUnitLoad holds, for each country, the hourly load attributable to a
// single land-use pixel of each category, and to a single person for the
// RES pseudo-category. It is the multiplier used for spatial
// disaggregation.
type PerUnitLoad struct {
	Hours int
	Data  map[LanduseKey][]float64
}

// LoadPerUnit derives the per-unit load series from the sectoral loads:
// the residential sector is divided by each country's raw population
// count, and every other sector is divided by the country's
// land-use-weighted pixel count for that sector, with the quotients
// accumulated onto the land-use categories according to the weights.
// Countries missing from either the zonal table or the sectoral loads are
// excluded. Zero zonal denominators contribute zero, never NaN.
func LoadPerUnit(l *SectoralLoad, zonal *ZonalTable, w *WeightMatrix) *PerUnitLoad {
	var countries []string
	for _, c := range l.Countries() {
		if _, ok := zonal.Rows[c]; ok {
			countries = append(countries, c)
		}
	}
	weighted := w.WeightedCounts(zonal)

	out := &PerUnitLoad{Hours: l.Hours, Data: make(map[LanduseKey][]float64)}
	for _, c := range countries {
		res := make([]float64, l.Hours)
		if pop := zonal.Get(c, PopulationColumn); pop > 0 {
			floats.AddScaled(res, 1/pop, l.Data[SectorKey{Country: c, Sector: ResidentialSector}])
		}
		out.Data[LanduseKey{Country: c, Landuse: ResidentialSector}] = res

		for _, lu := range w.Categories {
			series := make([]float64, l.Hours)
			for _, s := range w.Sectors {
				count := weighted[c][s]
				if count == 0 {
					continue
				}
				floats.AddScaled(series, w.Weight(s, lu)/count, l.Data[SectorKey{Country: c, Sector: s}])
			}
			out.Data[LanduseKey{Country: c, Landuse: lu}] = series
		}
	}
	return out
}

// Countries returns the sorted country codes present in the table.
func (l *PerUnitLoad) Countries() []string {
	set := make(map[string]bool)
	for k := range l.Data {
		set[k.Country] = true
	}
	o := make([]string, 0, len(set))
	for c := range set {
		o = append(o, c)
	}
	sort.Strings(o)
	return o
}
