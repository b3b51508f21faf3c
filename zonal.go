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
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/ctessum/geom"
)

// PopulationColumn is the name of the zonal table column holding the
// population sum for each region.
const PopulationColumn = "Population"

// A ZonalTable holds per-region aggregates of raster values: one row per
// region, with one column per land-use category (pixel counts) plus a
// population column (value sums).
type ZonalTable struct {
	// Columns lists the table columns: the land-use categories in the
	// order they were requested, followed by PopulationColumn.
	Columns []string

	// Rows maps region names to their aggregate values, one per column.
	Rows map[string][]float64
}

func newZonalTable(columns []string) *ZonalTable {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &ZonalTable{Columns: cols, Rows: make(map[string][]float64)}
}

// Get returns the value for the given region and column, or zero if either
// is not present in the table.
func (t *ZonalTable) Get(region, column string) float64 {
	row, ok := t.Rows[region]
	if !ok {
		return 0
	}
	for i, c := range t.Columns {
		if c == column {
			return row[i]
		}
	}
	return 0
}

// Regions returns the sorted names of the regions in the table.
func (t *ZonalTable) Regions() []string {
	o := make([]string, 0, len(t.Rows))
	for r := range t.Rows {
		o = append(o, r)
	}
	sort.Strings(o)
	return o
}

// ZonalStats computes per-region aggregates of two co-registered rasters:
// for the categorical land-use raster, the number of pixels of each of the
// given categories whose centers fall within the region polygon; for the
// population count raster, the sum of the values of those pixels.
// Pixel membership is decided by geometric containment of the pixel
// center, so every pixel is counted for at most one region in a
// non-overlapping region set. Regions too small to cover any pixel center
// get an all-zero row; that is not an error, and downstream stages must
// guard the resulting zero denominators.
//
// The rasters must share the same georeference; a mismatch is a fatal
// configuration error. obs, if non-nil, is called once per finished region.
func ZonalStats(regions []*Region, landuse, population *Raster, categories []string, obs Observer) (*ZonalTable, error) {
	if !landuse.AlignedWith(population.GeoRef) {
		return nil, fmt.Errorf("demandgrid: zonal statistics: land-use georeference %+v does not match population georeference %+v",
			landuse.GeoRef, population.GeoRef)
	}
	columns := append(append([]string{}, categories...), PopulationColumn)
	catIndex := make(map[string]int)
	for i, c := range categories {
		catIndex[c] = i
	}
	popIndex := len(categories)

	rows := make([][]float64, len(regions))
	var mu sync.Mutex
	var done int
	ncpu := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(ncpu)
	for p := 0; p < ncpu; p++ {
		go func(p int) {
			for i := p; i < len(regions); i += ncpu {
				rows[i] = zonalRow(regions[i], landuse, population, catIndex, popIndex)
				if obs != nil {
					mu.Lock()
					done++
					obs("zonal statistics", done, len(regions))
					mu.Unlock()
				}
			}
			wg.Done()
		}(p)
	}
	wg.Wait()

	t := newZonalTable(columns)
	for i, r := range regions {
		t.Rows[r.Name] = rows[i]
	}
	return t, nil
}

// zonalRow reduces the raster values under the occupancy mask of a single
// region.
func zonalRow(r *Region, landuse, population *Raster, catIndex map[string]int, popIndex int) []float64 {
	row := make([]float64, popIndex+1)
	r0, r1, c0, c1 := landuse.cellRange(r.Bounds())
	for iy := r0; iy < r1; iy++ {
		for ix := c0; ix < c1; ix++ {
			if landuse.CellCenter(iy, ix).Within(r.Polygonal) == geom.Outside {
				continue
			}
			cat := strconv.Itoa(int(math.Round(landuse.Data.Get(iy, ix))))
			if j, ok := catIndex[cat]; ok {
				row[j]++
			}
			row[popIndex] += population.Data.Get(iy, ix)
		}
	}
	return row
}
