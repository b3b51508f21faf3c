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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// ResidentialSector is the name of the synthetic residential demand
// sector. It is always present and is allocated by population counts
// rather than by land-use weights.
const ResidentialSector = "RES"

// Assumptions holds the raw coefficients relating land-use categories to
// demand sectors, as read from the assumptions table.
type Assumptions struct {
	Categories []string           // land-use category identifiers, in file order
	Sectors    []string           // demand sectors, in file order
	Coeffs     *sparse.DenseArray // [category, sector]
}

// ReadAssumptions reads a land-use/sector coefficient table from the CSV
// file at filename. The first column holds the land-use category
// identifiers and the remaining column headers name the sectors.
func ReadAssumptions(filename string) (*Assumptions, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening assumptions table: %v", err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading assumptions table %s: %v", filename, err)
	}
	if len(lines) < 2 || len(lines[0]) < 2 {
		return nil, fmt.Errorf("demandgrid: assumptions table %s is empty", filename)
	}
	a := &Assumptions{
		Sectors: lines[0][1:],
		Coeffs:  sparse.ZerosDense(len(lines)-1, len(lines[0])-1),
	}
	for i, line := range lines[1:] {
		a.Categories = append(a.Categories, line[0])
		for j, v := range line[1:] {
			c, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("demandgrid: assumptions table %s row %s: %v", filename, line[0], err)
			}
			a.Coeffs.Set(c, i, j)
		}
	}
	return a, nil
}

// A WeightMatrix holds the normalized distribution of each demand sector
// over the land-use categories. Each sector's weights sum to 1, so a
// weight is the fractional share of that sector's demand attributable to
// one land-use category.
type WeightMatrix struct {
	Sectors    []string // sectors covered by land-use weighting; never includes RES
	Categories []string
	W          *sparse.DenseArray // [sector, category]
}

// NormalizeWeights builds a weight matrix from the raw assumptions,
// restricted to the sectors that appear both in the assumptions and in the
// configured sector list. Configured sectors missing from the assumptions
// are reported with a warning and skipped; the computation proceeds with
// the available subset. The residential sector is never part of the
// matrix because it is allocated by population.
func NormalizeWeights(a *Assumptions, sectors []string) (*WeightMatrix, error) {
	inAssumptions := make(map[string]int)
	for j, s := range a.Sectors {
		inAssumptions[s] = j
	}
	var shared, missing []string
	for _, s := range sectors {
		if s == ResidentialSector {
			continue
		}
		if _, ok := inAssumptions[s]; ok {
			shared = append(shared, s)
		} else {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		Log.Warnf("demandgrid: sectors %v are not included in the land-use assumptions; proceeding without them", missing)
	}
	if len(shared) == 0 {
		return nil, fmt.Errorf("demandgrid: no configured sector appears in the land-use assumptions")
	}
	sort.Strings(shared)

	// Sectors with an all-zero coefficient column cannot be normalized;
	// they are skipped like sectors missing from the assumptions.
	colSums := make(map[string]float64)
	var kept []string
	for _, s := range shared {
		j := inAssumptions[s]
		var sum float64
		for i := range a.Categories {
			sum += a.Coeffs.Get(i, j)
		}
		if sum == 0 {
			Log.Warnf("demandgrid: sector %s has no land-use coefficients; proceeding without it", s)
			continue
		}
		colSums[s] = sum
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("demandgrid: all configured sectors have empty land-use coefficient columns")
	}

	w := &WeightMatrix{
		Sectors:    kept,
		Categories: append([]string{}, a.Categories...),
		W:          sparse.ZerosDense(len(kept), len(a.Categories)),
	}
	for k, s := range kept {
		j := inAssumptions[s]
		for i := range a.Categories {
			w.W.Set(a.Coeffs.Get(i, j)/colSums[s], k, i)
		}
	}
	return w, nil
}

// Weight returns the normalized weight for the given sector and land-use
// category, or zero if either is not in the matrix.
func (w *WeightMatrix) Weight(sector, category string) float64 {
	si, ci := -1, -1
	for i, s := range w.Sectors {
		if s == sector {
			si = i
			break
		}
	}
	for i, c := range w.Categories {
		if c == category {
			ci = i
			break
		}
	}
	if si < 0 || ci < 0 {
		return 0
	}
	return w.W.Get(si, ci)
}

// WeightedCounts multiplies each sector's land-use weight vector against
// each region's per-category pixel counts, giving the land-use-weighted
// pixel count of each sector in each region. Regions with all-zero zonal
// rows yield zero weighted counts.
func (w *WeightMatrix) WeightedCounts(z *ZonalTable) map[string]map[string]float64 {
	o := make(map[string]map[string]float64, len(z.Rows))
	counts := make([]float64, len(w.Categories))
	for region := range z.Rows {
		for i, c := range w.Categories {
			counts[i] = z.Get(region, c)
		}
		so := make(map[string]float64, len(w.Sectors))
		for i, s := range w.Sectors {
			so[s] = floats.Dot(w.W.Elements[i*len(w.Categories):(i+1)*len(w.Categories)], counts)
		}
		o[region] = so
	}
	return o
}
