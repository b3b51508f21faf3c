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
	"testing"
)

// scenarioParts splits the two-country example into a subregion S1
// holding all of A plus half of B, and a subregion S2 holding the other
// half of B.
func scenarioParts() ([]*Region, *ZonalTable) {
	parts := []*Region{
		{Name: "S1_A", Country: "A"},
		{Name: "S1_B", Country: "B"},
		{Name: "S2_B", Country: "B"},
	}
	z := newZonalTable([]string{"type1", "type2", PopulationColumn})
	z.Rows["S1_A"] = []float64{10, 5, 1000}
	z.Rows["S1_B"] = []float64{2, 1, 250}
	z.Rows["S2_B"] = []float64{2, 1, 250}
	return parts, z
}

func TestAggregateSubregions_scenario(t *testing.T) {
	perUnit := LoadPerUnit(scenarioLoads(t), scenarioZonal(), scenarioWeights(t))
	parts, partStats := scenarioParts()

	var calls int
	sub := AggregateSubregions(parts, partStats, perUnit,
		func(stage string, done, total int) { calls++ })

	// S1 receives all of A's load plus half of B's.
	if got := sub.Data["S1"][0]; different(got, 100+25, testTolerance) {
		t.Errorf("subregion S1 load = %g, want 125", got)
	}
	if got := sub.Data["S2"][0]; different(got, 25, testTolerance) {
		t.Errorf("subregion S2 load = %g, want 25", got)
	}

	// Closed system: the subregion total equals the country total.
	var sum float64
	for _, s := range sub.Subregions() {
		sum += sub.Data[s][0]
	}
	if different(sum, 150, testTolerance) {
		t.Errorf("total load over subregions = %g, want 150", sum)
	}
	if calls != len(parts) {
		t.Errorf("observer called %d times but should be %d", calls, len(parts))
	}
}

// Parts referencing a country with no per-unit loads are dropped, and the
// rest of the aggregation proceeds.
func TestAggregateSubregions_unknownCountry(t *testing.T) {
	perUnit := LoadPerUnit(scenarioLoads(t), scenarioZonal(), scenarioWeights(t))
	parts, partStats := scenarioParts()
	parts = append(parts, &Region{Name: "S1_X", Country: "X"})
	partStats.Rows["S1_X"] = []float64{100, 100, 10000}

	sub := AggregateSubregions(parts, partStats, perUnit, nil)
	if got := sub.Data["S1"][0]; different(got, 125, testTolerance) {
		t.Errorf("subregion S1 load = %g, want 125", got)
	}
}

// Two parts of the same country with equal populations receive equal
// residential shares.
func TestAggregateSubregions_equalPopulation(t *testing.T) {
	perUnit := &PerUnitLoad{Hours: 1, Data: map[LanduseKey][]float64{
		{Country: "B", Landuse: ResidentialSector}: {0.06},
	}}
	parts := []*Region{
		{Name: "S1_B", Country: "B"},
		{Name: "S2_B", Country: "B"},
	}
	z := newZonalTable([]string{PopulationColumn})
	z.Rows["S1_B"] = []float64{250}
	z.Rows["S2_B"] = []float64{250}

	sub := AggregateSubregions(parts, z, perUnit, nil)
	if different(sub.Data["S1"][0], sub.Data["S2"][0], testTolerance) {
		t.Errorf("equal-population parts got unequal shares: %g != %g",
			sub.Data["S1"][0], sub.Data["S2"][0])
	}
	if different(sub.Data["S1"][0], 15, testTolerance) {
		t.Errorf("subregion S1 load = %g, want 15", sub.Data["S1"][0])
	}
}
