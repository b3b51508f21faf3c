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
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

func testShares() *ShareTable {
	return &ShareTable{
		Default: "A",
		Shares: map[string]map[string]float64{
			"A": {"IND": 0.6, ResidentialSector: 0.4},
			"B": {"IND": 0.4, ResidentialSector: 0.6},
		},
	}
}

func TestReadShares(t *testing.T) {
	const fname = "tmp_shares.csv"
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(fname)
	fmt.Fprint(f, "country,IND,RES\nA,0.6,0.4\nB,0.4,0.6\n")
	f.Close()

	if _, err := ReadShares(fname, "Z"); err == nil {
		t.Error("a default country missing from the table should cause an error")
	}
	shares, err := ReadShares(fname, "A")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := shares.Share("B", "IND"); err != nil || got != 0.4 {
		t.Errorf("Share(B, IND) = %g, %v; want 0.4", got, err)
	}
}

func TestShareTable_layeredLookup(t *testing.T) {
	shares := testShares()
	if got, err := shares.Share("B", "IND"); err != nil || got != 0.4 {
		t.Errorf("primary lookup = %g, %v; want 0.4", got, err)
	}
	// Country C is missing; the default country's share substitutes.
	if got, err := shares.Share("C", "IND"); err != nil || got != 0.6 {
		t.Errorf("fallback lookup = %g, %v; want 0.6", got, err)
	}
	if _, err := shares.Share("C", "XXX"); err == nil {
		t.Error("a sector missing from both layers should cause an error")
	}
}

func TestDisaggregateSectors_conservation(t *testing.T) {
	total := map[string][]float64{
		"A": {100, 80, 120},
		"B": {50, 55, 45},
		"C": {10, 0, 30}, // not in the share table; uses the default
	}
	profiles := map[string][]float64{
		"IND":             {1, 0.5, 0.8},
		ResidentialSector: {0.3, 0.9, 1},
	}
	sectors := []string{"IND", ResidentialSector}
	l, err := DisaggregateSectors(total, profiles, testShares(), sectors)
	if err != nil {
		t.Fatal(err)
	}
	if l.Hours != 3 {
		t.Fatalf("hours: %d != 3", l.Hours)
	}
	for c, series := range total {
		for h, want := range series {
			var sum float64
			for _, s := range sectors {
				sum += l.Data[SectorKey{Country: c, Sector: s}][h]
			}
			if want == 0 {
				if sum != 0 {
					t.Errorf("country %s hour %d: sum %g, want 0", c, h, sum)
				}
			} else if different(sum, want, testTolerance) {
				t.Errorf("country %s hour %d: sectors sum to %g, want %g", c, h, sum, want)
			}
		}
	}
}

// An hour where every sector profile is zero has no basis for splitting;
// the output must be zero rather than NaN.
func TestDisaggregateSectors_zeroHour(t *testing.T) {
	total := map[string][]float64{"A": {100, 50}}
	profiles := map[string][]float64{
		"IND":             {1, 0},
		ResidentialSector: {1, 0},
	}
	l, err := DisaggregateSectors(total, profiles, testShares(), []string{"IND", ResidentialSector})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"IND", ResidentialSector} {
		if got := l.Data[SectorKey{Country: "A", Sector: s}][1]; got != 0 {
			t.Errorf("sector %s at the zero-profile hour = %g, want 0", s, got)
		}
	}
}

func TestDisaggregateSectors_inputValidation(t *testing.T) {
	profiles := map[string][]float64{"IND": {1, 1}, ResidentialSector: {1, 1}}
	sectors := []string{"IND", ResidentialSector}
	if _, err := DisaggregateSectors(map[string][]float64{"A": {1, 2}, "B": {1}},
		profiles, testShares(), sectors); err == nil {
		t.Error("ragged country series should cause an error")
	}
	if _, err := DisaggregateSectors(map[string][]float64{"A": {1, 2}},
		map[string][]float64{"IND": {1, 1}}, testShares(), sectors); err == nil {
		t.Error("a missing profile should cause an error")
	}
	if _, err := DisaggregateSectors(map[string][]float64{"A": {1, 2}},
		map[string][]float64{"IND": {1, 1}, ResidentialSector: {1}}, testShares(), sectors); err == nil {
		t.Error("a profile of the wrong length should cause an error")
	}
	if _, err := DisaggregateSectors(map[string][]float64{"A": {1, 2}},
		profiles, testShares(), []string{"IND"}); err == nil {
		t.Error("a sector list without the residential sector should cause an error")
	}
}

// Hours whose load cannot be distributed because every profile is zero
// are reported rather than silently dropped.
func TestDisaggregateSectors_undistributedWarning(t *testing.T) {
	var buf bytes.Buffer
	origOut := Log.Out
	Log.Out = &buf
	defer func() { Log.Out = origOut }()

	total := map[string][]float64{"A": {100, 50}}
	profiles := map[string][]float64{
		"IND":             {1, 0},
		ResidentialSector: {1, 0},
	}
	if _, err := DisaggregateSectors(total, profiles, testShares(), []string{"IND", ResidentialSector}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "cannot be distributed") {
		t.Errorf("missing warning about undistributable load; log output: %q", buf.String())
	}
}

func TestYearlyTotals(t *testing.T) {
	l := &SectoralLoad{Hours: 3, Data: map[SectorKey][]float64{
		{Country: "A", Sector: "IND"}: {10, 20, 30},
	}}
	totals := YearlyTotals(l)
	u := totals[SectorKey{Country: "A", Sector: "IND"}]
	if err := u.Check(unit.Joule); err != nil {
		t.Fatal(err)
	}
	if got := u.Value() / megawattHour; different(got, 60, testTolerance) {
		t.Errorf("yearly total = %g MWh, want 60", got)
	}
}

// scenarioWeights returns a weight matrix with IND split 0.8/0.2 over the
// land-use categories type1 and type2.
func scenarioWeights(t *testing.T) *WeightMatrix {
	a := &Assumptions{
		Categories: []string{"type1", "type2"},
		Sectors:    []string{"IND"},
		Coeffs:     sparse.ZerosDense(2, 1),
	}
	a.Coeffs.Set(0.8, 0, 0)
	a.Coeffs.Set(0.2, 1, 0)
	w, err := NormalizeWeights(a, []string{"IND", ResidentialSector})
	if err != nil {
		t.Fatal(err)
	}
	return w
}

// scenarioLoads builds the two-country example: A with total load 100 and
// shares {IND: 0.6, RES: 0.4}, B with total load 50 and shares
// {IND: 0.4, RES: 0.6}, flat profiles.
func scenarioLoads(t *testing.T) *SectoralLoad {
	total := map[string][]float64{"A": {100}, "B": {50}}
	profiles := map[string][]float64{"IND": {1}, ResidentialSector: {1}}
	l, err := DisaggregateSectors(total, profiles, testShares(), []string{"IND", ResidentialSector})
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func scenarioZonal() *ZonalTable {
	z := newZonalTable([]string{"type1", "type2", PopulationColumn})
	z.Rows["A"] = []float64{10, 5, 1000}
	z.Rows["B"] = []float64{4, 2, 500}
	return z
}

func TestLoadPerUnit_scenario(t *testing.T) {
	l := scenarioLoads(t)
	if got := l.Data[SectorKey{Country: "A", Sector: "IND"}][0]; different(got, 60, testTolerance) {
		t.Fatalf("A industrial load = %g, want 60", got)
	}

	perUnit := LoadPerUnit(l, scenarioZonal(), scenarioWeights(t))

	// A's weighted industrial pixel count is 0.8*10+0.2*5 = 9.
	if got := perUnit.Data[LanduseKey{Country: "A", Landuse: "type1"}][0]; different(got, 0.8*60/9, testTolerance) {
		t.Errorf("per-unit (A, type1) = %g, want %g", got, 0.8*60/9)
	}
	if got := perUnit.Data[LanduseKey{Country: "A", Landuse: "type2"}][0]; different(got, 0.2*60/9, testTolerance) {
		t.Errorf("per-unit (A, type2) = %g, want %g", got, 0.2*60/9)
	}
	// Residential load is divided by the raw population count.
	if got := perUnit.Data[LanduseKey{Country: "A", Landuse: ResidentialSector}][0]; different(got, 40.0/1000, testTolerance) {
		t.Errorf("per-unit (A, RES) = %g, want 0.04", got)
	}
	if got := perUnit.Data[LanduseKey{Country: "B", Landuse: ResidentialSector}][0]; different(got, 30.0/500, testTolerance) {
		t.Errorf("per-unit (B, RES) = %g, want 0.06", got)
	}
}

// Countries with an all-zero zonal row must get zero per-unit loads, not
// NaN.
func TestLoadPerUnit_zeroDenominators(t *testing.T) {
	l := scenarioLoads(t)
	z := scenarioZonal()
	z.Rows["A"] = []float64{0, 0, 0}
	perUnit := LoadPerUnit(l, z, scenarioWeights(t))
	for _, lu := range []string{"type1", "type2", ResidentialSector} {
		if got := perUnit.Data[LanduseKey{Country: "A", Landuse: lu}][0]; got != 0 {
			t.Errorf("per-unit (A, %s) = %g, want 0", lu, got)
		}
	}
}
