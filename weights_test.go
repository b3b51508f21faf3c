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
	"os"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

// testAssumptions holds coefficients for three land-use categories and
// three sectors, where the STR column is all zeros.
func testAssumptions() *Assumptions {
	a := &Assumptions{
		Categories: []string{"10", "20", "30"},
		Sectors:    []string{"IND", "COM", "STR"},
		Coeffs:     sparse.ZerosDense(3, 3),
	}
	coeffs := [][]float64{
		{8, 1, 0},
		{2, 3, 0},
		{0, 1, 0},
	}
	for i, row := range coeffs {
		for j, v := range row {
			a.Coeffs.Set(v, i, j)
		}
	}
	return a
}

func TestReadAssumptions(t *testing.T) {
	const fname = "tmp_assumptions.csv"
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(fname)
	fmt.Fprint(f, "landuse,IND,COM\n10,8,1\n20,2,3\n")
	f.Close()

	a, err := ReadAssumptions(fname)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Categories, []string{"10", "20"}) {
		t.Errorf("categories: %v", a.Categories)
	}
	if !reflect.DeepEqual(a.Sectors, []string{"IND", "COM"}) {
		t.Errorf("sectors: %v", a.Sectors)
	}
	if got := a.Coeffs.Get(1, 0); got != 2 {
		t.Errorf("coefficient (20, IND) = %g, want 2", got)
	}
}

func TestNormalizeWeights(t *testing.T) {
	// AGR is not in the assumptions and STR has an all-zero column; both
	// should be skipped. RES is never part of the matrix.
	w, err := NormalizeWeights(testAssumptions(), []string{"AGR", "COM", "IND", "STR", ResidentialSector})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(w.Sectors, []string{"COM", "IND"}) {
		t.Fatalf("sectors: %v", w.Sectors)
	}
	for _, s := range w.Sectors {
		var sum float64
		for _, c := range w.Categories {
			sum += w.Weight(s, c)
		}
		if different(sum, 1, testTolerance) {
			t.Errorf("weights for sector %s sum to %g, want 1", s, sum)
		}
	}
	if got := w.Weight("IND", "10"); different(got, 0.8, testTolerance) {
		t.Errorf("weight (IND, 10) = %g, want 0.8", got)
	}
	if got := w.Weight("COM", "30"); different(got, 0.2, testTolerance) {
		t.Errorf("weight (COM, 30) = %g, want 0.2", got)
	}
	if got := w.Weight("STR", "10"); got != 0 {
		t.Errorf("weight for skipped sector = %g, want 0", got)
	}
}

func TestNormalizeWeights_noSectors(t *testing.T) {
	if _, err := NormalizeWeights(testAssumptions(), []string{"XXX", ResidentialSector}); err == nil {
		t.Fatal("no shared sector should cause an error")
	}
	if _, err := NormalizeWeights(testAssumptions(), []string{"STR"}); err == nil {
		t.Fatal("only zero-coefficient sectors should cause an error")
	}
}

func TestWeightedCounts(t *testing.T) {
	w, err := NormalizeWeights(testAssumptions(), []string{"IND", "COM"})
	if err != nil {
		t.Fatal(err)
	}
	z := newZonalTable([]string{"10", "20", "30", PopulationColumn})
	z.Rows["A"] = []float64{10, 5, 2, 1000}
	z.Rows["empty"] = []float64{0, 0, 0, 0}

	counts := w.WeightedCounts(z)
	if got := counts["A"]["IND"]; different(got, 0.8*10+0.2*5, testTolerance) {
		t.Errorf("weighted count (A, IND) = %g, want 9", got)
	}
	if got := counts["A"]["COM"]; different(got, 0.2*10+0.6*5+0.2*2, testTolerance) {
		t.Errorf("weighted count (A, COM) = %g, want 5.4", got)
	}
	for s, got := range counts["empty"] {
		if got != 0 {
			t.Errorf("weighted count (empty, %s) = %g, want 0", s, got)
		}
	}
}
