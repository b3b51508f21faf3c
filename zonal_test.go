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
	"math"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

const testTolerance = 1e-9

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		geom.Point{X: x0, Y: y0},
		geom.Point{X: x1, Y: y0},
		geom.Point{X: x1, Y: y1},
		geom.Point{X: x0, Y: y1},
	}}
}

// testGrid is a 4×4 unit-cell grid with its origin at (0, 0).
func testGrid() GeoRef {
	return GeoRef{Nx: 4, Ny: 4, Dx: 1, Dy: 1, X0: 0, Y0: 0, Proj: "+proj=longlat"}
}

// testRasters returns a checkerboard land-use raster with the categories
// 1 and 2, and a population raster where the value of cell (iy, ix) is
// iy*4+ix.
func testRasters(t *testing.T) (landuse, population *Raster) {
	gr := testGrid()
	lu := sparse.ZerosDense(gr.Ny, gr.Nx)
	pop := sparse.ZerosDense(gr.Ny, gr.Nx)
	for iy := 0; iy < gr.Ny; iy++ {
		for ix := 0; ix < gr.Nx; ix++ {
			lu.Set(float64((iy+ix)%2+1), iy, ix)
			pop.Set(float64(iy*gr.Nx+ix), iy, ix)
		}
	}
	var err error
	if landuse, err = NewRaster(gr, lu); err != nil {
		t.Fatal(err)
	}
	if population, err = NewRaster(gr, pop); err != nil {
		t.Fatal(err)
	}
	return landuse, population
}

func TestZonalStats(t *testing.T) {
	landuse, population := testRasters(t)
	regions := []*Region{
		{Polygonal: square(0, 0, 2, 2), Name: "A", Country: "A"},
		{Polygonal: square(2, 2, 4, 4), Name: "B", Country: "B"},
	}
	var calls int
	z, err := ZonalStats(regions, landuse, population, []string{"1", "2"},
		func(stage string, done, total int) { calls++ })
	if err != nil {
		t.Fatal(err)
	}

	wantCols := []string{"1", "2", PopulationColumn}
	if !reflect.DeepEqual(z.Columns, wantCols) {
		t.Errorf("columns: %v != %v", z.Columns, wantCols)
	}
	want := map[string][]float64{
		"A": {2, 2, 0 + 1 + 4 + 5},
		"B": {2, 2, 10 + 11 + 14 + 15},
	}
	if !reflect.DeepEqual(z.Rows, want) {
		t.Errorf("rows: %v != %v", z.Rows, want)
	}
	if calls != len(regions) {
		t.Errorf("observer called %d times but should be %d", calls, len(regions))
	}
}

// A region too small or too remote to cover any pixel center gets an
// all-zero row, not an error.
func TestZonalStats_emptyRegion(t *testing.T) {
	landuse, population := testRasters(t)
	regions := []*Region{
		{Polygonal: square(100, 100, 101, 101), Name: "far", Country: "far"},
		{Polygonal: square(0.6, 0.6, 0.9, 0.9), Name: "small", Country: "small"},
	}
	z, err := ZonalStats(regions, landuse, population, []string{"1", "2"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"far", "small"} {
		if !reflect.DeepEqual(z.Rows[name], []float64{0, 0, 0}) {
			t.Errorf("region %s: %v should be all zeros", name, z.Rows[name])
		}
	}
}

func TestZonalStats_misaligned(t *testing.T) {
	landuse, _ := testRasters(t)
	gr := testGrid()
	gr.X0 = 1 // shifted grid
	population, err := NewRaster(gr, sparse.ZerosDense(gr.Ny, gr.Nx))
	if err != nil {
		t.Fatal(err)
	}
	_, err = ZonalStats([]*Region{{Polygonal: square(0, 0, 2, 2), Name: "A"}},
		landuse, population, []string{"1"}, nil)
	if err == nil {
		t.Fatal("misaligned rasters should cause an error")
	}
}

func TestZonalTable_get(t *testing.T) {
	z := newZonalTable([]string{"1", PopulationColumn})
	z.Rows["A"] = []float64{3, 7}
	tests := []struct {
		region, column string
		want           float64
	}{
		{"A", "1", 3},
		{"A", PopulationColumn, 7},
		{"A", "missing", 0},
		{"missing", "1", 0},
	}
	for _, test := range tests {
		if got := z.Get(test.region, test.column); got != test.want {
			t.Errorf("Get(%s, %s) = %g, want %g", test.region, test.column, got, test.want)
		}
	}
}
