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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// GeoRef describes the georeference that all raster inputs to a pipeline
// must share: grid dimensions, cell edge lengths, the lower-left corner of
// the grid, and the spatial reference in Proj4 format. Row 0 of a raster
// adjoins the grid origin (Y0), so rasters stored with a top-left origin
// must be flipped vertically when they are loaded.
type GeoRef struct {
	Nx, Ny int     // number of columns and rows
	Dx, Dy float64 // cell edge lengths in the units of Proj
	X0, Y0 float64 // lower-left corner of the grid
	Proj   string  // spatial reference in Proj4 format
}

// AlignedWith reports whether g and o describe the same grid. Rasters with
// differing georeferences must never be combined; doing so would silently
// produce misaligned statistics.
func (g GeoRef) AlignedWith(o GeoRef) bool { return g == o }

// CellCenter returns the center point of the grid cell at the given row
// and column.
func (g GeoRef) CellCenter(row, col int) geom.Point {
	return geom.Point{
		X: g.X0 + (float64(col)+0.5)*g.Dx,
		Y: g.Y0 + (float64(row)+0.5)*g.Dy,
	}
}

// cellRange returns the half-open row and column index ranges of the grid
// cells whose centers could lie within b, clamped to the grid extent.
func (g GeoRef) cellRange(b *geom.Bounds) (r0, r1, c0, c1 int) {
	r0 = int(math.Floor((b.Min.Y - g.Y0) / g.Dy))
	r1 = int(math.Ceil((b.Max.Y-g.Y0)/g.Dy)) + 1
	c0 = int(math.Floor((b.Min.X - g.X0) / g.Dx))
	c1 = int(math.Ceil((b.Max.X-g.X0)/g.Dx)) + 1
	if r0 < 0 {
		r0 = 0
	}
	if c0 < 0 {
		c0 = 0
	}
	if r1 > g.Ny {
		r1 = g.Ny
	}
	if c1 > g.Nx {
		c1 = g.Nx
	}
	return
}

// A Raster pairs grid values with their georeference. The data array has
// the dimensions [Ny, Nx]. Rasters are read-only inputs; they are never
// modified after loading.
type Raster struct {
	GeoRef
	Data *sparse.DenseArray
}

// NewRaster creates a raster from a data array and its georeference. The
// array shape must match the georeference dimensions.
func NewRaster(gr GeoRef, data *sparse.DenseArray) (*Raster, error) {
	if len(data.Shape) != 2 || data.Shape[0] != gr.Ny || data.Shape[1] != gr.Nx {
		return nil, fmt.Errorf("demandgrid: raster shape %v does not match georeference (%d, %d)",
			data.Shape, gr.Ny, gr.Nx)
	}
	return &Raster{GeoRef: gr, Data: data}, nil
}

// ReadRasterCDF reads the variable varName from the NetCDF file at
// filename and returns it as a raster with georeference gr. The variable
// must be two-dimensional with the dimensions [Ny, Nx].
func ReadRasterCDF(filename, varName string, gr GeoRef) (*Raster, error) {
	ff, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening raster file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading raster file %s: %v", filename, err)
	}
	dims := f.Header.Lengths(varName)
	if len(dims) != 2 {
		return nil, fmt.Errorf("demandgrid: raster variable %s in %s has %d dimensions but should have 2",
			varName, filename, len(dims))
	}
	data := sparse.ZerosDense(dims...)
	r := f.Reader(varName, nil, nil)
	tmp := make([]float32, len(data.Elements))
	if _, err := r.Read(tmp); err != nil {
		return nil, fmt.Errorf("demandgrid: while reading raster variable %s: %v", varName, err)
	}
	for i, v := range tmp {
		data.Elements[i] = float64(v)
	}
	return NewRaster(gr, data)
}
