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
	"strconv"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// longlatProj is the geographic coordinate system site centroids are
// reported in.
const longlatProj = "+proj=longlat +datum=WGS84 +no_defs"

// A Site is one model region of the energy system, derived from a
// subregion polygon.
type Site struct {
	// Name is the subregion name, with an "_offshore" suffix when the
	// subregion covers more sea than land.
	Name string

	// Longitude and Latitude locate the subregion centroid in WGS84.
	Longitude, Latitude float64

	// Area is the subregion area in m², measured in an equal-area
	// projection.
	Area float64

	// SlackNode marks the voltage-angle reference region of the network.
	SlackNode bool
}

// maskSum sums the values of a mask raster over the pixels whose centers
// fall within the polygon.
func maskSum(p geom.Polygonal, mask *Raster) float64 {
	var sum float64
	r0, r1, c0, c1 := mask.cellRange(p.Bounds())
	for iy := r0; iy < r1; iy++ {
		for ix := c0; ix < c1; ix++ {
			if mask.CellCenter(iy, ix).Within(p) == geom.Outside {
				continue
			}
			sum += mask.Data.Get(iy, ix)
		}
	}
	return sum
}

// GenerateSites derives the site list of the energy model from the
// subregion polygons. Each subregion becomes one site, named after the
// subregion; subregions covering more sea than land (per the land and sea
// mask rasters) are marked with an "_offshore" name suffix. Centroids are
// reported in WGS84 and areas are measured in the equal-area projection
// given by areaProj. The first subregion becomes the slack node.
func GenerateSites(subregions []*Region, land, sea *Raster, areaProj string, obs Observer) ([]*Site, error) {
	if !land.AlignedWith(sea.GeoRef) {
		return nil, fmt.Errorf("demandgrid: sites: land georeference %+v does not match sea georeference %+v",
			land.GeoRef, sea.GeoRef)
	}
	gridSR, err := proj.Parse(land.Proj)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while parsing georeference projection: %v", err)
	}
	longlatSR, err := proj.Parse(longlatProj)
	if err != nil {
		return nil, err
	}
	toLonglat, err := gridSR.NewTransform(longlatSR)
	if err != nil {
		return nil, err
	}
	areaSR, err := proj.Parse(areaProj)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while parsing equal-area projection: %v", err)
	}
	toArea, err := gridSR.NewTransform(areaSR)
	if err != nil {
		return nil, err
	}

	sites := make([]*Site, 0, len(subregions))
	for i, sub := range subregions {
		s := &Site{Name: sub.Name, SlackNode: i == 0}
		if maskSum(sub.Polygonal, land) <= maskSum(sub.Polygonal, sea) {
			s.Name += "_offshore"
		}
		centI, err := geom.Geom(sub.Centroid()).Transform(toLonglat)
		if err != nil {
			return nil, fmt.Errorf("demandgrid: while reprojecting centroid of %s: %v", sub.Name, err)
		}
		cent := centI.(geom.Point)
		s.Longitude, s.Latitude = cent.X, cent.Y
		areaI, err := sub.Transform(toArea)
		if err != nil {
			return nil, fmt.Errorf("demandgrid: while reprojecting %s for area measurement: %v", sub.Name, err)
		}
		s.Area = areaI.(geom.Polygonal).Area()
		sites = append(sites, s)
		if obs != nil {
			obs("site generation", i+1, len(subregions))
		}
	}
	return sites, nil
}

// ReadSites reads a site table written by WriteSites.
func ReadSites(filename string) ([]*Site, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening site table: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading site table %s: %v", filename, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("demandgrid: site table %s is empty", filename)
	}
	col := make(map[string]int)
	for i, h := range records[0] {
		col[h] = i
	}
	for _, h := range []string{"Name", "Area_m2", "Longitude", "Latitude", "slacknode"} {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("demandgrid: site table %s is missing column %s", filename, h)
		}
	}
	sites := make([]*Site, 0, len(records)-1)
	for i, rec := range records[1:] {
		s := &Site{Name: rec[col["Name"]], SlackNode: rec[col["slacknode"]] == "1"}
		for _, fv := range []struct {
			name string
			dst  *float64
		}{
			{"Area_m2", &s.Area},
			{"Longitude", &s.Longitude},
			{"Latitude", &s.Latitude},
		} {
			if *fv.dst, err = strconv.ParseFloat(rec[col[fv.name]], 64); err != nil {
				return nil, fmt.Errorf("demandgrid: site table %s row %d: %v", filename, i+2, err)
			}
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// WriteSites writes the site table to the CSV file at filename, with the
// synchronous-area, control-area, and reserve columns the energy model
// expects filled with their default assumptions.
func WriteSites(filename string, sites []*Site) error {
	rows := [][]string{{"Name", "Area_m2", "Longitude", "Latitude",
		"slacknode", "syncharea", "ctrarea",
		"primpos", "primneg", "secpos", "secneg", "terpos", "terneg"}}
	for _, s := range sites {
		slack := "0"
		if s.SlackNode {
			slack = "1"
		}
		rows = append(rows, []string{
			s.Name,
			strconv.FormatFloat(s.Area, 'g', -1, 64),
			strconv.FormatFloat(s.Longitude, 'g', -1, 64),
			strconv.FormatFloat(s.Latitude, 'g', -1, 64),
			slack, "1", "1", "0", "0", "0", "0", "0", "0",
		})
	}
	return writeCSV(filename, rows)
}
