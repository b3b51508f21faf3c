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
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// A Region is a polygon to which demand is allocated: a country, a
// subregion, or a country-part (the intersection of a subregion with a
// country). Regions are immutable once loaded; their identity is the Name.
type Region struct {
	geom.Polygonal

	// Name is the short name of the region. For country-parts it has the
	// form "<subregion>_<country>".
	Name string

	// Country is the code of the country the region belongs to. For
	// country shapes it equals Name.
	Country string
}

// ReadRegions decodes region polygons from the shapefile at filename,
// reprojecting them to the spatial reference of gr. nameCol is the
// attribute field holding the region short name. countryCol, if non-empty,
// is the field holding the parent country code; otherwise the country is
// set equal to the name (the convention for country shapefiles).
func ReadRegions(filename, nameCol, countryCol string, gr GeoRef) ([]*Region, error) {
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening region shapefile: %v", err)
	}
	defer d.Close()
	inSR, err := d.SR()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading projection of %s: %v", filename, err)
	}
	outSR, err := proj.Parse(gr.Proj)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while parsing georeference projection: %v", err)
	}
	trans, err := inSR.NewTransform(outSR)
	if err != nil {
		return nil, err
	}
	cols := []string{nameCol}
	if countryCol != "" && countryCol != nameCol {
		cols = append(cols, countryCol)
	}
	var regions []*Region
	for {
		g, fields, more := d.DecodeRowFields(cols...)
		if !more {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, err
		}
		p, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("demandgrid: region shapes in %s need to be polygons", filename)
		}
		r := &Region{Polygonal: p, Name: fields[nameCol]}
		if countryCol != "" {
			r.Country = fields[countryCol]
		} else {
			r.Country = r.Name
		}
		regions = append(regions, r)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("demandgrid: while decoding %s: %v", filename, err)
	}
	return regions, nil
}

// CountryParts splits subregions into country-parts by intersecting each
// subregion with every country it overlaps. A subregion can overlap many
// countries, but each country-part belongs to exactly one country.
// Degenerate intersections with zero area are skipped; a subregion lying
// entirely outside all countries therefore produces no parts.
func CountryParts(subregions, countries []*Region) []*Region {
	index := rtree.NewTree(25, 50)
	for _, c := range countries {
		index.Insert(c)
	}
	var parts []*Region
	for _, sub := range subregions {
		for _, cI := range index.SearchIntersect(sub.Bounds()) {
			c := cI.(*Region)
			isect := sub.Intersection(c.Polygonal)
			if len(isect) == 0 || isect.Area() == 0 {
				continue
			}
			parts = append(parts, &Region{
				Polygonal: isect,
				Name:      sub.Name + "_" + c.Country,
				Country:   c.Country,
			})
		}
	}
	return parts
}

// Subregion returns the subregion a country-part was split from.
func (r *Region) Subregion() string {
	return strings.TrimSuffix(r.Name, "_"+r.Country)
}
