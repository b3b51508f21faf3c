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
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// A Line is one transmission line between two endpoints, as read from the
// cleaned grid dataset. Endpoint coordinates are WGS84 longitude/latitude.
type Line struct {
	ID         int
	Type       string  // line type, e.g. AC_OHL or DC_CAB
	Capacity   float64 // thermal capacity [MVA]
	Admittance float64 // admittance at the 380 kV reference level [mho]
	Start, End geom.Point
}

// ReadLines reads the cleaned transmission line dataset from the CSV file
// at filename. The columns l_id, tr_type, Capacity_MVA, Y_mho_ref_380kV,
// V1_long, V1_lat, V2_long, and V2_lat are identified by the header row.
func ReadLines(filename string) ([]*Line, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening line table: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading line table %s: %v", filename, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("demandgrid: line table %s is empty", filename)
	}
	col := make(map[string]int)
	for i, h := range records[0] {
		col[h] = i
	}
	for _, h := range []string{"l_id", "tr_type", "Capacity_MVA", "Y_mho_ref_380kV", "V1_long", "V1_lat", "V2_long", "V2_lat"} {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("demandgrid: line table %s is missing column %s", filename, h)
		}
	}
	lines := make([]*Line, 0, len(records)-1)
	for i, rec := range records[1:] {
		get := func(name string) (float64, error) {
			return strconv.ParseFloat(rec[col[name]], 64)
		}
		l := &Line{Type: rec[col["tr_type"]]}
		if l.ID, err = strconv.Atoi(rec[col["l_id"]]); err != nil {
			return nil, fmt.Errorf("demandgrid: line table %s row %d: %v", filename, i+2, err)
		}
		var fieldErr error
		for _, fv := range []struct {
			name string
			dst  *float64
		}{
			{"Capacity_MVA", &l.Capacity},
			{"Y_mho_ref_380kV", &l.Admittance},
			{"V1_long", &l.Start.X}, {"V1_lat", &l.Start.Y},
			{"V2_long", &l.End.X}, {"V2_lat", &l.End.Y},
		} {
			if *fv.dst, fieldErr = get(fv.name); fieldErr != nil {
				return nil, fmt.Errorf("demandgrid: line table %s row %d: %v", filename, i+2, fieldErr)
			}
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// A LineCost is one tier of the per-type, length-limited transmission
// cost table.
type LineCost struct {
	Type string

	// LengthLimit is the maximum line length [km] the tier applies to;
	// the unlimited tier has LengthLimit +Inf.
	LengthLimit float64

	InvCostLength float64 // investment cost per km
	InvCostFix    float64 // fixed investment cost
	FixCostLength float64 // yearly fixed cost per km
}

// ReadLineCosts reads the transmission cost table from the CSV file at
// filename. A length_limit_km value of "inf" marks the unlimited tier.
func ReadLineCosts(filename string) ([]*LineCost, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening line cost table: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading line cost table %s: %v", filename, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("demandgrid: line cost table %s is empty", filename)
	}
	col := make(map[string]int)
	for i, h := range records[0] {
		col[h] = i
	}
	for _, h := range []string{"tr_type", "length_limit_km", "inv-cost-length", "inv-cost-fix", "fix-cost-length"} {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("demandgrid: line cost table %s is missing column %s", filename, h)
		}
	}
	costs := make([]*LineCost, 0, len(records)-1)
	for i, rec := range records[1:] {
		c := &LineCost{Type: rec[col["tr_type"]]}
		if lim := rec[col["length_limit_km"]]; strings.EqualFold(lim, "inf") {
			c.LengthLimit = math.Inf(1)
		} else if c.LengthLimit, err = strconv.ParseFloat(lim, 64); err != nil {
			return nil, fmt.Errorf("demandgrid: line cost table %s row %d: %v", filename, i+2, err)
		}
		for _, fv := range []struct {
			name string
			dst  *float64
		}{
			{"inv-cost-length", &c.InvCostLength},
			{"inv-cost-fix", &c.InvCostFix},
			{"fix-cost-length", &c.FixCostLength},
		} {
			if *fv.dst, err = strconv.ParseFloat(rec[col[fv.name]], 64); err != nil {
				return nil, fmt.Errorf("demandgrid: line cost table %s row %d: %v", filename, i+2, err)
			}
		}
		costs = append(costs, c)
	}
	return costs, nil
}

// TransmissionConfig holds the grid-related assumptions.
type TransmissionConfig struct {
	// Efficiency is the transmission efficiency per 1000 km of line, by
	// line type.
	Efficiency map[string]float64

	// DefaultType is the line type assumed for neighboring subregions
	// with no existing line between them.
	DefaultType string

	WACC         float64
	Depreciation float64
}

// A Transmission is one aggregated interregional connection of the energy
// model.
type Transmission struct {
	SiteIn, SiteOut string
	Type            string
	Capacity        float64 // summed thermal capacity [MVA]
	Reactance       float64 // reciprocal of the summed admittance
	Length          float64 // centroid great-circle distance [km]
	Efficiency      float64
	InvCost         float64
	FixCost         float64
	VarCost         float64
	WACC            float64
	Depreciation    float64
}

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.009

// greatCircleKm returns the great-circle distance in km between two WGS84
// longitude/latitude points.
func greatCircleKm(a, b geom.Point) float64 {
	const d = math.Pi / 180
	dLat := (b.Y - a.Y) * d
	dLon := (b.X - a.X) * d
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Y*d)*math.Cos(b.Y*d)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// locate returns the name of the first region in the index containing the
// point, or "" if no region contains it.
func locate(index *rtree.Rtree, pt geom.Point) string {
	for _, rI := range index.SearchIntersect(pt.Bounds()) {
		r := rI.(*Region)
		if pt.Within(r.Polygonal) != geom.Outside {
			return r.Name
		}
	}
	return ""
}

// queenNeighbors returns the pairs of subregions sharing at least one
// polygon vertex, each pair ordered alphabetically.
func queenNeighbors(subregions []*Region) map[[2]string]bool {
	byVertex := make(map[geom.Point][]string)
	for _, sub := range subregions {
		seen := make(map[geom.Point]bool)
		for _, poly := range sub.Polygons() {
			for _, ring := range poly {
				for _, pt := range ring {
					if !seen[pt] {
						seen[pt] = true
						byVertex[pt] = append(byVertex[pt], sub.Name)
					}
				}
			}
		}
	}
	pairs := make(map[[2]string]bool)
	for _, names := range byVertex {
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				a, b := names[i], names[j]
				if b < a {
					a, b = b, a
				}
				if a != b {
					pairs[[2]string{a, b}] = true
				}
			}
		}
	}
	return pairs
}

type transKey struct {
	in, out, typ string
}

// GenerateTransmission builds the aggregated interregional transmission
// table. Line endpoints are assigned to subregions by point-in-polygon
// lookup; lines within one subregion (intraregional) or with an endpoint
// outside every subregion (extraregional) are discarded. The remaining
// lines are canonicalized so the alphabetically smaller region is the
// "in" side and aggregated by region pair and type. Every pair of
// neighboring subregions additionally gets a connection of the default
// type, with zero capacity if no line exists, so the optimization model
// may expand it. Lengths are great-circle distances between the site
// centroids, efficiencies decay per 1000 km, and costs come from the
// matching tier of the cost table.
//
// The subregions must be in the same WGS84 coordinates as the line
// endpoints.
func GenerateTransmission(lines []*Line, subregions []*Region, sites []*Site, costs []*LineCost, cfg *TransmissionConfig) ([]*Transmission, error) {
	index := rtree.NewTree(25, 50)
	for _, sub := range subregions {
		index.Insert(sub)
	}

	type agg struct{ capacity, admittance float64 }
	groups := make(map[transKey]*agg)
	var intra, inter, extra int
	for _, l := range lines {
		start := locate(index, l.Start)
		end := locate(index, l.End)
		switch {
		case start == "" || end == "":
			extra++
			continue
		case start == end:
			intra++
			continue
		}
		inter++
		if end < start {
			start, end = end, start
		}
		k := transKey{in: start, out: end, typ: l.Type}
		g := groups[k]
		if g == nil {
			g = new(agg)
			groups[k] = g
		}
		g.capacity += l.Capacity
		g.admittance += l.Admittance
	}
	Log.Infof("demandgrid: transmission line types: %d intraregional, %d interregional, %d extraregional",
		intra, inter, extra)

	// Neighboring subregions can always be connected by a new line of the
	// default type.
	for pair := range queenNeighbors(subregions) {
		k := transKey{in: pair[0], out: pair[1], typ: cfg.DefaultType}
		if _, ok := groups[k]; !ok {
			groups[k] = new(agg)
		}
	}

	centroids := make(map[string]geom.Point)
	for _, s := range sites {
		pt := geom.Point{X: s.Longitude, Y: s.Latitude}
		centroids[s.Name] = pt
		centroids[strings.TrimSuffix(s.Name, "_offshore")] = pt
	}

	keys := make([]transKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.in != b.in {
			return a.in < b.in
		}
		if a.out != b.out {
			return a.out < b.out
		}
		return a.typ < b.typ
	})

	out := make([]*Transmission, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		cIn, ok := centroids[k.in]
		if !ok {
			return nil, fmt.Errorf("demandgrid: transmission: no site for region %s", k.in)
		}
		cOut, ok := centroids[k.out]
		if !ok {
			return nil, fmt.Errorf("demandgrid: transmission: no site for region %s", k.out)
		}
		t := &Transmission{
			SiteIn:       k.in,
			SiteOut:      k.out,
			Type:         k.typ,
			Capacity:     g.capacity,
			Length:       greatCircleKm(cIn, cOut),
			WACC:         cfg.WACC,
			Depreciation: cfg.Depreciation,
		}
		if g.admittance != 0 {
			t.Reactance = 1 / g.admittance
		}
		eff, ok := cfg.Efficiency[k.typ]
		if !ok {
			return nil, fmt.Errorf("demandgrid: transmission: no efficiency assumption for line type %s", k.typ)
		}
		t.Efficiency = math.Pow(eff, t.Length/1000)

		// The cheapest applicable tier is the one with the smallest
		// length limit still longer than the line.
		var tier *LineCost
		for _, c := range costs {
			if c.Type != k.typ || c.LengthLimit <= t.Length {
				continue
			}
			if tier == nil || c.LengthLimit < tier.LengthLimit {
				tier = c
			}
		}
		if tier == nil {
			return nil, fmt.Errorf("demandgrid: transmission: no cost tier for a %s line of length %g km", k.typ, t.Length)
		}
		t.InvCost = tier.InvCostLength*t.Length + tier.InvCostFix
		t.FixCost = tier.FixCostLength * t.Length
		out = append(out, t)
	}
	return out, nil
}

// WriteTransmission writes the transmission table to the CSV file at
// filename, with the operational attribute columns the energy model
// expects filled with their default assumptions.
func WriteTransmission(filename string, trans []*Transmission) error {
	rows := [][]string{{"Site In", "Site Out", "Transmission", "Commodity",
		"cap-up-therm", "reactance", "length", "eff",
		"inv-cost", "fix-cost", "var-cost",
		"inst-cap", "act-lo", "act-up", "angle-up", "PSTmax",
		"cap-lo", "cap-up", "wacc", "depreciation"}}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, t := range trans {
		rows = append(rows, []string{
			t.SiteIn, t.SiteOut, t.Type, "Elec",
			ff(t.Capacity), ff(t.Reactance), ff(t.Length), ff(t.Efficiency),
			ff(t.InvCost), ff(t.FixCost), ff(t.VarCost),
			ff(t.Capacity), "0", "1", "45", "0",
			"0", ff(t.Capacity), ff(t.WACC), ff(t.Depreciation),
		})
	}
	return writeCSV(filename, rows)
}
