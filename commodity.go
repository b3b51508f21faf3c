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
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"
)

// ElecCommodity is the commodity whose annual demand comes from the
// disaggregated load rather than from the assumptions workbook.
const ElecCommodity = "Elec"

// A CommodityAssumption holds the model assumptions for one commodity, as
// read from the assumptions workbook.
type CommodityAssumption struct {
	Name string
	Type string // commodity type in the optimization model, e.g. Stock or Demand

	// PriceInState and PriceOutOfState are the commodity prices used for
	// sites inside and outside the model scope.
	PriceInState    float64
	PriceOutOfState float64

	Annual     float64 // annual demand or supply limit
	Max        float64 // total capacity limit; +Inf if unlimited
	MaxPerHour float64 // hourly capacity limit; +Inf if unlimited
}

func cellFloat(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if strings.EqualFold(v, "inf") {
		return math.Inf(1), nil
	}
	return strconv.ParseFloat(v, 64)
}

// ReadCommodityAssumptions reads the "Commodity" sheet of the assumptions
// workbook at filename. The header row identifies the columns Commodity,
// Type, price mid, price out-of-state, annual, max, and maxperstep.
func ReadCommodityAssumptions(filename string) ([]*CommodityAssumption, error) {
	f, err := xlsx.OpenFile(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening assumptions workbook: %v", err)
	}
	sheet, ok := f.Sheet["Commodity"]
	if !ok {
		return nil, fmt.Errorf("demandgrid: assumptions workbook %s has no Commodity sheet", filename)
	}
	if len(sheet.Rows) < 2 {
		return nil, fmt.Errorf("demandgrid: Commodity sheet in %s is empty", filename)
	}
	col := make(map[string]int)
	for i, c := range sheet.Rows[0].Cells {
		col[strings.TrimSpace(c.Value)] = i
	}
	for _, h := range []string{"Commodity", "Type", "price mid", "price out-of-state", "annual", "max", "maxperstep"} {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("demandgrid: Commodity sheet in %s is missing column %q", filename, h)
		}
	}
	var assumptions []*CommodityAssumption
	for i, row := range sheet.Rows[1:] {
		get := func(name string) string {
			if col[name] >= len(row.Cells) {
				return ""
			}
			return row.Cells[col[name]].Value
		}
		name := strings.TrimSpace(get("Commodity"))
		if name == "" {
			continue
		}
		a := &CommodityAssumption{Name: name, Type: strings.TrimSpace(get("Type"))}
		for _, fv := range []struct {
			column string
			dst    *float64
		}{
			{"price mid", &a.PriceInState},
			{"price out-of-state", &a.PriceOutOfState},
			{"annual", &a.Annual},
			{"max", &a.Max},
			{"maxperstep", &a.MaxPerHour},
		} {
			if *fv.dst, err = cellFloat(get(fv.column)); err != nil {
				return nil, fmt.Errorf("demandgrid: Commodity sheet in %s row %d: %v", filename, i+2, err)
			}
		}
		assumptions = append(assumptions, a)
	}
	return assumptions, nil
}

// A SiteCommodity is one row of the commodity table of the energy model:
// one commodity at one site.
type SiteCommodity struct {
	Site       string
	Commodity  string
	Type       string
	Price      float64
	Annual     float64
	Max        float64
	MaxPerHour float64
}

// GenerateCommodities builds the commodity table: the cross product of
// sites and commodities from the assumptions workbook. Sites with
// single-character names are external trading points outside the model
// scope by convention and get the out-of-state price; all others get the
// in-state price. The annual demand for ElecCommodity is joined from
// annualElec (keyed by site name, in MWh), defaulting to zero for sites
// with no disaggregated load; other commodities use the annual value from
// the assumptions.
func GenerateCommodities(assumptions []*CommodityAssumption, sites []*Site, annualElec map[string]float64) []*SiteCommodity {
	var out []*SiteCommodity
	for _, s := range sites {
		for _, a := range assumptions {
			sc := &SiteCommodity{
				Site:       s.Name,
				Commodity:  a.Name,
				Type:       a.Type,
				Annual:     a.Annual,
				Max:        a.Max,
				MaxPerHour: a.MaxPerHour,
			}
			if a.Name == ElecCommodity {
				sc.Annual = annualElec[s.Name]
			}
			if len(s.Name) >= 2 {
				sc.Price = a.PriceInState
			} else {
				sc.Price = a.PriceOutOfState
			}
			out = append(out, sc)
		}
	}
	return out
}

// WriteCommodities writes the commodity table to the CSV file at
// filename.
func WriteCommodities(filename string, commodities []*SiteCommodity) error {
	rows := [][]string{{"Site", "Commodity", "Type", "price", "annual", "max", "maxperhour"}}
	ff := func(v float64) string {
		if math.IsInf(v, 1) {
			return "inf"
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	for _, c := range commodities {
		rows = append(rows, []string{c.Site, c.Commodity, c.Type,
			ff(c.Price), ff(c.Annual), ff(c.Max), ff(c.MaxPerHour)})
	}
	return writeCSV(filename, rows)
}
