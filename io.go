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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/ctessum/unit"
)

// ReadHourlySeries reads a table of hourly series from the CSV file at
// filename, where the column headers name the series (countries for load
// tables, sectors for profile tables) and each subsequent row holds the
// values for one hour.
func ReadHourlySeries(filename string) (map[string][]float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening hourly series table: %v", err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading hourly series table %s: %v", filename, err)
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("demandgrid: hourly series table %s is empty", filename)
	}
	names := lines[0]
	o := make(map[string][]float64, len(names))
	for _, n := range names {
		o[n] = make([]float64, 0, len(lines)-1)
	}
	for i, line := range lines[1:] {
		for j, n := range names {
			v, err := strconv.ParseFloat(line[j], 64)
			if err != nil {
				return nil, fmt.Errorf("demandgrid: hourly series table %s row %d: %v", filename, i+2, err)
			}
			o[n] = append(o[n], v)
		}
	}
	return o, nil
}

func hourHeader(prefix []string, hours int) []string {
	h := append([]string{}, prefix...)
	for i := 0; i < hours; i++ {
		h = append(h, "t"+strconv.Itoa(i+1))
	}
	return h
}

func formatSeries(prefix []string, series []float64) []string {
	row := append([]string{}, prefix...)
	for _, v := range series {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return row
}

func writeCSV(filename string, rows [][]string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("demandgrid: while creating output table: %v", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("demandgrid: while writing %s: %v", filename, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteZonalTable writes a zonal statistics table to the CSV file at
// filename, one row per region sorted by name. keyColumn names the
// region identifier column in the header.
func WriteZonalTable(filename, keyColumn string, t *ZonalTable) error {
	rows := [][]string{append([]string{keyColumn}, t.Columns...)}
	for _, region := range t.Regions() {
		rows = append(rows, formatSeries([]string{region}, t.Rows[region]))
	}
	return writeCSV(filename, rows)
}

// ReadZonalTable reads a zonal statistics table written by
// WriteZonalTable.
func ReadZonalTable(filename string) (*ZonalTable, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while opening zonal table: %v", err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("demandgrid: while reading zonal table %s: %v", filename, err)
	}
	if len(lines) < 1 || len(lines[0]) < 2 {
		return nil, fmt.Errorf("demandgrid: zonal table %s is empty", filename)
	}
	t := newZonalTable(lines[0][1:])
	for _, line := range lines[1:] {
		row := make([]float64, len(t.Columns))
		for j := range t.Columns {
			if row[j], err = strconv.ParseFloat(line[j+1], 64); err != nil {
				return nil, fmt.Errorf("demandgrid: zonal table %s row %s: %v", filename, line[0], err)
			}
		}
		t.Rows[line[0]] = row
	}
	return t, nil
}

// WriteSectoralLoad writes the hourly per-(country, sector) load table to
// the CSV file at filename, one row per country-sector pair.
func WriteSectoralLoad(filename string, l *SectoralLoad) error {
	keys := make([]SectorKey, 0, len(l.Data))
	for k := range l.Data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Country != keys[j].Country {
			return keys[i].Country < keys[j].Country
		}
		return keys[i].Sector < keys[j].Sector
	})
	rows := [][]string{hourHeader([]string{"Country", "Sector"}, l.Hours)}
	for _, k := range keys {
		rows = append(rows, formatSeries([]string{k.Country, k.Sector}, l.Data[k]))
	}
	return writeCSV(filename, rows)
}

// WritePerUnitLoad writes the hourly per-(country, land-use unit) load
// table to the CSV file at filename.
func WritePerUnitLoad(filename string, l *PerUnitLoad) error {
	keys := make([]LanduseKey, 0, len(l.Data))
	for k := range l.Data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Country != keys[j].Country {
			return keys[i].Country < keys[j].Country
		}
		return keys[i].Landuse < keys[j].Landuse
	})
	rows := [][]string{hourHeader([]string{"Country", "Landuse"}, l.Hours)}
	for _, k := range keys {
		rows = append(rows, formatSeries([]string{k.Country, k.Landuse}, l.Data[k]))
	}
	return writeCSV(filename, rows)
}

// WriteSubregionLoad writes the final hourly per-subregion load table to
// the CSV file at filename, one row per hour and one column per
// subregion.
func WriteSubregionLoad(filename string, l *SubregionLoad) error {
	subs := l.Subregions()
	rows := [][]string{append([]string{"t"}, subs...)}
	for h := 0; h < l.Hours; h++ {
		row := make([]string, 0, len(subs)+1)
		row = append(row, strconv.Itoa(h+1))
		for _, s := range subs {
			row = append(row, strconv.FormatFloat(l.Data[s][h], 'g', -1, 64))
		}
		rows = append(rows, row)
	}
	return writeCSV(filename, rows)
}

// WriteYearlyTotals writes the yearly per-(country, sector) energy totals
// to the CSV file at filename, in megawatt-hours.
func WriteYearlyTotals(filename string, totals map[SectorKey]*unit.Unit) error {
	keys := make([]SectorKey, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Country != keys[j].Country {
			return keys[i].Country < keys[j].Country
		}
		return keys[i].Sector < keys[j].Sector
	})
	rows := [][]string{{"Country", "Sector", "Load in MWh"}}
	for _, k := range keys {
		if err := totals[k].Check(unit.Joule); err != nil {
			return fmt.Errorf("demandgrid: yearly total for %s/%s: %v", k.Country, k.Sector, err)
		}
		rows = append(rows, []string{k.Country, k.Sector,
			strconv.FormatFloat(totals[k].Value()/megawattHour, 'g', -1, 64)})
	}
	return writeCSV(filename, rows)
}

// fileMeta is the provenance record written next to each output table.
type fileMeta struct {
	File   string                 `json:"file"`
	Params map[string]interface{} `json:"params"`
	Inputs map[string]string      `json:"inputs"`
}

// writeMeta writes a JSON metadata sidecar for the output file at path,
// recording the parameters and input files the output was derived from.
// The sidecar is named after the output with a .json suffix appended.
func writeMeta(path string, params map[string]interface{}, inputs map[string]string) error {
	b, err := json.MarshalIndent(fileMeta{File: path, Params: params, Inputs: inputs}, "", "\t")
	if err != nil {
		return fmt.Errorf("demandgrid: while encoding metadata for %s: %v", path, err)
	}
	f, err := os.Create(path + ".json")
	if err != nil {
		return fmt.Errorf("demandgrid: while creating metadata sidecar: %v", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
