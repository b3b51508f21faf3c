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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/requestcache"
)

// Config holds the input files and parameters of a disaggregation run.
type Config struct {
	// LanduseFile is the NetCDF file holding the categorical land-use
	// raster, and LanduseVar is the variable to read from it.
	LanduseFile string
	LanduseVar  string

	// PopulationFile is the NetCDF file holding the population count
	// raster, and PopulationVar is the variable to read from it.
	PopulationFile string
	PopulationVar  string

	// Grid is the georeference both rasters must conform to.
	Grid GeoRef

	// CountriesFile is the shapefile of country polygons, and
	// CountryColumn is the attribute holding the country code.
	CountriesFile string
	CountryColumn string

	// SubregionsFile is the shapefile of model subregion polygons, and
	// SubregionColumn is the attribute holding the subregion name.
	SubregionsFile  string
	SubregionColumn string

	// LoadFile is the CSV table of hourly total load per country, and
	// ProfilesFile is the CSV table of hourly demand profiles per sector.
	LoadFile     string
	ProfilesFile string

	// SharesFile is the CSV table of sectoral demand shares per country.
	// DefaultShareCountry designates the row that substitutes for
	// countries missing from the table.
	SharesFile          string
	DefaultShareCountry string

	// AssumptionsFile is the CSV table of land-use/sector coefficients.
	// Its land-use categories are also the categories counted in the
	// zonal statistics.
	AssumptionsFile string

	// Sectors are the demand sectors to disaggregate into.
	Sectors []string

	// OutputDir is the directory the result tables are written to.
	OutputDir string

	// CacheDir is the directory for cached intermediate stage results.
	// If it is empty, results are only cached in memory.
	CacheDir string

	// MaxCacheEntries is the number of stage results to hold in memory.
	MaxCacheEntries int
}

// ReadConfigFile reads a pipeline configuration from the TOML file at
// filename. Environment variables in file paths are expanded.
func ReadConfigFile(filename string) (*Config, error) {
	c := new(Config)
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("demandgrid: while reading configuration file %s: %v", filename, err)
	}
	for _, p := range []*string{
		&c.LanduseFile, &c.PopulationFile, &c.CountriesFile, &c.SubregionsFile,
		&c.LoadFile, &c.ProfilesFile, &c.SharesFile, &c.AssumptionsFile,
		&c.OutputDir, &c.CacheDir,
	} {
		*p = os.ExpandEnv(*p)
	}
	return c, nil
}

// A Pipeline runs the disaggregation stages in dependency order,
// memoizing each stage result so that rerunning a partially finished run
// only computes what is missing. When Config.CacheDir is set, stage
// results persist on disk across processes; deleting a cache file is the
// way to force recomputation of that stage.
type Pipeline struct {
	Config *Config

	// Obs, if non-nil, receives progress reports from long-running
	// stages.
	Obs Observer

	mx     sync.Mutex
	caches map[string]*requestcache.Cache
	salt   string

	rasterOnce          sync.Once
	landuse, population *Raster
	rasterErr           error
	geomOnce            sync.Once
	countries, parts    []*Region
	geomErr             error
	assumptionsOnce     sync.Once
	assumptions         *Assumptions
	assumptionsErr      error
}

// NewPipeline creates a pipeline for the given configuration. Stage cache
// keys incorporate a hash of the configuration, so runs with different
// inputs or parameters never share cached results.
func NewPipeline(c *Config) *Pipeline {
	return &Pipeline{
		Config: c,
		caches: make(map[string]*requestcache.Cache),
		salt:   hashKey(c),
	}
}

// getOrCompute returns the result of the named stage, computing it with f
// only if it is in neither the memory nor the disk cache.
func (p *Pipeline) getOrCompute(ctx context.Context, stage string, f requestcache.ProcessFunc) (interface{}, error) {
	p.mx.Lock()
	c, ok := p.caches[stage]
	if !ok {
		mem := p.Config.MaxCacheEntries
		if mem <= 0 {
			mem = 1
		}
		var err error
		c, err = newStageCache(f, 1, mem, p.Config.CacheDir)
		if err != nil {
			p.mx.Unlock()
			return nil, err
		}
		p.caches[stage] = c
	}
	p.mx.Unlock()
	return c.NewRequest(ctx, nil, stage+"_"+p.salt).Result()
}

// rasters reads the land-use and population rasters, once per process.
func (p *Pipeline) rasters() (landuse, population *Raster, err error) {
	p.rasterOnce.Do(func() {
		c := p.Config
		p.landuse, p.rasterErr = ReadRasterCDF(c.LanduseFile, c.LanduseVar, c.Grid)
		if p.rasterErr != nil {
			return
		}
		p.population, p.rasterErr = ReadRasterCDF(c.PopulationFile, c.PopulationVar, c.Grid)
	})
	return p.landuse, p.population, p.rasterErr
}

// geometry reads the country and subregion shapefiles and intersects them
// into country-parts, once per process.
func (p *Pipeline) geometry() (countries, parts []*Region, err error) {
	p.geomOnce.Do(func() {
		c := p.Config
		p.countries, p.geomErr = ReadRegions(c.CountriesFile, c.CountryColumn, "", c.Grid)
		if p.geomErr != nil {
			return
		}
		var subregions []*Region
		subregions, p.geomErr = ReadRegions(c.SubregionsFile, c.SubregionColumn, "", c.Grid)
		if p.geomErr != nil {
			return
		}
		p.parts = CountryParts(subregions, p.countries)
	})
	return p.countries, p.parts, p.geomErr
}

func (p *Pipeline) landuseAssumptions() (*Assumptions, error) {
	p.assumptionsOnce.Do(func() {
		p.assumptions, p.assumptionsErr = ReadAssumptions(p.Config.AssumptionsFile)
	})
	return p.assumptions, p.assumptionsErr
}

// countryStats computes the zonal statistics of the rasters over the
// country polygons.
func (p *Pipeline) countryStats(ctx context.Context, _ interface{}) (interface{}, error) {
	landuse, population, err := p.rasters()
	if err != nil {
		return nil, err
	}
	countries, _, err := p.geometry()
	if err != nil {
		return nil, err
	}
	a, err := p.landuseAssumptions()
	if err != nil {
		return nil, err
	}
	return ZonalStats(countries, landuse, population, a.Categories, p.Obs)
}

// partStats computes the zonal statistics of the rasters over the
// country-part polygons.
func (p *Pipeline) partStats(ctx context.Context, _ interface{}) (interface{}, error) {
	landuse, population, err := p.rasters()
	if err != nil {
		return nil, err
	}
	_, parts, err := p.geometry()
	if err != nil {
		return nil, err
	}
	a, err := p.landuseAssumptions()
	if err != nil {
		return nil, err
	}
	return ZonalStats(parts, landuse, population, a.Categories, p.Obs)
}

// sectoralLoad splits the hourly country totals into per-sector series.
func (p *Pipeline) sectoralLoad(ctx context.Context, _ interface{}) (interface{}, error) {
	c := p.Config
	total, err := ReadHourlySeries(c.LoadFile)
	if err != nil {
		return nil, err
	}
	profiles, err := ReadHourlySeries(c.ProfilesFile)
	if err != nil {
		return nil, err
	}
	shares, err := ReadShares(c.SharesFile, c.DefaultShareCountry)
	if err != nil {
		return nil, err
	}
	return DisaggregateSectors(total, profiles, shares, c.Sectors)
}

// perUnitLoad derives the per-person and per-pixel load series of each
// country from the sectoral loads and the country zonal statistics.
func (p *Pipeline) perUnitLoad(ctx context.Context, _ interface{}) (interface{}, error) {
	statsI, err := p.getOrCompute(ctx, "stats_countries", p.countryStats)
	if err != nil {
		return nil, err
	}
	sectI, err := p.getOrCompute(ctx, "load_sectors", p.sectoralLoad)
	if err != nil {
		return nil, err
	}
	a, err := p.landuseAssumptions()
	if err != nil {
		return nil, err
	}
	w, err := NormalizeWeights(a, p.Config.Sectors)
	if err != nil {
		return nil, err
	}
	return LoadPerUnit(sectI.(*SectoralLoad), statsI.(*ZonalTable), w), nil
}

// subregionLoad assembles the final per-subregion hourly series from the
// country-part statistics and the per-unit loads.
func (p *Pipeline) subregionLoad(ctx context.Context, _ interface{}) (interface{}, error) {
	partStatsI, err := p.getOrCompute(ctx, "stats_country_parts", p.partStats)
	if err != nil {
		return nil, err
	}
	perUnitI, err := p.getOrCompute(ctx, "load_landuse", p.perUnitLoad)
	if err != nil {
		return nil, err
	}
	_, parts, err := p.geometry()
	if err != nil {
		return nil, err
	}
	return AggregateSubregions(parts, partStatsI.(*ZonalTable), perUnitI.(*PerUnitLoad), p.Obs), nil
}

// Run executes the full disaggregation and writes the result tables, each
// with a JSON provenance sidecar, to Config.OutputDir. Stages whose
// results are already cached are not recomputed.
func (p *Pipeline) Run(ctx context.Context) error {
	c := p.Config
	if err := os.MkdirAll(c.OutputDir, 0755); err != nil {
		return fmt.Errorf("demandgrid: while creating output directory: %v", err)
	}
	rasterInputs := map[string]string{
		"landuse":    c.LanduseFile,
		"population": c.PopulationFile,
	}
	gridParams := map[string]interface{}{"grid": c.Grid}

	Log.Info("demandgrid: computing country zonal statistics")
	statsI, err := p.getOrCompute(ctx, "stats_countries", p.countryStats)
	if err != nil {
		return err
	}
	path := filepath.Join(c.OutputDir, "stats_countries.csv")
	if err := WriteZonalTable(path, "Country", statsI.(*ZonalTable)); err != nil {
		return err
	}
	inputs := map[string]string{"countries": c.CountriesFile}
	for k, v := range rasterInputs {
		inputs[k] = v
	}
	if err := writeMeta(path, gridParams, inputs); err != nil {
		return err
	}

	Log.Info("demandgrid: disaggregating load to sectors")
	sectI, err := p.getOrCompute(ctx, "load_sectors", p.sectoralLoad)
	if err != nil {
		return err
	}
	sectoral := sectI.(*SectoralLoad)
	path = filepath.Join(c.OutputDir, "load_sectors.csv")
	if err := WriteSectoralLoad(path, sectoral); err != nil {
		return err
	}
	sectorParams := map[string]interface{}{
		"sectors":             c.Sectors,
		"defaultShareCountry": c.DefaultShareCountry,
	}
	sectorInputs := map[string]string{
		"load":     c.LoadFile,
		"profiles": c.ProfilesFile,
		"shares":   c.SharesFile,
	}
	if err := writeMeta(path, sectorParams, sectorInputs); err != nil {
		return err
	}
	path = filepath.Join(c.OutputDir, "load_yearly_totals.csv")
	if err := WriteYearlyTotals(path, YearlyTotals(sectoral)); err != nil {
		return err
	}
	if err := writeMeta(path, sectorParams, sectorInputs); err != nil {
		return err
	}

	Log.Info("demandgrid: deriving per-unit loads")
	perUnitI, err := p.getOrCompute(ctx, "load_landuse", p.perUnitLoad)
	if err != nil {
		return err
	}
	path = filepath.Join(c.OutputDir, "load_landuse.csv")
	if err := WritePerUnitLoad(path, perUnitI.(*PerUnitLoad)); err != nil {
		return err
	}
	if err := writeMeta(path, sectorParams, map[string]string{"assumptions": c.AssumptionsFile}); err != nil {
		return err
	}

	Log.Info("demandgrid: computing country-part zonal statistics")
	partStatsI, err := p.getOrCompute(ctx, "stats_country_parts", p.partStats)
	if err != nil {
		return err
	}
	path = filepath.Join(c.OutputDir, "stats_country_parts.csv")
	if err := WriteZonalTable(path, "Country_part", partStatsI.(*ZonalTable)); err != nil {
		return err
	}
	inputs = map[string]string{
		"countries":  c.CountriesFile,
		"subregions": c.SubregionsFile,
	}
	for k, v := range rasterInputs {
		inputs[k] = v
	}
	if err := writeMeta(path, gridParams, inputs); err != nil {
		return err
	}

	Log.Info("demandgrid: aggregating subregion loads")
	subI, err := p.getOrCompute(ctx, "load_subregions", p.subregionLoad)
	if err != nil {
		return err
	}
	path = filepath.Join(c.OutputDir, "load_subregions.csv")
	if err := WriteSubregionLoad(path, subI.(*SubregionLoad)); err != nil {
		return err
	}
	if err := writeMeta(path, sectorParams, map[string]string{"subregions": c.SubregionsFile}); err != nil {
		return err
	}
	Log.Infof("demandgrid: finished; results are in %s", c.OutputDir)
	return nil
}
