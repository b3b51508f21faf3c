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

// Package demandgridutil wires the demandgrid library into a command-line
// interface with layered flag, environment, and configuration-file
// settings.
package demandgridutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/demandgrid"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to demandgrid.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory the output tables are written to.
              It can include environment variables.`,
			defaultVal: "output",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of raster columns.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of raster rows.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the raster cell width in the units of the grid
              projection.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the raster cell height in the units of the grid
              projection.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "Grid.X0",
			usage: `
              Grid.X0 is the X coordinate of the lower-left corner of the
              raster grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "Grid.Y0",
			usage: `
              Grid.Y0 is the Y coordinate of the lower-left corner of the
              raster grid.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "Grid.Proj",
			usage: `
              Grid.Proj gives the projection of the raster grid in Proj4
              format.`,
			defaultVal: "+proj=longlat +datum=WGS84 +no_defs",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags()},
		},
		{
			name: "LanduseFile",
			usage: `
              LanduseFile is the path to the NetCDF file holding the
              categorical land-use raster. It can include environment
              variables.`,
			defaultVal: "landuse.nc",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "LanduseVar",
			usage: `
              LanduseVar is the name of the land-use variable within
              LanduseFile.`,
			defaultVal: "lu",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "PopulationFile",
			usage: `
              PopulationFile is the path to the NetCDF file holding the
              population count raster. It can include environment
              variables.`,
			defaultVal: "population.nc",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "PopulationVar",
			usage: `
              PopulationVar is the name of the population variable within
              PopulationFile.`,
			defaultVal: "pop",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "CountriesFile",
			usage: `
              CountriesFile is the path to the shapefile of country
              polygons. It can include environment variables.`,
			defaultVal: "countries.shp",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "CountryColumn",
			usage: `
              CountryColumn is the attribute field of CountriesFile holding
              the country code.`,
			defaultVal: "NAME_SHORT",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "SubregionsFile",
			usage: `
              SubregionsFile is the path to the shapefile of model
              subregion polygons. It can include environment variables.`,
			defaultVal: "subregions.shp",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags(), transmissionCmd.Flags()},
		},
		{
			name: "SubregionColumn",
			usage: `
              SubregionColumn is the attribute field of SubregionsFile
              holding the subregion name.`,
			defaultVal: "NAME_SHORT",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags(), sitesCmd.Flags(), transmissionCmd.Flags()},
		},
		{
			name: "LoadFile",
			usage: `
              LoadFile is the path to the CSV table of hourly total load
              per country. It can include environment variables.`,
			defaultVal: "load.csv",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "ProfilesFile",
			usage: `
              ProfilesFile is the path to the CSV table of hourly demand
              profiles per sector. It can include environment variables.`,
			defaultVal: "profiles.csv",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "SharesFile",
			usage: `
              SharesFile is the path to the CSV table of sectoral demand
              shares per country. It can include environment variables.`,
			defaultVal: "shares.csv",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "DefaultShareCountry",
			usage: `
              DefaultShareCountry is the country whose sectoral shares
              substitute for countries missing from SharesFile.`,
			defaultVal: "DEU",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "AssumptionsFile",
			usage: `
              AssumptionsFile is the path to the CSV table of
              land-use/sector coefficients. It can include environment
              variables.`,
			defaultVal: "assumptions_landuse.csv",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "Sectors",
			usage: `
              Sectors are the demand sectors the load is disaggregated
              into.`,
			defaultVal: []string{"AGR", "COM", "IND", "STR", "RES"},
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "CacheDir",
			usage: `
              CacheDir is the directory for cached intermediate stage
              results. If it is empty, results are only cached in memory.
              It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "MaxCacheEntries",
			usage: `
              MaxCacheEntries is the number of stage results to hold in
              memory.`,
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "Sites.LandMaskFile",
			usage: `
              Sites.LandMaskFile is the path to the NetCDF land mask
              raster. It can include environment variables.`,
			defaultVal: "land.nc",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Sites.LandMaskVar",
			usage: `
              Sites.LandMaskVar is the name of the variable within
              Sites.LandMaskFile.`,
			defaultVal: "land",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Sites.SeaMaskFile",
			usage: `
              Sites.SeaMaskFile is the path to the NetCDF sea (exclusive
              economic zone) mask raster. It can include environment
              variables.`,
			defaultVal: "eez.nc",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Sites.SeaMaskVar",
			usage: `
              Sites.SeaMaskVar is the name of the variable within
              Sites.SeaMaskFile.`,
			defaultVal: "eez",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "Sites.AreaProj",
			usage: `
              Sites.AreaProj is the equal-area projection, in Proj4 format,
              site areas are measured in.`,
			defaultVal: "+proj=aea +lat_1=29 +lat_2=68 +lat_0=48 +lon_0=10 +x_0=0 +y_0=0",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags()},
		},
		{
			name: "SitesFile",
			usage: `
              SitesFile is the path the site table is written to by the
              sites command and read from by the transmission and commodity
              commands. It can include environment variables.`,
			defaultVal: "sites.csv",
			flagsets:   []*pflag.FlagSet{sitesCmd.Flags(), transmissionCmd.Flags(), commodityCmd.Flags()},
		},
		{
			name: "Transmission.LinesFile",
			usage: `
              Transmission.LinesFile is the path to the CSV table of
              cleaned transmission lines. It can include environment
              variables.`,
			defaultVal: "grid_cleaned.csv",
			flagsets:   []*pflag.FlagSet{transmissionCmd.Flags()},
		},
		{
			name: "Transmission.CostsFile",
			usage: `
              Transmission.CostsFile is the path to the CSV table of
              length-limited line cost tiers. It can include environment
              variables.`,
			defaultVal: "line_costs.csv",
			flagsets:   []*pflag.FlagSet{transmissionCmd.Flags()},
		},
		{
			name: "Transmission.MapProj",
			usage: `
              Transmission.MapProj gives the projection of the subregion
              shapefile and the line endpoint coordinates in Proj4 format.`,
			defaultVal: "+proj=longlat +datum=WGS84 +no_defs",
			flagsets:   []*pflag.FlagSet{transmissionCmd.Flags()},
		},
		{
			name: "Transmission.Efficiency",
			usage: `
              Transmission.Efficiency is the transmission efficiency per
              1000 km of line, by line type.`,
			defaultVal: map[string]string{
				"AC_OHL": "0.92",
				"AC_CAB": "0.90",
				"DC_OHL": "0.95",
				"DC_CAB": "0.95",
			},
			flagsets: []*pflag.FlagSet{transmissionCmd.Flags()},
		},
		{
			name: "Transmission.DefaultType",
			usage: `
              Transmission.DefaultType is the line type assumed for
              neighboring subregions with no existing line between them.`,
			defaultVal: "AC_OHL",
			flagsets:   []*pflag.FlagSet{transmissionCmd.Flags()},
		},
		{
			name: "Transmission.WACC",
			usage: `
              Transmission.WACC is the weighted average cost of capital
              used for line investments.`,
			defaultVal: 0.07,
			flagsets:   []*pflag.FlagSet{transmissionCmd.Flags()},
		},
		{
			name: "Transmission.Depreciation",
			usage: `
              Transmission.Depreciation is the depreciation period of line
              investments in years.`,
			defaultVal: 50.0,
			flagsets:   []*pflag.FlagSet{transmissionCmd.Flags()},
		},
		{
			name: "Commodity.AssumptionsFile",
			usage: `
              Commodity.AssumptionsFile is the path to the xlsx assumptions
              workbook holding the Commodity sheet. It can include
              environment variables.`,
			defaultVal: "assumptions.xlsx",
			flagsets:   []*pflag.FlagSet{commodityCmd.Flags()},
		},
		{
			name: "Commodity.SubregionLoadFile",
			usage: `
              Commodity.SubregionLoadFile is the path to the per-subregion
              hourly load table written by the load command, used to join
              annual electricity demand onto the commodity table. It can
              include environment variables.`,
			defaultVal: "output/load_subregions.csv",
			flagsets:   []*pflag.FlagSet{commodityCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DEMANDGRID")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(loadCmd)
	Root.AddCommand(sitesCmd)
	Root.AddCommand(transmissionCmd)
	Root.AddCommand(commodityCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("demandgrid: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "demandgrid",
	Short: "Spatial load disaggregation for energy-system models.",
	Long: `demandgrid assembles input datasets for energy-system optimization
models: it disaggregates national hourly electricity demand to arbitrary
sub-national regions using raster-based zonal statistics, and derives the
site, transmission, and commodity tables of the model.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'DEMANDGRID_var' where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of demandgrid.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("demandgrid v%s\n", demandgrid.Version)
	},
	DisableAutoGenTag: true,
}

// loadCmd runs the load disaggregation pipeline.
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Disaggregate national load to subregions.",
	Long: `load runs the full disaggregation pipeline: zonal statistics over the
country polygons, sectoral disaggregation of the hourly country totals,
per-unit load derivation, zonal statistics over the country-parts, and
aggregation to the subregions. Intermediate stage results are cached in
CacheDir, so an interrupted run resumes where it left off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := PipelineConfig(Cfg)
		if err != nil {
			return err
		}
		p := demandgrid.NewPipeline(c)
		p.Obs = logObserver()
		return p.Run(context.Background())
	},
	DisableAutoGenTag: true,
}

// sitesCmd generates the site table from the subregion shapefile.
var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Generate the site table.",
	Long: `sites derives the site table of the energy model from the subregion
shapefile: one site per subregion with its centroid, equal-area surface,
offshore marking, and slack-node flag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gr, err := gridConfig(Cfg)
		if err != nil {
			return err
		}
		subregions, err := demandgrid.ReadRegions(
			os.ExpandEnv(Cfg.GetString("SubregionsFile")),
			Cfg.GetString("SubregionColumn"), "", gr)
		if err != nil {
			return err
		}
		land, err := demandgrid.ReadRasterCDF(
			os.ExpandEnv(Cfg.GetString("Sites.LandMaskFile")),
			Cfg.GetString("Sites.LandMaskVar"), gr)
		if err != nil {
			return err
		}
		sea, err := demandgrid.ReadRasterCDF(
			os.ExpandEnv(Cfg.GetString("Sites.SeaMaskFile")),
			Cfg.GetString("Sites.SeaMaskVar"), gr)
		if err != nil {
			return err
		}
		sites, err := demandgrid.GenerateSites(subregions, land, sea,
			Cfg.GetString("Sites.AreaProj"), logObserver())
		if err != nil {
			return err
		}
		return demandgrid.WriteSites(sitesPath(Cfg), sites)
	},
	DisableAutoGenTag: true,
}

// transmissionCmd generates the aggregated interregional line table.
var transmissionCmd = &cobra.Command{
	Use:   "transmission",
	Short: "Generate the transmission table.",
	Long: `transmission assigns the endpoints of the cleaned transmission lines to
subregions, aggregates the interregional lines by region pair and type,
adds expandable connections between neighboring subregions, and completes
the table with lengths, efficiencies, and tiered costs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := demandgrid.ReadLines(os.ExpandEnv(Cfg.GetString("Transmission.LinesFile")))
		if err != nil {
			return err
		}
		costs, err := demandgrid.ReadLineCosts(os.ExpandEnv(Cfg.GetString("Transmission.CostsFile")))
		if err != nil {
			return err
		}
		subregions, err := demandgrid.ReadRegions(
			os.ExpandEnv(Cfg.GetString("SubregionsFile")),
			Cfg.GetString("SubregionColumn"), "",
			demandgrid.GeoRef{Proj: Cfg.GetString("Transmission.MapProj")})
		if err != nil {
			return err
		}
		sites, err := demandgrid.ReadSites(sitesPath(Cfg))
		if err != nil {
			return err
		}
		tc, err := transmissionConfig(Cfg)
		if err != nil {
			return err
		}
		trans, err := demandgrid.GenerateTransmission(lines, subregions, sites, costs, tc)
		if err != nil {
			return err
		}
		return demandgrid.WriteTransmission(
			filepath.Join(os.ExpandEnv(Cfg.GetString("OutputDir")), "transmission.csv"), trans)
	},
	DisableAutoGenTag: true,
}

// commodityCmd generates the per-site commodity table.
var commodityCmd = &cobra.Command{
	Use:   "commodity",
	Short: "Generate the commodity table.",
	Long: `commodity crosses the site table with the commodities of the assumptions
workbook, selecting in-state or out-of-state prices per site and joining
the annual electricity demand from the disaggregated subregion loads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		assumptions, err := demandgrid.ReadCommodityAssumptions(
			os.ExpandEnv(Cfg.GetString("Commodity.AssumptionsFile")))
		if err != nil {
			return err
		}
		sites, err := demandgrid.ReadSites(sitesPath(Cfg))
		if err != nil {
			return err
		}
		subLoad, err := demandgrid.ReadHourlySeries(
			os.ExpandEnv(Cfg.GetString("Commodity.SubregionLoadFile")))
		if err != nil {
			return err
		}
		annual := make(map[string]float64, len(subLoad))
		for name, series := range subLoad {
			var sum float64
			for _, v := range series {
				sum += v
			}
			annual[name] = sum
		}
		commodities := demandgrid.GenerateCommodities(assumptions, sites, annual)
		return demandgrid.WriteCommodities(
			filepath.Join(os.ExpandEnv(Cfg.GetString("OutputDir")), "commodity.csv"), commodities)
	},
	DisableAutoGenTag: true,
}

// sitesPath returns the configured location of the site table.
func sitesPath(cfg *viper.Viper) string {
	p := os.ExpandEnv(cfg.GetString("SitesFile"))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(os.ExpandEnv(cfg.GetString("OutputDir")), p)
}

// logObserver reports stage progress at 10% steps.
func logObserver() demandgrid.Observer {
	lastTenth := make(map[string]int)
	return func(stage string, done, total int) {
		if total == 0 {
			return
		}
		if _, ok := lastTenth[stage]; !ok {
			lastTenth[stage] = -1
		}
		if tenth := done * 10 / total; tenth > lastTenth[stage] {
			lastTenth[stage] = tenth
			demandgrid.Log.Infof("demandgrid: %s: %d%%", stage, tenth*10)
		}
	}
}
