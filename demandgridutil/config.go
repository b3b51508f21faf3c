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

package demandgridutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"

	"github.com/spatialmodel/demandgrid"
)

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// gridConfig unmarshals a viper configuration for the raster georeference.
func gridConfig(cfg *viper.Viper) (demandgrid.GeoRef, error) {
	gr := demandgrid.GeoRef{
		Nx:   cfg.GetInt("Grid.Nx"),
		Ny:   cfg.GetInt("Grid.Ny"),
		Dx:   cfg.GetFloat64("Grid.Dx"),
		Dy:   cfg.GetFloat64("Grid.Dy"),
		X0:   cfg.GetFloat64("Grid.X0"),
		Y0:   cfg.GetFloat64("Grid.Y0"),
		Proj: os.ExpandEnv(cfg.GetString("Grid.Proj")),
	}
	if gr.Nx <= 0 || gr.Ny <= 0 {
		return gr, fmt.Errorf("demandgrid: parsing grid configuration: Grid.Nx=%d and Grid.Ny=%d but both should be >0", gr.Nx, gr.Ny)
	}
	if !(gr.Dx > 0) || !(gr.Dy > 0) {
		return gr, fmt.Errorf("demandgrid: parsing grid configuration: Grid.Dx=%g and Grid.Dy=%g but both should be >0", gr.Dx, gr.Dy)
	}
	return gr, nil
}

// PipelineConfig unmarshals a viper configuration for the load
// disaggregation pipeline.
func PipelineConfig(cfg *viper.Viper) (*demandgrid.Config, error) {
	gr, err := gridConfig(cfg)
	if err != nil {
		return nil, err
	}
	c := &demandgrid.Config{
		LanduseFile:         os.ExpandEnv(cfg.GetString("LanduseFile")),
		LanduseVar:          cfg.GetString("LanduseVar"),
		PopulationFile:      os.ExpandEnv(cfg.GetString("PopulationFile")),
		PopulationVar:       cfg.GetString("PopulationVar"),
		Grid:                gr,
		CountriesFile:       os.ExpandEnv(cfg.GetString("CountriesFile")),
		CountryColumn:       cfg.GetString("CountryColumn"),
		SubregionsFile:      os.ExpandEnv(cfg.GetString("SubregionsFile")),
		SubregionColumn:     cfg.GetString("SubregionColumn"),
		LoadFile:            os.ExpandEnv(cfg.GetString("LoadFile")),
		ProfilesFile:        os.ExpandEnv(cfg.GetString("ProfilesFile")),
		SharesFile:          os.ExpandEnv(cfg.GetString("SharesFile")),
		DefaultShareCountry: cfg.GetString("DefaultShareCountry"),
		AssumptionsFile:     os.ExpandEnv(cfg.GetString("AssumptionsFile")),
		Sectors:             expandStringSlice(cfg.GetStringSlice("Sectors")),
		OutputDir:           os.ExpandEnv(cfg.GetString("OutputDir")),
		CacheDir:            os.ExpandEnv(cfg.GetString("CacheDir")),
		MaxCacheEntries:     cfg.GetInt("MaxCacheEntries"),
	}
	if len(c.Sectors) == 0 {
		return nil, fmt.Errorf("demandgrid: parsing configuration: Sectors is not specified")
	}
	resIncluded := false
	for _, s := range c.Sectors {
		if s == demandgrid.ResidentialSector {
			resIncluded = true
			break
		}
	}
	if !resIncluded {
		return nil, fmt.Errorf("demandgrid: parsing configuration: Sectors must include the residential sector %s", demandgrid.ResidentialSector)
	}
	if c.DefaultShareCountry == "" {
		return nil, fmt.Errorf("demandgrid: parsing configuration: DefaultShareCountry is not specified")
	}
	return c, nil
}

// transmissionConfig unmarshals a viper configuration for the
// transmission assumptions.
func transmissionConfig(cfg *viper.Viper) (*demandgrid.TransmissionConfig, error) {
	effStrings := GetStringMapString("Transmission.Efficiency", cfg)
	eff := make(map[string]float64, len(effStrings))
	for typ, v := range effStrings {
		e, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("demandgrid: parsing Transmission.Efficiency for line type %s: %v", typ, err)
		}
		eff[typ] = e
	}
	return &demandgrid.TransmissionConfig{
		Efficiency:   eff,
		DefaultType:  cfg.GetString("Transmission.DefaultType"),
		WACC:         cfg.GetFloat64("Transmission.WACC"),
		Depreciation: cfg.GetFloat64("Transmission.Depreciation"),
	}, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}
