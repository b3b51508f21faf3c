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
	"io/ioutil"
	"os"
	"reflect"
	"testing"
)

func TestHashKey(t *testing.T) {
	a := &Config{DefaultShareCountry: "DEU"}
	b := &Config{DefaultShareCountry: "FRA"}
	if hashKey(a) == hashKey(b) {
		t.Error("different configurations should produce different keys")
	}
	if hashKey(a) != hashKey(&Config{DefaultShareCountry: "DEU"}) {
		t.Error("equal configurations should produce equal keys")
	}
	// Values gob cannot encode take the textual fallback and must still
	// produce a stable key.
	type unencodable struct{ C chan int }
	u := unencodable{}
	if hashKey(u) != hashKey(u) {
		t.Error("fallback key is not stable")
	}
}

func cacheResult() *ZonalTable {
	z := newZonalTable([]string{"1", PopulationColumn})
	z.Rows["A"] = []float64{3, 7}
	return z
}

func TestStageCache_memory(t *testing.T) {
	var computations int
	f := func(ctx context.Context, request interface{}) (interface{}, error) {
		computations++
		return cacheResult(), nil
	}
	c, err := newStageCache(f, 1, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	first, err := c.NewRequest(ctx, nil, "stage_x").Result()
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.NewRequest(ctx, nil, "stage_x").Result()
	if err != nil {
		t.Fatal(err)
	}
	if computations != 1 {
		t.Errorf("stage computed %d times, want 1", computations)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result differs from computed result: %v != %v", second, first)
	}
}

// A result persisted to disk short-circuits recomputation in a new
// process: a fresh cache over the same directory returns the stored
// result without invoking the compute function.
func TestStageCache_diskShortCircuit(t *testing.T) {
	dir, err := ioutil.TempDir("", "demandgridcache")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	f := func(ctx context.Context, request interface{}) (interface{}, error) {
		return cacheResult(), nil
	}
	c, err := newStageCache(f, 1, 1, dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	want, err := c.NewRequest(ctx, nil, "stage_y").Result()
	if err != nil {
		t.Fatal(err)
	}

	poison := func(ctx context.Context, request interface{}) (interface{}, error) {
		return nil, fmt.Errorf("the result should have come from disk")
	}
	c2, err := newStageCache(poison, 1, 1, dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c2.NewRequest(ctx, nil, "stage_y").Result()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("disk result differs from computed result: %v != %v", got, want)
	}

	// Different keys are recomputed.
	if _, err := c2.NewRequest(ctx, nil, "stage_z").Result(); err == nil {
		t.Error("an uncached key should reach the compute function")
	}
}
