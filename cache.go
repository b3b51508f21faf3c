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
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/ctessum/requestcache"
	"github.com/davecgh/go-spew/spew"
)

func init() {
	gob.Register(&ZonalTable{})
	gob.Register(&SectoralLoad{})
	gob.Register(&PerUnitLoad{})
	gob.Register(&SubregionLoad{})
}

// hashKey returns a stable cache key component for object, so that stage
// results computed under one configuration are never served to another.
// Objects are gob-encoded and hashed; values gob cannot encode (NaNs, for
// example) fall back to a deterministic textual dump.
func hashKey(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err == nil {
		return fmt.Sprintf("%x", h.Sum(nil))
	}
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(h, "%#v", object)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// newStageCache creates a get-or-compute cache for one pipeline stage,
// where f computes the stage result, memEntries is the number of results
// to hold in memory, and dir, if non-empty, is the directory for the
// on-disk cache. The disk cache is path-addressed: the presence of the
// file named after a request key short-circuits recomputation on the next
// invocation, and the absence of the file is the only invalidation
// signal; no staleness check against the inputs is performed.
func newStageCache(f requestcache.ProcessFunc, workers, memEntries int, dir string) (*requestcache.Cache, error) {
	if dir == "" {
		return requestcache.NewCache(f, workers, requestcache.Deduplicate(),
			requestcache.Memory(memEntries)), nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("demandgrid: while creating cache directory: %v", err)
	}
	return requestcache.NewCache(f, workers, requestcache.Deduplicate(),
		requestcache.Memory(memEntries),
		requestcache.Disk(dir, requestcache.MarshalGob, requestcache.UnmarshalGob)), nil
}
