/*
Copyright 2024 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package loadsink

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashPartitionResolver builds a ResolvePartition func for tables
// partitioned by hash bucket rather than by range/list: it hashes the
// row's key columns with xxhash (the same fast non-cryptographic digest
// the teacher pack reaches for in its own shard/bucket routing code)
// and reduces modulo the bucket count to select a partition id.
func HashPartitionResolver(keyColumns []int, numBuckets int, bucketToPartition map[int]PartitionID) func(Row) (PartitionID, bool) {
	return func(row Row) (PartitionID, bool) {
		if numBuckets <= 0 {
			return 0, false
		}
		h := xxhash.New()
		for _, ci := range keyColumns {
			if ci < 0 || ci >= len(row) {
				return 0, false
			}
			writeValueDigest(h, row[ci])
		}
		bucket := int(h.Sum64() % uint64(numBuckets))
		partID, ok := bucketToPartition[bucket]
		return partID, ok
	}
}

type digestWriter interface {
	Write(p []byte) (int, error)
}

func writeValueDigest(h digestWriter, v Value) {
	if v.Null {
		h.Write([]byte{0})
		return
	}
	switch {
	case v.Str != "":
		h.Write([]byte(v.Str))
	default:
		h.Write([]byte(strconv.FormatInt(v.Int, 10)))
		h.Write([]byte(strconv.FormatFloat(v.Float, 'g', -1, 64)))
	}
}

// buildTabletAssignment derives (index_id, tablet_id) -> [node_id] from
// PartitionParam x LocationParam, once, at Open, and frozen thereafter
// (spec.md §3 "Tablet assignment"). needGenRollup gates whether
// non-base indexes are included at all: when false, the sink never
// opens rollup IndexChannels, per SUPPLEMENTED FEATURES item 2.
func buildTabletAssignment(schema *SchemaParam, partition *PartitionParam, location *LocationParam, needGenRollup bool) map[IndexID]map[TabletID][]NodeID {
	out := make(map[IndexID]map[TabletID][]NodeID, len(schema.Indexes))
	for i, idx := range schema.Indexes {
		isBase := i == 0
		if !isBase && !needGenRollup {
			continue
		}
		byTablet := make(map[TabletID][]NodeID)
		for _, part := range partition.Partitions {
			tabletID, ok := part.TabletsByIndex[idx.IndexID]
			if !ok {
				continue
			}
			byTablet[tabletID] = location.TabletReplicas[tabletID]
		}
		out[idx.IndexID] = byTablet
	}
	return out
}

// tabletForRow resolves the destination tablet id for row under index,
// or false if the row's key falls outside every defined partition —
// a condition the caller must treat as a filtered row, not an error.
func tabletForRow(partition *PartitionParam, indexID IndexID, row Row) (TabletID, bool) {
	partID, ok := partition.ResolvePartition(row)
	if !ok {
		return 0, false
	}
	return partition.tabletFor(partID, indexID)
}
