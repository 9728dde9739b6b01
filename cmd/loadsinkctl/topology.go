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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink"
)

// topologyFixture is the on-disk shape of a --topology JSON file: a
// minimal stand-in for the cluster-metadata-discovery collaborator
// spec.md names as out of scope, just enough to drive a real Sink from
// the command line without a live FE/metadata service.
type topologyFixture struct {
	Columns []struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		Nullable  bool   `json:"nullable"`
		MaxLen    int    `json:"max_len"`
		Precision int    `json:"precision"`
		Scale     int    `json:"scale"`
	} `json:"columns"`
	Indexes []struct {
		IndexID    int64 `json:"index_id"`
		SchemaHash int32 `json:"schema_hash"`
	} `json:"indexes"`
	// Partitions maps partition id to, for each index id, the tablet id
	// that partition owns under that index.
	Partitions map[string]map[string]int64 `json:"partitions"`
	// Replicas maps tablet id to its ordered replica node id list.
	Replicas map[string][]int64 `json:"replicas"`
	// Nodes maps node id to a dialable host:port address.
	Nodes map[string]string `json:"nodes"`
}

type topology struct {
	Schema    loadsink.SchemaParam
	Partition loadsink.PartitionParam
	Location  loadsink.LocationParam
	NodesInfo loadsink.NodesInfo

	numReplicas int32
}

func (t *topology) NumReplicas() int32 { return t.numReplicas }

func loadTopologyFixture(path string) (*topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx topologyFixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, err
	}

	cols := make([]loadsink.ColumnDesc, len(fx.Columns))
	for i, c := range fx.Columns {
		cols[i] = loadsink.ColumnDesc{
			Name:         c.Name,
			Type:         parseColumnType(c.Type),
			Nullable:     c.Nullable,
			MaxStringLen: c.MaxLen,
			Precision:    c.Precision,
			Scale:        c.Scale,
		}
	}

	indexes := make([]loadsink.IndexSchema, len(fx.Indexes))
	for i, idx := range fx.Indexes {
		indexes[i] = loadsink.IndexSchema{IndexID: loadsink.IndexID(idx.IndexID), SchemaHash: idx.SchemaHash, Columns: cols}
	}

	partitions := make(map[loadsink.PartitionID]*loadsink.PartitionInfo, len(fx.Partitions))
	for partIDStr, byIndex := range fx.Partitions {
		partID, err := parseID(partIDStr)
		if err != nil {
			return nil, fmt.Errorf("partition id %q: %w", partIDStr, err)
		}
		tabletsByIndex := make(map[loadsink.IndexID]loadsink.TabletID, len(byIndex))
		for idxIDStr, tabletID := range byIndex {
			idxID, err := parseID(idxIDStr)
			if err != nil {
				return nil, fmt.Errorf("index id %q: %w", idxIDStr, err)
			}
			tabletsByIndex[loadsink.IndexID(idxID)] = loadsink.TabletID(tabletID)
		}
		partitions[loadsink.PartitionID(partID)] = &loadsink.PartitionInfo{
			ID:             loadsink.PartitionID(partID),
			TabletsByIndex: tabletsByIndex,
		}
	}

	replicas := make(map[loadsink.TabletID][]loadsink.NodeID, len(fx.Replicas))
	var numReplicas int32
	for tabletIDStr, nodeIDs := range fx.Replicas {
		tabletID, err := parseID(tabletIDStr)
		if err != nil {
			return nil, fmt.Errorf("tablet id %q: %w", tabletIDStr, err)
		}
		ids := make([]loadsink.NodeID, len(nodeIDs))
		for i, n := range nodeIDs {
			ids[i] = loadsink.NodeID(n)
		}
		replicas[loadsink.TabletID(tabletID)] = ids
		if len(ids) > int(numReplicas) {
			numReplicas = int32(len(ids))
		}
	}

	addrs := make(map[loadsink.NodeID]string, len(fx.Nodes))
	for nodeIDStr, addr := range fx.Nodes {
		nodeID, err := parseID(nodeIDStr)
		if err != nil {
			return nil, fmt.Errorf("node id %q: %w", nodeIDStr, err)
		}
		addrs[loadsink.NodeID(nodeID)] = addr
	}

	t := &topology{
		Schema:      loadsink.SchemaParam{Indexes: indexes},
		Location:    loadsink.LocationParam{TabletReplicas: replicas},
		NodesInfo:   loadsink.NodesInfo{Addrs: addrs},
		numReplicas: numReplicas,
	}
	t.Partition = loadsink.PartitionParam{
		Partitions:       partitions,
		ResolvePartition: roundRobinPartitionResolver(partitions),
	}
	return t, nil
}

// roundRobinPartitionResolver stands in for the real key-range/list
// partition lookup (an external cluster-metadata collaborator per
// spec.md §1); it cycles through the fixture's partitions by row
// count, which is enough to exercise routing end to end from synthetic
// data.
func roundRobinPartitionResolver(partitions map[loadsink.PartitionID]*loadsink.PartitionInfo) func(loadsink.Row) (loadsink.PartitionID, bool) {
	ids := make([]loadsink.PartitionID, 0, len(partitions))
	for id := range partitions {
		ids = append(ids, id)
	}
	var n int
	return func(row loadsink.Row) (loadsink.PartitionID, bool) {
		if len(ids) == 0 {
			return 0, false
		}
		id := ids[n%len(ids)]
		n++
		return id, true
	}
}

func parseColumnType(s string) loadsink.ColumnType {
	switch s {
	case "bool":
		return loadsink.ColumnTypeBool
	case "int":
		return loadsink.ColumnTypeInt
	case "float":
		return loadsink.ColumnTypeFloat
	case "string":
		return loadsink.ColumnTypeString
	case "decimal":
		return loadsink.ColumnTypeDecimal
	case "date":
		return loadsink.ColumnTypeDate
	case "datetime":
		return loadsink.ColumnTypeDateTime
	default:
		return loadsink.ColumnTypeInvalid
	}
}

func parseID(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
