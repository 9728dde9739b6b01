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
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/tabletwriter"
)

func singlePartitionConfig(indexes []IndexSchema, tabletsPerIndex map[IndexID]TabletID, nodeIDs []NodeID) Config {
	tabletsByIndex := make(map[IndexID]TabletID, len(tabletsPerIndex))
	for k, v := range tabletsPerIndex {
		tabletsByIndex[k] = v
	}
	replicas := make(map[TabletID][]NodeID)
	for _, t := range tabletsByIndex {
		replicas[t] = nodeIDs
	}
	addrs := make(map[NodeID]string, len(nodeIDs))
	for _, n := range nodeIDs {
		addrs[n] = "fake"
	}
	return Config{
		TableID:     1,
		NumReplicas: int32(len(nodeIDs)),
		Schema:      SchemaParam{Indexes: indexes},
		Partition: PartitionParam{
			Partitions: map[PartitionID]*PartitionInfo{
				1: {ID: 1, TabletsByIndex: tabletsByIndex},
			},
			ResolvePartition: func(row Row) (PartitionID, bool) { return 1, true },
		},
		Location:        LocationParam{TabletReplicas: replicas},
		NodesInfo:       NodesInfo{Addrs: addrs},
		RPCTimeoutMS:    1000,
		SizeLimitPerBuf: 300,
		MaxBatchBytes:   1 << 20,
	}
}

func newTestSink(fakes map[NodeID]*tabletwriter.FakeClient) *Sink {
	return NewSink(func(nodeID NodeID) (tabletwriter.Client, error) {
		fc := tabletwriter.NewFakeClient()
		fakes[nodeID] = fc
		return fc, nil
	}, nil)
}

// TestSinkSingleIndexSingleNodeBatching covers end-to-end scenario 1:
// R=1, single node, 1000 rows, batch cap 300 -> sequences 0..3.
func TestSinkSingleIndexSingleNodeBatching(t *testing.T) {
	fakes := make(map[NodeID]*tabletwriter.FakeClient)
	s := newTestSink(fakes)
	cfg := singlePartitionConfig(
		[]IndexSchema{{IndexID: 1, SchemaHash: 1, Columns: []ColumnDesc{{Name: "c0", Type: ColumnTypeInt, Nullable: true}}}},
		map[IndexID]TabletID{1: 10},
		[]NodeID{1},
	)
	require.NoError(t, s.Init(cfg))
	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx))
	require.NoError(t, s.Open(ctx))

	rows := make([]Row, 1000)
	for i := range rows {
		rows[i] = Row{{Int: int64(i)}}
	}
	require.NoError(t, s.Send(ctx, &RowBatch{Rows: rows}))
	require.NoError(t, s.Close(ctx, nil))

	fc := fakes[1]
	require.Len(t, fc.AddBatchRequests, 4, "1000 rows at cap 300 must produce 4 packets")
	last := fc.AddBatchRequests[3]
	require.True(t, last.EOS)
	require.Equal(t, int64(3), last.PacketSeq)
}

// TestSinkFilterAccounting covers the filter-accounting property and
// end-to-end scenario 6: a decimal-overflow row is filtered, not erred.
func TestSinkFilterAccounting(t *testing.T) {
	fakes := make(map[NodeID]*tabletwriter.FakeClient)
	s := newTestSink(fakes)
	col := ColumnDesc{Name: "amount", Type: ColumnTypeDecimal, Nullable: false, Precision: 4, Scale: 2}
	cfg := singlePartitionConfig(
		[]IndexSchema{{IndexID: 1, SchemaHash: 1, Columns: []ColumnDesc{col}}},
		map[IndexID]TabletID{1: 10},
		[]NodeID{1},
	)
	require.NoError(t, s.Init(cfg))
	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx))
	require.NoError(t, s.Open(ctx))

	valid := Row{{Decimal: decimal.RequireFromString("12.34")}}
	overflow := Row{{Decimal: decimal.RequireFromString("999.99")}}
	require.NoError(t, s.Send(ctx, &RowBatch{Rows: []Row{valid, overflow}}))
	require.NoError(t, s.Close(ctx, nil))

	p := s.Profile()
	require.Equal(t, int64(2), p.InputRows.Get())
	require.Equal(t, int64(1), p.OutputRows.Get())
	require.Equal(t, int64(1), p.FilteredRows.Get())
	require.Equal(t, p.InputRows.Get(), p.OutputRows.Get()+p.FilteredRows.Get())
}

// TestSinkTwoIndexesFanOut covers end-to-end scenario 4: a row routes
// to tablet T in the base index and T' in a rollup index, each with
// R=2, so exactly two NodeChannels per index receive it.
func TestSinkTwoIndexesFanOut(t *testing.T) {
	fakes := make(map[NodeID]*tabletwriter.FakeClient)
	s := newTestSink(fakes)
	base := IndexSchema{IndexID: 1, SchemaHash: 1, Columns: []ColumnDesc{{Type: ColumnTypeInt, Nullable: true}}}
	rollup := IndexSchema{IndexID: 2, SchemaHash: 2, Columns: []ColumnDesc{{Type: ColumnTypeInt, Nullable: true}}}

	tabletsByIndex := map[IndexID]TabletID{1: 10, 2: 20}
	replicas := map[TabletID][]NodeID{10: {1, 2}, 20: {3, 4}}
	addrs := map[NodeID]string{1: "a", 2: "b", 3: "c", 4: "d"}
	cfg := Config{
		TableID:       1,
		NumReplicas:   2,
		NeedGenRollup: true,
		Schema:        SchemaParam{Indexes: []IndexSchema{base, rollup}},
		Partition: PartitionParam{
			Partitions:       map[PartitionID]*PartitionInfo{1: {ID: 1, TabletsByIndex: tabletsByIndex}},
			ResolvePartition: func(row Row) (PartitionID, bool) { return 1, true },
		},
		Location:        LocationParam{TabletReplicas: replicas},
		NodesInfo:       NodesInfo{Addrs: addrs},
		RPCTimeoutMS:    1000,
		SizeLimitPerBuf: 300,
		MaxBatchBytes:   1 << 20,
	}
	require.NoError(t, s.Init(cfg))
	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx))
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Send(ctx, &RowBatch{Rows: []Row{{{Int: 1}}}}))
	require.NoError(t, s.Close(ctx, nil))

	for _, n := range []NodeID{1, 2, 3, 4} {
		require.Len(t, fakes[n].AddBatchRequests, 1, "node %d must receive exactly one batch", n)
	}
}

// TestSinkMultiThreadedMode covers end-to-end scenario 5: buffer_num=4,
// many rows, several nodes; every buffer drains and no row is lost.
func TestSinkMultiThreadedMode(t *testing.T) {
	fakes := make(map[NodeID]*tabletwriter.FakeClient)
	s := newTestSink(fakes)
	nodeIDs := []NodeID{1, 2, 3, 4, 5, 6, 7, 8}
	cfg := singlePartitionConfig(
		[]IndexSchema{{IndexID: 1, SchemaHash: 1, Columns: []ColumnDesc{{Type: ColumnTypeInt, Nullable: true}}}},
		map[IndexID]TabletID{1: 10},
		nodeIDs,
	)
	cfg.BufferNum = 4
	cfg.MemLimitPerBuf = 1 << 20
	require.NoError(t, s.Init(cfg))
	ctx := context.Background()
	require.NoError(t, s.Prepare(ctx))
	require.NoError(t, s.Open(ctx))

	const numRows = 2000
	rows := make([]Row, numRows)
	for i := range rows {
		rows[i] = Row{{Int: int64(i)}}
	}
	require.NoError(t, s.Send(ctx, &RowBatch{Rows: rows}))
	require.NoError(t, s.Close(ctx, nil))

	for _, n := range nodeIDs {
		total := 0
		for _, req := range fakes[n].AddBatchRequests {
			total += len(req.TabletIDs)
		}
		require.Equal(t, numRows, total, "node %d must see every row exactly once", n)
	}
}
