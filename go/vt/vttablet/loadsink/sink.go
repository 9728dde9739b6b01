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
	"sync"
	"time"

	"github.com/dorisdb/loadsink/go/pools"
	"github.com/dorisdb/loadsink/go/vt/log"
	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/tabletwriter"
)

// NewClientFunc dials (or fakes) the wire collaborator for one backend
// node; production callers pass something built on tabletwriter.Dial,
// tests pass a constructor returning shared tabletwriter.FakeClients.
type NewClientFunc func(NodeID) (tabletwriter.Client, error)

// Sink is the data-sink front-end: one per query fragment instance. It
// binds to schema/partition/location metadata, converts and validates
// input rows, routes them, and dispatches to IndexChannels, optionally
// through a multi-threaded RowBuffer staging layer.
//
// Sink implements the abstract data-sink capability
// {Prepare, Open, Send, Close, Profile} (spec.md §9 "Dynamic dispatch");
// nothing here assumes it is the only implementation of that capability.
type Sink struct {
	cfg       Config
	newClient NewClientFunc

	exprCtxs []ExprContext

	channels      []*IndexChannel
	tabletAssign  map[IndexID]map[TabletID][]NodeID

	buffers    []*RowBuffer
	bufferWG   sync.WaitGroup
	bufferErrs []error
	bufferMu   sync.Mutex

	memTracker *pools.MemTracker

	partitionIDsMu sync.RWMutex
	partitionIDs   map[PartitionID]struct{}

	senderID int32

	profile *RuntimeProfile

	closed bool
}

// NewSink constructs a Sink bound to newClient for dialing node
// collaborators; exprCtxs may be nil for direct-load usage where input
// rows already match the destination schema.
func NewSink(newClient NewClientFunc, exprCtxs []ExprContext) *Sink {
	return &Sink{
		newClient:    newClient,
		exprCtxs:     exprCtxs,
		partitionIDs: make(map[PartitionID]struct{}),
		profile:      NewRuntimeProfile(),
	}
}

// Init parses cfg and fails with InvalidConfig if required fields are
// missing; it does not touch the network.
func (s *Sink) Init(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.memTracker = pools.NewMemTracker(cfg.LoadMemLimit, nil)
	return nil
}

// Prepare resolves schema-derived state: decimal bound precomputation
// happens here (at Open time conceptually, but cheap and side-effect
// free, so Prepare is where spec.md's "prepare" responsibilities live).
func (s *Sink) Prepare(ctx context.Context) error {
	precomputeDecimalBounds(&s.cfg.Schema)
	return nil
}

// Open builds IndexChannels from schema x partition x location x
// nodes_info, opens every NodeChannel of every index in parallel, and —
// if Config.BufferNum > 0 — spawns that many RowBuffer/consumer pairs.
func (s *Sink) Open(ctx context.Context) error {
	start := time.Now()
	defer func() { s.profile.addTime(&s.profile.OpenTimer, time.Since(start)) }()

	s.tabletAssign = buildTabletAssignment(&s.cfg.Schema, &s.cfg.Partition, &s.cfg.Location, s.cfg.NeedGenRollup)

	for _, idx := range s.cfg.Schema.Indexes {
		assignment, ok := s.tabletAssign[idx.IndexID]
		if !ok {
			continue // rollup index skipped because NeedGenRollup is false.
		}
		ic := NewIndexChannel(idx.IndexID, idx.SchemaHash, s.cfg.NumReplicas)
		if err := ic.Init(assignment, func(nodeID NodeID) (tabletwriter.Client, error) {
			if _, ok := s.cfg.NodesInfo.Addrs[nodeID]; !ok {
				return nil, errUnknownNode(nodeID)
			}
			return s.newClient(nodeID)
		}); err != nil {
			return err
		}
		s.channels = append(s.channels, ic)
	}

	schemaBytes, err := serializeSchema(&s.cfg.Schema)
	if err != nil {
		return errSerializeFailed(err)
	}

	type openResult struct {
		ic  *IndexChannel
		err error
	}
	results := make(chan openResult, len(s.channels))
	for _, ic := range s.channels {
		go func(ic *IndexChannel) {
			results <- openResult{ic: ic, err: ic.Open(ctx, &s.cfg, s.senderID, schemaBytes)}
		}(ic)
	}
	var firstErr error
	for range s.channels {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}
	if firstErr != nil {
		s.cancelAll(ctx)
		return firstErr
	}

	if s.cfg.BufferNum > 0 {
		s.startMultiThreaded(ctx)
	}
	return nil
}

// Send converts, validates, and routes every row of batch. In single-
// threaded mode it calls IndexChannel.AddRow directly and returns only
// once every row is routed; in multi-threaded mode it pushes into the
// appropriate RowBuffer and returns once every row is buffered.
func (s *Sink) Send(ctx context.Context, batch *RowBatch) error {
	start := time.Now()
	defer func() { s.profile.addTime(&s.profile.SendDataTimer, time.Since(start)) }()

	for _, row := range batch.Rows {
		s.profile.InputRows.Add(1)

		convStart := time.Now()
		out, err := convertRow(row, s.exprCtxs)
		s.profile.addTime(&s.profile.ConvertBatchTimer, time.Since(convStart))
		if err != nil {
			return err
		}

		valStart := time.Now()
		valid := true
		for _, ic := range s.channels {
			cols := s.columnsFor(ic.indexID)
			if cols != nil && !validateRow(out, cols) {
				valid = false
				break
			}
		}
		s.profile.addTime(&s.profile.ValidateDataTimer, time.Since(valStart))
		if !valid {
			s.profile.FilteredRows.Add(1)
			continue
		}

		delivered := false
		for _, ic := range s.channels {
			tabletID, ok := tabletForRow(&s.cfg.Partition, ic.indexID, out)
			if !ok {
				continue
			}
			s.observePartition(out)
			if s.cfg.BufferNum > 0 {
				if err := s.routeBuffered(ctx, ic, tabletID, out); err != nil {
					return err
				}
			} else {
				if err := ic.AddRow(ctx, out, tabletID); err != nil {
					return err
				}
			}
			delivered = true
		}
		if delivered {
			s.profile.OutputRows.Add(1)
		} else {
			s.profile.FilteredRows.Add(1)
		}
	}
	return nil
}

// Close drains and tears down the sink. If upstreamStatus is non-nil,
// it short-circuits straight to cancelling every IndexChannel and
// RowBuffer instead of draining them.
func (s *Sink) Close(ctx context.Context, upstreamStatus error) error {
	start := time.Now()
	defer func() { s.profile.addTime(&s.profile.CloseTimer, time.Since(start)) }()

	if s.closed {
		return nil
	}
	s.closed = true

	if upstreamStatus != nil {
		s.multiThreadClose(true)
		s.cancelAll(ctx)
		return upstreamStatus
	}

	s.multiThreadClose(false)

	var firstErr error
	for _, ic := range s.channels {
		if err := ic.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		s.cancelAll(ctx)
		return firstErr
	}

	var serializeNs, waitNs int64
	addBatchMap := make(map[NodeID]AddBatchCounter)
	for _, ic := range s.channels {
		ic.TimeReport(&serializeNs, &waitNs, addBatchMap)
	}
	s.profile.SerializeBatchTimer.Add(serializeNs)
	s.profile.WaitInFlightPacketTimer.Add(waitNs)
	for nodeID, c := range addBatchMap {
		s.profile.mergeNodeCounter(nodeID, c)
	}
	return nil
}

// Profile returns the sink's runtime-profile counters.
func (s *Sink) Profile() *RuntimeProfile { return s.profile }

func (s *Sink) cancelAll(ctx context.Context) {
	for _, ic := range s.channels {
		ic.Cancel(ctx)
	}
}

func (s *Sink) observePartition(row Row) {
	partID, ok := s.cfg.Partition.ResolvePartition(row)
	if !ok {
		return
	}
	s.partitionIDsMu.RLock()
	_, seen := s.partitionIDs[partID]
	s.partitionIDsMu.RUnlock()
	if seen {
		return
	}
	s.partitionIDsMu.Lock()
	s.partitionIDs[partID] = struct{}{}
	s.partitionIDsMu.Unlock()
}

func (s *Sink) columnsFor(indexID IndexID) []ColumnDesc {
	schema, ok := s.cfg.Schema.indexByID(indexID)
	if !ok {
		return nil
	}
	return schema.Columns
}

// startMultiThreaded spawns Config.BufferNum RowBuffer/consumer pairs.
func (s *Sink) startMultiThreaded(ctx context.Context) {
	s.buffers = make([]*RowBuffer, s.cfg.BufferNum)
	for i := range s.buffers {
		buf := NewRowBuffer(int(s.cfg.SizeLimitPerBuf), s.cfg.MemLimitPerBuf, s.memTracker)
		s.buffers[i] = buf
		s.bufferWG.Add(1)
		go func(id int, b *RowBuffer) {
			defer s.bufferWG.Done()
			if err := b.ConsumeProcess(ctx); err != nil {
				s.bufferMu.Lock()
				s.bufferErrs = append(s.bufferErrs, err)
				s.bufferMu.Unlock()
				log.Errorf("row_buffer %d: consume failed: %v", id, err)
			}
		}(i, buf)
	}
}

// routeBuffered shards (IndexChannel, NodeChannel, tabletID, row) into
// the buffer selected by node_id % buffer_num, matching the original's
// modular-hashing producer-side dispatch.
func (s *Sink) routeBuffered(ctx context.Context, ic *IndexChannel, tabletID TabletID, row Row) error {
	for _, nc := range ic.channelsByTablet[tabletID] {
		if nc.Failed() {
			continue
		}
		buf := s.buffers[int64(nc.NodeID())%int64(len(s.buffers))]
		if err := buf.Push(ctx, ic, nc, tabletID, row); err != nil {
			return err
		}
	}
	return nil
}

// multiThreadClose tears down the multi-threaded staging layer: normal
// close waits for every buffer to drain; cancel interrupts immediately
// by turning every buffer off without waiting for in-flight pushes.
func (s *Sink) multiThreadClose(isCancel bool) {
	if len(s.buffers) == 0 {
		return
	}
	for _, buf := range s.buffers {
		buf.TurnOff()
	}
	if !isCancel {
		s.bufferWG.Wait()
	}
}

