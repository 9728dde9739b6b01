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
	"errors"
	"sync"
	"time"

	"github.com/dorisdb/loadsink/go/sync2"
	"github.com/dorisdb/loadsink/go/vt/log"
	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/tabletwriter"
)

// NodeChannel owns one RPC connection to one backend node for one
// index: it accumulates rows into a node-local batch and sends that
// batch with exactly one request in flight at a time, under a strictly
// monotone per-channel packet sequence number.
//
// Every exported method except Cancel is single-owner: in single-
// threaded mode the Sink's Send goroutine calls them; in multi-threaded
// mode the one consumer goroutine bound to this node's buffer does.
// Nothing here is safe for concurrent callers racing each other, by
// design — see spec.md §5 "Shared state and mutation".
type NodeChannel struct {
	indexID    IndexID
	nodeID     NodeID
	schemaHash int32

	client tabletwriter.Client

	allTablets map[TabletID]struct{}

	rpcTimeout    time.Duration
	maxBatchRows  int
	maxBatchBytes int64

	nextPacketSeq int64
	batch         *RowBatch

	senderID      int32
	loadID        LoadID
	txnID         int64
	needGenRollup bool
	loadTimeoutS  int64
	loadMemLimit  int64

	failed sync2.AtomicBool

	inFlight    bool
	inFlightErr chan error
	inFlightReq *tabletwriter.AddBatchRequest

	serializeNs     sync2.AtomicInt64
	waitInFlightNs  sync2.AtomicInt64
	addBatchCounter AddBatchCounter

	mu sync.Mutex
}

// NewNodeChannel constructs a channel bound to one backend node, using
// client as its wire collaborator (a *tabletwriter.GRPCClient in
// production, a *tabletwriter.FakeClient in tests).
func NewNodeChannel(indexID IndexID, nodeID NodeID, schemaHash int32, client tabletwriter.Client) *NodeChannel {
	return &NodeChannel{
		indexID:    indexID,
		nodeID:     nodeID,
		schemaHash: schemaHash,
		client:     client,
		allTablets: make(map[TabletID]struct{}),
		batch:      newRowBatch(),
	}
}

// AddTablet appends tabletID to the set this channel is responsible
// for. Valid only before Open; afterward the set is immutable.
func (nc *NodeChannel) AddTablet(tabletID TabletID) {
	nc.allTablets[tabletID] = struct{}{}
}

// Init resolves configuration needed for the open request. It does not
// touch the network; that happens in Open.
func (nc *NodeChannel) Init(cfg *Config, senderID int32) error {
	nc.rpcTimeout = cfg.RPCTimeout()
	nc.maxBatchRows = cfg.nodeBatchRows()
	nc.maxBatchBytes = cfg.maxBatchBytes()
	nc.senderID = senderID
	nc.loadID = cfg.LoadID
	nc.txnID = cfg.TxnID
	nc.needGenRollup = cfg.NeedGenRollup
	nc.loadTimeoutS = cfg.LoadChannelTimeoutS
	nc.loadMemLimit = cfg.LoadMemLimit
	return nil
}

// Open issues the asynchronous open RPC without blocking on its result;
// OpenWait observes that result. Splitting the two lets the caller
// dispatch every NodeChannel's open before waiting on any of them, so
// total open latency is bounded by the slowest node rather than the sum
// (spec.md §5 "Scheduling model").
func (nc *NodeChannel) Open(ctx context.Context, schema []byte, tupleDescID int32) {
	nc.inFlightErr = make(chan error, 1)
	go func() {
		octx, cancel := context.WithTimeout(ctx, nc.rpcTimeout)
		defer cancel()

		tablets := make([]tabletwriter.TabletWithPartition, 0, len(nc.allTablets))
		for t := range nc.allTablets {
			tablets = append(tablets, tabletwriter.TabletWithPartition{TabletID: int64(t)})
		}

		req := &tabletwriter.OpenRequest{
			LoadIDHi:               nc.loadID.Hi,
			LoadIDLo:               nc.loadID.Lo,
			TxnID:                  nc.txnID,
			IndexID:                int64(nc.indexID),
			SchemaHash:             nc.schemaHash,
			Schema:                 schema,
			TupleDescID:            tupleDescID,
			Tablets:                tablets,
			NumSenders:             1,
			NeedGenRollup:          nc.needGenRollup,
			LoadChannelTimeoutSecs: nc.loadTimeoutS,
			LoadMemLimit:           nc.loadMemLimit,
		}

		resp, err := nc.client.Open(octx, req)
		if err != nil {
			if errors.Is(octx.Err(), context.DeadlineExceeded) {
				nc.inFlightErr <- errTimeout("node_channel: open rpc to node %d timed out after %s", nc.nodeID, nc.rpcTimeout)
				return
			}
			nc.inFlightErr <- errOpenRPCFailed(nc.nodeID, err)
			return
		}
		if !resp.OK {
			nc.inFlightErr <- errRemoteRejected(nc.nodeID, resp.Message)
			return
		}
		nc.inFlightErr <- nil
	}()
}

// OpenWait blocks until the open RPC dispatched by Open completes.
func (nc *NodeChannel) OpenWait() error {
	err := <-nc.inFlightErr
	if err != nil {
		nc.markFailed()
	}
	return err
}

// AddRow appends row, tagged with tabletID, to the local accumulator
// batch. When the batch reaches its row-count or byte-size bound, it is
// flushed with sendCurBatch(eos=false).
func (nc *NodeChannel) AddRow(ctx context.Context, row Row, tabletID TabletID) error {
	if nc.failed.Get() {
		return errCancelled()
	}
	nc.batch.append(row, tabletID)
	if nc.batch.len() >= nc.maxBatchRows || nc.batch.approxBytes() >= nc.maxBatchBytes {
		return nc.sendCurBatch(ctx, false)
	}
	return nil
}

// Close force-sends any remainder with eos=true.
func (nc *NodeChannel) Close(ctx context.Context) error {
	if nc.failed.Get() {
		return nil
	}
	return nc.sendCurBatch(ctx, true)
}

// CloseWait blocks until the final in-flight RPC completes and surfaces
// its result.
func (nc *NodeChannel) CloseWait() error {
	return nc.waitInFlightPacket()
}

// Cancel marks the channel failed and best-effort cancels the remote
// side; it is the one NodeChannel method safe to call from a goroutine
// other than the channel's owner, since IndexChannel.Cancel fans this
// out concurrently with the owner goroutine potentially still running.
func (nc *NodeChannel) Cancel(ctx context.Context) {
	if !nc.failed.CompareAndSwap(false, true) {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, nc.rpcTimeout)
	defer cancel()
	if _, err := nc.client.Cancel(cctx, &tabletwriter.CancelRequest{
		LoadIDHi: nc.loadID.Hi,
		LoadIDLo: nc.loadID.Lo,
		IndexID:  int64(nc.indexID),
	}); err != nil {
		log.Warningf("node_channel: cancel rpc to node %d failed: %v", nc.nodeID, err)
	}
}

func (nc *NodeChannel) Failed() bool   { return nc.failed.Get() }
func (nc *NodeChannel) NodeID() NodeID { return nc.nodeID }

// markFailed sets the sticky failed bit without attempting to cancel
// the remote RPC, matching NodeChannel::set_failed in the original;
// Cancel (above) is the separate, RPC-issuing operation the Sink uses
// when tearing down the whole load.
func (nc *NodeChannel) markFailed() { nc.failed.Set(true) }

// TimeReport folds this channel's timers and add-batch counter into the
// caller's aggregates, mirroring NodeChannel::time_report.
func (nc *NodeChannel) TimeReport(serializeNs, waitInFlightNs *int64, addBatchCounterMap map[NodeID]AddBatchCounter) {
	*serializeNs += nc.serializeNs.Get()
	*waitInFlightNs += nc.waitInFlightNs.Get()
	agg := addBatchCounterMap[nc.nodeID]
	agg.add(nc.addBatchCounter)
	addBatchCounterMap[nc.nodeID] = agg
}

// sendCurBatch is NodeChannel::_send_cur_batch: wait for any prior
// in-flight RPC, serialize the current batch, dispatch the next one
// asynchronously, and advance the packet sequence.
func (nc *NodeChannel) sendCurBatch(ctx context.Context, eos bool) error {
	waitStart := time.Now()
	if err := nc.waitInFlightPacket(); err != nil {
		return err
	}
	waitElapsed := time.Since(waitStart)

	serializeStart := time.Now()
	rowData, err := serializeRowBatch(nc.batch)
	nc.serializeNs.Add(int64(time.Since(serializeStart)))
	if err != nil {
		return errSerializeFailed(err)
	}

	req := &tabletwriter.AddBatchRequest{
		LoadIDHi:  nc.loadID.Hi,
		LoadIDLo:  nc.loadID.Lo,
		IndexID:   int64(nc.indexID),
		SenderID:  nc.senderID,
		PacketSeq: nc.nextPacketSeq,
		RowData:   rowData,
		TabletIDs: tabletIDsToInt64(nc.batch.TabletIDs),
		EOS:       eos,
	}
	nc.batch = newRowBatch()
	nc.nextPacketSeq++

	nc.inFlight = true
	nc.inFlightReq = req
	nc.inFlightErr = make(chan error, 1)
	dispatchStart := time.Now()
	go func() {
		actx, cancel := context.WithTimeout(ctx, nc.rpcTimeout)
		defer cancel()
		resp, err := nc.client.AddBatch(actx, req)
		elapsed := time.Since(dispatchStart)
		nc.mu.Lock()
		nc.addBatchCounter.ExecutionTime += elapsed
		nc.addBatchCounter.WaitLockTime += waitElapsed
		nc.addBatchCounter.NumCalls++
		nc.mu.Unlock()

		if err != nil {
			if errors.Is(actx.Err(), context.DeadlineExceeded) {
				nc.inFlightErr <- errTimeout("node_channel: add_batch rpc to node %d timed out after %s", nc.nodeID, nc.rpcTimeout)
				return
			}
			nc.inFlightErr <- errOpenRPCFailed(nc.nodeID, err)
			return
		}
		if !resp.OK {
			nc.inFlightErr <- errRemoteRejected(nc.nodeID, resp.Message)
			return
		}
		nc.inFlightErr <- nil
	}()

	return nil
}

// waitInFlightPacket is NodeChannel::_wait_in_flight_packet: block on
// the previously dispatched RPC and surface its failure, if any, as a
// sticky channel failure. This is also the backpressure mechanism: a
// producer that outruns the network blocks here.
func (nc *NodeChannel) waitInFlightPacket() error {
	if !nc.inFlight {
		return nil
	}
	start := time.Now()
	err := <-nc.inFlightErr
	nc.waitInFlightNs.Add(int64(time.Since(start)))
	nc.inFlight = false
	if err != nil {
		nc.markFailed()
		return err
	}
	return nil
}

func tabletIDsToInt64(ids []TabletID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
