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

	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/tabletwriter"
)

// IndexChannel owns every NodeChannel serving one materialized index
// and decides, via handleFailedNode, whether a failed NodeChannel is
// survivable or dooms the whole load.
type IndexChannel struct {
	indexID     IndexID
	schemaHash  int32
	numReplicas int32

	nodeChannels     map[NodeID]*NodeChannel
	channelsByTablet map[TabletID][]*NodeChannel

	chLock         sync.Mutex
	failedChannels map[*NodeChannel]struct{}

	serializeNs    int64
	waitInFlightNs int64
}

// NewIndexChannel constructs an empty channel for one index; Init
// populates it from the tablet-to-node assignment.
func NewIndexChannel(indexID IndexID, schemaHash int32, numReplicas int32) *IndexChannel {
	return &IndexChannel{
		indexID:          indexID,
		schemaHash:       schemaHash,
		numReplicas:      numReplicas,
		nodeChannels:     make(map[NodeID]*NodeChannel),
		channelsByTablet: make(map[TabletID][]*NodeChannel),
		failedChannels:   make(map[*NodeChannel]struct{}),
	}
}

// Init groups tablets by hosting node, creating one NodeChannel per
// node and populating channelsByTablet, using newClient to build each
// node's wire collaborator (production: a dialed GRPCClient; tests: a
// FakeClient).
func (ic *IndexChannel) Init(assignment map[TabletID][]NodeID, newClient func(NodeID) (tabletwriter.Client, error)) error {
	for tabletID, nodeIDs := range assignment {
		for _, nodeID := range nodeIDs {
			nc, ok := ic.nodeChannels[nodeID]
			if !ok {
				client, err := newClient(nodeID)
				if err != nil {
					return errUnknownNode(nodeID)
				}
				nc = NewNodeChannel(ic.indexID, nodeID, ic.schemaHash, client)
				ic.nodeChannels[nodeID] = nc
			}
			nc.AddTablet(tabletID)
			ic.channelsByTablet[tabletID] = append(ic.channelsByTablet[tabletID], nc)
		}
	}
	return nil
}

// Open dispatches open on every NodeChannel before waiting on any of
// them (spec.md §4.3), then folds any NodeChannel failure through
// handleFailedNode.
func (ic *IndexChannel) Open(ctx context.Context, cfg *Config, senderID int32, schema []byte) error {
	for _, nc := range ic.nodeChannels {
		if err := nc.Init(cfg, senderID); err != nil {
			return err
		}
	}
	for _, nc := range ic.nodeChannels {
		nc.Open(ctx, schema, cfg.TupleDescID)
	}
	var firstErr error
	for _, nc := range ic.nodeChannels {
		if err := nc.OpenWait(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if fatal, tabletID, live, needed := ic.handleFailedNode(nc); fatal {
				return errQuorumLost(tabletID, live, needed)
			}
		}
	}
	return nil
}

// AddRow fans row out to every live NodeChannel replicating tabletID.
func (ic *IndexChannel) AddRow(ctx context.Context, row Row, tabletID TabletID) error {
	channels := ic.channelsByTablet[tabletID]
	for _, nc := range channels {
		if nc.Failed() {
			continue
		}
		if err := nc.AddRow(ctx, row, tabletID); err != nil {
			if fatal, failedTablet, live, needed := ic.handleFailedNode(nc); fatal {
				return errQuorumLost(failedTablet, live, needed)
			}
		}
	}
	return nil
}

// Close force-sends every live NodeChannel's remainder, waits for the
// final RPC on each, and folds any failure through handleFailedNode.
func (ic *IndexChannel) Close(ctx context.Context) error {
	var live []*NodeChannel
	for _, nc := range ic.nodeChannels {
		if !nc.Failed() {
			live = append(live, nc)
		}
	}
	for _, nc := range live {
		if err := nc.Close(ctx); err != nil {
			if fatal, tabletID, l, needed := ic.handleFailedNode(nc); fatal {
				return errQuorumLost(tabletID, l, needed)
			}
		}
	}
	for _, nc := range live {
		if err := nc.CloseWait(); err != nil {
			if fatal, tabletID, l, needed := ic.handleFailedNode(nc); fatal {
				return errQuorumLost(tabletID, l, needed)
			}
		}
	}
	return nil
}

// Cancel cancels every NodeChannel in this index.
func (ic *IndexChannel) Cancel(ctx context.Context) {
	for _, nc := range ic.nodeChannels {
		nc.Cancel(ctx)
	}
}

// handleFailedNode is IndexChannel::_handle_failed_node: mark ch
// failed, then recount live replicas for every tablet it served; if any
// tablet falls below strict majority, the whole index load is doomed
// and the offending tablet/live/needed counts are returned for the
// QuorumLost error.
//
// numFailedChannels is tracked via ic.failedChannels rather than by
// checking ch.Failed() before/after: the RPC-result error paths
// (OpenWait, waitInFlightPacket) set the channel's own sticky failed bit
// before the error reaches here, so for them ch.Failed() is already true
// by the time handleFailedNode runs — a "was it already failed" check
// against that bit would not count them. ic.failedChannels is
// this channel's own record of which NodeChannels it has already
// processed, independent of that bit.
func (ic *IndexChannel) handleFailedNode(ch *NodeChannel) (fatal bool, tabletID TabletID, live, needed int) {
	ic.chLock.Lock()
	defer ic.chLock.Unlock()

	ch.markFailed()
	ic.failedChannels[ch] = struct{}{}

	needed = int(ic.numReplicas)/2 + 1
	for tid, channels := range ic.channelsByTablet {
		hasCh := false
		liveCount := 0
		for _, c := range channels {
			if c == ch {
				hasCh = true
			}
			if !c.Failed() {
				liveCount++
			}
		}
		if !hasCh {
			continue
		}
		if liveCount < needed {
			return true, tid, liveCount, needed
		}
	}
	return false, 0, 0, needed
}

// TimeReport folds every NodeChannel's timers and add-batch counters
// into the caller's aggregates.
func (ic *IndexChannel) TimeReport(serializeNs, waitInFlightNs *int64, addBatchCounterMap map[NodeID]AddBatchCounter) {
	*serializeNs += ic.serializeNs
	*waitInFlightNs += ic.waitInFlightNs
	for _, nc := range ic.nodeChannels {
		nc.TimeReport(serializeNs, waitInFlightNs, addBatchCounterMap)
	}
}

// NumFailedChannels returns the count of distinct NodeChannels that have
// been processed by handleFailedNode so far.
func (ic *IndexChannel) NumFailedChannels() int {
	ic.chLock.Lock()
	defer ic.chLock.Unlock()
	return len(ic.failedChannels)
}
