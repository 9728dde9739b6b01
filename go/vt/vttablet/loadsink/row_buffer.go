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

	"github.com/dorisdb/loadsink/go/pools"
	"github.com/dorisdb/loadsink/go/sync2"
)

// rowItem is one quadruple carried through a RowBuffer, mirroring the
// original's std::tuple<IndexChannel*, NodeChannel*, int64_t, Tuple*>.
type rowItem struct {
	index    *IndexChannel
	node     *NodeChannel
	tabletID TabletID
	row      Row
}

// RowBuffer is a bounded single-producer/single-consumer queue standing
// between the Sink's one producing goroutine and a pool of consumer
// goroutines, used in multi-threaded mode (Config.BufferNum > 0) so a
// slow NodeChannel cannot stall routing into fast ones.
type RowBuffer struct {
	items chan rowItem

	memTracker *pools.MemTracker

	off       sync2.AtomicBool
	consumeErr sync2.AtomicBool

	consumeCount sync2.AtomicInt64
}

// NewRowBuffer constructs a buffer whose queue holds up to sizeLimit
// items and whose deep-copied row storage is capped at byteLimit bytes
// by memTracker (parented to the Sink's own tracker, per spec.md §5's
// hierarchical memory model).
func NewRowBuffer(sizeLimit int, byteLimit int64, parent *pools.MemTracker) *RowBuffer {
	if sizeLimit <= 0 {
		sizeLimit = 1
	}
	return &RowBuffer{
		items:      make(chan rowItem, sizeLimit),
		memTracker: pools.NewMemTracker(byteLimit, parent),
	}
}

// Push deep-copies row into the buffer-local pool and enqueues a
// routing quadruple, blocking until the queue has space. It fails with
// BufferOff when the buffer is not workable, with MemLimit when the copy
// would exceed the byte budget, and with ctx's error if ctx ends while
// it waits for space; a full queue is ordinary backpressure, not failure.
func (b *RowBuffer) Push(ctx context.Context, idx *IndexChannel, node *NodeChannel, tabletID TabletID, row Row) error {
	if !b.Workable() {
		return errBufferOff()
	}

	cp := deepCopyRow(row)
	n := rowApproxBytes(cp)
	if err := b.memTracker.Consume(n); err != nil {
		return errMemLimit("row_buffer: %v", err)
	}

	select {
	case b.items <- rowItem{index: idx, node: node, tabletID: tabletID, row: cp}:
		return nil
	case <-ctx.Done():
		b.memTracker.Release(n)
		return ctx.Err()
	}
}

// ConsumeProcess is the consumer goroutine body: dequeue quadruples and
// call NodeChannel.AddRow on each; on a failure that loses quorum it
// marks the buffer's consume-error bit and drains the remainder to
// unblock the producer without applying it. Returns when the queue is
// empty and TurnOff has been called, with the quorum error if there was
// one.
func (b *RowBuffer) ConsumeProcess(ctx context.Context) error {
	var consumeErr error
	for item := range b.items {
		b.memTracker.Release(rowApproxBytes(item.row))
		b.consumeCount.Add(1)

		if b.consumeErr.Get() {
			continue // draining after a failure: drop, don't apply.
		}
		if err := item.node.AddRow(ctx, item.row, item.tabletID); err != nil {
			if fatal, tabletID, live, needed := item.index.handleFailedNode(item.node); fatal {
				b.consumeErr.Set(true)
				consumeErr = errQuorumLost(tabletID, live, needed)
			}
		}
	}
	return consumeErr
}

// TurnOff signals end of input; the producer must not Push again, but
// the consumer continues draining whatever remains queued.
func (b *RowBuffer) TurnOff() { b.off.Set(true); close(b.items) }

// Workable reports whether the buffer still accepts pushes.
func (b *RowBuffer) Workable() bool { return !b.off.Get() && !b.consumeErr.Get() }

func deepCopyRow(row Row) Row {
	cp := make(Row, len(row))
	copy(cp, row)
	return cp
}

func rowApproxBytes(row Row) int64 {
	var n int64
	for _, v := range row {
		n += valueApproxBytes(v)
	}
	return n
}
