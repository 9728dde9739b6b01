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
	"sync"
	"time"

	"github.com/dorisdb/loadsink/go/sync2"
	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/stats"
)

// AddBatchCounter aggregates add-batch RPC timing for one backend node
// across the whole load, mirroring the original's per-node counter.
type AddBatchCounter struct {
	ExecutionTime time.Duration
	WaitLockTime  time.Duration
	NumCalls      int64
}

func (c *AddBatchCounter) add(o AddBatchCounter) {
	c.ExecutionTime += o.ExecutionTime
	c.WaitLockTime += o.WaitLockTime
	c.NumCalls += o.NumCalls
}

// RuntimeProfile holds the counters spec.md §6 names, emitted at Close.
// Each timer is nanoseconds accumulated via sync2.AtomicInt64 so any
// goroutine touching a channel can report into it without its own lock.
type RuntimeProfile struct {
	InputRows    sync2.AtomicInt64
	OutputRows   sync2.AtomicInt64
	FilteredRows sync2.AtomicInt64

	SendDataTimer           sync2.AtomicInt64
	ConvertBatchTimer       sync2.AtomicInt64
	ValidateDataTimer       sync2.AtomicInt64
	OpenTimer               sync2.AtomicInt64
	CloseTimer              sync2.AtomicInt64
	WaitInFlightPacketTimer sync2.AtomicInt64
	SerializeBatchTimer     sync2.AtomicInt64

	mu                 sync.Mutex
	addBatchCounterMap map[NodeID]AddBatchCounter
}

// NewRuntimeProfile returns a zeroed profile ready to accumulate counters.
func NewRuntimeProfile() *RuntimeProfile {
	return &RuntimeProfile{addBatchCounterMap: make(map[NodeID]AddBatchCounter)}
}

func (p *RuntimeProfile) addTime(counter *sync2.AtomicInt64, d time.Duration) {
	counter.Add(int64(d))
}

// mergeNodeCounter folds one NodeChannel's reported counter into the
// per-node aggregate, matching IndexChannel.TimeReport's
// add_batch_counter_map accumulation in the original.
func (p *RuntimeProfile) mergeNodeCounter(nodeID NodeID, c AddBatchCounter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	agg := p.addBatchCounterMap[nodeID]
	agg.add(c)
	p.addBatchCounterMap[nodeID] = agg
}

// PerNodeAddBatchCounters returns a snapshot of the per-node add-batch
// aggregates, keyed by node id.
func (p *RuntimeProfile) PerNodeAddBatchCounters() map[NodeID]AddBatchCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[NodeID]AddBatchCounter, len(p.addBatchCounterMap))
	for k, v := range p.addBatchCounterMap {
		out[k] = v
	}
	return out
}

// RegisterExporter publishes every scalar counter above through e (the
// per-node add-batch aggregates are available only through
// PerNodeAddBatchCounters), following the connpool.Pool / tabletenv.Env.Exporter() registration
// pattern: each metric is a lazily-read gauge or counter function, never
// a value pushed on every update.
func (p *RuntimeProfile) RegisterExporter(e *stats.Exporter) {
	e.NewCounterFunc("input_rows", "rows received by the sink", p.InputRows.Get)
	e.NewCounterFunc("output_rows", "rows routed to at least one node channel", p.OutputRows.Get)
	e.NewCounterFunc("filtered_rows", "rows excluded by validation or routed to no tablet", p.FilteredRows.Get)

	e.NewGaugeDurationFunc("send_data_timer", "time spent in Send", func() time.Duration {
		return time.Duration(p.SendDataTimer.Get())
	})
	e.NewGaugeDurationFunc("convert_batch_timer", "time spent converting rows", func() time.Duration {
		return time.Duration(p.ConvertBatchTimer.Get())
	})
	e.NewGaugeDurationFunc("validate_data_timer", "time spent validating rows", func() time.Duration {
		return time.Duration(p.ValidateDataTimer.Get())
	})
	e.NewGaugeDurationFunc("open_timer", "time spent in Open", func() time.Duration {
		return time.Duration(p.OpenTimer.Get())
	})
	e.NewGaugeDurationFunc("close_timer", "time spent in Close", func() time.Duration {
		return time.Duration(p.CloseTimer.Get())
	})
	e.NewGaugeDurationFunc("wait_in_flight_packet_timer", "time blocked on a prior in-flight RPC", func() time.Duration {
		return time.Duration(p.WaitInFlightPacketTimer.Get())
	})
	e.NewGaugeDurationFunc("serialize_batch_timer", "time spent serializing batches", func() time.Duration {
		return time.Duration(p.SerializeBatchTimer.Get())
	})
}
