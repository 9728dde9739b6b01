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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorisdb/loadsink/go/pools"
	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/tabletwriter"
)

func TestRowBufferDrainsThenExits(t *testing.T) {
	fc := tabletwriter.NewFakeClient()
	nc := NewNodeChannel(1, 1, 0, fc)
	ic := NewIndexChannel(1, 0, 1)
	ic.channelsByTablet[5] = []*NodeChannel{nc}
	require.NoError(t, nc.Init(&Config{RPCTimeoutMS: 1000, SizeLimitPerBuf: 1000, MaxBatchBytes: 1 << 20}, 0))

	buf := NewRowBuffer(16, 1<<20, nil)

	done := make(chan error, 1)
	ctx := context.Background()
	go func() { done <- buf.ConsumeProcess(ctx) }()

	for i := 0; i < 50; i++ {
		require.NoError(t, buf.Push(ctx, ic, nc, 5, Row{{Int: int64(i)}}))
	}
	buf.TurnOff()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not exit after TurnOff")
	}

	// The consumer only appends to the node channel's batch; closing the
	// channel sends it.
	require.NoError(t, nc.Close(ctx))
	require.NoError(t, nc.CloseWait())

	total := 0
	for _, req := range fc.AddBatchRequests {
		total += len(req.TabletIDs)
	}
	assert.Equal(t, 50, total, "every pushed row must reach the node channel exactly once")
}

func TestRowBufferRejectsPushAfterOff(t *testing.T) {
	buf := NewRowBuffer(4, 1<<20, nil)
	buf.off.Set(true)
	err := buf.Push(context.Background(), nil, nil, 0, Row{{Int: 1}})
	require.Error(t, err)
}

func TestRowBufferMemLimit(t *testing.T) {
	parent := pools.NewMemTracker(1<<20, nil)
	buf := NewRowBuffer(4, 8, parent) // 8 bytes is smaller than one row.
	err := buf.Push(context.Background(), nil, nil, 0, Row{{Str: "a value long enough to exceed the byte limit"}})
	require.Error(t, err)
}
