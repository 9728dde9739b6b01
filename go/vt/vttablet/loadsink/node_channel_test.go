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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/tabletwriter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestNodeChannel(t *testing.T, fc *tabletwriter.FakeClient) *NodeChannel {
	t.Helper()
	nc := NewNodeChannel(1, 100, 42, fc)
	require.NoError(t, nc.Init(&Config{RPCTimeoutMS: 1000, SizeLimitPerBuf: 2, MaxBatchBytes: 1 << 20}, 0))
	return nc
}

func TestNodeChannelSequenceMonotonicity(t *testing.T) {
	fc := tabletwriter.NewFakeClient()
	nc := newTestNodeChannel(t, fc)
	nc.AddTablet(1)
	ctx := context.Background()

	nc.Open(ctx, []byte("schema"), 7)
	require.NoError(t, nc.OpenWait())

	for i := 0; i < 5; i++ {
		require.NoError(t, nc.AddRow(ctx, Row{{Int: int64(i)}}, 1))
	}
	require.NoError(t, nc.Close(ctx))
	require.NoError(t, nc.CloseWait())

	var seqs []int64
	eosCount := 0
	for _, req := range fc.AddBatchRequests {
		seqs = append(seqs, req.PacketSeq)
		if req.EOS {
			eosCount++
		}
	}
	for i, seq := range seqs {
		assert.Equal(t, int64(i), seq, "packet_seq must be gap-free and start at 0")
	}
	assert.Equal(t, 1, eosCount, "exactly one eos expected")
	assert.True(t, fc.AddBatchRequests[len(fc.AddBatchRequests)-1].EOS, "eos must be the last sequence number")
}

func TestNodeChannelAtMostOneInFlight(t *testing.T) {
	fc := tabletwriter.NewFakeClient()
	var inFlight, maxInFlight int32
	fc.AddBatchFunc = func(ctx context.Context, req *tabletwriter.AddBatchRequest) (*tabletwriter.AddBatchResponse, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &tabletwriter.AddBatchResponse{OK: true}, nil
	}
	nc := newTestNodeChannel(t, fc)
	nc.AddTablet(1)
	ctx := context.Background()

	nc.Open(ctx, []byte("schema"), 7)
	require.NoError(t, nc.OpenWait())

	// SizeLimitPerBuf=2 forces a flush every two rows; each AddRow call
	// that triggers a flush must observe the prior RPC has already
	// completed before dispatching the next one.
	for i := 0; i < 6; i++ {
		require.NoError(t, nc.AddRow(ctx, Row{{Int: int64(i)}}, 1))
	}
	require.NoError(t, nc.Close(ctx))
	require.NoError(t, nc.CloseWait())

	assert.GreaterOrEqual(t, len(fc.AddBatchRequests), 3)
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight), "at most one add-batch RPC may be in flight at a time")
}

func TestNodeChannelOpenRPCFailure(t *testing.T) {
	fc := tabletwriter.NewFakeClient()
	fc.OpenFunc = func(ctx context.Context, req *tabletwriter.OpenRequest) (*tabletwriter.OpenResponse, error) {
		return &tabletwriter.OpenResponse{OK: false, Message: "schema mismatch"}, nil
	}
	nc := newTestNodeChannel(t, fc)
	nc.AddTablet(1)
	ctx := context.Background()

	nc.Open(ctx, []byte("schema"), 7)
	err := nc.OpenWait()
	require.Error(t, err)
	assert.True(t, nc.Failed())
}

func TestNodeChannelCancelIsIdempotent(t *testing.T) {
	fc := tabletwriter.NewFakeClient()
	nc := newTestNodeChannel(t, fc)
	ctx := context.Background()

	nc.Cancel(ctx)
	nc.Cancel(ctx)
	assert.Len(t, fc.CancelRequests, 1, "a second Cancel must be a no-op")
	assert.True(t, nc.Failed())
}
