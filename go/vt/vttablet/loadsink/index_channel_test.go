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

	"github.com/stretchr/testify/require"

	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink/tabletwriter"
)

func newIndexChannelWithFakes(t *testing.T, numReplicas int32, assignment map[TabletID][]NodeID) (*IndexChannel, map[NodeID]*tabletwriter.FakeClient) {
	t.Helper()
	fakes := make(map[NodeID]*tabletwriter.FakeClient)
	ic := NewIndexChannel(1, 7, numReplicas)
	err := ic.Init(assignment, func(nodeID NodeID) (tabletwriter.Client, error) {
		fc := tabletwriter.NewFakeClient()
		fakes[nodeID] = fc
		return fc, nil
	})
	require.NoError(t, err)
	return ic, fakes
}

// TestIndexChannelQuorumTolerated covers end-to-end scenario 2: R=3,
// one node drops mid-load; the remaining two still meet quorum
// (3/2+1 == 2 in integer division) so the load succeeds.
func TestIndexChannelQuorumTolerated(t *testing.T) {
	assignment := map[TabletID][]NodeID{10: {1, 2, 3}}
	ic, fakes := newIndexChannelWithFakes(t, 3, assignment)
	fakes[2].AddBatchFunc = func(ctx context.Context, req *tabletwriter.AddBatchRequest) (*tabletwriter.AddBatchResponse, error) {
		return &tabletwriter.AddBatchResponse{OK: false, Message: "disk full"}, nil
	}

	ctx := context.Background()
	cfg := &Config{RPCTimeoutMS: 1000, SizeLimitPerBuf: 1, MaxBatchBytes: 1 << 20}
	require.NoError(t, ic.Open(ctx, cfg, 0, []byte("schema")))

	require.NoError(t, ic.AddRow(ctx, Row{{Int: 1}}, 10))
	require.NoError(t, ic.Close(ctx))
	require.Equal(t, 1, ic.NumFailedChannels())
}

// TestIndexChannelQuorumLost covers end-to-end scenario 3: R=3, two
// nodes drop; quorum (need 2) can't be met with only one live replica.
func TestIndexChannelQuorumLost(t *testing.T) {
	assignment := map[TabletID][]NodeID{10: {1, 2, 3}}
	ic, fakes := newIndexChannelWithFakes(t, 3, assignment)
	failing := func(ctx context.Context, req *tabletwriter.AddBatchRequest) (*tabletwriter.AddBatchResponse, error) {
		return &tabletwriter.AddBatchResponse{OK: false, Message: "down"}, nil
	}
	fakes[2].AddBatchFunc = failing
	fakes[3].AddBatchFunc = failing

	ctx := context.Background()
	cfg := &Config{RPCTimeoutMS: 1000, SizeLimitPerBuf: 1, MaxBatchBytes: 1 << 20}
	require.NoError(t, ic.Open(ctx, cfg, 0, []byte("schema")))

	// The first row's packets are dispatched asynchronously; the two
	// rejections surface when the second row waits on those RPCs.
	require.NoError(t, ic.AddRow(ctx, Row{{Int: 1}}, 10))
	err := ic.AddRow(ctx, Row{{Int: 2}}, 10)
	require.Error(t, err, "losing 2 of 3 replicas must lose quorum")
	require.True(t, IsQuorumLost(err))
}

// TestIndexChannelRoutingTotality covers the routing-totality property:
// a row pushed for a tablet reaches exactly every replica's NodeChannel.
func TestIndexChannelRoutingTotality(t *testing.T) {
	assignment := map[TabletID][]NodeID{10: {1, 2}}
	ic, fakes := newIndexChannelWithFakes(t, 2, assignment)

	ctx := context.Background()
	cfg := &Config{RPCTimeoutMS: 1000, SizeLimitPerBuf: 100, MaxBatchBytes: 1 << 20}
	require.NoError(t, ic.Open(ctx, cfg, 0, []byte("schema")))
	require.NoError(t, ic.AddRow(ctx, Row{{Int: 1}}, 10))
	require.NoError(t, ic.Close(ctx))

	for nodeID, fc := range fakes {
		require.Len(t, fc.AddBatchRequests, 1, "node %d must receive exactly one batch", nodeID)
		require.Equal(t, []int64{10}, fc.AddBatchRequests[0].TabletIDs)
	}
}
