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

package tabletwriter

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory Client used by node_channel_test.go and
// index_channel_test.go to drive backend behavior without a real gRPC
// server, the same role fakesqldb/fakevtctldclient clients play for
// the rest of vttablet's unit tests.
type FakeClient struct {
	mu sync.Mutex

	OpenFunc     func(ctx context.Context, req *OpenRequest) (*OpenResponse, error)
	AddBatchFunc func(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error)
	CancelFunc   func(ctx context.Context, req *CancelRequest) (*CancelResponse, error)

	OpenRequests     []*OpenRequest
	AddBatchRequests []*AddBatchRequest
	CancelRequests   []*CancelRequest

	lastPacketSeq int64
	haveSeq       bool
	closed        bool
}

// NewFakeClient returns a FakeClient that accepts everything: Open and
// AddBatch succeed immediately, AddBatch enforces the strictly monotone
// packet-sequence invariant itself so a buggy caller fails fast in tests.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	f.mu.Lock()
	f.OpenRequests = append(f.OpenRequests, req)
	fn := f.OpenFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &OpenResponse{OK: true}, nil
}

func (f *FakeClient) AddBatch(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error) {
	f.mu.Lock()
	f.AddBatchRequests = append(f.AddBatchRequests, req)
	if f.haveSeq && req.PacketSeq <= f.lastPacketSeq {
		f.mu.Unlock()
		return nil, fmt.Errorf("tabletwriter: non-monotone packet_seq %d after %d", req.PacketSeq, f.lastPacketSeq)
	}
	f.lastPacketSeq = req.PacketSeq
	f.haveSeq = true
	fn := f.AddBatchFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	resp := &AddBatchResponse{OK: true}
	if req.EOS {
		for _, id := range req.TabletIDs {
			resp.TabletCommitInfos = append(resp.TabletCommitInfos, TabletCommitInfo{TabletID: id})
		}
	}
	return resp, nil
}

func (f *FakeClient) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	f.mu.Lock()
	f.CancelRequests = append(f.CancelRequests, req)
	fn := f.CancelFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &CancelResponse{OK: true}, nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
