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
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "doris.TabletWriterService"
	openMethod     = "/" + serviceName + "/Open"
	addBatchMethod = "/" + serviceName + "/AddBatch"
	cancelMethod   = "/" + serviceName + "/Cancel"
)

var _ Client = (*GRPCClient)(nil)

// GRPCClient is the concrete, production Client: one *grpc.ClientConn per
// backend node, guarded the same way boostrpc.RemoteDomainClient guards
// its inner stub, since nothing requires more than one RPC in flight per
// NodeChannel at a time anyway (the spec's at-most-one-in-flight rule).
type GRPCClient struct {
	mu   sync.Mutex
	conn *grpc.ClientConn
}

// Dial opens a client-side connection to addr. It does not block for the
// connection to become ready; the first RPC pays that cost.
func Dial(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	resp := &OpenResponse{}
	if err := c.invoke(ctx, openMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *GRPCClient) AddBatch(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error) {
	resp := &AddBatchResponse{}
	if err := c.invoke(ctx, addBatchMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *GRPCClient) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	resp := &CancelResponse{}
	if err := c.invoke(ctx, cancelMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	return conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(codecName))
}

func (c *GRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
