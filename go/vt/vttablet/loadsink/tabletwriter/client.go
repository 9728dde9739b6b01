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
)

// Client is the wire contract a NodeChannel speaks to its backend node.
// It is the one collaborator in this repository that crosses a process
// boundary; everything else (routing, batching, quorum) is pure,
// in-process logic that exercises this interface.
type Client interface {
	Open(ctx context.Context, req *OpenRequest) (*OpenResponse, error)
	AddBatch(ctx context.Context, req *AddBatchRequest) (*AddBatchResponse, error)
	Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error)
	Close() error
}
