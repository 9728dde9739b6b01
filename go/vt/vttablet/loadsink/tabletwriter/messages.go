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

// Package tabletwriter is the client side of the wire contract to the
// remote tablet-writer service: TabletWriterOpen, TabletWriterAddBatch,
// TabletWriterCancel. The remote service itself is an external
// collaborator, out of scope for this repository; only the request and
// response shapes and a gRPC-backed client are defined here.
package tabletwriter

// OpenRequest is the TabletWriterOpen request.
type OpenRequest struct {
	LoadIDHi, LoadIDLo     uint64
	TxnID                  int64
	IndexID                int64
	SchemaHash             int32
	Schema                 []byte // serialized SchemaParam (every index of the table)
	TupleDescID            int32
	Tablets                []TabletWithPartition
	NumSenders             int32
	NeedGenRollup          bool
	LoadChannelTimeoutSecs int64
	LoadMemLimit           int64
}

// TabletWithPartition pairs a tablet id with the partition it belongs to,
// mirroring the original TTabletWithPartition.
type TabletWithPartition struct {
	TabletID    int64
	PartitionID int64
}

// OpenResponse is the TabletWriterOpen response.
type OpenResponse struct {
	OK      bool
	Message string
}

// AddBatchRequest is the TabletWriterAddBatch request.
type AddBatchRequest struct {
	LoadIDHi, LoadIDLo uint64
	IndexID            int64
	SenderID           int32
	PacketSeq          int64
	RowData            []byte  // serialized row batch
	TabletIDs          []int64 // parallel to the rows in RowData
	EOS                bool
}

// TabletCommitInfo reports commit metadata for one tablet, returned only
// on the eos add-batch response once every sender has signalled eos.
type TabletCommitInfo struct {
	TabletID    int64
	NodeID      int64
	CommittedAt int64 // unix nanos
}

// AddBatchResponse is the TabletWriterAddBatch response.
type AddBatchResponse struct {
	OK                bool
	Message           string
	CommittedPartitions []int64
	TabletCommitInfos []TabletCommitInfo
}

// CancelRequest is the TabletWriterCancel request.
type CancelRequest struct {
	LoadIDHi, LoadIDLo uint64
	IndexID            int64
}

// CancelResponse is the TabletWriterCancel response.
type CancelResponse struct {
	OK bool
}
