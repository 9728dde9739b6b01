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

// Package loadsink fans out a stream of rows produced by a query
// fragment into the tablets of a partitioned, replicated OLAP table,
// pipelining one add-batch RPC at a time per (index, node) and
// propagating partial failure through a replica-quorum policy.
package loadsink

import (
	"github.com/shopspring/decimal"
)

// IndexID identifies one materialized index (base table or rollup) of
// the destination table.
type IndexID int64

// TabletID identifies one horizontal shard of one index.
type TabletID int64

// NodeID identifies one backend node hosting tablet replicas.
type NodeID int64

// PartitionID identifies one partition of the destination table.
type PartitionID int64

// LoadID is the 128-bit unique identifier of a load, shared by every
// sender writing the same load.
type LoadID struct {
	Hi, Lo uint64
}

func (id LoadID) String() string {
	return formatLoadID(id.Hi, id.Lo)
}

// ColumnType tags the domain a Value must validate against.
type ColumnType int

const (
	ColumnTypeInvalid ColumnType = iota
	ColumnTypeBool
	ColumnTypeInt
	ColumnTypeFloat
	ColumnTypeString
	ColumnTypeDecimal
	ColumnTypeDate
	ColumnTypeDateTime
)

// ColumnDesc describes one destination column: its type, nullability,
// and the bounds validation must enforce.
type ColumnDesc struct {
	Name     string
	Type     ColumnType
	Nullable bool

	// MaxStringLen bounds ColumnTypeString values; zero means unbounded.
	MaxStringLen int

	// Precision/Scale describe ColumnTypeDecimal values; Min/Max are
	// derived from them once, at Prepare, by precomputeDecimalBounds.
	Precision, Scale int
	decimalMin       decimal.Decimal
	decimalMax       decimal.Decimal
}

// IndexSchema describes one index's column layout and wire-compatibility
// token.
type IndexSchema struct {
	IndexID    IndexID
	SchemaHash int32
	Columns    []ColumnDesc
}

// SchemaParam describes every index of the destination table.
type SchemaParam struct {
	Indexes []IndexSchema
}

func (s *SchemaParam) indexByID(id IndexID) (*IndexSchema, bool) {
	for i := range s.Indexes {
		if s.Indexes[i].IndexID == id {
			return &s.Indexes[i], true
		}
	}
	return nil, false
}

// Value is one column value. Exactly one of the typed fields is
// meaningful, selected by the column's declared ColumnType; Null, when
// true, makes the rest irrelevant.
type Value struct {
	Null    bool
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Decimal decimal.Decimal
	// Time is a unix-micros timestamp for ColumnTypeDate/ColumnTypeDateTime.
	Time int64
}

// Row is one tuple, column-ordered per the destination IndexSchema.
type Row []Value

// RowBatch is the unit of RPC transport and of memory accounting: an
// ordered sequence of rows with a parallel tablet-id side vector
// recording which tablet each row is destined for within the current
// NodeChannel.
type RowBatch struct {
	Rows      []Row
	TabletIDs []TabletID
}

func newRowBatch() *RowBatch {
	return &RowBatch{}
}

func (b *RowBatch) append(row Row, tabletID TabletID) {
	b.Rows = append(b.Rows, row)
	b.TabletIDs = append(b.TabletIDs, tabletID)
}

func (b *RowBatch) len() int { return len(b.Rows) }

// approxBytes is a cheap, allocation-free estimate used for byte-size
// batch bounding; it need not be exact, only monotone in row size.
func (b *RowBatch) approxBytes() int64 {
	var n int64
	for _, row := range b.Rows {
		for _, v := range row {
			n += valueApproxBytes(v)
		}
	}
	n += int64(len(b.TabletIDs)) * 8
	return n
}

func valueApproxBytes(v Value) int64 {
	switch {
	case v.Null:
		return 1
	case v.Str != "":
		return int64(len(v.Str)) + 8
	default:
		return 24
	}
}

func formatLoadID(hi, lo uint64) string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 32)
	for i := 15; i >= 0; i-- {
		buf[i] = hexdigits[hi&0xf]
		hi >>= 4
	}
	for i := 31; i >= 16; i-- {
		buf[i] = hexdigits[lo&0xf]
		lo >>= 4
	}
	return string(buf)
}
