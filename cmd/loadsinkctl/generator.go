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

package main

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dorisdb/loadsink/go/vt/vttablet/loadsink"
)

// rowGenerator produces a deterministic stream of synthetic rows shaped
// like the base index's columns, standing in for the query-execution
// runtime's row batches (an external collaborator per spec.md §1) so
// loadsinkctl can drive a real Sink without one.
type rowGenerator struct {
	cols  []loadsink.ColumnDesc
	total int
	sent  int
}

func newRowGenerator(schema loadsink.SchemaParam, total int) *rowGenerator {
	var cols []loadsink.ColumnDesc
	if len(schema.Indexes) > 0 {
		cols = schema.Indexes[0].Columns
	}
	return &rowGenerator{cols: cols, total: total}
}

func (g *rowGenerator) hasNext() bool { return g.sent < g.total }

// next returns up to n synthetic rows, advancing the generator's
// position.
func (g *rowGenerator) next(n int) *loadsink.RowBatch {
	if g.sent+n > g.total {
		n = g.total - g.sent
	}
	rows := make([]loadsink.Row, n)
	for i := 0; i < n; i++ {
		rows[i] = g.syntheticRow(g.sent + i)
	}
	g.sent += n
	return &loadsink.RowBatch{Rows: rows}
}

func (g *rowGenerator) syntheticRow(seq int) loadsink.Row {
	row := make(loadsink.Row, len(g.cols))
	for i, col := range g.cols {
		row[i] = syntheticValue(col, seq)
	}
	return row
}

func syntheticValue(col loadsink.ColumnDesc, seq int) loadsink.Value {
	switch col.Type {
	case loadsink.ColumnTypeBool:
		return loadsink.Value{Bool: seq%2 == 0}
	case loadsink.ColumnTypeInt:
		return loadsink.Value{Int: int64(seq)}
	case loadsink.ColumnTypeFloat:
		return loadsink.Value{Float: float64(seq) * 1.5}
	case loadsink.ColumnTypeString:
		s := fmt.Sprintf("row-%d", seq)
		if col.MaxStringLen > 0 && len(s) > col.MaxStringLen {
			s = s[:col.MaxStringLen]
		}
		return loadsink.Value{Str: s}
	case loadsink.ColumnTypeDecimal:
		return loadsink.Value{Decimal: decimal.New(int64(seq), -int32(col.Scale))}
	case loadsink.ColumnTypeDate, loadsink.ColumnTypeDateTime:
		return loadsink.Value{Time: int64(seq) * 86400 * 1e6}
	default:
		return loadsink.Value{Null: true}
	}
}
