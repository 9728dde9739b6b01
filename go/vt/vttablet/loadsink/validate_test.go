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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateRowStringLength(t *testing.T) {
	cols := []ColumnDesc{{Type: ColumnTypeString, MaxStringLen: 3}}
	assert.True(t, validateRow(Row{{Str: "abc"}}, cols))
	assert.False(t, validateRow(Row{{Str: "abcd"}}, cols))
}

func TestValidateRowNullability(t *testing.T) {
	cols := []ColumnDesc{{Type: ColumnTypeInt, Nullable: false}}
	assert.True(t, validateRow(Row{{Int: 1}}, cols))
	assert.False(t, validateRow(Row{{Null: true}}, cols))

	nullableCols := []ColumnDesc{{Type: ColumnTypeInt, Nullable: true}}
	assert.True(t, validateRow(Row{{Null: true}}, nullableCols))
}

func TestValidateRowDecimalBounds(t *testing.T) {
	col := ColumnDesc{Type: ColumnTypeDecimal, Precision: 5, Scale: 2}
	schema := SchemaParam{Indexes: []IndexSchema{{IndexID: 1, Columns: []ColumnDesc{col}}}}
	precomputeDecimalBounds(&schema)
	cols := schema.Indexes[0].Columns

	assert.True(t, validateRow(Row{{Decimal: decimal.RequireFromString("123.45")}}, cols))
	assert.False(t, validateRow(Row{{Decimal: decimal.RequireFromString("1000.00")}}, cols))
	assert.False(t, validateRow(Row{{Decimal: decimal.RequireFromString("-1000.00")}}, cols))
}

func TestValidateRowColumnCountMismatch(t *testing.T) {
	cols := []ColumnDesc{{Type: ColumnTypeInt}}
	assert.False(t, validateRow(Row{{Int: 1}, {Int: 2}}, cols))
}
