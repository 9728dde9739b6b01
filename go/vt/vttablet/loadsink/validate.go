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

import "github.com/shopspring/decimal"

// precomputeDecimalBounds fills in decimalMin/decimalMax for every
// decimal column of every index, once, at Prepare. Doing this per row
// instead would re-derive the same bound on every validate call; the
// original does the equivalent in OlapTableSink::open via
// _max_decimal_val/_min_decimal_val.
func precomputeDecimalBounds(schema *SchemaParam) {
	for i := range schema.Indexes {
		cols := schema.Indexes[i].Columns
		for j := range cols {
			c := &cols[j]
			if c.Type != ColumnTypeDecimal {
				continue
			}
			c.decimalMax, c.decimalMin = decimalBoundsForPrecisionScale(c.Precision, c.Scale)
		}
	}
}

func decimalBoundsForPrecisionScale(precision, scale int) (max, min decimal.Decimal) {
	if precision <= 0 {
		precision = 27
	}
	if scale < 0 {
		scale = 0
	}
	intDigits := precision - scale
	if intDigits < 0 {
		intDigits = 0
	}
	max = decimal.New(1, int32(intDigits)).Sub(decimal.New(1, -int32(scale)))
	min = max.Neg()
	return max, min
}

// validateRow checks every column of row against its declared type's
// domain, per spec.md §4.1 "Validation". It returns true if the row is
// valid and false if the row should be silently filtered — validation
// failure is never an error, only a filtered row.
func validateRow(row Row, cols []ColumnDesc) bool {
	if len(row) != len(cols) {
		return false
	}
	for i, v := range row {
		if !validateValue(v, &cols[i]) {
			return false
		}
	}
	return true
}

func validateValue(v Value, col *ColumnDesc) bool {
	if v.Null {
		return col.Nullable
	}
	switch col.Type {
	case ColumnTypeString:
		if col.MaxStringLen > 0 && len(v.Str) > col.MaxStringLen {
			return false
		}
	case ColumnTypeDecimal:
		if col.Precision > 0 && (v.Decimal.GreaterThan(col.decimalMax) || v.Decimal.LessThan(col.decimalMin)) {
			return false
		}
	}
	return true
}
