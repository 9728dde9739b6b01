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

// ExprContext projects one destination column from an input row. The
// expression-evaluation engine itself is an external collaborator
// (spec.md §1 "Out of scope"); the sink only needs this narrow
// evaluation hook to support INSERT-style usage, where input columns
// don't already match the destination schema one-for-one.
type ExprContext interface {
	// Eval computes the value of one output column from an input row.
	Eval(input Row) (Value, error)
}

// IdentityExprContext returns the input column at Index unchanged (a
// null Value if Index is out of range): a passthrough projection.
type IdentityExprContext struct {
	Index int
}

func (e IdentityExprContext) Eval(input Row) (Value, error) {
	if e.Index < 0 || e.Index >= len(input) {
		return Value{Null: true}, nil
	}
	return input[e.Index], nil
}

// convertRow projects input through exprCtxs into a destination row
// sized to len(exprCtxs). For direct-load usage exprCtxs is nil and the
// input row is returned unchanged, matching the original's
// _convert_batch being skipped entirely outside INSERT-statement usage.
func convertRow(input Row, exprCtxs []ExprContext) (Row, error) {
	if exprCtxs == nil {
		return input, nil
	}
	out := make(Row, len(exprCtxs))
	for i, ctx := range exprCtxs {
		v, err := ctx.Eval(input)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
