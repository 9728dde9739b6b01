/*
Copyright 2022 The Vitess Authors.

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

// Package pools holds small resource-accounting helpers shared across the
// tablet server and the load sink. MemTracker plays the role the teacher's
// connection pools play for connection counts, but for byte budgets: a
// hierarchical counter a child can check against its own limit while also
// charging its parent, the same "waiterCount/waiterCap" style accounting
// seen in tabletserver/connpool.Pool.
package pools

import (
	"fmt"

	"github.com/dorisdb/loadsink/go/sync2"
)

// MemTracker is a hierarchical byte-usage counter. Every RowBuffer gets
// its own MemTracker whose parent is the Sink's tracker, so a single
// buffer hitting its own limit never needs to consult siblings, while the
// Sink can still observe (and cap) total memory across every buffer.
type MemTracker struct {
	limit   int64
	used    sync2.AtomicInt64
	parent  *MemTracker
}

func NewMemTracker(limit int64, parent *MemTracker) *MemTracker {
	return &MemTracker{limit: limit, parent: parent}
}

// Consume reserves n bytes, failing without side effects on this or any
// ancestor tracker if it would push this tracker over its own limit.
func (t *MemTracker) Consume(n int64) error {
	if t == nil {
		return nil
	}
	used := t.used.Add(n)
	if t.limit > 0 && used > t.limit {
		t.used.Add(-n)
		return fmt.Errorf("memory limit exceeded: %d + %d > %d", used-n, n, t.limit)
	}
	if t.parent != nil {
		if err := t.parent.Consume(n); err != nil {
			t.used.Add(-n)
			return err
		}
	}
	return nil
}

// Release gives back n bytes previously reserved with Consume.
func (t *MemTracker) Release(n int64) {
	if t == nil {
		return
	}
	t.used.Add(-n)
	if t.parent != nil {
		t.parent.Release(n)
	}
}

func (t *MemTracker) Used() int64 {
	if t == nil {
		return 0
	}
	return t.used.Get()
}

func (t *MemTracker) Limit() int64 {
	if t == nil {
		return 0
	}
	return t.limit
}
