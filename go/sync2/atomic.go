/*
Copyright 2019 The Vitess Authors.

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

// Package sync2 holds small concurrency primitives shared across the
// tablet server and the load sink. It plays the same role as vitess's own
// sync2 package (referenced throughout the teacher pack as
// sync2.AtomicInt64, sync2.AtomicBool) for code that wants an explicit
// atomic type rather than bare sync/atomic function calls.
package sync2

import "sync/atomic"

// AtomicInt64 is an int64 that must be accessed atomically.
type AtomicInt64 struct {
	v int64
}

func NewAtomicInt64(n int64) AtomicInt64 {
	return AtomicInt64{v: n}
}

func (i *AtomicInt64) Add(delta int64) int64 { return atomic.AddInt64(&i.v, delta) }
func (i *AtomicInt64) Get() int64            { return atomic.LoadInt64(&i.v) }
func (i *AtomicInt64) Set(n int64)           { atomic.StoreInt64(&i.v, n) }

func (i *AtomicInt64) CompareAndSwap(oldval, newval int64) bool {
	return atomic.CompareAndSwapInt64(&i.v, oldval, newval)
}

// AtomicBool is a bool that must be accessed atomically.
type AtomicBool struct {
	v int32
}

func NewAtomicBool(b bool) AtomicBool {
	a := AtomicBool{}
	a.Set(b)
	return a
}

func (b *AtomicBool) Set(v bool) {
	i := int32(0)
	if v {
		i = 1
	}
	atomic.StoreInt32(&b.v, i)
}

func (b *AtomicBool) Get() bool { return atomic.LoadInt32(&b.v) != 0 }

// CompareAndSwap sets the value to newval only if the current value
// equals oldval, and reports whether it did.
func (b *AtomicBool) CompareAndSwap(oldval, newval bool) bool {
	o, n := int32(0), int32(0)
	if oldval {
		o = 1
	}
	if newval {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.v, o, n)
}
