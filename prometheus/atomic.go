// Copyright 2024 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prometheus

import (
	"math"
	"sync/atomic"
)

// The types below are the value primitives all metric implementations in this
// package are built on. Mutation goes exclusively through atomic operations;
// there is no lock anywhere on the value path. Get always returns a value that
// was completely written by some Inc/Add/Set call, never a torn read.

// atomicUint64 is an atomically mutated unsigned integer cell.
type atomicUint64 struct {
	// Keep as the only field so that the enclosing struct controls the
	// 64-bit alignment required by sync/atomic on 32-bit platforms:
	// http://golang.org/pkg/sync/atomic/#pkg-note-BUG
	v uint64
}

func (a *atomicUint64) Inc() {
	atomic.AddUint64(&a.v, 1)
}

func (a *atomicUint64) Add(delta uint64) {
	atomic.AddUint64(&a.v, delta)
}

func (a *atomicUint64) Set(v uint64) {
	atomic.StoreUint64(&a.v, v)
}

func (a *atomicUint64) Get() uint64 {
	return atomic.LoadUint64(&a.v)
}

// atomicFloat64 is an atomically mutated float64 cell. Add is implemented as a
// compare-and-swap retry loop over the float's bit pattern: read the current
// bits, compute the new value, attempt the swap, retry on conflict. Retries
// are bounded only by contention; no starvation guarantee is made beyond the
// fairness of the underlying CAS primitive.
type atomicFloat64 struct {
	bits uint64 // Alignment, see atomicUint64.
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		oldBits := atomic.LoadUint64(&a.bits)
		newBits := math.Float64bits(math.Float64frombits(oldBits) + delta)
		if atomic.CompareAndSwapUint64(&a.bits, oldBits, newBits) {
			return
		}
	}
}

func (a *atomicFloat64) Set(v float64) {
	atomic.StoreUint64(&a.bits, math.Float64bits(v))
}

func (a *atomicFloat64) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits))
}
