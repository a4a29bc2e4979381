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
	"errors"
	"math"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestCounterAdd(t *testing.T) {
	counter := NewCounter(CounterOpts{
		Name:        "test",
		Help:        "test help",
		ConstLabels: Labels{"a": "1", "b": "2"},
	}).(*counter)
	counter.Inc()
	if expected, got := 0.0, counter.valBits.Get(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	if expected, got := uint64(1), counter.valInt.Get(); expected != got {
		t.Errorf("Expected %d, got %d.", expected, got)
	}
	counter.Add(42)
	if expected, got := 0.0, counter.valBits.Get(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	if expected, got := uint64(43), counter.valInt.Get(); expected != got {
		t.Errorf("Expected %d, got %d.", expected, got)
	}

	counter.Add(24.42)
	if expected, got := 24.42, counter.valBits.Get(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	if expected, got := uint64(43), counter.valInt.Get(); expected != got {
		t.Errorf("Expected %d, got %d.", expected, got)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatal(err)
	}
	if expected, got := 67.42, m.GetCounter().GetValue(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestCounterAddPanics(t *testing.T) {
	counter := NewCounter(CounterOpts{
		Name: "test",
		Help: "test help",
	}).(*counter)
	counter.Add(3)

	for _, delta := range []float64{-1, math.NaN()} {
		err := capturePanic(func() { counter.Add(delta) })
		if !errors.Is(err, ErrInvalidDelta) {
			t.Errorf("Add(%f): expected panic with ErrInvalidDelta, got %v", delta, err)
		}
	}

	// The rejected deltas must not have changed the counter.
	if expected, got := 3.0, counter.get(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func capturePanic(f func()) (err error) {
	defer func() {
		if e := recover(); e != nil {
			var ok bool
			if err, ok = e.(error); !ok {
				panic(e)
			}
		}
	}()
	f()
	return nil
}

func TestCounterConcurrency(t *testing.T) {
	const (
		goroutines = 10
		increments = 10000
	)
	counter := NewCounter(CounterOpts{
		Name: "concurrent_total",
		Help: "test help",
	})

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				counter.Inc()
			}
		}()
	}
	wg.Wait()

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatal(err)
	}
	if expected, got := float64(goroutines*increments), m.GetCounter().GetValue(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestCounterVecGetMetricWithLabelValues(t *testing.T) {
	vec := NewCounterVec(
		CounterOpts{
			Name: "test",
			Help: "test help",
		},
		[]string{"l1", "l2"},
	)

	c1, err := vec.GetMetricWithLabelValues("1", "2")
	if err != nil {
		t.Fatal(err)
	}
	c1.Inc()

	c2, err := vec.GetMetricWithLabelValues("1", "2")
	if err != nil {
		t.Fatal(err)
	}
	// Same label values must yield the same child.
	if c1 != c2 {
		t.Error("expected the same child for identical label values")
	}
	c2.Add(2)

	m := &dto.Metric{}
	if err := c1.Write(m); err != nil {
		t.Fatal(err)
	}
	if expected, got := 3.0, m.GetCounter().GetValue(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}

	if _, err := vec.GetMetricWithLabelValues("1"); !errors.Is(err, ErrInconsistentCardinality) {
		t.Errorf("expected ErrInconsistentCardinality, got %v", err)
	}
	if _, err := vec.GetMetricWith(Labels{"l1": "1", "l3": "2"}); !errors.Is(err, ErrInconsistentCardinality) {
		t.Errorf("expected ErrInconsistentCardinality, got %v", err)
	}
}

func TestCounterFunc(t *testing.T) {
	cf := NewCounterFunc(CounterOpts{
		Name:        "test",
		Help:        "test help",
		ConstLabels: Labels{"a": "1"},
	}, func() float64 { return 3.1415 })

	m := &dto.Metric{}
	if err := cf.Write(m); err != nil {
		t.Fatal(err)
	}
	if expected, got := 3.1415, m.GetCounter().GetValue(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
	if expected, got := 1, len(m.GetLabel()); expected != got {
		t.Fatalf("Expected %d labels, got %d.", expected, got)
	}
	if m.GetLabel()[0].GetName() != "a" || m.GetLabel()[0].GetValue() != "1" {
		t.Errorf("unexpected label pair %s", m.GetLabel()[0])
	}
}
