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
	"math/rand"
	"sort"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestSummaryWithDefObjectives(t *testing.T) {
	sum := NewSummary(SummaryOpts{
		Name: "test",
		Help: "test help",
	})

	const total = 10000
	for i := 0; i < total; i++ {
		sum.Observe(float64(i))
	}

	m := &dto.Metric{}
	if err := sum.Write(m); err != nil {
		t.Fatal(err)
	}
	s := m.GetSummary()
	if expected, got := uint64(total), s.GetSampleCount(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
	if expected, got := float64(total*(total-1)/2), s.GetSampleSum(); expected != got {
		t.Errorf("Expected sum %f, got %f.", expected, got)
	}
	if expected, got := len(DefObjectives), len(s.GetQuantile()); expected != got {
		t.Fatalf("Expected %d quantiles, got %d.", expected, got)
	}
	// Quantiles are reported in ascending rank order.
	qs := s.GetQuantile()
	if !sort.SliceIsSorted(qs, func(i, j int) bool {
		return qs[i].GetQuantile() < qs[j].GetQuantile()
	}) {
		t.Error("expected quantiles sorted by rank")
	}
	for _, q := range qs {
		rank := q.GetQuantile()
		tolerance := DefObjectives[rank]
		want := rank * total
		got := q.GetValue()
		if math.Abs(got-want) > 2*tolerance*total {
			t.Errorf("quantile %f: got %f, want around %f", rank, got, want)
		}
	}
}

func TestSummaryWithoutObjectives(t *testing.T) {
	sum := NewSummary(SummaryOpts{
		Name:       "test",
		Help:       "test help",
		Objectives: map[float64]float64{},
	})
	sum.Observe(1)
	sum.Observe(2.5)

	m := &dto.Metric{}
	if err := sum.Write(m); err != nil {
		t.Fatal(err)
	}
	s := m.GetSummary()
	if expected, got := uint64(2), s.GetSampleCount(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
	if expected, got := 3.5, s.GetSampleSum(); expected != got {
		t.Errorf("Expected sum %f, got %f.", expected, got)
	}
	if got := len(s.GetQuantile()); got != 0 {
		t.Errorf("Expected no quantiles, got %d.", got)
	}
}

func TestSummaryRejectsNaNAndQuantileLabel(t *testing.T) {
	sum := NewSummary(SummaryOpts{
		Name: "test",
		Help: "test help",
	})
	if err := capturePanic(func() { sum.Observe(math.NaN()) }); !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("Observe(NaN): expected panic with ErrInvalidObservation, got %v", err)
	}

	if err := capturePanic(func() {
		NewSummaryVec(SummaryOpts{
			Name: "test",
			Help: "test help",
		}, []string{"quantile"})
	}); err == nil {
		t.Error("expected panic for reserved quantile label")
	}
}

func TestSummaryConcurrentObserve(t *testing.T) {
	const (
		goroutines   = 4
		observations = 5000
	)
	sum := NewSummary(SummaryOpts{
		Name: "test",
		Help: "test help",
	})

	var (
		wg       sync.WaitGroup
		mtx      sync.Mutex
		totalSum float64
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			var local float64
			for j := 0; j < observations; j++ {
				v := rnd.Float64()
				local += v
				sum.Observe(v)
			}
			mtx.Lock()
			totalSum += local
			mtx.Unlock()
		}(int64(i))
	}
	wg.Wait()

	m := &dto.Metric{}
	if err := sum.Write(m); err != nil {
		t.Fatal(err)
	}
	s := m.GetSummary()
	if expected, got := uint64(goroutines*observations), s.GetSampleCount(); expected != got {
		t.Errorf("Expected count %d, got %d.", expected, got)
	}
	if got := s.GetSampleSum(); math.Abs(got-totalSum)/totalSum > 1e-9 {
		t.Errorf("Expected sum %f, got %f.", totalSum, got)
	}
}

func TestNewConstSummary(t *testing.T) {
	desc := NewDesc("test", "test help", []string{"method"}, nil)
	s, err := NewConstSummary(
		desc, 4711, 403.42,
		map[float64]float64{0.5: 42.3, 0.9: 323.3},
		"GET",
	)
	if err != nil {
		t.Fatal(err)
	}
	m := &dto.Metric{}
	if err := s.Write(m); err != nil {
		t.Fatal(err)
	}
	got := m.GetSummary()
	if got.GetSampleCount() != 4711 || got.GetSampleSum() != 403.42 {
		t.Errorf("unexpected count/sum: %d/%f", got.GetSampleCount(), got.GetSampleSum())
	}
	if len(got.GetQuantile()) != 2 || got.GetQuantile()[0].GetQuantile() != 0.5 {
		t.Errorf("unexpected quantiles: %v", got.GetQuantile())
	}

	if _, err := NewConstSummary(desc, 1, 1, nil); !errors.Is(err, ErrInconsistentCardinality) {
		t.Errorf("expected ErrInconsistentCardinality, got %v", err)
	}
}
