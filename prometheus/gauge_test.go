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
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestGaugeSetAdd(t *testing.T) {
	gauge := NewGauge(GaugeOpts{
		Name: "test",
		Help: "test help",
	})

	gauge.Set(42.5)
	gauge.Inc()
	gauge.Dec()
	gauge.Add(7.5)
	gauge.Sub(20)

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatal(err)
	}
	if expected, got := 30.0, m.GetGauge().GetValue(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestGaugeRejectsNaN(t *testing.T) {
	gauge := NewGauge(GaugeOpts{
		Name: "test",
		Help: "test help",
	})
	gauge.Set(3)

	if err := capturePanic(func() { gauge.Set(math.NaN()) }); !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("Set(NaN): expected panic with ErrInvalidObservation, got %v", err)
	}
	if err := capturePanic(func() { gauge.Add(math.NaN()) }); !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("Add(NaN): expected panic with ErrInvalidObservation, got %v", err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatal(err)
	}
	if expected, got := 3.0, m.GetGauge().GetValue(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestGaugeConcurrency(t *testing.T) {
	const (
		goroutines = 8
		deltas     = 1000
	)
	gauge := NewGauge(GaugeOpts{
		Name: "test",
		Help: "test help",
	})

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < deltas; j++ {
				gauge.Add(1.5)
			}
		}()
	}
	wg.Wait()

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatal(err)
	}
	if expected, got := 1.5*goroutines*deltas, m.GetGauge().GetValue(); expected != got {
		t.Errorf("Expected %f, got %f.", expected, got)
	}
}

func TestGaugeSetToCurrentTime(t *testing.T) {
	gauge := NewGauge(GaugeOpts{
		Name: "test",
		Help: "test help",
	})
	before := float64(time.Now().UnixNano()) / 1e9
	gauge.SetToCurrentTime()
	after := float64(time.Now().UnixNano()) / 1e9

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatal(err)
	}
	got := m.GetGauge().GetValue()
	if got < before || got > after {
		t.Errorf("SetToCurrentTime value %f outside of [%f, %f]", got, before, after)
	}
}

func TestGaugeVecDeleteAndReset(t *testing.T) {
	vec := NewGaugeVec(
		GaugeOpts{
			Name: "test",
			Help: "test help",
		},
		[]string{"l"},
	)
	vec.WithLabelValues("a").Set(1)
	vec.WithLabelValues("b").Set(2)

	if !vec.DeleteLabelValues("a") {
		t.Error("expected DeleteLabelValues to report a deletion")
	}
	if vec.DeleteLabelValues("a") {
		t.Error("expected DeleteLabelValues to find nothing on second call")
	}
	if !vec.Delete(Labels{"l": "b"}) {
		t.Error("expected Delete to report a deletion")
	}

	vec.WithLabelValues("c").Set(3)
	vec.Reset()

	ch := make(chan Metric, 4)
	vec.Collect(ch)
	close(ch)
	if got := len(ch); got != 0 {
		t.Errorf("expected no children after Reset, got %d", got)
	}
}
