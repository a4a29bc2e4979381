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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/quodlibetor/promclient/expfmt"
)

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	counter := NewCounter(CounterOpts{
		Name: "test",
		Help: "test help",
	})
	if err := reg.Register(counter); err != nil {
		t.Fatal(err)
	}

	// Re-registering the same collector reports the existing one.
	err := reg.Register(counter)
	are := AlreadyRegisteredError{}
	if !errors.As(err, &are) {
		t.Fatalf("expected AlreadyRegisteredError, got %v", err)
	}
	if are.ExistingCollector != counter {
		t.Error("expected ExistingCollector to be the first registrant")
	}

	// An equal but distinct collector collides as well.
	other := NewCounter(CounterOpts{
		Name: "test",
		Help: "test help",
	})
	if err := reg.Register(other); !errors.As(err, &are) {
		t.Fatalf("expected AlreadyRegisteredError, got %v", err)
	}
}

func TestRegisterDescriptorInconsistency(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewCounter(CounterOpts{
		Name: "test",
		Help: "test help",
	})); err != nil {
		t.Fatal(err)
	}

	// Same name, different help.
	err := reg.Register(NewCounter(CounterOpts{
		Name: "test",
		Help: "different help",
	}))
	die := DescriptorInconsistencyError{}
	if !errors.As(err, &die) {
		t.Fatalf("expected DescriptorInconsistencyError, got %v", err)
	}

	// Same name, different label dimensions.
	err = reg.Register(NewCounterVec(CounterOpts{
		Name: "test",
		Help: "test help",
	}, []string{"method"}))
	if !errors.As(err, &die) {
		t.Fatalf("expected DescriptorInconsistencyError, got %v", err)
	}
}

func TestRegisterInvalidDesc(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewCounter(CounterOpts{
		Name: "in valid",
		Help: "test help",
	})); err == nil {
		t.Error("expected registration of an invalid descriptor to fail")
	}
}

func TestUnregister(t *testing.T) {
	reg := NewRegistry()
	counter := NewCounter(CounterOpts{
		Name: "test",
		Help: "test help",
	})
	MustRegisterWith(t, reg, counter)

	if !reg.Unregister(counter) {
		t.Error("expected Unregister to succeed")
	}
	if reg.Unregister(counter) {
		t.Error("expected second Unregister to fail")
	}

	// The name is free again.
	if err := reg.Register(NewCounter(CounterOpts{
		Name: "test",
		Help: "test help",
	})); err != nil {
		t.Errorf("re-registration after Unregister failed: %v", err)
	}
}

func MustRegisterWith(t *testing.T, r Registerer, cs ...Collector) {
	t.Helper()
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGatherEndToEnd(t *testing.T) {
	reg := NewRegistry()
	requests := NewCounterVec(
		CounterOpts{
			Name: "requests_total",
			Help: "Total requests served.",
		},
		[]string{"method"},
	)
	MustRegisterWith(t, reg, requests)

	requests.WithLabelValues("GET").Inc()
	requests.WithLabelValues("GET").Inc()
	requests.WithLabelValues("GET").Inc()
	requests.WithLabelValues("POST").Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) != 1 {
		t.Fatalf("expected 1 metric family, got %d", len(mfs))
	}
	mf := mfs[0]
	if mf.GetName() != "requests_total" || mf.GetType() != dto.MetricType_COUNTER {
		t.Fatalf("unexpected family %s", mf)
	}
	if len(mf.Metric) != 2 {
		t.Fatalf("expected 2 children, got %d", len(mf.Metric))
	}
	// Children are sorted by label values, so GET comes first.
	if got := mf.Metric[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("expected GET count 3, got %f", got)
	}
	if got := mf.Metric[1].GetCounter().GetValue(); got != 1 {
		t.Errorf("expected POST count 1, got %f", got)
	}

	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			t.Fatal(err)
		}
	}
	out := buf.String()
	for _, expected := range []string{
		"# HELP requests_total Total requests served.\n",
		"# TYPE requests_total counter\n",
		`requests_total{method="GET"} 3` + "\n",
		`requests_total{method="POST"} 1` + "\n",
	} {
		if !bytes.Contains([]byte(out), []byte(expected)) {
			t.Errorf("expected exposition to contain %q, got:\n%s", expected, out)
		}
	}
}

// duplicateCollector sends the same metric twice on collect.
type duplicateCollector struct {
	metric Counter
}

func (c *duplicateCollector) Describe(ch chan<- *Desc) {
	ch <- c.metric.Desc()
}

func (c *duplicateCollector) Collect(ch chan<- Metric) {
	ch <- c.metric
	ch <- c.metric
}

func TestGatherReportsDuplicateSamples(t *testing.T) {
	reg := NewRegistry()
	dup := &duplicateCollector{metric: NewCounter(CounterOpts{
		Name: "dup_total",
		Help: "test help",
	})}
	healthy := NewGauge(GaugeOpts{
		Name: "healthy",
		Help: "test help",
	})
	MustRegisterWith(t, reg, dup, healthy)
	healthy.Set(1)

	mfs, err := reg.Gather()
	dse := DuplicateSampleError{}
	if !errors.As(err, &dse) {
		t.Fatalf("expected DuplicateSampleError, got %v", err)
	}
	if dse.FQName != "dup_total" {
		t.Errorf("unexpected FQName %q", dse.FQName)
	}

	// The snapshot is still usable: the duplicate is dropped, everything
	// else is gathered.
	byName := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}
	if mf, ok := byName["dup_total"]; !ok || len(mf.Metric) != 1 {
		t.Errorf("expected one surviving dup_total sample, got %v", mf)
	}
	if mf, ok := byName["healthy"]; !ok || len(mf.Metric) != 1 {
		t.Errorf("expected healthy to be gathered, got %v", mf)
	}
}

func TestGatherFamiliesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zzz", "aaa", "mmm"} {
		MustRegisterWith(t, reg, NewCounter(CounterOpts{
			Name: name,
			Help: "test help",
		}))
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"aaa", "mmm", "zzz"}
	if len(mfs) != len(want) {
		t.Fatalf("expected %d families, got %d", len(want), len(mfs))
	}
	for i, name := range want {
		if mfs[i].GetName() != name {
			t.Errorf("family %d: expected %q, got %q", i, name, mfs[i].GetName())
		}
	}
}

// uncheckedCollector describes nothing but still emits a metric.
type uncheckedCollector struct{}

func (uncheckedCollector) Describe(chan<- *Desc) {}
func (uncheckedCollector) Collect(ch chan<- Metric) {
	ch <- MustNewConstMetric(
		NewDesc("unchecked", "test help", nil, nil),
		UntypedValue, 42,
	)
}

func TestUncheckedCollector(t *testing.T) {
	reg := NewRegistry()
	MustRegisterWith(t, reg, uncheckedCollector{})

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) != 1 || mfs[0].GetName() != "unchecked" {
		t.Fatalf("unexpected gather result %v", mfs)
	}
	// Unchecked collectors cannot be unregistered.
	if reg.Unregister(uncheckedCollector{}) {
		t.Error("expected Unregister of unchecked collector to fail")
	}
}

func TestGatherers(t *testing.T) {
	reg1 := NewRegistry()
	reg2 := NewRegistry()
	c1 := NewCounter(CounterOpts{Name: "from_one", Help: "test help"})
	c2 := NewCounter(CounterOpts{Name: "from_two", Help: "test help"})
	MustRegisterWith(t, reg1, c1)
	MustRegisterWith(t, reg2, c2)

	mfs, err := Gatherers{reg1, reg2}.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) != 2 {
		t.Fatalf("expected 2 families, got %d", len(mfs))
	}
	if mfs[0].GetName() != "from_one" || mfs[1].GetName() != "from_two" {
		t.Errorf("unexpected families %v", mfs)
	}
}

func TestWriteToTextfile(t *testing.T) {
	reg := NewRegistry()
	c := NewCounter(CounterOpts{Name: "file_total", Help: "test help"})
	MustRegisterWith(t, reg, c)
	c.Add(7)

	fn := filepath.Join(t.TempDir(), "metrics.prom")
	if err := WriteToTextfile(fn, reg); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(content, []byte("file_total 7\n")) {
		t.Errorf("unexpected file content:\n%s", content)
	}
}

func TestDefaultRegistryHasStandardCollectors(t *testing.T) {
	mfs, err := DefaultGatherer.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, expected := range []string{"go_goroutines", "go_gc_duration_seconds"} {
		if !names[expected] {
			t.Errorf("expected default registry to expose %s", expected)
		}
	}
}
