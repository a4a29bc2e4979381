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
	"testing"

	"github.com/efficientgo/core/testutil"

	dto "github.com/prometheus/client_model/go"
)

func TestGoCollector(t *testing.T) {
	reg := NewRegistry()
	testutil.Ok(t, reg.Register(NewGoCollector()))

	mfs, err := reg.Gather()
	testutil.Ok(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}

	goroutines, ok := byName["go_goroutines"]
	testutil.Assert(t, ok, "go_goroutines missing")
	testutil.Equals(t, dto.MetricType_GAUGE, goroutines.GetType())
	testutil.Assert(t, goroutines.GetMetric()[0].GetGauge().GetValue() >= 1, "at least one goroutine must be running")

	gc, ok := byName["go_gc_duration_seconds"]
	testutil.Assert(t, ok, "go_gc_duration_seconds missing")
	testutil.Equals(t, dto.MetricType_SUMMARY, gc.GetType())

	info, ok := byName["go_info"]
	testutil.Assert(t, ok, "go_info missing")
	testutil.Equals(t, 1.0, info.GetMetric()[0].GetGauge().GetValue())
	testutil.Equals(t, "version", info.GetMetric()[0].GetLabel()[0].GetName())

	_, ok = byName["go_memstats_alloc_bytes"]
	testutil.Assert(t, ok, "go_memstats_alloc_bytes missing")
}

func TestGoCollectorDescribedAndCollectedMatch(t *testing.T) {
	c := NewGoCollector()

	descCh := make(chan *Desc, 64)
	c.Describe(descCh)
	close(descCh)
	described := map[string]struct{}{}
	for d := range descCh {
		described[d.FQName()] = struct{}{}
	}

	metricCh := make(chan Metric, 64)
	c.Collect(metricCh)
	close(metricCh)
	for m := range metricCh {
		_, ok := described[m.Desc().FQName()]
		testutil.Assert(t, ok, "collected metric %s was not described", m.Desc().FQName())
	}
}
