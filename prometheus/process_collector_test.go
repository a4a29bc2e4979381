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

//go:build linux

package prometheus

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/efficientgo/core/testutil"

	dto "github.com/prometheus/client_model/go"
)

func TestProcessCollector(t *testing.T) {
	if _, err := os.Stat("/proc"); err != nil {
		t.Skipf("skipping: %v", err)
	}

	reg := NewRegistry()
	testutil.Ok(t, reg.Register(NewProcessCollector(ProcessCollectorOpts{})))

	mfs, err := reg.Gather()
	testutil.Ok(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}
	for _, expected := range []string{
		"process_cpu_seconds_total",
		"process_open_fds",
		"process_max_fds",
		"process_virtual_memory_bytes",
		"process_resident_memory_bytes",
		"process_start_time_seconds",
	} {
		_, ok := byName[expected]
		testutil.Assert(t, ok, "%s missing", expected)
	}

	rss := byName["process_resident_memory_bytes"].GetMetric()[0].GetGauge().GetValue()
	testutil.Assert(t, rss > 0, "resident memory must be positive")
}

func TestProcessCollectorNamespace(t *testing.T) {
	c := NewProcessCollector(ProcessCollectorOpts{Namespace: "ns"})
	descCh := make(chan *Desc, 16)
	c.Describe(descCh)
	close(descCh)
	for d := range descCh {
		if got := d.FQName(); got[:3] != "ns_" {
			t.Errorf("expected namespace prefix, got %q", got)
		}
	}
}

func TestNewPidFileFn(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "pidfile")
	testutil.Ok(t, os.WriteFile(fn, []byte(" "+strconv.Itoa(os.Getpid())+"\n"), 0o600))

	pidFn := NewPidFileFn(fn)
	pid, err := pidFn()
	testutil.Ok(t, err)
	testutil.Equals(t, os.Getpid(), pid)

	if _, err := NewPidFileFn(fn + ".missing")(); err == nil {
		t.Error("expected error for missing pid file")
	}
}
