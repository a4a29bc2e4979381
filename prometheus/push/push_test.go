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

package push

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quodlibetor/promclient/expfmt"
	"github.com/quodlibetor/promclient/prometheus"
)

func TestPush(t *testing.T) {
	var (
		lastMethod string
		lastBody   []byte
		lastPath   string
	)

	// Fake a Pushgateway that responds with 200 to DELETE and with 202 in
	// all other cases.
	pgwOK := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastMethod = r.Method
			var err error
			lastBody, err = io.ReadAll(r.Body)
			if err != nil {
				t.Fatal(err)
			}
			lastPath = r.URL.EscapedPath()
			w.Header().Set("Content-Type", `text/plain; charset=utf-8`)
			if r.Method == http.MethodDelete {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		}),
	)
	defer pgwOK.Close()

	// Fake a Pushgateway that always responds with 500.
	pgwErr := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "fake error", http.StatusInternalServerError)
		}),
	)
	defer pgwErr.Close()

	metric1 := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "testname1",
		Help: "testhelp1",
	})
	metric2 := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "testname2",
		Help:        "testhelp2",
		ConstLabels: prometheus.Labels{"foo": "bar", "dings": "bums"},
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(metric1)
	reg.MustRegister(metric2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}
	enc := expfmt.NewEncoder(buf, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			t.Fatal(err)
		}
	}
	wantBody := buf.Bytes()

	// Push registered collectors.
	if err := New(pgwOK.URL, "testjob").
		Gatherer(reg).
		Push(); err != nil {
		t.Fatal(err)
	}
	if lastMethod != http.MethodPut {
		t.Errorf("expected method PUT for Push, got %s", lastMethod)
	}
	if !bytes.Equal(lastBody, wantBody) {
		t.Errorf("unexpected body, got:\n%s\nwant:\n%s", lastBody, wantBody)
	}
	if lastPath != "/metrics/job/testjob" {
		t.Errorf("unexpected path %q", lastPath)
	}

	// Add with a grouping label.
	if err := New(pgwOK.URL, "testjob").
		Gatherer(reg).
		Grouping("zone", "xy").
		Add(); err != nil {
		t.Fatal(err)
	}
	if lastMethod != http.MethodPost {
		t.Errorf("expected method POST for Add, got %s", lastMethod)
	}
	if lastPath != "/metrics/job/testjob/zone/xy" {
		t.Errorf("unexpected path %q", lastPath)
	}

	// Delete.
	if err := New(pgwOK.URL, "testjob").
		Grouping("zone", "xy").
		Delete(); err != nil {
		t.Fatal(err)
	}
	if lastMethod != http.MethodDelete {
		t.Errorf("expected method DELETE, got %s", lastMethod)
	}
	if len(lastBody) != 0 {
		t.Errorf("expected empty body for DELETE, got %q", lastBody)
	}

	// Pushes to a broken Pushgateway must fail.
	if err := New(pgwErr.URL, "testjob").Gatherer(reg).Push(); err == nil {
		t.Error("expected error pushing to failing Pushgateway")
	} else if !strings.Contains(err.Error(), "fake error") {
		t.Errorf("expected response body in error, got %v", err)
	}

	// An empty job name fails early.
	if err := New(pgwOK.URL, "").Gatherer(reg).Push(); err == nil {
		t.Error("expected error for empty job name")
	}

	// Invalid grouping label name fails.
	if err := New(pgwOK.URL, "testjob").
		Grouping("foo bar", "xy").
		Push(); err == nil {
		t.Error("expected error for invalid grouping label")
	}
}

func TestPushCollector(t *testing.T) {
	pgw := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	)
	defer pgw.Close()

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "testname",
		Help: "testhelp",
	})
	if err := New(pgw.URL, "testjob").Collector(c).Push(); err != nil {
		t.Fatal(err)
	}

	// Registering the same collector twice through the builder surfaces the
	// registration error on push.
	if err := New(pgw.URL, "testjob").Collector(c).Collector(c).Push(); err == nil {
		t.Error("expected error for duplicate collector")
	}
}

func TestFullURLEncoding(t *testing.T) {
	p := New("example.org:9091", "test/job")
	if got, want := p.fullURL(), "http://example.org:9091/metrics/job@base64/dGVzdC9qb2I"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	p = New("http://example.org", "testjob").Grouping("empty", "")
	if got, want := p.fullURL(), "http://example.org/metrics/job/testjob/empty@base64/="; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGroupingsRejectMetricLabelCollision(t *testing.T) {
	pgw := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	)
	defer pgw.Close()

	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "testname",
		Help: "testhelp",
	}, []string{"zone"})
	c.WithLabelValues("xy").Inc()

	if err := New(pgw.URL, "testjob").
		Collector(c).
		Grouping("zone", "xy").
		Push(); err == nil {
		t.Error("expected error for grouping label colliding with metric label")
	}
}
