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

package promhttp

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	dto "github.com/prometheus/client_model/go"

	"github.com/quodlibetor/promclient/prometheus"
)

type errorCollector struct{}

func (e errorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- prometheus.NewDesc("invalid_metric", "not helpful", nil, nil)
}

func (e errorCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.NewInvalidMetric(
		prometheus.NewDesc("invalid_metric", "not helpful", nil, nil),
		errors.New("collect error"),
	)
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cnt := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "the_count",
		Help: "Ah-ah-ah! Thunder and lightning!",
	})
	if err := reg.Register(cnt); err != nil {
		t.Fatal(err)
	}
	cnt.Inc()

	handler := HandlerFor(reg, HandlerOpts{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "the_count 1\n") {
		t.Errorf("body does not contain sample:\n%s", w.Body.String())
	}
}

func TestHandlerGzip(t *testing.T) {
	reg := prometheus.NewRegistry()
	cnt := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "the_count",
		Help: "test help",
	})
	if err := reg.Register(cnt); err != nil {
		t.Fatal(err)
	}

	handler := HandlerFor(reg, HandlerOpts{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	handler.ServeHTTP(w, req)

	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", enc)
	}
	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	defer gr.Close()
	body, err := io.ReadAll(gr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "the_count 0\n") {
		t.Errorf("decompressed body does not contain sample:\n%s", body)
	}

	// Compression can be turned off.
	w = httptest.NewRecorder()
	handler = HandlerFor(reg, HandlerOpts{DisableCompression: true})
	handler.ServeHTTP(w, req)
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Errorf("expected no encoding, got %q", enc)
	}
}

func TestHandlerErrorHandling(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(errorCollector{}); err != nil {
		t.Fatal(err)
	}
	cnt := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "the_count",
		Help: "test help",
	})
	if err := reg.Register(cnt); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	w := httptest.NewRecorder()
	HandlerFor(reg, HandlerOpts{ErrorHandling: HTTPErrorOnError}).ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	HandlerFor(reg, HandlerOpts{ErrorHandling: ContinueOnError}).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "the_count") {
		t.Errorf("expected surviving metrics in body:\n%s", w.Body.String())
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic with PanicOnError")
		}
	}()
	HandlerFor(reg, HandlerOpts{ErrorHandling: PanicOnError}).ServeHTTP(httptest.NewRecorder(), req)
}

func TestInstrumentHandlerCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	reqCnt := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests.",
		},
		[]string{"code", "method"},
	)
	if err := reg.Register(reqCnt); err != nil {
		t.Fatal(err)
	}

	handler := InstrumentHandlerCounter(reqCnt, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	m, err := reqCnt.GetMetricWithLabelValues("418", "get")
	if err != nil {
		t.Fatal(err)
	}
	pb := &dto.Metric{}
	if err := m.Write(pb); err != nil {
		t.Fatal(err)
	}
	if got := pb.GetCounter().GetValue(); got != 3 {
		t.Errorf("expected count 3, got %f", got)
	}
}

func TestInstrumentHandlerInFlight(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "in_flight",
		Help: "test help",
	})

	inner := make(chan struct{})
	release := make(chan struct{})
	handler := InstrumentHandlerInFlight(gauge, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(inner)
		<-release
	}))

	go handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	<-inner

	pb := &dto.Metric{}
	if err := gauge.Write(pb); err != nil {
		t.Fatal(err)
	}
	if got := pb.GetGauge().GetValue(); got != 1 {
		t.Errorf("expected 1 in-flight request, got %f", got)
	}
	close(release)
}
