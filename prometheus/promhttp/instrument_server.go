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
	"net/http"
	"strconv"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/quodlibetor/promclient/prometheus"
)

// InstrumentHandlerInFlight is a middleware that wraps the provided
// http.Handler. It sets the provided prometheus.Gauge to the number of
// requests currently handled by the wrapped http.Handler.
func InstrumentHandlerInFlight(g prometheus.Gauge, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Inc()
		defer g.Dec()
		next.ServeHTTP(w, r)
	})
}

// InstrumentHandlerDuration is a middleware that wraps the provided
// http.Handler to observe the request duration with the provided ObserverVec.
// The ObserverVec must have zero, one, or two non-const non-curried labels.
// For those, the only allowed label names are "code" and "method". Partitioning
// happens by HTTP status code and/or HTTP method if the respective instance
// label names are present in the ObserverVec.
//
// If the wrapped Handler does not set a status code, a status code of 200 is
// assumed.
//
// If the wrapped Handler panics, no values are reported.
func InstrumentHandlerDuration(obs prometheus.ObserverVec, next http.Handler) http.HandlerFunc {
	code, method := checkLabels(obs)

	if code {
		return func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d := &responseWriterDelegator{ResponseWriter: w}
			next.ServeHTTP(d, r)

			obs.With(labels(code, method, r.Method, d.status)).Observe(time.Since(now).Seconds())
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		next.ServeHTTP(w, r)
		obs.With(labels(code, method, r.Method, 0)).Observe(time.Since(now).Seconds())
	}
}

// InstrumentHandlerCounter is a middleware that wraps the provided
// http.Handler to observe the request result with the provided CounterVec.
// The CounterVec must have zero, one, or two non-const non-curried labels. For
// those, the only allowed label names are "code" and "method". Partitioning
// happens by HTTP status code and/or HTTP method if the respective instance
// label names are present in the CounterVec.
//
// If the wrapped Handler does not set a status code, a status code of 200 is
// assumed.
//
// If the wrapped Handler panics, the Counter is not incremented.
func InstrumentHandlerCounter(counter *prometheus.CounterVec, next http.Handler) http.HandlerFunc {
	code, method := checkLabels(counter)

	if code {
		return func(w http.ResponseWriter, r *http.Request) {
			d := &responseWriterDelegator{ResponseWriter: w}
			next.ServeHTTP(d, r)
			counter.With(labels(code, method, r.Method, d.status)).Inc()
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		counter.With(labels(code, method, r.Method, 0)).Inc()
	}
}

// InstrumentHandlerResponseSize is a middleware that wraps the provided
// http.Handler to observe the response size with the provided ObserverVec.
// The label restrictions are the same as for InstrumentHandlerDuration.
func InstrumentHandlerResponseSize(obs prometheus.ObserverVec, next http.Handler) http.Handler {
	code, method := checkLabels(obs)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := &responseWriterDelegator{ResponseWriter: w}
		next.ServeHTTP(d, r)
		obs.With(labels(code, method, r.Method, d.status)).Observe(float64(d.written))
	})
}

// checkLabels verifies that the provided Collector has only allowed instance
// labels and reports which of "code" and "method" are present. It panics on
// any other instance label, as that is a programming error of the caller.
func checkLabels(c prometheus.Collector) (code, method bool) {
	descc := make(chan *prometheus.Desc, 1)
	c.Describe(descc)

	var desc *prometheus.Desc
	select {
	case desc = <-descc:
	default:
		panic("no description provided by collector")
	}
	select {
	case <-descc:
		panic("more than one description provided by collector")
	default:
	}

	// Probe the dimensionality of the metric by creating throw-away
	// children with a growing number of label values.
	for _, lvs := range [][]string{{}, {""}, {"", ""}} {
		m, err := prometheus.NewConstMetric(desc, prometheus.UntypedValue, 0, lvs...)
		if err != nil {
			continue
		}
		var pm dto.Metric
		if err := m.Write(&pm); err != nil {
			panic("error checking metric for labels")
		}
		for _, lp := range pm.GetLabel() {
			switch lp.GetName() {
			case "code":
				code = true
			case "method":
				method = true
			default:
				panic("metric partitioned with non-supported labels")
			}
		}
		return
	}
	panic("metric partitioned with too many labels")
}

func labels(code, method bool, reqMethod string, status int) prometheus.Labels {
	labels := prometheus.Labels{}
	if !code && !method {
		return labels
	}
	if code {
		labels["code"] = sanitizeCode(status)
	}
	if method {
		labels["method"] = sanitizeMethod(reqMethod)
	}
	return labels
}

func sanitizeMethod(m string) string {
	return strings.ToLower(m)
}

// If the wrapped http.Handler has not set a status code, i.e. the value is
// currently 0, sanitizeCode will return 200, for it equates to a 200 OK by
// the http protocol.
func sanitizeCode(s int) string {
	if s == 0 {
		return "200"
	}
	return strconv.Itoa(s)
}

// responseWriterDelegator captures the status code and the number of body
// bytes written by the wrapped handler.
type responseWriterDelegator struct {
	http.ResponseWriter

	status      int
	written     int64
	wroteHeader bool
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}
