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

// Package prometheus is the core of the instrumentation library. It provides
// metric primitives (Counter, Gauge, Histogram, Summary), label-partitioned
// vectors of those primitives, and a Registry that aggregates any number of
// Collectors into a consistent snapshot for exposition.
//
// The basic usage pattern is to create a metric, register it, and mutate it
// from application code:
//
//	requests := prometheus.NewCounterVec(
//		prometheus.CounterOpts{
//			Name: "http_requests_total",
//			Help: "Total number of HTTP requests served.",
//		},
//		[]string{"method"},
//	)
//	prometheus.MustRegister(requests)
//	requests.WithLabelValues("GET").Inc()
//
// Mutations happen entirely on the caller's goroutine through atomic
// operations, so incrementing an already-created metric never contends on a
// lock. A scrape calls Gather on the registry, which reads the published
// atomic values and returns a sorted, validated snapshot of metric families. A
// Gather that starts after a mutation returns is guaranteed to observe that
// mutation; a Gather racing an in-flight mutation may or may not, and neither
// outcome is an error.
//
// Snapshots are serialized with the sibling expfmt package, typically behind
// the promhttp handler or the push client.
package prometheus
