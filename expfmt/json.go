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

package expfmt

import (
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	dto "github.com/prometheus/client_model/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonEncoder encodes metric families into the legacy JSON exposition format
// (version 0.0.2). All families encoded between creation and Close are
// rendered as a single JSON array.
type jsonEncoder struct {
	w       io.Writer
	started bool
}

func newJSONEncoder(w io.Writer) Encoder {
	return &jsonEncoder{w: w}
}

// jsonFamily is the on-the-wire shape of one metric family in the legacy JSON
// format.
type jsonFamily struct {
	BaseLabels map[string]string `json:"baseLabels"`
	Docstring  string            `json:"docstring"`
	Metric     jsonMetric        `json:"metric"`
}

type jsonMetric struct {
	Type  string       `json:"type"`
	Value []jsonSample `json:"value"`
}

type jsonSample struct {
	Labels map[string]string `json:"labels"`
	Value  interface{}       `json:"value"`
}

func (e *jsonEncoder) Encode(in *dto.MetricFamily) error {
	sep := byte(',')
	if !e.started {
		sep = '['
		e.started = true
	}
	if _, err := e.w.Write([]byte{sep}); err != nil {
		return err
	}

	f := jsonFamily{
		BaseLabels: map[string]string{"__name__": in.GetName()},
		Docstring:  in.GetHelp(),
	}

	switch in.GetType() {
	case dto.MetricType_COUNTER:
		f.Metric.Type = "counter"
	case dto.MetricType_GAUGE:
		f.Metric.Type = "gauge"
	case dto.MetricType_UNTYPED:
		f.Metric.Type = "untyped"
	case dto.MetricType_SUMMARY:
		f.Metric.Type = "summary"
	case dto.MetricType_HISTOGRAM:
		f.Metric.Type = "histogram"
	default:
		return fmt.Errorf("cannot encode metric family %q with type %s as JSON", in.GetName(), in.GetType())
	}

	for _, m := range in.Metric {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		var value interface{}
		switch in.GetType() {
		case dto.MetricType_COUNTER:
			value = m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			value = m.GetGauge().GetValue()
		case dto.MetricType_UNTYPED:
			value = m.GetUntyped().GetValue()
		case dto.MetricType_SUMMARY:
			quantiles := map[string]float64{}
			for _, q := range m.GetSummary().GetQuantile() {
				quantiles[formatFloatKey(q.GetQuantile())] = q.GetValue()
			}
			value = quantiles
		case dto.MetricType_HISTOGRAM:
			buckets := map[string]uint64{}
			for _, b := range m.GetHistogram().GetBucket() {
				buckets[formatFloatKey(b.GetUpperBound())] = b.GetCumulativeCount()
			}
			value = buckets
		}
		f.Metric.Value = append(f.Metric.Value, jsonSample{
			Labels: labels,
			Value:  value,
		})
	}

	return json.NewEncoder(e.w).Encode(f)
}

func (e *jsonEncoder) Close() error {
	if !e.started {
		_, err := e.w.Write([]byte("[]"))
		return err
	}
	_, err := e.w.Write([]byte("]"))
	return err
}

func formatFloatKey(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
