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

import "testing"

func TestNewDescInvalidInput(t *testing.T) {
	for _, tc := range []struct {
		name string
		desc *Desc
	}{
		{
			"empty help",
			NewDesc("metric", "", nil, nil),
		},
		{
			"invalid metric name",
			NewDesc("a metric with spaces", "help", nil, nil),
		},
		{
			"invalid variable label name",
			NewDesc("metric", "help", []string{" invalid"}, nil),
		},
		{
			"invalid const label name",
			NewDesc("metric", "help", nil, Labels{"-invalid-": "value"}),
		},
		{
			"reserved label name prefix",
			NewDesc("metric", "help", []string{"__reserved"}, nil),
		},
		{
			"duplicate label name",
			NewDesc("metric", "help", []string{"dup"}, Labels{"dup": "x"}),
		},
	} {
		if tc.desc.err == nil {
			t.Errorf("%s: expected a construction error", tc.name)
		}
	}
}

func TestDescIDIdentity(t *testing.T) {
	d1 := NewDesc("metric", "help", []string{"l"}, Labels{"const": "a"})
	d2 := NewDesc("metric", "help", []string{"l"}, Labels{"const": "a"})
	d3 := NewDesc("metric", "help", []string{"l"}, Labels{"const": "b"})

	if d1.id != d2.id {
		t.Error("descriptors with the same name and const labels must share an id")
	}
	if d1.id == d3.id {
		t.Error("descriptors with different const label values must have different ids")
	}
	if d1.dimHash != d3.dimHash {
		t.Error("same dimensions and help must share a dimHash")
	}

	// A const/variable mix with the same flattened label set must differ in
	// dimHash.
	d4 := NewDesc("metric", "help", []string{"const", "l"}, nil)
	if d1.dimHash == d4.dimHash {
		t.Error("const and variable labels must not be interchangeable in the dimHash")
	}

	d5 := NewDesc("metric", "other help", []string{"l"}, Labels{"const": "a"})
	if d1.dimHash == d5.dimHash {
		t.Error("a different help string must change the dimHash")
	}
}

func TestBuildFQName(t *testing.T) {
	scenarios := []struct{ namespace, subsystem, name, result string }{
		{"a", "b", "c", "a_b_c"},
		{"", "b", "c", "b_c"},
		{"a", "", "c", "a_c"},
		{"", "", "c", "c"},
		{"a", "b", "", ""},
		{"a", "", "", ""},
		{"", "", "", ""},
	}

	for i, s := range scenarios {
		if want, got := s.result, BuildFQName(s.namespace, s.subsystem, s.name); want != got {
			t.Errorf("%d. want %s, got %s", i, want, got)
		}
	}
}
