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
	"fmt"
	"strings"
)

var (
	// ErrInvalidDelta is the panic value of Counter.Add if the provided
	// delta is negative or NaN. The counter state is unchanged in that
	// case.
	ErrInvalidDelta = errors.New("counter can only be incremented by non-negative, non-NaN values")

	// ErrInvalidObservation is the panic value of Histogram.Observe,
	// Summary.Observe, and the Gauge mutation methods if the provided
	// value is NaN. The metric state is unchanged in that case.
	ErrInvalidObservation = errors.New("NaN is not a valid observation value")

	// ErrInconsistentCardinality is wrapped by the errors returned from
	// the GetMetricWith* methods of a vector if the number of provided
	// label values does not match the number of variable labels in the
	// descriptor. Use errors.Is to test for it.
	ErrInconsistentCardinality = errors.New("inconsistent label cardinality")
)

func makeInconsistentCardinalityError(fqName string, labels, labelValues []string) error {
	return fmt.Errorf(
		"%w: %q has %d variable labels named %q but %d values %q were provided",
		ErrInconsistentCardinality, fqName,
		len(labels), labels,
		len(labelValues), labelValues,
	)
}

// AlreadyRegisteredError is returned by Registry.Register if the Collector to
// be registered has already been registered before, or a different Collector
// that collects the same metrics has been registered before. Registration
// fails in that case, but the Collector already registered can be retrieved
// from the ExistingCollector field, which allows the caller to reuse it:
//
//	if err := reg.Register(c); err != nil {
//		are := prometheus.AlreadyRegisteredError{}
//		if errors.As(err, &are) {
//			c = are.ExistingCollector.(*SomeCollector)
//		}
//	}
type AlreadyRegisteredError struct {
	ExistingCollector, NewCollector Collector
}

func (err AlreadyRegisteredError) Error() string {
	return "duplicate metrics collector registration attempted"
}

// DescriptorInconsistencyError is returned by Registry.Register if a
// descriptor provided by the Collector clashes with an already registered
// descriptor of the same fully-qualified name but a different help string or
// label dimensions. It is also reported by Gather if such an inconsistency is
// only detectable at collection time. This is a configuration error of the
// registrant; the registry state is unchanged when it is returned.
type DescriptorInconsistencyError struct {
	Desc  *Desc
	Cause string
}

func (err DescriptorInconsistencyError) Error() string {
	return fmt.Sprintf("a previously registered descriptor conflicts with %s: %s", err.Desc, err.Cause)
}

// DuplicateSampleError is reported by Gather if two collected metrics within
// the same metric family carry an identical set of label values. The affected
// metric is dropped from the snapshot; collection of all other metrics and
// families proceeds.
type DuplicateSampleError struct {
	FQName string
	Labels string
}

func (err DuplicateSampleError) Error() string {
	return fmt.Sprintf("collected metric %s with labels {%s} was collected before with the same label values", err.FQName, err.Labels)
}

// MultiError is a slice of errors implementing the error interface. It is used
// by Gather to report multiple collection-time errors alongside the
// otherwise-complete snapshot.
type MultiError []error

func (errs MultiError) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d error(s) occurred:", len(errs))
	for _, err := range errs {
		b.WriteString("\n* ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Append appends the provided error if it is not nil.
func (errs *MultiError) Append(err error) {
	if err != nil {
		*errs = append(*errs, err)
	}
}

// MaybeUnwrap returns nil if len(errs) is 0. It returns the first and only
// contained error as error if len(errs) is 1. In all other cases, it returns
// the MultiError directly. This is helpful for returning a MultiError in a way
// that only uses the MultiError if needed.
func (errs MultiError) MaybeUnwrap() error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errs
	}
}
