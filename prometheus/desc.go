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
	"sort"
	"strings"

	"google.golang.org/protobuf/proto"

	dto "github.com/prometheus/client_model/go"
)

// Desc is the descriptor used by every Metric. It is essentially the immutable
// meta-data of a Metric. The normal Metric implementations included in this
// package manage their Desc under the hood. Users only have to deal with Desc
// if they use advanced features like custom Collectors.
//
// Descriptors registered with the same registry have to fulfill certain
// consistency and uniqueness criteria if they share the same fully-qualified
// name: They must have the same help string and the same set of label
// dimensions (constant and variable label names combined), but they must
// differ in the values of their constant labels.
//
// Descriptors that share the same fully-qualified name and the same constant
// label values are considered equal.
//
// Use NewDesc to create new Desc instances.
type Desc struct {
	// fqName has been built from Namespace, Subsystem, and Name.
	fqName string
	// help provides some helpful information about this metric.
	help string
	// constLabelPairs contains precalculated DTO label pairs based on
	// the constant labels, sorted by label name.
	constLabelPairs []*dto.LabelPair
	// variableLabels contains the names of labels for which the metric
	// maintains variable values. The order is significant: label values
	// are bound positionally.
	variableLabels []string
	// id is a hash of the values of the ConstLabels and fqName. This must
	// be unique among all registered descriptors and can therefore be used
	// as an identifier of the descriptor.
	id uint64
	// dimHash is a hash of the label names (constant and variable) and the
	// Help string. Each Desc with the same fqName must have the same
	// dimHash.
	dimHash uint64
	// err is an error that occurred during construction. It is reported on
	// registration time.
	err error
}

// NewDesc allocates and initializes a new Desc. Errors are recorded in the
// Desc and will be reported on registration time. variableLabels and
// constLabels can be nil if no such labels should be set. fqName must not be
// empty.
//
// variableLabels only contain the label names. Their label values are
// variable and therefore not part of the Desc. (They are managed within the
// Metric.)
//
// For constLabels, the label values are constant. Therefore, they are fully
// specified in the Desc.
func NewDesc(fqName, help string, variableLabels []string, constLabels Labels) *Desc {
	d := &Desc{
		fqName:         fqName,
		help:           help,
		variableLabels: variableLabels,
	}
	if help == "" {
		d.err = errors.New("empty help string")
		return d
	}
	if !validMetricName(fqName) {
		d.err = fmt.Errorf("%q is not a valid metric name", fqName)
		return d
	}
	// labelValues contains the label values of const labels (in order of
	// their sorted label names) plus the fqName (at position 0).
	labelValues := make([]string, 1, len(constLabels)+1)
	labelValues[0] = fqName
	labelNames := make([]string, 0, len(constLabels)+len(variableLabels))
	labelNameSet := map[string]struct{}{}
	// First add only the const label names and sort them...
	for labelName := range constLabels {
		if !validLabelName(labelName) {
			d.err = fmt.Errorf("%q is not a valid label name for metric %q", labelName, fqName)
			return d
		}
		labelNames = append(labelNames, labelName)
		labelNameSet[labelName] = struct{}{}
	}
	sort.Strings(labelNames)
	// ... so that we can now add const label values in the order of their names.
	for _, labelName := range labelNames {
		labelValues = append(labelValues, constLabels[labelName])
	}
	// Validate the const label values. They can't have a wrong cardinality,
	// so use their number as the expected one.
	if err := validateLabelValues(labelValues[1:], len(labelValues)-1); err != nil {
		d.err = err
		return d
	}
	// Now add the variable label names, but prefix them with something that
	// cannot be in a regular label name. That prevents matching the label
	// dimension with a different mix between const and variable labels.
	for _, labelName := range variableLabels {
		if !validLabelName(labelName) {
			d.err = fmt.Errorf("%q is not a valid label name for metric %q", labelName, fqName)
			return d
		}
		labelNames = append(labelNames, "$"+labelName)
		labelNameSet[labelName] = struct{}{}
	}
	if len(labelNames) != len(labelNameSet) {
		d.err = fmt.Errorf("duplicate label names in constant and variable labels for metric %q", fqName)
		return d
	}

	xh := hashNew()
	for _, val := range labelValues {
		hashAdd(xh, val)
		hashAddByte(xh, separatorByte)
	}
	d.id = xh.Sum64()
	// Sort labelNames so that the order doesn't matter for the hash.
	sort.Strings(labelNames)
	// Now hash together (in this order) the help string and the sorted
	// label names.
	lh := hashNew()
	hashAdd(lh, help)
	hashAddByte(lh, separatorByte)
	for _, labelName := range labelNames {
		hashAdd(lh, labelName)
		hashAddByte(lh, separatorByte)
	}
	d.dimHash = lh.Sum64()

	d.constLabelPairs = make([]*dto.LabelPair, 0, len(constLabels))
	for n, v := range constLabels {
		d.constLabelPairs = append(d.constLabelPairs, &dto.LabelPair{
			Name:  proto.String(n),
			Value: proto.String(v),
		})
	}
	sort.Sort(labelPairSorter(d.constLabelPairs))
	return d
}

// NewInvalidDesc returns an invalid descriptor, i.e. a descriptor with the
// provided error set. If a collector returning such a descriptor is
// registered, registration will fail with the provided error. NewInvalidDesc
// can be used by a Collector to signal inability to describe itself.
func NewInvalidDesc(err error) *Desc {
	return &Desc{err: err}
}

// FQName returns the fully-qualified metric name of the descriptor.
func (d *Desc) FQName() string {
	return d.fqName
}

// Help returns the help text of the descriptor.
func (d *Desc) Help() string {
	return d.help
}

func (d *Desc) String() string {
	lpStrings := make([]string, 0, len(d.constLabelPairs))
	for _, lp := range d.constLabelPairs {
		lpStrings = append(lpStrings, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return fmt.Sprintf(
		"Desc{fqName: %q, help: %q, constLabels: {%s}, variableLabels: %v}",
		d.fqName, d.help, strings.Join(lpStrings, ","), d.variableLabels,
	)
}

// BuildFQName joins the given three name components by "_". Empty name
// components are ignored. If the name parameter itself is empty, an empty
// string is returned, no matter what. Metric implementations included in this
// library use this function internally to generate the fully-qualified metric
// name from the name component in their Opts. Users of the library will only
// need this function if they implement their own Metric or instantiate a Desc
// directly.
func BuildFQName(namespace, subsystem, name string) string {
	if name == "" {
		return ""
	}
	switch {
	case namespace != "" && subsystem != "":
		return namespace + "_" + subsystem + "_" + name
	case namespace != "":
		return namespace + "_" + name
	case subsystem != "":
		return subsystem + "_" + name
	}
	return name
}
