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
	"github.com/cespare/xxhash/v2"
)

// separatorByte is a byte that cannot occur in valid UTF-8 sequences. It is
// inserted between the strings fed into a hash so that ("ab","c") and
// ("a","bc") yield different sums.
const separatorByte byte = 255

var separatorByteSlice = []byte{separatorByte}

// hashLabelValues returns the signature of an ordered label value tuple. The
// zero-value Digest avoids an allocation per call on the vector hot path.
func hashLabelValues(lvs []string) uint64 {
	var d xxhash.Digest
	d.Reset()
	for _, v := range lvs {
		d.WriteString(v)
		d.Write(separatorByteSlice)
	}
	return d.Sum64()
}

func hashNew() *xxhash.Digest {
	return xxhash.New()
}

func hashAdd(d *xxhash.Digest, s string) {
	d.WriteString(s)
}

func hashAddByte(d *xxhash.Digest, b byte) {
	d.Write([]byte{b})
}
