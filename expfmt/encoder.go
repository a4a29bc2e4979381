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

// Package expfmt contains tools for encoding metric families into the
// Prometheus exposition formats.
package expfmt

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	dto "github.com/prometheus/client_model/go"
)

// Format specifies the HTTP content type of an exposition format.
type Format string

// Constants to assemble the content type values.
const (
	// TextVersion is the version of the text exposition format.
	TextVersion = "0.0.4"

	// FmtText is the content type of the text exposition format.
	FmtText Format = `text/plain; version=` + TextVersion + `; charset=utf-8`

	// FmtJSON is the content type of the legacy JSON exposition format. It
	// is deprecated and only kept for consumers that cannot yet parse the
	// text format.
	FmtJSON Format = `application/json; schema="prometheus/telemetry"; version=0.0.2`

	// FmtUnknown is used when no recognized format could be negotiated.
	FmtUnknown Format = `application/octet-stream`
)

// Encoder types encode metric families into an underlying wire protocol.
type Encoder interface {
	Encode(*dto.MetricFamily) error
}

// Closer is implemented by Encoders that need to be closed to finalize
// encoding. (For example, OpenMetrics needs a final `# EOF` line.)
//
// Note that all Encoder implementations returned from this package implement
// Closer, too, even if the Close call is a no-op. This happens in preparation
// for adding a Close method to the Encoder interface directly in a (mildly
// breaking) release in the future.
type Closer interface {
	Close() error
}

type encoderCloser struct {
	encode func(*dto.MetricFamily) error
	close  func() error
}

func (ec encoderCloser) Encode(v *dto.MetricFamily) error {
	return ec.encode(v)
}

func (ec encoderCloser) Close() error {
	return ec.close()
}

// Negotiate returns the most appropriate exposition format for the given
// "Accept" header. The text format is the fallback if no recognized format is
// requested.
func Negotiate(h http.Header) Format {
	for _, ac := range h.Values("Accept") {
		mediatype, params, err := mime.ParseMediaType(ac)
		if err != nil {
			continue
		}
		if mediatype == "application/json" &&
			params["schema"] == "prometheus/telemetry" &&
			params["version"] == "0.0.2" {
			return FmtJSON
		}
		if mediatype == "text/plain" &&
			(params["version"] == TextVersion || params["version"] == "") {
			return FmtText
		}
	}
	return FmtText
}

// NewEncoder returns a new encoder based on content type negotiation. All
// Encoder implementations returned by NewEncoder also implement Closer, and
// callers should always call the Close method. It is currently only required
// for formats that need a final line, but a future format might require it,
// too.
func NewEncoder(w io.Writer, format Format) Encoder {
	switch format {
	case FmtText:
		return encoderCloser{
			encode: func(v *dto.MetricFamily) error {
				_, err := MetricFamilyToText(w, v)
				return err
			},
			close: func() error { return nil },
		}
	case FmtJSON:
		return newJSONEncoder(w)
	}
	panic(fmt.Errorf("expfmt.NewEncoder: unknown format %q", format))
}
