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

// Package promhttp provides an http.Handler for the Prometheus exposition
// endpoint.
//
// The simplest usage exposes the DefaultGatherer:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// HandlerFor allows exposing a custom Gatherer with fine-grained error
// handling and compression behavior via HandlerOpts.
package promhttp

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/quodlibetor/promclient/expfmt"
	"github.com/quodlibetor/promclient/prometheus"
)

const (
	contentTypeHeader     = "Content-Type"
	contentEncodingHeader = "Content-Encoding"
	acceptEncodingHeader  = "Accept-Encoding"
)

var gzipPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(nil)
	},
}

// Handler returns an http.Handler for the prometheus.DefaultGatherer, using
// default HandlerOpts, i.e. it reports the first error as an HTTP error, it
// has no error logging, and it applies compression if requested by the
// client.
//
// If you want to create a Handler for the DefaultGatherer with different
// HandlerOpts, create it with HandlerFor with prometheus.DefaultGatherer and
// your desired HandlerOpts.
func Handler() http.Handler {
	return HandlerFor(prometheus.DefaultGatherer, HandlerOpts{})
}

// HandlerFor returns an uninstrumented http.Handler for the provided
// Gatherer. The behavior of the Handler is defined by the provided
// HandlerOpts.
func HandlerFor(reg prometheus.Gatherer, opts HandlerOpts) http.Handler {
	h := http.HandlerFunc(func(rsp http.ResponseWriter, req *http.Request) {
		mfs, err := reg.Gather()
		if err != nil {
			if opts.ErrorLog != nil {
				opts.ErrorLog.Error("error gathering metrics", zap.Error(err))
			}
			switch opts.ErrorHandling {
			case PanicOnError:
				panic(err)
			case ContinueOnError:
				if len(mfs) == 0 {
					// Still report the error if no metrics have been gathered.
					httpError(rsp, err)
					return
				}
			case HTTPErrorOnError:
				httpError(rsp, err)
				return
			}
		}

		contentType := expfmt.Negotiate(req.Header)
		header := rsp.Header()
		header.Set(contentTypeHeader, string(contentType))

		var w io.Writer = rsp
		if !opts.DisableCompression && gzipAccepted(req.Header) {
			header.Set(contentEncodingHeader, "gzip")
			gz := gzipPool.Get().(*gzip.Writer)
			gz.Reset(rsp)
			defer func() {
				gz.Close()
				gzipPool.Put(gz)
			}()
			w = gz
		}

		enc := expfmt.NewEncoder(w, contentType)

		var lastErr error
		for _, mf := range mfs {
			if err := enc.Encode(mf); err != nil {
				lastErr = err
				if opts.ErrorLog != nil {
					opts.ErrorLog.Error("error encoding and sending metric family", zap.Error(err))
				}
				switch opts.ErrorHandling {
				case PanicOnError:
					panic(err)
				case HTTPErrorOnError:
					// Headers have likely been written already, so an
					// http.Error is a best effort at this point.
					httpError(rsp, err)
					return
				}
				// ContinueOnError: move on to the next family.
			}
		}
		if closer, ok := enc.(expfmt.Closer); ok {
			if err := closer.Close(); err != nil && lastErr == nil && opts.ErrorLog != nil {
				opts.ErrorLog.Error("error finalizing encoding", zap.Error(err))
			}
		}
	})

	return h
}

// HandlerErrorHandling defines how a Handler serving metrics will handle
// errors.
type HandlerErrorHandling int

// These constants cause handlers serving metrics to behave as described if
// errors are encountered.
const (
	// HTTPErrorOnError serves an HTTP status code 500 upon the first error
	// encountered. Report the error message in the body. Note that HTTP
	// errors cannot be served anymore once the beginning of a regular
	// payload has been sent. Thus, in the (unlikely) case that encoding the
	// payload into the negotiated wire format fails, serving the response
	// will simply be aborted. This is the default.
	HTTPErrorOnError HandlerErrorHandling = iota
	// ContinueOnError ignores errors and tries to serve as many metrics as
	// possible. However, if no metrics can be served, serving the response
	// will return an HTTP 500 nevertheless.
	ContinueOnError
	// PanicOnError panics upon the first error encountered (useful for
	// "crash only" apps).
	PanicOnError
)

// HandlerOpts specifies options how to serve metrics via an http.Handler. The
// zero value of HandlerOpts is a reasonable default.
type HandlerOpts struct {
	// ErrorLog receives log lines about errors during gathering and
	// encoding. If nil, errors are not logged.
	ErrorLog *zap.Logger
	// ErrorHandling defines how errors are handled. Note that errors are
	// logged regardless of the configured ErrorHandling provided ErrorLog
	// is not nil.
	ErrorHandling HandlerErrorHandling
	// DisableCompression disables the response being gzipped even if the
	// client advertises gzip support in the Accept-Encoding header.
	DisableCompression bool
}

// gzipAccepted returns whether the client will accept gzip-encoded content.
func gzipAccepted(header http.Header) bool {
	a := header.Get(acceptEncodingHeader)
	parts := strings.Split(a, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "gzip" || strings.HasPrefix(part, "gzip;") {
			return true
		}
	}
	return false
}

// httpError removes any content-encoding header and then calls http.Error
// with the provided error and http.StatusInternalServerError. Error contents
// is supposed to be uncompressed plain text. Same as with a plain
// http.Error, any header settings will be void if the header has already been
// sent. The error message will still be written to the writer, but it will
// probably be of limited use.
func httpError(rsp http.ResponseWriter, err error) {
	rsp.Header().Del(contentEncodingHeader)
	http.Error(
		rsp,
		fmt.Sprintf("An error has occurred while serving metrics:\n\n%v", err),
		http.StatusInternalServerError,
	)
}
