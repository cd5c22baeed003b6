/*
Copyright The Relfetch Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package getter provides the injectable network transport used to fetch
// release artifacts. The orchestrator passes options through opaquely and
// never interprets them; timeout and retry policy live entirely here or in
// the caller-supplied implementation.
package getter

import (
	"bytes"
	"net/http"
	"time"
)

// options are generic parameters to be provided to the getter during
// instantiation. Getters may or may not ignore these parameters as they
// are passed in.
type options struct {
	url                   string
	username              string
	password              string
	passCredentialsAll    bool
	userAgent             string
	insecureSkipVerifyTLS bool
	timeout               time.Duration
	transport             *http.Transport
}

// Option allows specifying various settings configurable by the user for
// overriding the defaults used when performing Get operations with the
// Getter.
type Option func(*options)

// WithURL informs the getter the server name that will be used when
// fetching objects. Used to decide whether credentials may be attached.
func WithURL(url string) Option {
	return func(opts *options) {
		opts.url = url
	}
}

// WithBasicAuth sets the request's Authorization header to use the
// provided credentials.
func WithBasicAuth(username, password string) Option {
	return func(opts *options) {
		opts.username = username
		opts.password = password
	}
}

// WithPassCredentialsAll sends credentials to hosts other than the one
// named by WithURL.
func WithPassCredentialsAll(pass bool) Option {
	return func(opts *options) {
		opts.passCredentialsAll = pass
	}
}

// WithUserAgent sets the request's User-Agent header to use the provided
// agent name.
func WithUserAgent(userAgent string) Option {
	return func(opts *options) {
		opts.userAgent = userAgent
	}
}

// WithInsecureSkipVerifyTLS determines if a TLS Certificate will be checked.
func WithInsecureSkipVerifyTLS(insecureSkipVerifyTLS bool) Option {
	return func(opts *options) {
		opts.insecureSkipVerifyTLS = insecureSkipVerifyTLS
	}
}

// WithTimeout sets the timeout for requests.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

// WithTransport sets the http.Transport to allow overwriting the
// HTTPGetter default.
func WithTransport(transport *http.Transport) Option {
	return func(opts *options) {
		opts.transport = transport
	}
}

// Getter is an interface to support GET to the specified URL.
type Getter interface {
	// Get file content by url string
	Get(url string, opts ...Option) (*bytes.Buffer, error)
}

// DefaultHTTPTimeout bounds a single artifact request. Downloads are large,
// so this is generous; callers with stricter needs use WithTimeout.
const DefaultHTTPTimeout = 120 * time.Second
