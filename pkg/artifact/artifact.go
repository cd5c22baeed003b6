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

// Package artifact describes a single release artifact to fetch and
// resolves its canonical file name and remote URL.
package artifact

import (
	"fmt"
	"strings"

	"github.com/relfetch/relfetch/pkg/mirror"
)

// CacheMode describes how a fetch interacts with the shared cache.
type CacheMode int

const (
	// ReadWrite serves hits from the cache and commits fresh downloads
	// back to it. This is the default.
	ReadWrite CacheMode = iota
	// ReadOnly serves hits from the cache but never writes to it; the
	// returned path is a private copy owned by the caller.
	ReadOnly
	// WriteOnly ignores existing entries but commits fresh downloads.
	WriteOnly
	// Bypass never touches the cache; the returned path is a private file
	// owned by the caller.
	Bypass
)

// MayRead reports whether the mode permits serving a request from the cache.
func (m CacheMode) MayRead() bool {
	return m == ReadOnly || m == ReadWrite
}

// CallerOwnsOutput reports whether the returned path is a private temporary
// file the caller is responsible for, rather than a path inside the shared
// cache. Such a path must never be placed in, or deleted from, the store.
func (m CacheMode) CallerOwnsOutput() bool {
	return m == Bypass || m == ReadOnly
}

// String implements fmt.Stringer.
func (m CacheMode) String() string {
	switch m {
	case ReadWrite:
		return "readwrite"
	case ReadOnly:
		return "readonly"
	case WriteOnly:
		return "writeonly"
	case Bypass:
		return "bypass"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// ParseCacheMode converts a mode name to a CacheMode.
func ParseCacheMode(s string) (CacheMode, error) {
	switch strings.ToLower(s) {
	case "", "readwrite":
		return ReadWrite, nil
	case "readonly":
		return ReadOnly, nil
	case "writeonly":
		return WriteOnly, nil
	case "bypass":
		return Bypass, nil
	}
	return ReadWrite, ConfigurationError{Reason: fmt.Sprintf("unknown cache mode %q", s)}
}

// Request describes one artifact to fetch.
type Request struct {
	// ArtifactName is the base name of the artifact, e.g. "chromedriver".
	ArtifactName string
	// Version is the release version. A missing "v" prefix is added during
	// resolution.
	Version string
	// IsGeneric marks artifacts that are not qualified by platform and
	// architecture, such as checksum manifests.
	IsGeneric bool
	// Platform and Arch qualify platform artifacts. Required unless
	// IsGeneric is set.
	Platform string
	Arch     string
	// ArtifactSuffix disambiguates between variants of the same artifact.
	ArtifactSuffix string

	// CacheRoot is the directory holding the shared cache.
	CacheRoot string
	// CacheMode governs cache interaction. Zero value is ReadWrite.
	CacheMode CacheMode

	// UnsafelyDisableChecksums skips all integrity verification.
	UnsafelyDisableChecksums bool
	// Checksums maps file names to hex SHA-256 digests. When supplied, the
	// manifest download is skipped and these entries are used instead.
	Checksums map[string]string

	// TempDirectory overrides where scratch directories are created.
	TempDirectory string

	// Mirror carries the explicit in-call overrides.
	Mirror mirror.Options
	// Config carries the project-level override values.
	Config mirror.Config
}

// Resolved is a Request whose derived fields have been computed. FileName
// and RemoteURL are pure functions of the request and are recomputed for
// every fetch; they are never reused across requests.
type Resolved struct {
	Request

	// Version is the normalized, prefixed version, after any custom
	// version override.
	Version string
	// FileName is the canonical local identity of the artifact.
	FileName string
	// RemoteURL is the fully resolved download location.
	RemoteURL string
}

// ConfigurationError indicates a request that is missing required fields or
// carries values that cannot be resolved. It is never retried.
type ConfigurationError struct {
	Reason string
}

// Error implements the error interface.
func (e ConfigurationError) Error() string {
	return "invalid artifact request: " + e.Reason
}
