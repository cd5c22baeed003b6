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

// Package downloader orchestrates fetching release artifacts: it consults
// the cache, delegates network retrieval to an injected getter, verifies
// checksums, and commits validated downloads back to the cache.
package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relfetch/relfetch/internal/fileutil"
	"github.com/relfetch/relfetch/pkg/artifact"
	"github.com/relfetch/relfetch/pkg/cache"
	"github.com/relfetch/relfetch/pkg/checksum"
	"github.com/relfetch/relfetch/pkg/getter"
	"github.com/relfetch/relfetch/pkg/mirror"
)

// TransportError wraps a failure from the injected getter. It is
// propagated verbatim; retry policy belongs to the getter.
type TransportError struct {
	// URL is the location that was being fetched.
	URL string
	// Err is the underlying transport failure.
	Err error
}

// Error implements the error interface.
func (e TransportError) Error() string {
	return fmt.Sprintf("unable to download %s: %s", e.URL, e.Err)
}

// Unwrap returns the underlying transport failure.
func (e TransportError) Unwrap() error { return e.Err }

const (
	deprecatedPlatform = "win32"
	deprecatedArch     = "ia32"
	deprecatedMajor    = 23
)

// Downloader fetches, verifies, and caches release artifacts.
type Downloader struct {
	// Getter performs the network retrieval. Defaults to the built-in
	// HTTP getter.
	Getter getter.Getter
	// Options are passed through to the getter verbatim on every request.
	Options []getter.Option
	// Logger receives advisory warnings. Defaults to the logrus standard
	// logger.
	Logger *logrus.Logger

	deprecationWarning sync.Once
}

// New returns a Downloader using the built-in HTTP getter with the given
// transport options.
func New(opts ...getter.Option) *Downloader {
	g, _ := getter.NewHTTPGetter()
	return &Downloader{Getter: g, Options: opts}
}

// Fetch retrieves the artifact described by req and returns an absolute
// local path to it.
//
// With a cache mode that permits reads, a valid cached copy is served
// without network access. A cached copy that fails verification is
// discarded and replaced by exactly one fresh download; a fresh download
// that fails verification is fatal.
//
// When the cache mode makes the caller own the output (ReadOnly, Bypass),
// the returned path is a private file in a scratch directory the caller is
// responsible for removing. Otherwise the path points into the shared
// cache.
func (d *Downloader) Fetch(req artifact.Request) (string, error) {
	res, err := artifact.Resolve(req)
	if err != nil {
		return "", err
	}

	root := req.CacheRoot
	if root == "" {
		root = cache.DefaultRoot()
	}
	store := cache.New(root)
	validator := &checksum.Validator{Fetch: d.Fetch}

	if res.CacheMode.MayRead() {
		cached, ok, err := store.Lookup(res.RemoteURL, res.FileName)
		if err != nil {
			return "", err
		}
		if ok {
			out, verr, err := d.serveFromCache(res, validator, cached)
			if err != nil {
				return "", err
			}
			if verr == nil {
				return absPath(out)
			}
			var confErr artifact.ConfigurationError
			if errors.As(verr, &confErr) {
				return "", verr
			}
			// A corrupted or stale cache entry must never fail the whole
			// operation while a fresh download is still possible.
			d.logger().WithFields(logrus.Fields{
				"url":  res.RemoteURL,
				"file": res.FileName,
			}).Warnf("cached artifact failed verification, falling back to a fresh download: %s", verr)
			if err := store.Remove(res.RemoteURL); err != nil {
				return "", errors.Wrap(err, "unable to invalidate cache entry")
			}
		}
	}

	d.warnIfDeprecated(res)

	mode := fileutil.Clean
	if res.CacheMode.CallerOwnsOutput() {
		mode = fileutil.Orphan
	}
	out, err := fileutil.WithTempDir(res.TempDirectory, mode, func(dir string) (string, error) {
		downloaded := filepath.Join(dir, res.FileName)
		if err := d.download(res.RemoteURL, downloaded); err != nil {
			return "", err
		}
		if err := validator.Validate(res, downloaded); err != nil {
			return "", err
		}
		if res.CacheMode.CallerOwnsOutput() {
			return downloaded, nil
		}
		return store.Commit(res.RemoteURL, downloaded, res.FileName)
	})
	if err != nil {
		return "", err
	}
	return absPath(out)
}

// serveFromCache produces the result path for a cache hit. A non-nil verr
// means verification failed and the caller should fall back to a fresh
// download; a non-nil err is a filesystem failure, which has no safe local
// recovery and is fatal.
func (d *Downloader) serveFromCache(res *artifact.Resolved, v *checksum.Validator, cached string) (out string, verr, err error) {
	candidate := cached
	scratch := ""
	if res.CacheMode.CallerOwnsOutput() {
		// Copy into a fresh scratch directory so the caller receives an
		// exclusively owned file, independent of the shared cache's
		// lifetime.
		dir, err := os.MkdirTemp(res.TempDirectory, "relfetch-")
		if err != nil {
			return "", nil, errors.Wrap(err, "unable to create scratch directory")
		}
		scratch = dir
		candidate = filepath.Join(dir, res.FileName)
		if err := fileutil.CopyFile(cached, candidate); err != nil {
			os.RemoveAll(dir)
			return "", nil, err
		}
	}

	if verr := v.Validate(res, candidate); verr != nil {
		if scratch != "" {
			os.RemoveAll(scratch)
		}
		return "", verr, nil
	}
	return candidate, nil, nil
}

// download fetches href into dest through the injected getter, passing the
// caller-supplied transport options through verbatim.
func (d *Downloader) download(href, dest string) error {
	g := d.Getter
	if g == nil {
		g, _ = getter.NewHTTPGetter()
	}
	buf, err := g.Get(href, d.Options...)
	if err != nil {
		return TransportError{URL: href, Err: err}
	}
	return fileutil.AtomicWriteFile(dest, buf, 0o644)
}

// warnIfDeprecated emits a one-time advisory when the request targets the
// deprecated 32-bit Windows build of a version that no longer publishes
// it, unless a mirror override points downloads elsewhere.
func (d *Downloader) warnIfDeprecated(res *artifact.Resolved) {
	if res.IsGeneric || res.Platform != deprecatedPlatform || res.Arch != deprecatedArch {
		return
	}
	if mirror.HasMirrorOverride(res.Config, res.Request.Mirror) {
		return
	}
	v, err := semver.NewVersion(res.Version)
	if err != nil || v.Major() < deprecatedMajor {
		return
	}
	d.deprecationWarning.Do(func() {
		d.logger().Warnf("%s/%s builds are deprecated as of v%d.0.0 and are no longer published upstream; switch to a 64-bit build or configure a mirror that still carries them",
			deprecatedPlatform, deprecatedArch, deprecatedMajor)
	})
}

func (d *Downloader) logger() *logrus.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "unable to resolve absolute path for %s", p)
	}
	return abs, nil
}
