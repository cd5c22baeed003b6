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

// Package checksum verifies downloaded artifacts against a manifest of
// per-file SHA-256 digests. The manifest is either synthesized from an
// inline mapping or fetched as a generic artifact for the same version.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/relfetch/relfetch/pkg/artifact"
)

// ManifestFileName is the checksum manifest shipped with each release.
const ManifestFileName = "SHASUMS256.txt"

var (
	// minManifestVersion is the first version that ships a checksum
	// manifest. Older versions cannot be verified and are not checked.
	minManifestVersion = semver.MustParse("1.3.2")

	// Manifests generated in this closed range were written with binary
	// rather than UTF-8 text encoding and must be decoded accordingly.
	binaryManifestMin = semver.MustParse("1.3.2")
	binaryManifestMax = semver.MustParse("1.3.4")
)

// MismatchError indicates that a file's computed digest does not match the
// manifest, or that the manifest has no entry for the file.
type MismatchError struct {
	// File is the base name of the file that was checked.
	File string
	// Expected is the manifest digest. Empty when the manifest has no
	// entry for File.
	Expected string
	// Actual is the computed digest.
	Actual string
}

// Error implements the error interface.
func (e MismatchError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("no checksum entry for %q in manifest", e.File)
	}
	return fmt.Sprintf("checksum mismatch for %q: expected %s, got %s", e.File, e.Expected, e.Actual)
}

// FetchFunc downloads an artifact and returns its local path. The validator
// uses it to obtain the checksum manifest; the orchestrator supplies its
// own fetch operation here.
type FetchFunc func(req artifact.Request) (string, error)

// Validator checks downloaded files against a release's checksum manifest.
// It never retries; failures surface to the caller as typed errors.
type Validator struct {
	// Fetch obtains the manifest as a generic artifact when no inline
	// checksums were supplied.
	Fetch FetchFunc
}

// Validate verifies the file at path against the manifest for res. It is a
// no-op when the file is the manifest itself, when checksums are disabled,
// or when the version predates manifests.
func (v *Validator) Validate(res *artifact.Resolved, path string) error {
	if res.FileName == ManifestFileName {
		return nil
	}
	if res.UnsafelyDisableChecksums {
		return nil
	}

	ver, err := semver.NewVersion(res.Version)
	if err != nil {
		return artifact.ConfigurationError{Reason: fmt.Sprintf("unparseable version %q", res.Version)}
	}
	if ver.LessThan(minManifestVersion) {
		return nil
	}

	manifestPath, cleanup, err := v.manifest(res)
	if err != nil {
		return err
	}
	defer cleanup()

	return verify(ver, manifestPath, path)
}

// manifest produces the manifest file to verify against, along with a
// cleanup function that removes its containing scratch directory. Cleanup
// runs on success and failure alike.
func (v *Validator) manifest(res *artifact.Resolved) (string, func(), error) {
	if res.Checksums != nil {
		return synthesizeManifest(res.Checksums, res.TempDirectory)
	}

	// The manifest must never be served from a stale cache, so its fetch
	// bypasses the store. The manifest is exempt from validation itself,
	// which keeps the recursion from re-entering this code.
	mreq := res.Request
	mreq.ArtifactName = ManifestFileName
	mreq.Version = res.Version
	mreq.IsGeneric = true
	mreq.Platform = ""
	mreq.Arch = ""
	mreq.ArtifactSuffix = ""
	mreq.CacheMode = artifact.Bypass
	mreq.Checksums = nil

	p, err := v.Fetch(mreq)
	if err != nil {
		return "", nil, errors.Wrap(err, "unable to fetch checksum manifest")
	}
	return p, func() { os.RemoveAll(filepath.Dir(p)) }, nil
}

// synthesizeManifest writes an inline checksum mapping as a manifest file
// in a fresh scratch directory.
func synthesizeManifest(checksums map[string]string, tempParent string) (string, func(), error) {
	if len(checksums) == 0 {
		return "", nil, artifact.ConfigurationError{Reason: "inline checksum mapping is empty"}
	}

	names := make([]string, 0, len(checksums))
	for name := range checksums {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s *%s\n", checksums[name], name)
	}

	dir, err := os.MkdirTemp(tempParent, "relfetch-")
	if err != nil {
		return "", nil, errors.Wrap(err, "unable to create scratch directory for manifest")
	}
	p := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(p, []byte(sb.String()), 0o644); err != nil {
		os.RemoveAll(dir)
		return "", nil, errors.Wrap(err, "unable to write manifest")
	}
	return p, func() { os.RemoveAll(dir) }, nil
}

// verify compares the SHA-256 digest of path against its manifest entry.
func verify(ver *semver.Version, manifestPath, path string) error {
	actual, err := fileDigest(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.Wrap(err, "unable to read checksum manifest")
	}

	text, err := decodeManifest(ver, data)
	if err != nil {
		return err
	}

	entries := parseManifest(text)
	base := filepath.Base(path)
	expected, ok := entries[base]
	if !ok {
		return MismatchError{File: base, Actual: actual}
	}
	if !strings.EqualFold(expected, actual) {
		return MismatchError{File: base, Expected: expected, Actual: actual}
	}
	return nil
}

// decodeManifest turns raw manifest bytes into text. Manifests from the
// binary-encoding version range are decoded byte-for-byte (Latin-1); all
// others must be valid UTF-8.
func decodeManifest(ver *semver.Version, data []byte) (string, error) {
	if ver.Compare(binaryManifestMin) >= 0 && ver.Compare(binaryManifestMax) <= 0 {
		runes := make([]rune, len(data))
		for i, b := range data {
			runes[i] = rune(b)
		}
		return string(runes), nil
	}
	if !utf8.Valid(data) {
		return "", errors.New("checksum manifest is not valid UTF-8")
	}
	return string(data), nil
}

// parseManifest reads `<hex-digest> *<file-name>` lines into a map.
func parseManifest(text string) map[string]string {
	entries := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		digest, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		name = strings.TrimPrefix(strings.TrimSpace(name), "*")
		if digest == "" || name == "" {
			continue
		}
		entries[name] = digest
	}
	return entries
}

// fileDigest computes the hex SHA-256 digest of a file.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to open %s for hashing", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "unable to hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
