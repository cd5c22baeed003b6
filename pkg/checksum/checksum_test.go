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

package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relfetch/relfetch/pkg/artifact"
)

func digestOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func resolved(t *testing.T, req artifact.Request) *artifact.Resolved {
	t.Helper()
	res, err := artifact.Resolve(req)
	require.NoError(t, err)
	return res
}

func TestValidateSkipsManifestItself(t *testing.T) {
	v := &Validator{}
	res := resolved(t, artifact.Request{ArtifactName: ManifestFileName, Version: "2.0.0", IsGeneric: true})

	p := writeArtifact(t, ManifestFileName, "whatever")
	require.NoError(t, v.Validate(res, p))
}

func TestValidateSkipsWhenDisabled(t *testing.T) {
	v := &Validator{}
	res := resolved(t, artifact.Request{
		ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64",
		UnsafelyDisableChecksums: true,
	})

	p := writeArtifact(t, res.FileName, "deliberately corrupted")
	require.NoError(t, v.Validate(res, p))
}

func TestValidateSkipsPreManifestVersions(t *testing.T) {
	// v1.0.0 predates checksum manifests; even corrupted content passes.
	v := &Validator{}
	res := resolved(t, artifact.Request{ArtifactName: "app", Version: "1.0.0", Platform: "linux", Arch: "x64"})

	p := writeArtifact(t, res.FileName, "deliberately corrupted")
	require.NoError(t, v.Validate(res, p))
}

func TestValidateInlineChecksums(t *testing.T) {
	res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})
	res.Checksums = map[string]string{res.FileName: digestOf("good bytes")}

	v := &Validator{}
	p := writeArtifact(t, res.FileName, "good bytes")
	require.NoError(t, v.Validate(res, p))
}

func TestValidateInlineChecksumMismatch(t *testing.T) {
	res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})
	res.Checksums = map[string]string{res.FileName: digestOf("expected bytes")}

	v := &Validator{}
	p := writeArtifact(t, res.FileName, "actual bytes")
	err := v.Validate(res, p)

	var mismatch MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, res.FileName, mismatch.File)
	assert.Equal(t, digestOf("expected bytes"), mismatch.Expected)
	assert.Equal(t, digestOf("actual bytes"), mismatch.Actual)
}

func TestValidateInlineChecksumMissingEntry(t *testing.T) {
	// The inline map names a different file; the error cites the missing
	// manifest entry.
	res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})
	res.Checksums = map[string]string{"a.zip": digestOf("bytes")}

	v := &Validator{}
	p := writeArtifact(t, res.FileName, "bytes")
	err := v.Validate(res, p)

	var mismatch MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, res.FileName, mismatch.File)
	assert.Empty(t, mismatch.Expected)
	assert.Contains(t, err.Error(), "no checksum entry")
}

func TestValidateEmptyInlineChecksums(t *testing.T) {
	res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})
	res.Checksums = map[string]string{}

	v := &Validator{}
	p := writeArtifact(t, res.FileName, "bytes")
	err := v.Validate(res, p)

	var confErr artifact.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestValidateFetchedManifest(t *testing.T) {
	res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})
	content := "fresh download"

	var manifestDir string
	var fetched artifact.Request
	v := &Validator{
		Fetch: func(req artifact.Request) (string, error) {
			fetched = req
			manifestDir, _ = os.MkdirTemp("", "relfetch-test-")
			p := filepath.Join(manifestDir, ManifestFileName)
			line := fmt.Sprintf("%s *%s\n", digestOf(content), res.FileName)
			return p, os.WriteFile(p, []byte(line), 0644)
		},
	}

	p := writeArtifact(t, res.FileName, content)
	require.NoError(t, v.Validate(res, p))

	// The recursive fetch is a generic artifact with the cache bypassed.
	assert.Equal(t, ManifestFileName, fetched.ArtifactName)
	assert.True(t, fetched.IsGeneric)
	assert.Equal(t, artifact.Bypass, fetched.CacheMode)
	assert.Nil(t, fetched.Checksums)

	// The manifest's scratch directory is removed after verification.
	assert.NoDirExists(t, manifestDir)
}

func TestValidateFetchedManifestCleanupOnMismatch(t *testing.T) {
	res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})

	var manifestDir string
	v := &Validator{
		Fetch: func(req artifact.Request) (string, error) {
			manifestDir, _ = os.MkdirTemp("", "relfetch-test-")
			p := filepath.Join(manifestDir, ManifestFileName)
			line := fmt.Sprintf("%s *%s\n", digestOf("other bytes"), res.FileName)
			return p, os.WriteFile(p, []byte(line), 0644)
		},
	}

	p := writeArtifact(t, res.FileName, "downloaded bytes")
	err := v.Validate(res, p)

	var mismatch MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.NoDirExists(t, manifestDir)
}

func TestValidateBinaryManifestQuirk(t *testing.T) {
	// Manifests from the 1.3.2-1.3.4 range may contain bytes that are not
	// valid UTF-8; they must still parse under the binary decoding path.
	content := "quirky bytes"

	manifest := func(res *artifact.Resolved) []byte {
		line := fmt.Sprintf("%s *%s\n", digestOf(content), res.FileName)
		return append([]byte(line), 0xFF)
	}

	validatorFor := func(res *artifact.Resolved) *Validator {
		return &Validator{
			Fetch: func(artifact.Request) (string, error) {
				dir, err := os.MkdirTemp("", "relfetch-test-")
				if err != nil {
					return "", err
				}
				p := filepath.Join(dir, ManifestFileName)
				return p, os.WriteFile(p, manifest(res), 0644)
			},
		}
	}

	t.Run("v1.3.3 uses binary decoding", func(t *testing.T) {
		res := resolved(t, artifact.Request{ArtifactName: "app", Version: "1.3.3", Platform: "linux", Arch: "x64"})
		p := writeArtifact(t, res.FileName, content)
		require.NoError(t, validatorFor(res).Validate(res, p))
	})

	t.Run("v2.0.0 requires UTF-8", func(t *testing.T) {
		res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})
		p := writeArtifact(t, res.FileName, content)
		err := validatorFor(res).Validate(res, p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "UTF-8")
	})

	t.Run("v2.0.0 standard decoding with clean manifest", func(t *testing.T) {
		res := resolved(t, artifact.Request{ArtifactName: "app", Version: "2.0.0", Platform: "linux", Arch: "x64"})
		clean := validatorFor(res)
		clean.Fetch = func(artifact.Request) (string, error) {
			dir, err := os.MkdirTemp("", "relfetch-test-")
			if err != nil {
				return "", err
			}
			p := filepath.Join(dir, ManifestFileName)
			line := fmt.Sprintf("%s *%s\n", digestOf(content), res.FileName)
			return p, os.WriteFile(p, []byte(line), 0644)
		}
		p := writeArtifact(t, res.FileName, content)
		require.NoError(t, clean.Validate(res, p))
	})
}

func TestParseManifest(t *testing.T) {
	text := "abc123 *first.zip\ndef456 *second.zip\n\nnot-a-valid-line\n789aaa  third.zip\n"
	entries := parseManifest(text)

	assert.Equal(t, "abc123", entries["first.zip"])
	assert.Equal(t, "def456", entries["second.zip"])
	assert.Equal(t, "789aaa", entries["third.zip"])
	assert.Len(t, entries, 3)
}
