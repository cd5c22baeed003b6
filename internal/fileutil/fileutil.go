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

package fileutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CleanupMode controls what happens to a scratch directory when the
// operation running inside it returns.
type CleanupMode int

const (
	// Clean removes the scratch directory on every exit path.
	Clean CleanupMode = iota
	// Orphan leaves the scratch directory in place on success, because
	// ownership of a file inside it transferred to the caller. The
	// directory is still removed when the operation fails.
	Orphan
)

// WithTempDir creates a private scratch directory under parent (or the
// system default when parent is empty), runs fn inside it, and releases
// the directory according to mode. The string fn returns is passed
// through unchanged.
func WithTempDir(parent string, mode CleanupMode, fn func(dir string) (string, error)) (string, error) {
	dir, err := os.MkdirTemp(parent, "relfetch-")
	if err != nil {
		return "", errors.Wrap(err, "unable to create scratch directory")
	}
	out, err := fn(dir)
	if err != nil || mode == Clean {
		os.RemoveAll(dir)
	}
	return out, err
}

// AtomicWriteFile atomically (as atomic as os.Rename allows) writes a file
// to disk.
func AtomicWriteFile(filename string, reader io.Reader, mode os.FileMode) error {
	tempFile, err := os.CreateTemp(filepath.Split(filename))
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	if _, err := io.Copy(tempFile, reader); err != nil {
		tempFile.Close() // return value is ignored as we are already on error path
		return err
	}

	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tempName, mode); err != nil {
		return err
	}

	return os.Rename(tempName, filename)
}

// CopyFile copies src to dst, creating or truncating dst. The destination
// keeps the source's permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	return AtomicWriteFile(dst, in, fi.Mode())
}
