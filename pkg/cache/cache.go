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

// Package cache implements the directory-backed artifact store. Entries are
// keyed by remote URL: one subdirectory per key, each holding exactly one
// file, the cached artifact. The store never deletes entries on its own
// initiative; invalidation is driven by the download orchestrator.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"

	"github.com/relfetch/relfetch/internal/fileutil"
)

// Store is a URL-keyed artifact cache rooted at a single directory.
//
// Concurrent commits to different keys need no coordination. For the same
// key the last writer wins; no cross-process lock is held, so a reader may
// see a miss that a moment later becomes a hit.
type Store struct {
	// Root is the cache root directory.
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// Key derives the stable entry directory name for a URL. The query and
// fragment are stripped first, so two requests that differ only in
// transient URL decoration share an entry.
func Key(downloadURL string) string {
	if u, err := url.Parse(downloadURL); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		downloadURL = u.String()
	}
	sum := sha256.Sum256([]byte(downloadURL))
	return hex.EncodeToString(sum[:])
}

// entryPath joins fileName inside the entry directory for downloadURL,
// refusing path escapes in fileName.
func (s *Store) entryPath(downloadURL, fileName string) (string, error) {
	p, err := securejoin.SecureJoin(filepath.Join(s.Root, Key(downloadURL)), fileName)
	if err != nil {
		return "", errors.Wrapf(err, "invalid cache file name %q", fileName)
	}
	return p, nil
}

// Lookup returns the cached path for (downloadURL, fileName) and whether it
// exists. An entry directory whose expected file is absent is a miss, not
// an error.
func (s *Store) Lookup(downloadURL, fileName string) (string, bool, error) {
	p, err := s.entryPath(downloadURL, fileName)
	if err != nil {
		return "", false, err
	}
	fi, err := os.Stat(p)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "unable to read cache entry for %s", downloadURL)
	}
	if fi.IsDir() {
		return "", false, nil
	}
	return p, true, nil
}

// Commit durably adds sourcePath to the entry for (downloadURL, fileName),
// creating the entry directory if needed, and returns the final stable
// path.
func (s *Store) Commit(downloadURL, sourcePath, fileName string) (string, error) {
	p, err := s.entryPath(downloadURL, fileName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrapf(err, "unable to create cache entry for %s", downloadURL)
	}
	if err := fileutil.CopyFile(sourcePath, p); err != nil {
		return "", errors.Wrapf(err, "unable to commit %s to cache", sourcePath)
	}
	return p, nil
}

// Remove deletes the entire entry for downloadURL. Removing an absent entry
// is not an error.
func (s *Store) Remove(downloadURL string) error {
	return os.RemoveAll(filepath.Join(s.Root, Key(downloadURL)))
}
