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

package cache

import (
	"os"
	"path/filepath"
)

// RootEnvVar overrides the default cache root directory. When no value is
// set the user cache directory is used.
const RootEnvVar = "RELFETCH_CACHE"

// DefaultRoot resolves the cache root.
//
// There is an order to checking for a path.
// 1. See if the relfetch specific environment variable has been set.
// 2. Ask the OS for the user cache directory (honors XDG_CACHE_HOME).
// 3. Fall back to the system temp directory.
func DefaultRoot() string {
	if base := os.Getenv(RootEnvVar); base != "" {
		return base
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "relfetch")
}
