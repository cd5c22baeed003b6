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

// Package mirror resolves where release artifacts are downloaded from.
//
// Every overridable value (base mirror, nightly mirror, directory template,
// file name, version) is resolved through the same ranked lookup: a
// package-manager-style scoped environment variable wins over a plain
// environment variable, which wins over the project-level config file, which
// wins over the explicit in-call options, which win over the built-in
// default.
package mirror

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

const (
	// DefaultBaseMirror is where release artifacts are served from when no
	// override is in effect.
	DefaultBaseMirror = "https://artifacts.relfetch.io/releases/download/"

	// DefaultNightlyMirror serves artifacts whose version contains "nightly".
	DefaultNightlyMirror = "https://artifacts.relfetch.io/nightlies/download/"

	// TemplatePlaceholder in a custom directory template expands to the
	// un-prefixed version number.
	TemplatePlaceholder = "{{ version }}"

	// ConfigPathEnvVar points at the project-level config file. When unset,
	// DefaultConfigFile in the working directory is used.
	ConfigPathEnvVar = "RELFETCH_CONFIG"

	// DefaultConfigFile is the project-level config file name.
	DefaultConfigFile = ".relfetch.yaml"
)

// Override keys. These name the values a caller (or the environment) can
// override; they double as the project config file keys.
const (
	KeyMirror         = "mirror"
	KeyNightlyMirror  = "nightly_mirror"
	KeyCustomDir      = "custom_dir"
	KeyCustomFilename = "custom_filename"
	KeyCustomVersion  = "custom_version"
)

const (
	scopedEnvPrefixUpper = "NPM_CONFIG_RELFETCH_"
	scopedEnvPrefixLower = "npm_config_relfetch_"
	plainEnvPrefix       = "RELFETCH_"
)

// URLResolver computes the remote URL for an artifact directly, bypassing
// the mirror/directory/file-name template logic entirely. Its result is
// used verbatim.
type URLResolver func(version, fileName string) (string, error)

// Options are the explicit in-call overrides for one request.
type Options struct {
	// Mirror replaces the base mirror URL.
	Mirror string
	// NightlyMirror replaces the mirror used for nightly versions.
	NightlyMirror string
	// CustomDir replaces the remote directory. It may contain
	// TemplatePlaceholder.
	CustomDir string
	// CustomFilename replaces the file name portion of the remote URL. It
	// does not change the local identity of the artifact.
	CustomFilename string
	// CustomVersion replaces the version that is downloaded, independently
	// of the version used to name the artifact.
	CustomVersion string
	// Resolver, when set, bypasses the template logic.
	Resolver URLResolver
}

// Config holds project-level override values, keyed by the Key* constants.
type Config map[string]string

// LoadConfigFile reads a project-level config file. A missing file is not
// an error; it yields an empty config.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %s", path)
	}
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "unable to parse config file %s", path)
	}
	return cfg, nil
}

// DefaultConfigPath returns the project config file location, honoring the
// ConfigPathEnvVar override.
func DefaultConfigPath() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Var resolves one override key across the ranked lookup sources and falls
// back to def when no source provides a value.
func Var(key string, cfg Config, explicit, def string) string {
	for _, source := range sources(key, cfg, explicit) {
		if v := source(); v != "" {
			return v
		}
	}
	return def
}

// sources returns the lookup chain for a key, highest precedence first.
func sources(key string, cfg Config, explicit string) []func() string {
	upper := strings.ToUpper(key)
	lower := strings.ToLower(key)
	return []func() string{
		func() string { return os.Getenv(scopedEnvPrefixUpper + upper) },
		func() string { return os.Getenv(scopedEnvPrefixLower + lower) },
		func() string { return os.Getenv(plainEnvPrefix + upper) },
		func() string { return cfg[lower] },
		func() string { return explicit },
	}
}

// HasMirrorOverride reports whether any source overrides the base or
// nightly mirror. Used to suppress advisory warnings when the caller has
// pointed downloads somewhere else.
func HasMirrorOverride(cfg Config, opts Options) bool {
	return Var(KeyMirror, cfg, opts.Mirror, "") != "" ||
		Var(KeyNightlyMirror, cfg, opts.NightlyMirror, "") != ""
}
