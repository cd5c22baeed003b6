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

package artifact

import (
	"strings"

	"github.com/relfetch/relfetch/pkg/mirror"
)

// Resolve validates a request and computes its canonical file name, its
// effective version, and the remote URL it downloads from.
func Resolve(req Request) (*Resolved, error) {
	if req.ArtifactName == "" {
		return nil, ConfigurationError{Reason: "artifactName is required"}
	}
	if req.Version == "" {
		return nil, ConfigurationError{Reason: "version is required"}
	}
	version := normalizeVersion(req.Version)

	fileName := req.ArtifactName
	if !req.IsGeneric {
		if req.Platform == "" {
			return nil, ConfigurationError{Reason: "platform is required for non-generic artifacts"}
		}
		if req.Arch == "" {
			return nil, ConfigurationError{Reason: "arch is required for non-generic artifacts"}
		}
		parts := []string{req.ArtifactName, version, req.Platform, req.Arch}
		if req.ArtifactSuffix != "" {
			parts = append(parts, req.ArtifactSuffix)
		}
		fileName = strings.Join(parts, "-") + ".zip"
	}

	// The custom version override is evaluated independently of the
	// file-name and URL overrides: it changes what is downloaded, not what
	// the artifact is called locally.
	effective := normalizeVersion(mirror.Var(mirror.KeyCustomVersion, req.Config, req.Mirror.CustomVersion, version))

	remote, err := remoteURL(req, effective, fileName)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Request:   req,
		Version:   effective,
		FileName:  fileName,
		RemoteURL: remote,
	}, nil
}

func remoteURL(req Request, version, fileName string) (string, error) {
	if req.Mirror.Resolver != nil {
		return req.Mirror.Resolver(version, fileName)
	}

	base := mirror.Var(mirror.KeyMirror, req.Config, req.Mirror.Mirror, mirror.DefaultBaseMirror)
	if strings.Contains(version, "nightly") {
		base = mirror.Var(mirror.KeyNightlyMirror, req.Config, req.Mirror.NightlyMirror, mirror.DefaultNightlyMirror)
	}

	dir := mirror.Var(mirror.KeyCustomDir, req.Config, req.Mirror.CustomDir, version)
	dir = strings.ReplaceAll(dir, mirror.TemplatePlaceholder, strings.TrimPrefix(version, "v"))

	file := mirror.Var(mirror.KeyCustomFilename, req.Config, req.Mirror.CustomFilename, fileName)

	return base + dir + "/" + file, nil
}

func normalizeVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
