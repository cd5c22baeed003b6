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

package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relfetch/relfetch/pkg/artifact"
	"github.com/relfetch/relfetch/pkg/downloader"
	"github.com/relfetch/relfetch/pkg/getter"
	"github.com/relfetch/relfetch/pkg/mirror"
)

const getDesc = `Download one release artifact and print its local path.

Platform artifacts are named <artifact>-<version>-<platform>-<arch>[-<suffix>].zip;
generic artifacts (such as checksum manifests) keep their name verbatim.
Mirror locations can be overridden through flags, the project config file
(` + mirror.DefaultConfigFile + `), or RELFETCH_* environment variables.`

func newGetCmd(logger *logrus.Logger) *cobra.Command {
	var (
		req         artifact.Request
		cacheMode   string
		timeout     time.Duration
		userAgent   string
		insecureTLS bool
		configFile  string
	)

	cmd := &cobra.Command{
		Use:   "get ARTIFACT VERSION",
		Short: "download one release artifact and print its local path",
		Long:  getDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ArtifactName = args[0]
			req.Version = args[1]

			mode, err := artifact.ParseCacheMode(cacheMode)
			if err != nil {
				return err
			}
			req.CacheMode = mode

			if configFile == "" {
				configFile = mirror.DefaultConfigPath()
			}
			cfg, err := mirror.LoadConfigFile(configFile)
			if err != nil {
				return err
			}
			req.Config = cfg

			opts := []getter.Option{getter.WithTimeout(timeout)}
			if userAgent != "" {
				opts = append(opts, getter.WithUserAgent(userAgent))
			}
			if insecureTLS {
				opts = append(opts, getter.WithInsecureSkipVerifyTLS(true))
			}

			d := downloader.New(opts...)
			d.Logger = logger

			path, err := d.Fetch(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Platform, "platform", "", "target platform, e.g. darwin or win32")
	f.StringVar(&req.Arch, "arch", "", "target architecture, e.g. x64 or arm64")
	f.StringVar(&req.ArtifactSuffix, "suffix", "", "artifact variant suffix")
	f.BoolVar(&req.IsGeneric, "generic", false, "fetch a generic artifact not qualified by platform/arch")
	f.StringVar(&req.CacheRoot, "cache-root", "", "cache directory (default: user cache dir)")
	f.StringVar(&cacheMode, "cache-mode", "readwrite", "one of readwrite, readonly, writeonly, bypass")
	f.BoolVar(&req.UnsafelyDisableChecksums, "unsafely-disable-checksums", false, "skip checksum verification")
	f.StringVar(&req.TempDirectory, "temp-dir", "", "directory for in-flight scratch files")
	f.StringVar(&req.Mirror.Mirror, "mirror", "", "base mirror URL override")
	f.StringVar(&req.Mirror.NightlyMirror, "nightly-mirror", "", "nightly mirror URL override")
	f.StringVar(&req.Mirror.CustomDir, "custom-dir", "", "remote directory template override ("+mirror.TemplatePlaceholder+" expands to the version number)")
	f.StringVar(&req.Mirror.CustomFilename, "custom-filename", "", "remote file name override")
	f.StringVar(&req.Mirror.CustomVersion, "custom-version", "", "download this version instead of the one used for naming")
	f.StringVar(&configFile, "config", "", "project config file (default: "+mirror.DefaultConfigFile+" or $"+mirror.ConfigPathEnvVar+")")
	f.DurationVar(&timeout, "timeout", getter.DefaultHTTPTimeout, "HTTP request timeout")
	f.StringVar(&userAgent, "user-agent", "", "custom User-Agent header")
	f.BoolVar(&insecureTLS, "insecure-skip-tls-verify", false, "skip TLS certificate verification")

	return cmd
}
