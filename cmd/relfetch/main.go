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

// relfetch downloads versioned release artifacts, verifies their checksums,
// and caches them locally.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var globalUsage = `relfetch fetches versioned binary release artifacts, verifies their
integrity against the release checksum manifest, and caches them locally so
repeated requests avoid network cost.`

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	cmd := newRootCmd(logger)
	if err := cmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:          "relfetch",
		Short:        "fetch, verify, and cache release artifacts",
		Long:         globalUsage,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if debug {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose output")

	cmd.AddCommand(newGetCmd(logger))
	return cmd
}
