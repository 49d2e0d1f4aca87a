// Copyright 2026 by HZXY DevOps Team
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/hzxy-devops/webpub/config"
	"github.com/hzxy-devops/webpub/trial"
	"github.com/spf13/cobra"
)

// errUnhealthy signals that at least one doctor check failed.
var errUnhealthy = errors.New("some checks failed")

func newDoctorCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "check that everything needed for publishing is in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			healthy := true
			check := func(what string, err error, details string) {
				if err != nil {
					healthy = false
					fmt.Fprintf(out, "❌  %s: %s\n", what, err)
					return
				}
				fmt.Fprintf(out, "✅  %s: %s\n", what, details)
			}

			path, err := docker(cmd)
			check("docker command", err, path)

			engine, err := e.newEngine()
			if err == nil {
				var ping types.Ping
				ping, err = trial.Ping(cmd.Context(), engine, 5*time.Second)
				check("docker engine", err, "API version "+ping.APIVersion)
			} else {
				check("docker engine", err, "")
			}

			cfg := resolve(cmd, e, config.Overrides{})
			check("registry credentials", cfg.RequireCredentials(),
				"user "+cfg.RegistryUsername+", token "+cfg.Redacted().RegistryToken)

			if !healthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
