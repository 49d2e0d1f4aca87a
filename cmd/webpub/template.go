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
	"fmt"
	"os"

	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	portFlag  = "port"
	outFlag   = "out"
	writeFlag = "write"
	checkFlag = "check"
)

func newTemplateCmd(e *env) *cobra.Command {
	templateCmd := &cobra.Command{
		Use:   "template <appName>",
		Short: "render the compose deployment descriptor of an app",
		Example: `  webpub template ai-zhaoshang --port 3000
  webpub template ai-zhaoshang --write
  webpub template --check docker-compose-ai-zhaoshang.yml ai-zhaoshang`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolve(cmd, e, config.Overrides{})
			port, _ := cmd.Flags().GetInt(portFlag)
			d, err := webpub.RenderDeployment(cfg, args[0], port)
			if err != nil {
				return err
			}
			if check, _ := cmd.Flags().GetString(checkFlag); check != "" {
				return checkDeployment(cmd, check, d)
			}
			out, _ := cmd.Flags().GetString(outFlag)
			if write, _ := cmd.Flags().GetBool(writeFlag); write && out == "" {
				out = webpub.DeploymentFilename(args[0])
			}
			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), d.Text)
				return nil
			}
			if err := webpub.WriteDeployment(out, d); err != nil {
				return err
			}
			log.Info(fmt.Sprintf("✅  deployment descriptor written to %s", out))
			fmt.Fprintf(cmd.OutOrStdout(), "🚀  usage: docker compose -f %s up -d\n", out)
			return nil
		},
	}
	templateCmd.Flags().IntP(portFlag, "p", webpub.DefaultPort, "host port to publish the web server on")
	templateCmd.Flags().StringP(outFlag, "o", "", "write the descriptor to this file instead of stdout")
	templateCmd.Flags().Bool(writeFlag, false, "write the descriptor to docker-compose-<appName>.yml")
	templateCmd.Flags().String(checkFlag, "", "check an existing descriptor against the rendered one")
	return templateCmd
}

// checkDeployment compares an existing descriptor file with the rendered
// descriptor.
func checkDeployment(cmd *cobra.Command, path string, want webpub.DeploymentTemplate) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read deployment descriptor, reason: %w", err)
	}
	got, err := webpub.ParseDeployment(text)
	if err != nil {
		return err
	}
	var diffs []string
	compare := func(what string, got, want any) {
		if got != want {
			diffs = append(diffs, fmt.Sprintf("%s is %v instead of %v", what, got, want))
		}
	}
	compare("service", got.Service, want.Service)
	compare("image", got.Image, want.Image)
	compare("port", got.Port, want.Port)
	compare("network", got.Network, want.Network)
	if len(diffs) > 0 {
		for _, diff := range diffs {
			fmt.Fprintf(cmd.OutOrStdout(), "❌  %s\n", diff)
		}
		return fmt.Errorf("deployment descriptor %s is out of date", path)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅  %s is up to date\n", path)
	return nil
}
