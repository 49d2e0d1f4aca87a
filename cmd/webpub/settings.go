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

	"github.com/hzxy-devops/webpub/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const saveFlag = "save"

// settable maps the flags of the config command onto the settings they
// change.
var settable = []struct {
	flag  string
	usage string
	field func(*config.Settings) *string
}{
	{"set-username", "registry user name", func(s *config.Settings) *string { return &s.RegistryUsername }},
	{"set-token", "registry token", func(s *config.Settings) *string { return &s.RegistryToken }},
	{"set-maintainer", "maintainer", func(s *config.Settings) *string { return &s.Maintainer }},
	{"set-prefix", "service name prefix", func(s *config.Settings) *string { return &s.ServicePrefix }},
	{"set-base-image", "base image name", func(s *config.Settings) *string { return &s.BaseImageName }},
	{"set-runtime-image", "runtime image", func(s *config.Settings) *string { return &s.RuntimeImage }},
}

func newConfigCmd(e *env) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "show the resolved configuration, or change the settings file",
		Long: `Shows the configuration resolved from the settings file, the
environment variables $` + config.UsernameEnv + `, $` + config.TokenEnv + `,
$` + config.MaintainerEnv + `, and the built-in defaults. The token is never shown.

With --save, the --set-... flags get written to the settings file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(settingsFlag)
			if save, _ := cmd.Flags().GetBool(saveFlag); save {
				settings, err := config.Load(path)
				if err != nil {
					log.Warn(fmt.Sprintf("⚠️  starting new settings, %s", err))
					settings = config.Settings{}
				}
				for _, s := range settable {
					if cmd.Flags().Changed(s.flag) {
						value, _ := cmd.Flags().GetString(s.flag)
						*s.field(&settings) = value
					}
				}
				if err := config.Save(path, settings); err != nil {
					return err
				}
			}
			cfg := resolve(cmd, e, config.Overrides{})
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "📋  configuration")
			fmt.Fprint(out, cfg.String())
			fmt.Fprintf(out, "%-18s %s\n", "settingsFile:", path)
			return nil
		},
	}
	for _, s := range settable {
		configCmd.Flags().String(s.flag, "", "new "+s.usage+" (needs --save)")
	}
	configCmd.Flags().Bool(saveFlag, false, "write the --set-... values to the settings file")
	return configCmd
}
