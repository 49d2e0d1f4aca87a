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
	"context"
	"fmt"
	"time"

	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/config"
	"github.com/hzxy-devops/webpub/trial"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	firstPortFlag = "first-port"
	waitFlag      = "wait"
)

func newTrialCmd(e *env) *cobra.Command {
	trialCmd := &cobra.Command{
		Use:   "trial <appName> [tag]",
		Short: "run a published app image locally for a quick look",
		Long: `Starts a local trial container of an app's image, replacing any
previous trial container of the same app. The tag defaults to "latest".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := resolve(cmd, e, config.Overrides{})
			repo, err := webpub.Repository(cfg, args[0])
			if err != nil {
				return err
			}
			tag := webpub.LatestTag
			if len(args) == 2 {
				tag = args[1]
			}
			engine, err := e.newEngine()
			if err != nil {
				return err
			}
			if _, err := trial.Ping(cmd.Context(), engine, 5*time.Second); err != nil {
				return err
			}
			firstPort, _ := cmd.Flags().GetInt(firstPortFlag)
			runner := &trial.Runner{Engine: engine, FirstPort: firstPort}
			t, err := runner.Start(cmd.Context(), args[0], repo+":"+tag)
			if err != nil {
				return err
			}
			if wait, _ := cmd.Flags().GetDuration(waitFlag); wait > 0 {
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				if err := runner.WaitReady(ctx, t.URL); err != nil {
					log.Warn(fmt.Sprintf("⚠️  %s", err))
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "🧪  trial %s of %s is up at %s\n", t.Name, t.Image, t.URL)
			fmt.Fprintf(out, "🛑  stop it using: webpub stop %s\n", args[0])
			return nil
		},
	}
	trialCmd.Flags().Int(firstPortFlag, trial.DefaultFirstPort, "first host port to try publishing the trial on")
	trialCmd.Flags().Duration(waitFlag, 30*time.Second, "wait this long for the trial to answer; 0 skips waiting")
	return trialCmd
}

func newStopCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <appName>",
		Short: "remove the local trial container of an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := webpub.ValidateAppName(args[0]); err != nil {
				return err
			}
			engine, err := e.newEngine()
			if err != nil {
				return err
			}
			runner := &trial.Runner{Engine: engine}
			if err := runner.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅  no trial of %s running anymore\n", args[0])
			return nil
		},
	}
}
