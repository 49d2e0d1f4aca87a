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
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/history"
	"github.com/spf13/cobra"
)

const limitFlag = "limit"

// now is replaced in tests to get stable ages.
var now = time.Now

func ledger(cmd *cobra.Command) (*history.Ledger, error) {
	path, _ := cmd.Flags().GetString(historyFlag)
	return history.Load(path)
}

func newHistoryCmd(e *env) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history [appName]",
		Short: "list past publishing runs, optionally of a single app",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := ledger(cmd)
			if err != nil {
				return err
			}
			apps := l.Apps()
			if len(args) == 1 {
				if err := webpub.ValidateAppName(args[0]); err != nil {
					return err
				}
				apps = []string{args[0]}
			}
			limit, _ := cmd.Flags().GetInt(limitFlag)
			out := cmd.OutOrStdout()
			if len(l.Records) == 0 {
				fmt.Fprintln(out, "no publishing runs recorded yet")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "APP\tVERSION\tSTATE\tWHEN\tIMAGE")
			for _, app := range apps {
				for idx, r := range l.ForApp(app) {
					if limit > 0 && idx >= limit {
						break
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s ago\t%s\n",
						r.AppName, r.Version, r.State,
						units.HumanDuration(now().Sub(r.PublishedAt)), r.Image)
				}
			}
			return w.Flush()
		},
	}
	historyCmd.Flags().IntP(limitFlag, "n", 0, "show at most this many runs per app; 0 shows all")
	return historyCmd
}

func newNextVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "next-version <appName>",
		Short: "recommend the next version to publish an app as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := webpub.ValidateAppName(args[0]); err != nil {
				return err
			}
			l, err := ledger(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), l.Recommend(args[0]))
			return nil
		},
	}
}
