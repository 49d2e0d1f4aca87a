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
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/config"
	"github.com/hzxy-devops/webpub/history"
	"github.com/hzxy-devops/webpub/trial"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

const (
	debugFlag    = "debug"
	settingsFlag = "settings"
	historyFlag  = "history"
	dockerFlag   = "docker"
)

// notifier returns a context that gets cancelled when one of the signals
// arrives, like signal.NotifyContext.
type notifier func(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc)

// env bundles what commands need from the outside world, so tests can
// replace it.
type env struct {
	in        io.Reader
	out       io.Writer
	getenv    func(string) string
	runner    webpub.Runner
	newEngine func() (trial.Engine, error)
	newDaemon func() (daemon.Client, error)
	notify    notifier
	stageRoot string
	backoff   time.Duration
}

func defaultEnv() *env {
	return &env{
		in:     os.Stdin,
		out:    os.Stdout,
		getenv: os.Getenv,
		runner: webpub.ExecRunner{},
		newEngine: func() (trial.Engine, error) {
			return trial.NewEngine()
		},
		newDaemon: func() (daemon.Client, error) {
			return trial.NewEngine()
		},
		notify: signal.NotifyContext,
	}
}

func buildInfo(info *debug.BuildInfo, key string) string {
	idx := slices.IndexFunc(info.Settings,
		func(setting debug.BuildSetting) bool {
			return setting.Key == key
		})
	if idx < 0 {
		return ""
	}
	return info.Settings[idx].Value
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(unknown)"
	}
	if commit := buildInfo(info, "vcs.revision"); len(commit) >= 8 {
		modified := ""
		if buildInfo(info, "vcs.modified") == "true" {
			modified = " (modified)"
		}
		return fmt.Sprintf("commit %s%s", commit[:8], modified)
	}
	if modver := info.Main.Version; modver != "" {
		return modver
	}
	return "(devel)"
}

func newRootCmd(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "webpub [flags]",
		Short: "webpub publishes front-end apps as nginx container images",
		Long: `webpub packages a compiled front-end app archive into an nginx-based
container image, publishes it as a version and the latest tag to the
registry, and renders compose-style deployment descriptors.

Without any command, webpub starts its interactive front end.`,
		Version:       version(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if debug, _ := cmd.Flags().GetBool(debugFlag); debug {
				log.SetLevel(log.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return interactive(cmd, e)
		},
	}
	rootCmd.SetIn(e.in)
	rootCmd.SetOut(e.out)

	pf := rootCmd.PersistentFlags()
	pf.Bool(debugFlag, false, "enable debug logging")
	pf.String(settingsFlag, config.DefaultPath(), "path of the settings file")
	pf.String(historyFlag, history.DefaultPath(), "path of the build history file")
	pf.String(dockerFlag, "", "path of the docker command; looked up automatically if empty")

	rootCmd.AddCommand(
		newPublishCmd(e),
		newConfigCmd(e),
		newTemplateCmd(e),
		newHistoryCmd(e),
		newNextVersionCmd(e),
		newTrialCmd(e),
		newStopCmd(e),
		newExportCmd(e),
		newDoctorCmd(e),
		newVersionCmd(),
		newGUICmd(e),
	)
	return rootCmd
}

// resolve the configuration of this run from the settings file, environment,
// and the specified overrides.
func resolve(cmd *cobra.Command, e *env, overrides config.Overrides) config.Configuration {
	path, _ := cmd.Flags().GetString(settingsFlag)
	return config.Resolver{
		Path:      path,
		Getenv:    e.getenv,
		Overrides: overrides,
	}.Resolve()
}

// docker returns the path of the docker command to use.
func docker(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString(dockerFlag); path != "" {
		return filepath.Clean(path), nil
	}
	return webpub.FindDocker()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "show the version of webpub",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webpub %s\n", cmd.Root().Version)
		},
	}
}
