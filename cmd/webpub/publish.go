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
	"io"

	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/config"
	"github.com/hzxy-devops/webpub/history"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	usernameFlag   = "username"
	tokenFlag      = "token"
	maintainerFlag = "maintainer"
	platformFlag   = "platform"
	verifyFlag     = "verify-remote"
	keepFlag       = "keep"
	noHistoryFlag  = "no-history"
)

func newPublishCmd(e *env) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish <appName> <version> <archivePath>",
		Short: "build an app archive into an image and push it as version and latest",
		Example: `  webpub publish ai-zhaoshang 1.0.0 ./dist.zip
  DOCKERHUB_TOKEN=... webpub publish --username myuser portal v2.1.0 build/site.tar.gz`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := webpub.PublishRequest{AppName: args[0], Version: args[1], ArchivePath: args[2]}
			cfg := resolve(cmd, e, overridesFrom(cmd))
			pipeline, err := newPipeline(cmd, e, printer(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			res := pipeline.Run(cmd.Context(), cfg, req)
			record(cmd, req, res)
			return outcome(res)
		},
	}
	flags := publishCmd.Flags()
	flags.String(usernameFlag, "", "registry user name for this run only")
	flags.String(tokenFlag, "", "registry token for this run only; prefer $"+config.TokenEnv)
	flags.String(maintainerFlag, "", "maintainer label for this run only")
	flags.String(platformFlag, "", "target platform of the image, such as linux/amd64")
	flags.Bool(verifyFlag, false, "confirm the version tag in the registry before pushing latest")
	flags.Bool(keepFlag, false, "keep the staged build context")
	flags.Bool(noHistoryFlag, false, "don't record this run in the build history")
	return publishCmd
}

// overridesFrom returns the configuration overrides given as flags, if any.
func overridesFrom(cmd *cobra.Command) config.Overrides {
	username, _ := cmd.Flags().GetString(usernameFlag)
	token, _ := cmd.Flags().GetString(tokenFlag)
	maintainer, _ := cmd.Flags().GetString(maintainerFlag)
	return config.Overrides{
		RegistryUsername: username,
		RegistryToken:    token,
		Maintainer:       maintainer,
	}
}

// newPipeline returns a pipeline set up according to the command's flags.
func newPipeline(cmd *cobra.Command, e *env, rep webpub.ProgressReporter) (*webpub.Pipeline, error) {
	dockerPath, err := docker(cmd)
	if err != nil {
		return nil, err
	}
	platform, _ := cmd.Flags().GetString(platformFlag)
	keep, _ := cmd.Flags().GetBool(keepFlag)
	pusher := &webpub.Pusher{
		Runner:          e.runner,
		Docker:          dockerPath,
		InitialInterval: e.backoff,
	}
	if verify, _ := cmd.Flags().GetBool(verifyFlag); verify {
		pusher.Verifier = &webpub.RegistryVerifier{}
	}
	return &webpub.Pipeline{
		Stager:      &webpub.Stager{Root: e.stageRoot},
		Builder:     &webpub.Builder{Runner: e.runner, Docker: dockerPath, Platform: platform},
		Pusher:      pusher,
		Reporter:    rep,
		KeepContext: keep,
		OnTransition: func(from, to webpub.State) {
			log.Debug(fmt.Sprintf("%s → %s", from, to))
		},
	}, nil
}

// printer writes progress lines to the specified writer.
func printer(w io.Writer) webpub.ProgressReporter {
	return webpub.ReporterFunc(func(line string) {
		fmt.Fprintln(w, line)
	})
}

// outcome maps the result of a pipeline run onto the command's error.
func outcome(res webpub.Result) error {
	switch res.State {
	case webpub.Succeeded:
		if res.Context != nil {
			log.Info(fmt.Sprintf("📂  build context kept in %s", res.Context.Dir))
		}
		return nil
	case webpub.Cancelled:
		return webpub.ErrCancelled
	}
	return res.Err
}

// record the run in the build history, unless told otherwise or the run
// didn't get beyond checking the request.
func record(cmd *cobra.Command, req webpub.PublishRequest, res webpub.Result) {
	if skip, _ := cmd.Flags().GetBool(noHistoryFlag); skip || res.Image.Repository == "" {
		return
	}
	path, _ := cmd.Flags().GetString(historyFlag)
	r := history.Record{
		AppName: req.AppName,
		Version: req.Version,
		Image:   res.Image.Ref(req.Version),
		Archive: req.ArchivePath,
		State:   res.State.String(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	if err := history.Append(path, r); err != nil {
		log.Warn(fmt.Sprintf("⚠️  cannot record build history, reason: %s", err))
	}
}
