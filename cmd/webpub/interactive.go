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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/config"
	"github.com/hzxy-devops/webpub/history"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newGUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "publish apps interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return interactive(cmd, e)
		},
	}
}

// prompter asks questions and reads the answers line by line, without
// blocking cancellation while waiting for an answer. An interrupt while
// waiting cancels the question.
type prompter struct {
	answers <-chan string
	out     io.Writer
	notify  notifier
}

func newPrompter(ctx context.Context, in io.Reader, out io.Writer, notify notifier) *prompter {
	answers := make(chan string)
	go func() {
		defer close(answers)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case answers <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return &prompter{answers: answers, out: out, notify: notify}
}

// ask a question, returning the trimmed answer or the default for an empty
// answer. It returns io.EOF when there are no more answers.
func (p *prompter) ask(ctx context.Context, question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	ctx, stop := p.notify(ctx, os.Interrupt)
	defer stop()
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", webpub.ErrCancelled
	case answer, ok := <-p.answers:
		if !ok {
			fmt.Fprintln(p.out)
			return "", io.EOF
		}
		if answer = strings.TrimSpace(answer); answer == "" {
			answer = def
		}
		return answer, nil
	}
}

// confirm asks a yes/no question.
func (p *prompter) confirm(ctx context.Context, question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, err := p.ask(ctx, question+" ("+hint+")", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// interactive runs the line-oriented front end: it repeatedly asks for an
// app to publish and runs the pipeline in the background, until the user
// quits with an empty app name, an interrupt at a question, or end of
// input. An interrupt during a run only cancels that run. Termination ends
// the front end.
func interactive(cmd *cobra.Command, e *env) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := e.notify(context.WithoutCancel(parent), syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()
	p := newPrompter(ctx, cmd.InOrStdin(), out, e.notify)
	fmt.Fprintln(out, "🌐  webpub, publishing front-end apps; an empty app name quits")
	for {
		err := publishInteractively(ctx, cmd, e, p)
		switch {
		case err == nil:
			continue
		case errors.Is(err, webpub.ErrCancelled) && ctx.Err() != nil:
			return err
		case errors.Is(err, errQuit), errors.Is(err, io.EOF), errors.Is(err, webpub.ErrCancelled):
			fmt.Fprintln(out, "👋  bye")
			return nil
		}
		fmt.Fprintf(out, "❌  %s\n", err)
	}
}

var errQuit = errors.New("quit")

func publishInteractively(ctx context.Context, cmd *cobra.Command, e *env, p *prompter) error {
	out := cmd.OutOrStdout()
	l, err := ledger(cmd)
	if err != nil {
		log.Warn(fmt.Sprintf("⚠️  ignoring build history, reason: %s", err))
		l = &history.Ledger{}
	}
	if apps := l.Apps(); len(apps) > 0 {
		fmt.Fprintf(out, "📚  known apps: %s\n", strings.Join(apps, ", "))
	}

	app, err := p.ask(ctx, "app name", "")
	if err != nil {
		return err
	}
	if app == "" {
		return errQuit
	}
	if err := webpub.ValidateAppName(app); err != nil {
		return err
	}
	version, err := p.ask(ctx, "version", l.Recommend(app))
	if err != nil {
		return err
	}
	archive, err := p.ask(ctx, "archive (.zip, .tar, .tar.gz)", "")
	if err != nil {
		return err
	}
	req := webpub.PublishRequest{AppName: app, Version: version, ArchivePath: archive}
	if err := req.Validate(); err != nil {
		return err
	}

	var overrides config.Overrides
	cfg := resolve(cmd, e, overrides)
	if cfg.RegistryUsername == "" {
		if overrides.RegistryUsername, err = p.ask(ctx, "registry user name", ""); err != nil {
			return err
		}
		cfg = resolve(cmd, e, overrides)
	}
	if cfg.RegistryToken == "" {
		fmt.Fprintf(out, "🔑  set the registry token via $%s or \"webpub config --set-token ... --save\"\n",
			config.TokenEnv)
		return cfg.RequireCredentials()
	}

	image, err := webpub.ResolveImage(cfg, req)
	if err != nil {
		return err
	}
	if ok, err := p.confirm(ctx, fmt.Sprintf("publish %s", image), true); err != nil || !ok {
		return err
	}

	res, err := runInBackground(ctx, cmd, e, cfg, req)
	if err != nil {
		return err
	}
	record(cmd, req, res)
	if res.State == webpub.Failed || res.State == webpub.Cancelled {
		return nil // the run has already reported how it ended
	}
	if err := outcome(res); err != nil {
		return err
	}
	fmt.Fprintf(out, "✅  published %s in %s\n", strings.Join(res.Image.Refs(), " and "),
		res.Duration.Round(100*time.Millisecond))

	if ok, err := p.confirm(ctx, "write deployment descriptor", false); err != nil || !ok {
		return err
	}
	return writeDescriptor(ctx, cmd, p, cfg, app)
}

// runInBackground starts the pipeline and prints its progress until it has
// finished; cancelling the context or an interrupt cancels the run.
func runInBackground(ctx context.Context, cmd *cobra.Command, e *env, cfg config.Configuration, req webpub.PublishRequest) (webpub.Result, error) {
	pipeline, err := newPipeline(cmd, e, nil)
	if err != nil {
		return webpub.Result{}, err
	}
	ctx, stop := e.notify(ctx, os.Interrupt)
	defer stop()
	bg := pipeline.Start(ctx, cfg, req)
	go func() {
		select {
		case <-ctx.Done():
			bg.Cancel()
		case <-bg.Done():
		}
	}()
	out := cmd.OutOrStdout()
	for line := range bg.Lines() {
		fmt.Fprintln(out, line)
	}
	res := bg.Wait()
	var states []string
	for t := range bg.Transitions() {
		if len(states) == 0 {
			states = append(states, t.From.String())
		}
		states = append(states, t.To.String())
	}
	log.Debug(fmt.Sprintf("run went %s", strings.Join(states, " → ")))
	return res, nil
}

func writeDescriptor(ctx context.Context, cmd *cobra.Command, p *prompter, cfg config.Configuration, app string) error {
	answer, err := p.ask(ctx, "host port", fmt.Sprint(webpub.DefaultPort))
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(answer)
	if err != nil {
		return &webpub.ValidationError{Field: "port", Reason: fmt.Sprintf("%q is not a number", answer), Err: err}
	}
	d, err := webpub.RenderDeployment(cfg, app, port)
	if err != nil {
		return err
	}
	filename, err := p.ask(ctx, "file", webpub.DeploymentFilename(app))
	if err != nil {
		return err
	}
	if err := webpub.WriteDeployment(filename, d); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "🚀  usage: docker compose -f %s up -d\n", filename)
	return nil
}
