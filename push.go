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

package webpub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hzxy-devops/webpub/config"

	log "github.com/sirupsen/logrus"
)

// Push retry defaults.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 2 * time.Second
)

// Output of the docker command telling us that the registry refused our
// credentials or denied access, so trying again is pointless.
var deniedMessages = []string{
	"unauthorized",
	"authentication required",
	"no basic auth credentials",
	"incorrect username or password",
	"authorization failed",
	"requested access to the resource is denied",
	"access denied",
	"403 forbidden",
}

// Verifier confirms that a pushed image reference is actually present in the
// registry.
type Verifier interface {
	Verify(ctx context.Context, ref string, cfg config.Configuration) error
}

// Pusher logs into the registry and pushes the tags of an image reference in
// order, retrying transient failures with exponential backoff.
type Pusher struct {
	Runner          Runner        // defaults to ExecRunner
	Docker          string        // path of the docker command; defaults to "docker"
	MaxAttempts     int           // per login and tag push; defaults to DefaultMaxAttempts
	InitialInterval time.Duration // first backoff interval; defaults to DefaultInitialInterval
	Verifier        Verifier      // optional check of the version tag before pushing latest
	ConfigRoot      string        // parent of the per-run docker client configuration; defaults to the temp dir
}

// PushReport tells which tags got published and how many attempts each one
// took.
type PushReport struct {
	Pushed   []string
	Attempts map[string]int
}

func (p *Pusher) runner() Runner {
	if p.Runner == nil {
		return ExecRunner{}
	}
	return p.Runner
}

func (p *Pusher) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p *Pusher) initialInterval() time.Duration {
	if p.InitialInterval <= 0 {
		return DefaultInitialInterval
	}
	return p.InitialInterval
}

// Push publishes all tags of the specified image reference. The version tag
// is pushed first and latest only after the version push has succeeded. The
// returned report lists the tags published so far even when Push fails.
func (p *Pusher) Push(ctx context.Context, cfg config.Configuration, img ImageReference, rep ProgressReporter) (*PushReport, error) {
	rep = orDiscard(rep)
	report := &PushReport{Attempts: map[string]int{}}
	if err := cfg.RequireCredentials(); err != nil {
		return report, err
	}
	if len(img.Tags) == 0 {
		return report, invalid("image reference", "has no tags")
	}

	dockerConfig, err := p.clientConfig()
	if err != nil {
		return report, err
	}
	defer func() {
		if err := os.RemoveAll(dockerConfig); err != nil {
			log.Warn(fmt.Sprintf("cannot remove docker client configuration %q, reason: %s", dockerConfig, err))
		}
	}()

	rep.Emit(fmt.Sprintf("🔑  logging into %s as %s", img.Registry(), cfg.RegistryUsername))
	attempts, err := p.retry(ctx, "login", func() Command {
		return p.loginCommand(dockerConfig, cfg, img)
	}, rep)
	if err != nil {
		return report, p.failure(err, "", attempts, report)
	}

	for idx, tag := range img.Tags {
		if ctx.Err() != nil {
			return report, ErrCancelled
		}
		if idx > 0 && p.Verifier != nil {
			prev := img.Ref(img.Tags[idx-1])
			rep.Emit(fmt.Sprintf("🔎  checking %s in registry", prev))
			attempts, err := p.attempt(ctx, "check of "+prev, func() error {
				err := p.Verifier.Verify(ctx, prev, cfg)
				if err != nil && registryDenied(err) {
					return backoff.Permanent(&errDenied{err: err})
				}
				return err
			}, rep)
			if err != nil {
				return report, p.failure(err, img.Tags[idx-1], attempts, report)
			}
		}
		ref := img.Ref(tag)
		rep.Emit(fmt.Sprintf("🚚  pushing %s", ref))
		attempts, err := p.retry(ctx, "push of "+ref, func() Command {
			return Command{
				Name: dockerOr(p.Docker),
				Args: []string{"--config", dockerConfig, "push", ref},
			}
		}, rep)
		report.Attempts[tag] = attempts
		if err != nil {
			return report, p.failure(err, tag, attempts, report)
		}
		report.Pushed = append(report.Pushed, tag)
		rep.Emit(fmt.Sprintf("✅  pushed %s", ref))
	}
	return report, nil
}

// clientConfig creates a docker client configuration directory private to
// this push, without any credential store, so the login doesn't touch the
// user's own docker configuration.
func (p *Pusher) clientConfig() (string, error) {
	dir, err := os.MkdirTemp(p.ConfigRoot, "webpub-docker-")
	if err != nil {
		return "", &IOError{Op: "create docker client configuration", Path: p.ConfigRoot, Err: err}
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"credsStore": ""}`+"\n"), 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", &IOError{Op: "write docker client configuration", Path: path, Err: err}
	}
	return dir, nil
}

// loginCommand returns the login command, passing the token on stdin.
func (p *Pusher) loginCommand(dockerConfig string, cfg config.Configuration, img ImageReference) Command {
	args := []string{"--config", dockerConfig, "login", "--username", cfg.RegistryUsername, "--password-stdin"}
	if registry := img.Registry(); registry != "" && registry != defaultDomain {
		args = append(args, registry)
	}
	return Command{
		Name:  dockerOr(p.Docker),
		Args:  args,
		Stdin: strings.NewReader(cfg.RegistryToken),
	}
}

// errDenied marks a command failure where the registry denied access.
type errDenied struct{ err error }

func (e *errDenied) Error() string { return e.err.Error() }
func (e *errDenied) Unwrap() error { return e.err }

// retry runs the command returned by cmd until it succeeds, access gets
// denied, the context gets cancelled, or all attempts have been used up. It
// returns the number of attempts made.
func (p *Pusher) retry(ctx context.Context, what string, cmd func() Command, rep ProgressReporter) (int, error) {
	return p.attempt(ctx, what, func() error {
		var output []string
		err := p.runner().Run(ctx, cmd(), func(line string) {
			output = append(output, line)
			rep.Emit(line)
		})
		if err != nil && ctx.Err() == nil && deniedOutput(output) {
			return backoff.Permanent(&errDenied{err: err})
		}
		return err
	}, rep)
}

// attempt runs op until it succeeds, fails permanently, the context gets
// cancelled, or the attempts are used up. It returns the number of attempts
// made.
func (p *Pusher) attempt(ctx context.Context, what string, op func() error, rep ProgressReporter) (int, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.initialInterval()
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(expo, uint64(p.maxAttempts()-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, policy, func(err error, next time.Duration) {
		rep.Emit(fmt.Sprintf("⏳  %s failed (attempt %d of %d), retrying in %s",
			what, attempts, p.maxAttempts(), next.Round(time.Millisecond)))
	})
	return attempts, err
}

// failure turns the outcome of a failed step of a push into either
// ErrCancelled or a *PushError.
func (p *Pusher) failure(err error, tag string, attempts int, report *PushReport) error {
	if isCancellation(err) {
		return ErrCancelled
	}
	kind := Transient
	var denied *errDenied
	if errors.As(err, &denied) {
		kind = AuthDenied
		err = denied.err
	}
	return &PushError{
		Kind:     kind,
		Tag:      tag,
		Attempts: attempts,
		Pushed:   append([]string(nil), report.Pushed...),
		Err:      err,
	}
}

func deniedOutput(lines []string) bool {
	for _, line := range lines {
		line = strings.ToLower(line)
		for _, msg := range deniedMessages {
			if strings.Contains(line, msg) {
				return true
			}
		}
	}
	return false
}
