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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Command describes an external process to run.
type Command struct {
	Name  string
	Args  []string
	Dir   string    // working directory; empty for the current one
	Env   []string  // additional "KEY=value" entries on top of the process environment
	Stdin io.Reader // optional; secrets are passed this way, never as arguments
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner runs external commands, handing over their combined output line by
// line in the order it was emitted. Run must return ctx.Err() when the
// command got killed because the context was cancelled, and an *ExitError
// when the command ran but failed.
type Runner interface {
	Run(ctx context.Context, cmd Command, emit func(line string)) error
}

// ExitError reports a command that terminated with a non-zero exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// maxLineLength limits single output lines; anything longer is an error.
const maxLineLength = 1024 * 1024

// waitDelay bounds how long a killed command may keep its output open, such
// as through orphaned child processes.
const waitDelay = 5 * time.Second

// ExecRunner runs commands as child processes of this process. Their stdout
// and stderr are merged into a single stream, so lines keep their relative
// order.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

func (ExecRunner) Run(ctx context.Context, c Command, emit func(line string)) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = waitDelay

	log.Debug("$ " + c.String())
	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("cannot start %s, reason: %w", c.Name, err)
	}
	waited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waited <- err
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		emit(strings.TrimRight(scanner.Text(), "\r"))
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		_, _ = io.Copy(io.Discard, pr) // don't leave the command hanging on a full pipe
	}

	err := <-waited
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("%s failed, reason: %w", c.Name, err)
	}
	if scanErr != nil {
		return fmt.Errorf("cannot read output of %s, reason: %w", c.Name, scanErr)
	}
	return nil
}

// Well-known places where Docker gets installed, in case the docker command
// isn't in the PATH, such as when started from a desktop launcher.
var dockerCandidates = []string{
	"/usr/local/bin/docker",
	"/usr/bin/docker",
	"/Applications/Docker.app/Contents/Resources/bin/docker",
}

// FindDocker returns the path of the docker command.
func FindDocker() (string, error) {
	if path, err := exec.LookPath("docker"); err == nil {
		return path, nil
	}
	for _, path := range dockerCandidates {
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0 {
			return path, nil
		}
	}
	return "", errors.New("docker command not found; please make sure Docker is installed and running")
}

func dockerOr(docker string) string {
	if docker == "" {
		return "docker"
	}
	return docker
}
