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
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/hzxy-devops/webpub/config"
)

type badWriter struct{}

func (w *badWriter) Write(p []byte) (n int, err error) { return 0, errors.New("snafu") }

type fsFailureMode int

const (
	fsFailOpen fsFailureMode = iota
	fsFailRead
)

type badFS struct {
	fs.FS
	fail fsFailureMode
}

func (f *badFS) Open(name string) (fs.File, error) {
	fsf, err := f.FS.Open(name)
	if err != nil {
		return nil, err
	}
	if f.fail == fsFailOpen {
		fsf.Close()
		return nil, errors.New("badfs open error")
	}
	return &badFile{fsf}, nil
}

type badFile struct {
	fs.File
}

func (f *badFile) Read([]byte) (int, error) {
	return 0, errors.New("badfile read error")
}

// step scripts the outcome of a single fake command invocation.
type step struct {
	lines []string
	err   error
	block bool // wait for the context to get cancelled
	hook  func()
}

func exitCode(code int) error { return &ExitError{Code: code} }

// fakeRunner stands in for the docker command, replaying scripted steps per
// docker subcommand, such as "build", "login", and "push". Unscripted
// invocations succeed silently.
type fakeRunner struct {
	mu      sync.Mutex
	steps   map[string][]step
	calls   []Command
	stdins  []string
	started chan string
}

var _ Runner = (*fakeRunner)(nil)

func newFakeRunner() *fakeRunner {
	return &fakeRunner{steps: map[string][]step{}}
}

func (f *fakeRunner) script(sub string, steps ...step) *fakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[sub] = append(f.steps[sub], steps...)
	return f
}

func subcommand(cmd Command) string {
	for idx := 0; idx < len(cmd.Args); idx++ {
		arg := cmd.Args[idx]
		if arg == "--config" {
			idx++
			continue
		}
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
	}
	return ""
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command, emit func(string)) error {
	sub := subcommand(cmd)
	stdin := ""
	if cmd.Stdin != nil {
		b, _ := io.ReadAll(cmd.Stdin)
		stdin = string(b)
	}
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.stdins = append(f.stdins, stdin)
	var s step
	if steps := f.steps[sub]; len(steps) > 0 {
		s = steps[0]
		f.steps[sub] = steps[1:]
	}
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- sub
	}
	if s.hook != nil {
		s.hook()
	}
	for _, line := range s.lines {
		emit(line)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.err
}

// commands returns the invocations of the specified docker subcommand, or
// all invocations when sub is empty.
func (f *fakeRunner) commands(sub string) []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cmds []Command
	for _, cmd := range f.calls {
		if sub == "" || subcommand(cmd) == sub {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// sequence returns the subcommands invoked so far, in order.
func (f *fakeRunner) sequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := make([]string, 0, len(f.calls))
	for _, cmd := range f.calls {
		subs = append(subs, subcommand(cmd))
	}
	return subs
}

// fakeVerifier records the references it got asked about. It fails the first
// failures checks with a transient error before returning err.
type fakeVerifier struct {
	mu       sync.Mutex
	refs     []string
	err      error
	failures int
	hook     func()
}

func (v *fakeVerifier) Verify(ctx context.Context, ref string, cfg config.Configuration) error {
	v.mu.Lock()
	v.refs = append(v.refs, ref)
	failing := v.failures > 0
	if failing {
		v.failures--
	}
	v.mu.Unlock()
	if v.hook != nil {
		v.hook()
	}
	if failing {
		return errors.New("dial tcp: i/o timeout")
	}
	return v.err
}

func testConfig() config.Configuration {
	cfg := config.Defaults()
	cfg.RegistryUsername = "myuser"
	cfg.RegistryToken = "s3cr3t-t0ken"
	return cfg
}
