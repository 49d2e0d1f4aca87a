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
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned when the operator cancelled a build or push. It is
// a terminal outcome of its own and not a failure.
var ErrCancelled = errors.New("publishing cancelled")

// ValidationError reports a malformed request, a bad archive, an archive entry
// escaping its destination, or an invalid port. Validation errors are always
// reported before any external process gets started.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ", reason: " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IOError reports a filesystem failure while staging a build context.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cannot %s %q, reason: %s", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// BuildError reports a non-zero exit of the container build tool, together
// with everything the tool had to say.
type BuildError struct {
	ExitCode int
	Output   []string
	Err      error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("image build failed with exit code %d", e.ExitCode)
	if n := len(e.Output); n > 0 {
		msg += ": " + e.Output[n-1]
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// CapturedOutput returns the build tool output as a single text.
func (e *BuildError) CapturedOutput() string {
	return strings.Join(e.Output, "\n")
}

// PushErrorKind tells transient registry trouble apart from denied access.
type PushErrorKind int

const (
	Transient PushErrorKind = iota
	AuthDenied
)

func (k PushErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case AuthDenied:
		return "auth-denied"
	}
	return fmt.Sprintf("PushErrorKind(%d)", int(k))
}

// PushError reports a failed registry login or tag push. Pushed lists the tags
// that successfully made it into the registry before the failure, so a version
// tag that got published without its latest tag is visible to the caller.
type PushError struct {
	Kind     PushErrorKind
	Tag      string
	Attempts int
	Pushed   []string
	Err      error
}

func (e *PushError) Error() string {
	what := "login"
	if e.Tag != "" {
		what = "push of tag " + e.Tag
	}
	msg := fmt.Sprintf("%s failed (%s) after %d attempt(s)", what, e.Kind, e.Attempts)
	if e.Partial() {
		msg += fmt.Sprintf("; partially published: %s", strings.Join(e.Pushed, ", "))
	}
	if e.Err != nil {
		msg += ", reason: " + e.Err.Error()
	}
	return msg
}

func (e *PushError) Unwrap() error { return e.Err }

// Partial is true when some tags were published but not all of them.
func (e *PushError) Partial() bool { return len(e.Pushed) > 0 }
