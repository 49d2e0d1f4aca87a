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

	"github.com/containerd/containerd/platforms"
	"github.com/docker/go-units"

	log "github.com/sirupsen/logrus"
)

// Builder builds images from staged build contexts using the docker command.
type Builder struct {
	Runner   Runner // defaults to ExecRunner
	Docker   string // path of the docker command; defaults to "docker"
	Platform string // optional target platform, such as "linux/amd64"
}

// NormalizePlatform checks the specified platform specifier, returning it in
// its normalized “os/arch[/variant]” form.
func NormalizePlatform(platform string) (string, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return "", &ValidationError{Field: "platform", Reason: fmt.Sprintf("%q is unusable", platform), Err: err}
	}
	return platforms.Format(platforms.Normalize(p)), nil
}

// Check validates the builder settings without running anything.
func (b *Builder) Check() error {
	if b.Platform == "" {
		return nil
	}
	_, err := NormalizePlatform(b.Platform)
	return err
}

func (b *Builder) runner() Runner {
	if b.Runner == nil {
		return ExecRunner{}
	}
	return b.Runner
}

// Command returns the single build command producing the image with all its
// tags at once.
func (b *Builder) Command(bc *BuildContext, img ImageReference) (Command, error) {
	args := []string{"build", "--file", bc.RecipePath}
	for _, ref := range img.Refs() {
		args = append(args, "--tag", ref)
	}
	if b.Platform != "" {
		platform, err := NormalizePlatform(b.Platform)
		if err != nil {
			return Command{}, err
		}
		args = append(args, "--platform", platform)
	}
	args = append(args, bc.Dir)
	return Command{Name: dockerOr(b.Docker), Args: args, Dir: bc.Dir}, nil
}

// Build the image from the specified build context, tagging it with all tags
// of the image reference. The build tool's output is passed on to the
// reporter line by line. A failing build is never retried and returns a
// *BuildError carrying the complete build output; when the context gets
// cancelled, the build tool is killed and ErrCancelled returned.
func (b *Builder) Build(ctx context.Context, bc *BuildContext, img ImageReference, rep ProgressReporter) error {
	rep = orDiscard(rep)
	cmd, err := b.Command(bc, img)
	if err != nil {
		return err
	}
	rep.Emit(fmt.Sprintf("🏗  building %s from %d files (%s)",
		img, bc.Files, units.HumanSize(float64(bc.Bytes))))
	var output []string
	err = b.runner().Run(ctx, cmd, func(line string) {
		output = append(output, line)
		rep.Emit(line)
	})
	switch {
	case err == nil:
		rep.Emit(fmt.Sprintf("✅  built %s", img))
		return nil
	case ctx.Err() != nil || isCancellation(err):
		log.Debug("build cancelled")
		return ErrCancelled
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return &BuildError{ExitCode: exitErr.Code, Output: output, Err: err}
	}
	return &BuildError{ExitCode: -1, Output: output, Err: err}
}
