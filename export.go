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
	"fmt"
	"io"

	"github.com/containerd/containerd/platforms"
	"github.com/docker/go-units"
	"github.com/google/go-containerregistry/pkg/name"
	ociv1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/daemon"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/hzxy-devops/webpub/config"

	log "github.com/sirupsen/logrus"
)

// Exporter writes published images as tarballs that can be loaded using
// “docker load” on hosts without registry access.
type Exporter struct {
	// Daemon is optional; when set, an image available locally for the
	// wanted platform is exported instead of pulling it.
	Daemon daemon.Client
	// Platform of the image to export; defaults to the host's platform.
	Platform string
	Options  []remote.Option // additional options, such as a custom transport
}

// Export the referenced image into the specified writer, returning the
// number of bytes written.
func (x *Exporter) Export(ctx context.Context, ref string, cfg config.Configuration, w io.Writer, rep ProgressReporter) (int64, error) {
	rep = orDiscard(rep)
	imgRef, err := name.ParseReference(ref)
	if err != nil {
		return 0, &ValidationError{Field: "image reference", Reason: fmt.Sprintf("%q is unusable", ref), Err: err}
	}
	platform := x.Platform
	if platform == "" {
		platform = platforms.DefaultString()
	}
	if platform, err = NormalizePlatform(platform); err != nil {
		return 0, err
	}
	wantPlatform, err := ociv1.ParsePlatform(platform)
	if err != nil {
		return 0, &ValidationError{Field: "platform", Reason: fmt.Sprintf("%q is unusable", platform), Err: err}
	}

	image, err := localImage(ctx, x.Daemon, imgRef, wantPlatform)
	if err != nil {
		return 0, err
	}
	if image != nil {
		rep.Emit(fmt.Sprintf("📦  exporting local image %s for %s", ref, platform))
	} else {
		rep.Emit(fmt.Sprintf("⬇  pulling image %s for %s", ref, platform))
		opts := append([]remote.Option{
			remote.WithContext(ctx),
			remote.WithAuth(registryAuth(cfg)),
			remote.WithPlatform(*wantPlatform),
		}, x.Options...)
		image, err = remote.Image(imgRef, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ErrCancelled
			}
			return 0, fmt.Errorf("cannot pull image %s, reason: %w", ref, err)
		}
	}

	cw := &countingWriter{w: w}
	if err := tarball.Write(imgRef, image, cw); err != nil {
		if ctx.Err() != nil {
			return cw.n, ErrCancelled
		}
		return cw.n, fmt.Errorf("cannot export image %s, reason: %w", ref, err)
	}
	rep.Emit(fmt.Sprintf("✅  exported %s of image %s", units.HumanSize(float64(cw.n)), ref))
	return cw.n, nil
}

// localImage returns the referenced image for the specified platform if the
// daemon has it. It returns a nil image and nil error when there is no
// daemon or no matching image.
func localImage(ctx context.Context, client daemon.Client, ref name.Reference, want *ociv1.Platform) (ociv1.Image, error) {
	if client == nil {
		return nil, nil
	}
	image, err := daemon.Image(ref, daemon.WithContext(ctx), daemon.WithClient(client))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		log.Debug(fmt.Sprintf("no local image %s, reason: %s", ref, err))
		return nil, nil
	}
	cfgFile, err := image.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("cannot determine configuration of image %s, reason: %w", ref, err)
	}
	if has := cfgFile.Platform(); has == nil || !has.Satisfies(*want) {
		return nil, nil
	}
	return image, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
