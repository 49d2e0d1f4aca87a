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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/hzxy-devops/webpub/config"
	"github.com/hzxy-devops/webpub/interpolate"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/otiai10/copy"
	"golang.org/x/exp/slices"

	log "github.com/sirupsen/logrus"
)

// Names inside a build context directory.
const (
	ContentDirName = "html"
	RecipeName     = "Dockerfile"
	unpackDirName  = "unpacked"
	distDirName    = "dist"
)

// Additional image labels besides the OCI annotation keys.
const (
	LabelAppName       = "app.name"
	LabelAppVersion    = "app.version"
	LabelBuildDate     = "app.build.date"
	LabelMaintainer    = "maintainer"
	LabelArchiveDigest = "app.archive.sha256"
	LabelContentDigest = "app.content.sha256"
)

// archive clutter that never gets served.
var junkNames = []string{"__MACOSX", ".DS_Store", "Thumbs.db"}

// recipeTemplate is the build recipe for serving static content with the
// runtime image's web server.
var recipeTemplate = interpolate.MustParse(`# build recipe of ${APP_NAME} ${APP_VERSION}
FROM ${RUNTIME_IMAGE:?no runtime image}

${LABELS}

RUN rm -rf /usr/share/nginx/html/*
COPY ${CONTENT_DIR}/ /usr/share/nginx/html/

EXPOSE 80

CMD ["nginx", "-g", "daemon off;"]
`)

// BuildContext is a freshly staged build context directory owned by a
// single pipeline run.
type BuildContext struct {
	RunID         string
	Dir           string
	ContentDir    string
	RecipePath    string
	ArchiveDigest string // hex SHA256 of the archive file
	ContentDigest string // hex SHA256 over all extracted files
	Files         int
	Bytes         int64
	Labels        map[string]string
}

// Remove the build context directory with all its contents, ignoring any
// errors apart from logging them.
func (bc *BuildContext) Remove() {
	if bc == nil || bc.Dir == "" {
		return
	}
	if err := os.RemoveAll(bc.Dir); err != nil {
		log.Warn(fmt.Sprintf("cannot remove build context %q, reason: %s", bc.Dir, err))
	}
}

// Stager prepares build context directories from front-end archives.
type Stager struct {
	Root string           // parent of all build contexts; defaults to the temp dir
	Now  func() time.Time // clock; defaults to time.Now
}

// DefaultStagingRoot is where build contexts are staged when the Stager
// doesn't specify its own root.
func DefaultStagingRoot() string {
	return filepath.Join(os.TempDir(), "webpub-builds")
}

// Stage unpacks the archive of the specified request into a new and unique
// build context directory and writes the build recipe. On failure, nothing
// of the partial build context remains.
func (s *Stager) Stage(ctx context.Context, cfg config.Configuration, req PublishRequest, rep ProgressReporter) (bc *BuildContext, err error) {
	rep = orDiscard(rep)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	// extraction runs to completion even when the run gets cancelled meanwhile.
	ctx = context.WithoutCancel(ctx)
	archive, extractor, err := openArchive(ctx, req.ArchivePath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	started := now()
	runID := uuid.NewString()
	root := s.Root
	if root == "" {
		root = DefaultStagingRoot()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &IOError{Op: "create staging root", Path: root, Err: err}
	}
	dir := filepath.Join(root, fmt.Sprintf("%s-%s-%s-%s",
		req.AppName, req.Version, started.Format("20060102150405"), runID[:8]))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, &IOError{Op: "create build context", Path: dir, Err: err}
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				log.Warn(fmt.Sprintf("cannot remove partial build context %q, reason: %s", dir, rmErr))
			}
		}
	}()
	log.Debug(fmt.Sprintf("staging %s into %s", req.ArchivePath, dir))

	rep.Emit(fmt.Sprintf("📦  unpacking %s", filepath.Base(req.ArchivePath)))
	unpacked := filepath.Join(dir, unpackDirName)
	if err := os.Mkdir(unpacked, 0o755); err != nil {
		return nil, &IOError{Op: "create directory", Path: unpacked, Err: err}
	}
	x, err := extract(ctx, extractor, archive, unpacked)
	if err != nil {
		return nil, err
	}
	if x.files == 0 {
		return nil, invalid("archive", fmt.Sprintf("%q contains no files", req.ArchivePath))
	}
	rep.Emit(fmt.Sprintf("   %d files, %s", x.files, units.HumanSize(float64(x.bytes))))

	content := filepath.Join(dir, ContentDirName)
	if err := normalizeLayout(unpacked, content); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(unpacked); err != nil {
		return nil, &IOError{Op: "remove directory", Path: unpacked, Err: err}
	}

	archiveDigest, err := FileDigest(os.DirFS(filepath.Dir(req.ArchivePath)), filepath.Base(req.ArchivePath))
	if err != nil {
		return nil, &IOError{Op: "digest archive", Path: req.ArchivePath, Err: err}
	}
	bc = &BuildContext{
		RunID:         runID,
		Dir:           dir,
		ContentDir:    content,
		RecipePath:    filepath.Join(dir, RecipeName),
		ArchiveDigest: archiveDigest,
		ContentDigest: x.digests.ContentDigest(),
		Files:         x.files,
		Bytes:         x.bytes,
	}
	bc.Labels = ImageLabels(cfg, req, bc, started)
	recipe, err := RenderRecipe(cfg, req, bc.Labels)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(bc.RecipePath, []byte(recipe), 0o644); err != nil {
		return nil, &IOError{Op: "write build recipe", Path: bc.RecipePath, Err: err}
	}
	rep.Emit(fmt.Sprintf("📝  build recipe for %s written", cfg.RuntimeImage))
	return bc, nil
}

// normalizeLayout copies the unpacked archive contents into the content
// directory. When the archive has a top-level “dist” folder, only its
// contents are served, as build tools of front-end projects put their output
// there.
func normalizeLayout(unpacked, content string) error {
	src := unpacked
	if info, err := os.Stat(filepath.Join(unpacked, distDirName)); err == nil && info.IsDir() {
		src = filepath.Join(unpacked, distDirName)
	}
	err := copy.Copy(src, content, copy.Options{
		OnSymlink: func(string) copy.SymlinkAction { return copy.Skip },
		Skip: func(info os.FileInfo, _, _ string) (bool, error) {
			return slices.Contains(junkNames, info.Name()), nil
		},
	})
	if err != nil {
		return &IOError{Op: "copy content", Path: content, Err: err}
	}
	return nil
}

// ImageLabels returns the image labels for the specified request and staged
// build context.
func ImageLabels(cfg config.Configuration, req PublishRequest, bc *BuildContext, built time.Time) map[string]string {
	date := built.UTC().Format(time.RFC3339)
	labels := map[string]string{
		ocispec.AnnotationTitle:   req.AppName,
		ocispec.AnnotationVersion: req.Version,
		ocispec.AnnotationCreated: date,
		ocispec.AnnotationAuthors: cfg.Maintainer,
		LabelAppName:              req.AppName,
		LabelAppVersion:           req.Version,
		LabelBuildDate:            date,
		LabelMaintainer:           cfg.Maintainer,
	}
	if bc != nil {
		labels[LabelArchiveDigest] = bc.ArchiveDigest
		labels[LabelContentDigest] = bc.ContentDigest
	}
	return labels
}

// RenderRecipe renders the build recipe with the specified image labels.
func RenderRecipe(cfg config.Configuration, req PublishRequest, labels map[string]string) (string, error) {
	recipe, err := recipeTemplate.Render(map[string]string{
		"APP_NAME":      req.AppName,
		"APP_VERSION":   req.Version,
		"RUNTIME_IMAGE": cfg.RuntimeImage,
		"CONTENT_DIR":   ContentDirName,
		"LABELS":        labelInstruction(labels),
	})
	if err != nil {
		return "", &ValidationError{Field: "build recipe", Reason: "cannot be rendered", Err: err}
	}
	return recipe, nil
}

// labelInstruction returns a single LABEL instruction with the labels sorted
// by key.
func labelInstruction(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+quoteLabel(labels[key]))
	}
	return "LABEL " + strings.Join(pairs, " \\\n      ")
}

func quoteLabel(value string) string {
	return strings.ReplaceAll(strconv.Quote(value), "$", `\$`)
}

// isCancellation is true for errors caused by a cancelled or expired
// context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
