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
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	log "github.com/sirupsen/logrus"
)

// openArchive opens the archive at the specified path and identifies its
// format, returning a *ValidationError if the file is missing or isn't an
// archive we know how to extract.
func openArchive(ctx context.Context, archivePath string) (*os.File, archives.Extractor, error) {
	info, err := os.Stat(archivePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil, invalid("archive", fmt.Sprintf("%q does not exist", archivePath))
	case err != nil:
		return nil, nil, &IOError{Op: "stat archive", Path: archivePath, Err: err}
	case info.IsDir():
		return nil, nil, invalid("archive", fmt.Sprintf("%q is a directory", archivePath))
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, &IOError{Op: "open archive", Path: archivePath, Err: err}
	}
	format, _, err := archives.Identify(ctx, filepath.Base(archivePath), f)
	if err != nil {
		f.Close()
		if errors.Is(err, archives.NoMatch) {
			return nil, nil, invalid("archive", fmt.Sprintf("%q is not a supported archive format", archivePath))
		}
		return nil, nil, &ValidationError{Field: "archive", Reason: fmt.Sprintf("%q cannot be identified", archivePath), Err: err}
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		f.Close()
		return nil, nil, invalid("archive",
			fmt.Sprintf("%q is %s data, but not an archive", archivePath, format.Extension()))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, &IOError{Op: "rewind archive", Path: archivePath, Err: err}
	}
	return f, extractor, nil
}

// safeRelPath normalizes the name of an archive entry into a relative
// filesystem path, rejecting names that are absolute or that would end up
// outside the extraction directory.
func safeRelPath(name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(slashed) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", invalid("archive entry", fmt.Sprintf("%q has an absolute path", name))
	}
	clean := path.Clean(slashed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", invalid("archive entry", fmt.Sprintf("%q points outside the extraction directory", name))
	}
	return filepath.FromSlash(clean), nil
}

// within is true if target is dest or lies below it.
func within(dest, target string) bool {
	rel, err := filepath.Rel(dest, target)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// extraction tracks what got extracted so far.
type extraction struct {
	dest    string
	digests StreamDigester
	files   int
	bytes   int64
}

// extract all entries of the archive into dest. Links are skipped, so nothing
// inside dest can later redirect writes to places outside of it.
func extract(ctx context.Context, ex archives.Extractor, archive io.Reader, dest string) (*extraction, error) {
	x := &extraction{dest: dest, digests: StreamDigester{}}
	err := ex.Extract(ctx, archive, x.handle)
	if err == nil {
		return x, nil
	}
	var verr *ValidationError
	var ioerr *IOError
	switch {
	case errors.As(err, &verr):
		return nil, verr
	case errors.As(err, &ioerr):
		return nil, ioerr
	}
	return nil, &ValidationError{Field: "archive", Reason: "cannot be extracted", Err: err}
}

func (x *extraction) handle(ctx context.Context, info archives.FileInfo) error {
	rel, err := safeRelPath(info.NameInArchive)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	target := filepath.Join(x.dest, rel)
	if !within(x.dest, target) {
		return invalid("archive entry", fmt.Sprintf("%q points outside the extraction directory", info.NameInArchive))
	}
	switch {
	case info.IsDir():
		if err := os.MkdirAll(target, 0o755); err != nil {
			return &IOError{Op: "create directory", Path: target, Err: err}
		}
		return nil
	case info.LinkTarget != "" || info.Mode()&fs.ModeSymlink != 0:
		log.Warn(fmt.Sprintf("   ⏭  skipping link %q", info.NameInArchive))
		return nil
	case !info.Mode().IsRegular():
		log.Warn(fmt.Sprintf("   ⏭  skipping special file %q", info.NameInArchive))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &IOError{Op: "create directory", Path: filepath.Dir(target), Err: err}
	}
	r, err := info.Open()
	if err != nil {
		return &ValidationError{Field: "archive entry", Reason: fmt.Sprintf("%q is unreadable", info.NameInArchive), Err: err}
	}
	defer r.Close()
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &IOError{Op: "create file", Path: target, Err: err}
	}
	n, err := x.digests.DigestStream(filepath.ToSlash(rel), r, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return &IOError{Op: "extract file", Path: target, Err: err}
	}
	x.files++
	x.bytes += n
	return nil
}
