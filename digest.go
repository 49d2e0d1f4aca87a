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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// StreamDigester determines the SHA256 digests of files while they are being
// streamed into the build context, remembering the digest per path.
type StreamDigester map[string]string

// DigestStream copies a stream from the specified reader to the specified
// writer, determining the stream's content digest along the way, and
// remembering the final digest for the specified path.
func (d StreamDigester) DigestStream(path string, r io.Reader, w io.Writer) (int64, error) {
	digester := sha256.New()
	n, err := io.Copy(io.MultiWriter(digester, w), r)
	if err != nil {
		return n, fmt.Errorf("cannot determine SHA256 for %q, reason: %w", path, err)
	}
	d[path] = hex.EncodeToString(digester.Sum(nil))
	return n, nil
}

// ContentDigest returns a single digest over all digested paths and their
// digests, independent of the order in which files were streamed.
func (d StreamDigester) ContentDigest() string {
	paths := maps.Keys(d)
	slices.Sort(paths)
	digester := sha256.New()
	for _, path := range paths {
		fmt.Fprintf(digester, "%s  %s\n", d[path], path)
	}
	return hex.EncodeToString(digester.Sum(nil))
}

// FileDigest returns the hex SHA256 digest of the named file.
func FileDigest(fsys fs.FS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", fmt.Errorf("cannot open %q, reason: %w", name, err)
	}
	defer f.Close()
	d := StreamDigester{}
	if _, err := d.DigestStream(name, f, io.Discard); err != nil {
		return "", err
	}
	return d[name], nil
}
