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
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("staging build contexts", func() {

	var tmp, root string
	var stager *Stager
	var cfg = testConfig()

	BeforeEach(func() {
		GrabLog(logrus.InfoLevel)
		tmp = Successful(os.MkdirTemp("", "webpub-stage-*"))
		DeferCleanup(func() { os.RemoveAll(tmp) })
		root = filepath.Join(tmp, "builds")
		stager = &Stager{
			Root: root,
			Now:  func() time.Time { return time.Date(2026, 10, 19, 12, 34, 56, 0, time.UTC) },
		}
	})

	request := func(archive string) PublishRequest {
		return PublishRequest{AppName: "ai-zhaoshang", Version: "1.0.0", ArchivePath: archive}
	}

	stagedEntries := func() []string {
		GinkgoHelper()
		entries, err := os.ReadDir(root)
		if os.IsNotExist(err) {
			return nil
		}
		Expect(err).NotTo(HaveOccurred())
		names := []string{}
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names
	}

	It("stages a zip archive, unwrapping its dist folder", func(ctx context.Context) {
		archive := writeZip(filepath.Join(tmp, "dist.zip"),
			dir("dist"),
			file("dist/index.html", "<h1>Hellorld!</h1>"),
			file("dist/assets/app.js", "console.log('hellorld')"),
			dir("__MACOSX"),
			file("__MACOSX/._index.html", "junk"))
		var lines Collector
		bc := Successful(stager.Stage(ctx, cfg, request(archive), &lines))
		DeferCleanup(bc.Remove)

		Expect(filepath.Dir(bc.Dir)).To(Equal(root))
		Expect(filepath.Base(bc.Dir)).To(HavePrefix("ai-zhaoshang-1.0.0-20261019123456-"))
		Expect(bc.RunID).To(HavePrefix(filepath.Base(bc.Dir)[len("ai-zhaoshang-1.0.0-20261019123456-"):]))
		Expect(bc.Files).To(Equal(3))
		Expect(bc.Bytes).To(BeNumerically(">", 0))

		Expect(filepath.Join(bc.ContentDir, "index.html")).To(BeARegularFile())
		Expect(filepath.Join(bc.ContentDir, "assets", "app.js")).To(BeARegularFile())
		Expect(filepath.Join(bc.ContentDir, "dist")).NotTo(BeAnExistingFile())
		Expect(filepath.Join(bc.Dir, unpackDirName)).NotTo(BeAnExistingFile())

		digest := Successful(FileDigest(os.DirFS(tmp), "dist.zip"))
		Expect(bc.ArchiveDigest).To(Equal(digest))
		Expect(bc.ContentDigest).To(HaveLen(64))

		recipe := string(Successful(os.ReadFile(bc.RecipePath)))
		Expect(recipe).To(ContainSubstring("FROM nginx:alpine\n"))
		Expect(recipe).To(ContainSubstring("COPY html/ /usr/share/nginx/html/\n"))
		Expect(recipe).To(ContainSubstring(`maintainer="HZXY DevOps Team"`))
		Expect(recipe).To(ContainSubstring(`app.name="ai-zhaoshang"`))
		Expect(recipe).To(ContainSubstring(`app.version="1.0.0"`))
		Expect(recipe).To(ContainSubstring(`app.build.date="2026-10-19T12:34:56Z"`))
		Expect(recipe).To(ContainSubstring(`org.opencontainers.image.title="ai-zhaoshang"`))
		Expect(recipe).To(ContainSubstring(`app.archive.sha256="` + digest + `"`))
		Expect(lines.Lines()).To(ContainElement(ContainSubstring("unpacking dist.zip")))
	})

	It("stages a tar.gz archive without dist folder as is", func(ctx context.Context) {
		archive := writeTarGz(filepath.Join(tmp, "site.tar.gz"),
			file("index.html", "<h1>Hellorld!</h1>"),
			dir("css"),
			file("css/site.css", "body {}"))
		bc := Successful(stager.Stage(ctx, cfg, request(archive), nil))
		DeferCleanup(bc.Remove)
		Expect(filepath.Join(bc.ContentDir, "index.html")).To(BeARegularFile())
		Expect(filepath.Join(bc.ContentDir, "css", "site.css")).To(BeARegularFile())
	})

	It("never reuses a build context directory", func(ctx context.Context) {
		archive := writeZip(filepath.Join(tmp, "dist.zip"), file("index.html", "hellorld"))
		bc1 := Successful(stager.Stage(ctx, cfg, request(archive), nil))
		DeferCleanup(bc1.Remove)
		bc2 := Successful(stager.Stage(ctx, cfg, request(archive), nil))
		DeferCleanup(bc2.Remove)
		Expect(bc1.Dir).NotTo(Equal(bc2.Dir))
		Expect(bc1.RunID).NotTo(Equal(bc2.RunID))
	})

	It("skips links inside archives", func(ctx context.Context) {
		archive := writeTarGz(filepath.Join(tmp, "site.tar.gz"),
			file("index.html", "hellorld"),
			symlink("passwd", "/etc/passwd"))
		bc := Successful(stager.Stage(ctx, cfg, request(archive), nil))
		DeferCleanup(bc.Remove)
		Expect(filepath.Join(bc.ContentDir, "passwd")).NotTo(BeAnExistingFile())
		Expect(bc.Files).To(Equal(1))
	})

	It("stages even when the run already got cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		archive := writeZip(filepath.Join(tmp, "dist.zip"), file("index.html", "hellorld"))
		bc := Successful(stager.Stage(ctx, cfg, request(archive), nil))
		bc.Remove()
		Expect(bc.Dir).NotTo(BeAnExistingFile())
	})

	When("things go south", func() {

		DescribeTable("rejects archive entries escaping the build context",
			func(ctx context.Context, write func(string, ...entry) string, archiveName string, evil entry) {
				archive := write(filepath.Join(tmp, archiveName),
					file("index.html", "hellorld"),
					evil)
				var verr *ValidationError
				Expect(stager.Stage(ctx, cfg, request(archive), nil)).Error().To(BeAssignableToTypeOf(verr))
				Expect(stagedEntries()).To(BeEmpty())
				Expect(filepath.Join(tmp, "evil.txt")).NotTo(BeAnExistingFile())
				Expect(filepath.Join(root, "evil.txt")).NotTo(BeAnExistingFile())
			},
			Entry("zip parent", writeZip, "dist.zip", file("../../evil.txt", "pwned")),
			Entry("zip nested parent", writeZip, "dist.zip", file("dist/../../../evil.txt", "pwned")),
			Entry("zip backslashes", writeZip, "dist.zip", file(`..\..\evil.txt`, "pwned")),
			Entry("tar parent", writeTarGz, "dist.tar.gz", file("../../evil.txt", "pwned")),
			Entry("tar absolute", writeTarGz, "dist.tar.gz", file("/tmp/evil.txt", "pwned")),
		)

		It("rejects a missing archive", func(ctx context.Context) {
			var verr *ValidationError
			Expect(stager.Stage(ctx, cfg, request(filepath.Join(tmp, "nada.zip")), nil)).Error().To(
				And(BeAssignableToTypeOf(verr), MatchError(ContainSubstring("does not exist"))))
			Expect(stagedEntries()).To(BeEmpty())
		})

		It("rejects a directory instead of an archive", func(ctx context.Context) {
			Expect(stager.Stage(ctx, cfg, request(tmp), nil)).Error().To(
				MatchError(ContainSubstring("is a directory")))
		})

		It("rejects files that aren't archives", func(ctx context.Context) {
			path := filepath.Join(tmp, "notes.txt")
			Expect(os.WriteFile(path, []byte("hellorld"), 0o644)).To(Succeed())
			var verr *ValidationError
			Expect(stager.Stage(ctx, cfg, request(path), nil)).Error().To(BeAssignableToTypeOf(verr))
			Expect(stagedEntries()).To(BeEmpty())
		})

		It("rejects broken archives", func(ctx context.Context) {
			path := filepath.Join(tmp, "broken.zip")
			Expect(os.WriteFile(path, []byte("PK\x03\x04 this is no zip"), 0o644)).To(Succeed())
			var verr *ValidationError
			Expect(stager.Stage(ctx, cfg, request(path), nil)).Error().To(BeAssignableToTypeOf(verr))
			Expect(stagedEntries()).To(BeEmpty())
		})

		It("rejects empty archives", func(ctx context.Context) {
			archive := writeZip(filepath.Join(tmp, "dist.zip"), dir("dist"))
			Expect(stager.Stage(ctx, cfg, request(archive), nil)).Error().To(
				MatchError(ContainSubstring("contains no files")))
			Expect(stagedEntries()).To(BeEmpty())
		})

		It("rejects invalid requests before touching anything", func(ctx context.Context) {
			archive := writeZip(filepath.Join(tmp, "dist.zip"), file("index.html", "hellorld"))
			req := request(archive)
			req.Version = "latest"
			var verr *ValidationError
			Expect(stager.Stage(ctx, cfg, req, nil)).Error().To(BeAssignableToTypeOf(verr))
			Expect(root).NotTo(BeAnExistingFile())
		})

		It("reports when the build context cannot be created", func(ctx context.Context) {
			archive := writeZip(filepath.Join(tmp, "dist.zip"), file("index.html", "hellorld"))
			Expect(os.WriteFile(root, []byte("in the way"), 0o644)).To(Succeed())
			var ioerr *IOError
			Expect(stager.Stage(ctx, cfg, request(archive), nil)).Error().To(BeAssignableToTypeOf(ioerr))
		})

	})

	DescribeTable("normalizing archive entry names",
		func(name string, expected string, ok bool) {
			rel, err := safeRelPath(name)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(rel).To(Equal(filepath.FromSlash(expected)))
		},
		Entry(nil, "index.html", "index.html", true),
		Entry(nil, "./dist/index.html", "dist/index.html", true),
		Entry(nil, "dist/../index.html", "index.html", true),
		Entry(nil, "dist/", "dist", true),
		Entry(nil, "./", ".", true),
		Entry(nil, "../index.html", "", false),
		Entry(nil, "..", "", false),
		Entry(nil, "dist/../../index.html", "", false),
		Entry(nil, `..\index.html`, "", false),
		Entry(nil, "/etc/passwd", "", false),
	)

})
