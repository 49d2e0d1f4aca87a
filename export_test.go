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
	stdlog "log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("exporting images", func() {

	var host string

	BeforeEach(func() {
		GrabLog(logrus.InfoLevel)
		srv := httptest.NewServer(registry.New(registry.Logger(stdlog.New(GinkgoWriter, "registry ", 0))))
		DeferCleanup(srv.Close)
		host = strings.TrimPrefix(srv.URL, "http://")
	})

	It("pulls and writes an image tarball", func(ctx context.Context) {
		ref := host + "/myuser/hzxy-webapp-base-portal:1.0.0"
		img := Successful(random.Image(1024, 2))
		Expect(remote.Write(Successful(name.ParseReference(ref)), img, remote.WithContext(ctx))).To(Succeed())

		tmp := Successful(os.MkdirTemp("", "webpub-export-*"))
		DeferCleanup(func() { os.RemoveAll(tmp) })
		path := filepath.Join(tmp, "portal.tar")
		f := Successful(os.Create(path))
		var lines Collector
		n, err := (&Exporter{Platform: "linux/amd64"}).Export(ctx, ref, testConfig(), f, &lines)
		Expect(f.Close()).To(Succeed())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(Successful(os.Stat(path)).Size()))
		Expect(lines.Lines()).To(ConsistOf(
			HavePrefix("⬇  pulling image "+ref),
			HavePrefix("✅  exported ")))

		exported := Successful(tarball.ImageFromPath(path, nil))
		Expect(exported.ConfigName()).To(Equal(Successful(img.ConfigName())))
	})

	It("reports missing images", func(ctx context.Context) {
		var buff strings.Builder
		_, err := (&Exporter{}).Export(ctx, host+"/myuser/hzxy-webapp-base-portal:9.9.9", testConfig(), &buff, nil)
		Expect(err).To(MatchError(ContainSubstring("cannot pull image")))
		Expect(buff.Len()).To(BeZero())
	})

	It("rejects unusable references and platforms", func(ctx context.Context) {
		var verr *ValidationError
		_, err := (&Exporter{}).Export(ctx, "Not A:Reference", testConfig(), &badWriter{}, nil)
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Field).To(Equal("image reference"))

		_, err = (&Exporter{Platform: "not/a/real/platform/at/all"}).Export(ctx, host+"/foo:bar", testConfig(), &badWriter{}, nil)
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Field).To(Equal("platform"))
	})

	It("reports write failures", func(ctx context.Context) {
		ref := host + "/myuser/hzxy-webapp-base-portal:1.0.0"
		Expect(remote.Write(Successful(name.ParseReference(ref)), Successful(random.Image(1024, 1)),
			remote.WithContext(ctx))).To(Succeed())
		_, err := (&Exporter{}).Export(ctx, ref, testConfig(), &badWriter{}, nil)
		Expect(err).To(MatchError(ContainSubstring("cannot export image")))
	})

	It("is cancellable", func(ctx context.Context) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := (&Exporter{}).Export(ctx, host+"/myuser/hzxy-webapp-base-portal:1.0.0", testConfig(), &badWriter{}, nil)
		Expect(err).To(MatchError(ErrCancelled))
	})

})
