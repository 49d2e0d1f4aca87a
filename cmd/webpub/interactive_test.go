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

package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/hzxy-devops/webpub"
	"github.com/hzxy-devops/webpub/history"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("interactive front end", func() {

	var tb *testbed

	BeforeEach(func() {
		GrabLog(logrus.InfoLevel)
		tb = newTestbed()
	})

	answers := func(lines ...string) {
		tb.env.in = strings.NewReader(strings.Join(lines, "\n") + "\n")
	}

	It("quits on an empty app name", func(ctx context.Context) {
		answers("")
		out := Successful(tb.run(ctx))
		Expect(out).To(ContainSubstring("app name: "))
		Expect(out).To(ContainSubstring("👋  bye"))
		Expect(tb.docker.subcommands()).To(BeEmpty())
	})

	It("quits at the end of input", func(ctx context.Context) {
		answers("portal")
		Expect(tb.run(ctx, "gui")).To(ContainSubstring("👋  bye"))
	})

	It("publishes with the recommended version", func(ctx context.Context) {
		tb.credentials()
		answers("portal", "", tb.archive(), "", "n")
		out := Successful(tb.run(ctx, "gui"))
		Expect(out).To(ContainSubstring("version [v1.0.0]: "))
		Expect(out).To(ContainSubstring("fake docker build"))
		Expect(out).To(ContainSubstring("🎉  published myuser/hzxy-webapp-base-portal:{v1.0.0,latest}"))
		Expect(out).To(ContainSubstring("✅  published myuser/hzxy-webapp-base-portal:v1.0.0 and myuser/hzxy-webapp-base-portal:latest"))
		Expect(out).NotTo(ContainSubstring("s3cr3t-t0ken"))
		Expect(tb.docker.subcommands()).To(Equal([]string{"build", "login", "push", "push"}))

		l := Successful(history.Load(tb.path("history.json")))
		Expect(l.Recommend("portal")).To(Equal("v1.0.1"))
	})

	It("reports a failed run once and carries on", func(ctx context.Context) {
		tb.credentials()
		tb.docker.fail["build"] = &webpub.ExitError{Code: 42}
		answers("portal", "1.0.0", tb.archive(), "", "")
		out := Successful(tb.run(ctx))
		Expect(strings.Count(out, "❌  image build failed with exit code 42")).To(Equal(1))
		Expect(out).To(ContainSubstring("👋  bye"))

		l := Successful(history.Load(tb.path("history.json")))
		Expect(l.Records).To(ConsistOf(HaveField("State", history.Failed)))
	})

	It("cancels only the current run on interrupt", func(ctx context.Context) {
		tb.credentials()
		tb.docker.block["build"] = true
		tb.docker.onRun = func(sub string) {
			if sub == "build" {
				tb.interrupt()
			}
		}
		answers("portal", "1.0.0", tb.archive(), "", "")
		out := Successful(tb.run(ctx))
		Expect(out).To(ContainSubstring("🛑  publishing cancelled"))
		Expect(out).NotTo(ContainSubstring("❌"))
		Expect(strings.Count(out, "app name: ")).To(Equal(2))
		Expect(out).To(HaveSuffix("👋  bye\n"))
		Expect(tb.docker.subcommands()).To(Equal([]string{"build"}))

		l := Successful(history.Load(tb.path("history.json")))
		Expect(l.Records).To(ConsistOf(HaveField("State", history.Cancelled)))
	})

	It("quits on interrupt while asking", func(ctx context.Context) {
		pr, pw := io.Pipe()
		DeferCleanup(func() { pw.Close() })
		tb.env.in = pr
		tb.onInterrupted = func() { go tb.interrupt() }
		out := Successful(tb.run(ctx, "gui"))
		Expect(out).To(ContainSubstring("app name: "))
		Expect(out).To(ContainSubstring("👋  bye"))
		Expect(tb.docker.subcommands()).To(BeEmpty())
	})

	It("writes the deployment descriptor after publishing", func(ctx context.Context) {
		tb.credentials()
		path := tb.path("compose.yml")
		answers("portal", "1.0.0", tb.archive(), "y", "y", "8080", path)
		out := Successful(tb.run(ctx))
		Expect(out).To(ContainSubstring("docker compose -f " + path))
		Expect(string(Successful(os.ReadFile(path)))).To(ContainSubstring(`"8080:80"`))
	})

	It("skips publishing when not confirmed", func(ctx context.Context) {
		tb.credentials()
		answers("portal", "1.0.0", tb.archive(), "n", "")
		Successful(tb.run(ctx))
		Expect(tb.docker.subcommands()).To(BeEmpty())
	})

	It("carries on after invalid input", func(ctx context.Context) {
		tb.credentials()
		answers("Not_An_App", "portal", "latest", "/archive.zip", "")
		out := Successful(tb.run(ctx))
		Expect(strings.Count(out, "❌  invalid")).To(Equal(2))
		Expect(out).To(ContainSubstring("👋  bye"))
	})

	It("asks for a missing user name and explains a missing token", func(ctx context.Context) {
		answers("portal", "1.0.0", tb.archive(), "someone", "")
		out := Successful(tb.run(ctx))
		Expect(out).To(ContainSubstring("registry user name: "))
		Expect(out).To(ContainSubstring("set the registry token via $DOCKERHUB_TOKEN"))
		Expect(out).To(ContainSubstring(`❌  missing required configuration "registryToken"`))
		Expect(tb.docker.subcommands()).To(BeEmpty())
	})

	It("rejects an invalid port for the descriptor", func(ctx context.Context) {
		tb.credentials()
		answers("portal", "1.0.0", tb.archive(), "y", "y", "eighty", "")
		out := Successful(tb.run(ctx))
		Expect(out).To(ContainSubstring(`❌  invalid port: "eighty" is not a number`))
	})

})
