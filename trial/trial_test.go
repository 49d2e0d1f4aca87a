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

package trial

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/once"
	. "github.com/thediveo/success"
)

// fakeEngine records the container operations asked for.
type fakeEngine struct {
	calls      []string
	config     *container.Config
	hostConfig *container.HostConfig
	name       string
	pingErr    error
	createErr  error
	startErr   error
	removeErr  error
}

func (e *fakeEngine) Ping(ctx context.Context) (types.Ping, error) {
	e.calls = append(e.calls, "ping")
	if e.pingErr != nil {
		return types.Ping{}, e.pingErr
	}
	return types.Ping{APIVersion: "1.43", OSType: "linux"}, nil
}

func (e *fakeEngine) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string,
) (container.CreateResponse, error) {
	e.calls = append(e.calls, "create "+containerName)
	e.config, e.hostConfig, e.name = config, hostConfig, containerName
	if e.createErr != nil {
		return container.CreateResponse{}, e.createErr
	}
	return container.CreateResponse{ID: "c0ffee", Warnings: []string{"careful"}}, nil
}

func (e *fakeEngine) ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error {
	e.calls = append(e.calls, "start "+containerID)
	return e.startErr
}

func (e *fakeEngine) ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error {
	e.calls = append(e.calls, "remove "+containerID)
	return e.removeErr
}

var _ = Describe("trial runs", func() {

	var engine *fakeEngine
	var runner *Runner

	BeforeEach(func() {
		GrabLog(logrus.InfoLevel)
		engine = &fakeEngine{removeErr: errdefs.NotFound(errors.New("no such container"))}
		runner = &Runner{Engine: engine, FirstPort: 43210}
	})

	It("starts a trial container, replacing a previous one", func(ctx context.Context) {
		t := Successful(runner.Start(ctx, "portal", "myuser/hzxy-webapp-base-portal:1.0.0"))
		Expect(t.Name).To(Equal("test_portal"))
		Expect(t.ID).To(Equal("c0ffee"))
		Expect(t.Port).To(BeNumerically(">=", 43210))
		Expect(t.URL).To(Equal("http://localhost:" + strconv.Itoa(t.Port)))
		Expect(engine.calls).To(Equal([]string{"remove test_portal", "create test_portal", "start c0ffee"}))
		Expect(engine.config.Image).To(Equal("myuser/hzxy-webapp-base-portal:1.0.0"))
		Expect(engine.config.ExposedPorts).To(HaveKey(webPort))
		Expect(engine.hostConfig.PortBindings[webPort]).To(ConsistOf(
			HaveField("HostPort", strconv.Itoa(t.Port))))
	})

	It("skips ports in use", func(ctx context.Context) {
		l := Successful(net.Listen("tcp", "127.0.0.1:0"))
		defer l.Close()
		inUse := l.Addr().(*net.TCPAddr).Port
		Expect(Successful(FreePort(inUse))).NotTo(Equal(inUse))
	})

	It("stops trial containers, even when there's none", func(ctx context.Context) {
		Expect(runner.Stop(ctx, "portal")).To(Succeed())
		engine.removeErr = nil
		Expect(runner.Stop(ctx, "portal")).To(Succeed())
		Expect(engine.calls).To(Equal([]string{"remove test_portal", "remove test_portal"}))
	})

	It("pings the engine", func(ctx context.Context) {
		ping := Successful(Ping(ctx, engine, time.Second))
		Expect(ping.OSType).To(Equal("linux"))
		engine.pingErr = errors.New("no daemon")
		Expect(Ping(ctx, engine, time.Second)).Error().To(MatchError(ContainSubstring("cannot reach Docker engine")))
	})

	When("things go south", func() {

		It("reports failures to remove old trials", func(ctx context.Context) {
			engine.removeErr = errors.New("daemon on strike")
			Expect(runner.Start(ctx, "portal", "foo:latest")).Error().To(
				MatchError(ContainSubstring("cannot remove trial container test_portal")))
		})

		It("reports failures to create trials", func(ctx context.Context) {
			engine.createErr = errors.New("no such image")
			Expect(runner.Start(ctx, "portal", "foo:latest")).Error().To(
				MatchError(ContainSubstring("cannot create trial container")))
		})

		It("cleans up trials that cannot be started", func(ctx context.Context) {
			engine.startErr = errors.New("port clash")
			Expect(runner.Start(ctx, "portal", "foo:latest")).Error().To(
				MatchError(ContainSubstring("cannot start trial container")))
			Expect(engine.calls).To(HaveLen(4))
			Expect(engine.calls[3]).To(Equal("remove c0ffee"))
		})

	})

	Context("waiting for trials to get ready", func() {

		It("polls until the web server answers", func(ctx context.Context) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if hits.Add(1) < 3 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()
			runner.Polls = rate.NewLimiter(rate.Every(time.Millisecond), 1)
			Expect(runner.WaitReady(ctx, srv.URL)).To(Succeed())
			Expect(hits.Load()).To(Equal(int32(3)))
		})

		It("gives up when cancelled", func(ctx context.Context) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()
			runner.Polls = rate.NewLimiter(rate.Every(10*time.Millisecond), 1)
			waitCtx, cancel := context.WithCancel(ctx)
			cancelOnce := Once(cancel).Do
			defer cancelOnce()
			time.AfterFunc(100*time.Millisecond, cancelOnce)
			Expect(runner.WaitReady(waitCtx, srv.URL)).To(MatchError(ContainSubstring("503 Service Unavailable")))
		})

	})

})
