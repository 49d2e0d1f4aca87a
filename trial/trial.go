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
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/time/rate"

	log "github.com/sirupsen/logrus"
)

// DefaultFirstPort is the first host port tried for publishing trial
// containers.
const DefaultFirstPort = 3000

// portRange is how many ports are tried when looking for a free one.
const portRange = 100

const webPort = nat.Port("80/tcp")

// Engine is the part of the Docker engine API needed for trial runs;
// *client.Client implements it.
type Engine interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
}

var _ Engine = (*client.Client)(nil)

// NewEngine returns a client for the Docker engine as configured by the
// usual DOCKER_HOST et al. environment variables.
func NewEngine() (*client.Client, error) {
	engine, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("cannot create Docker client, reason: %w", err)
	}
	return engine, nil
}

// Ping checks that the Docker engine is reachable, giving up after the
// specified duration.
func Ping(ctx context.Context, engine Engine, timeout time.Duration) (types.Ping, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ping, err := engine.Ping(ctx)
	if err != nil {
		return types.Ping{}, fmt.Errorf("cannot reach Docker engine, please make sure it is running, reason: %w", err)
	}
	return ping, nil
}

// ContainerName returns the name of the trial container for an app.
func ContainerName(appName string) string {
	return "test_" + appName
}

// Trial is a running trial container.
type Trial struct {
	ID    string
	Name  string
	Image string
	Port  int
	URL   string
}

// Runner starts and stops trial containers.
type Runner struct {
	Engine    Engine
	FirstPort int           // defaults to DefaultFirstPort
	Polls     *rate.Limiter // paces readiness checks; defaults to 4 per second
	HTTP      *http.Client  // defaults to a client with a short timeout
}

// Start a trial container of the specified image for the specified app,
// replacing any previous trial container of the same app.
func (r *Runner) Start(ctx context.Context, appName, image string) (*Trial, error) {
	name := ContainerName(appName)
	if err := r.remove(ctx, name); err != nil {
		return nil, err
	}
	first := r.FirstPort
	if first <= 0 {
		first = DefaultFirstPort
	}
	port, err := FreePort(first)
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("🧪  starting trial container %s of %s on port %d", name, image, port))
	created, err := r.Engine.ContainerCreate(ctx,
		&container.Config{
			Image:        image,
			ExposedPorts: nat.PortSet{webPort: struct{}{}},
			Labels:       map[string]string{"app.name": appName},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				webPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(port)}},
			},
		},
		nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("cannot create trial container %s, reason: %w", name, err)
	}
	for _, warning := range created.Warnings {
		log.Warn(fmt.Sprintf("   ⚠️  %s", warning))
	}
	if err := r.Engine.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		_ = r.remove(context.WithoutCancel(ctx), created.ID)
		return nil, fmt.Errorf("cannot start trial container %s, reason: %w", name, err)
	}
	return &Trial{
		ID:    created.ID,
		Name:  name,
		Image: image,
		Port:  port,
		URL:   fmt.Sprintf("http://localhost:%d", port),
	}, nil
}

// Stop removes the trial container of the specified app. Stopping an app
// without a trial container is not an error.
func (r *Runner) Stop(ctx context.Context, appName string) error {
	return r.remove(ctx, ContainerName(appName))
}

func (r *Runner) remove(ctx context.Context, nameOrID string) error {
	err := r.Engine.ContainerRemove(ctx, nameOrID, types.ContainerRemoveOptions{Force: true})
	switch {
	case err == nil:
		log.Info(fmt.Sprintf("🧹  removed trial container %s", nameOrID))
		return nil
	case errdefs.IsNotFound(err):
		return nil
	}
	return fmt.Errorf("cannot remove trial container %s, reason: %w", nameOrID, err)
}

// WaitReady polls the URL of a trial until its web server answers without a
// server error, or the context gets cancelled.
func (r *Runner) WaitReady(ctx context.Context, url string) error {
	polls := r.Polls
	if polls == nil {
		polls = rate.NewLimiter(rate.Every(250*time.Millisecond), 1)
	}
	httpc := r.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: 2 * time.Second}
	}
	var lastErr error
	for {
		if err := polls.Wait(ctx); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return fmt.Errorf("trial at %s not ready, reason: %w", url, lastErr)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("invalid trial URL %s, reason: %w", url, err)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				lastErr = err
			}
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < http.StatusInternalServerError {
			return nil
		}
		lastErr = errors.New(resp.Status)
	}
}

// FreePort returns the first port starting at the specified one that can
// currently be listened on at the loopback interface.
func FreePort(from int) (int, error) {
	for port := from; port < from+portRange && port <= 65535; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", from, from+portRange-1)
}
