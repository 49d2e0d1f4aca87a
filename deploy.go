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
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/hzxy-devops/webpub/config"
	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the host port of deployment descriptors unless told
// otherwise.
const DefaultPort = 3000

// containerPort is where the runtime image serves the content.
const containerPort = 80

// UnknownUsername stands in for the registry user name in deployment
// descriptors rendered without a configured user name.
const UnknownUsername = "your_dockerhub_username"

// DeploymentTemplate is a rendered compose-style deployment descriptor for a
// single app, together with the values it was rendered from.
type DeploymentTemplate struct {
	Service string
	Image   string
	Port    int
	Network string
	Text    string
}

func (d DeploymentTemplate) String() string { return d.Text }

// DeploymentFilename returns the conventional file name of the deployment
// descriptor for the specified app.
func DeploymentFilename(appName string) string {
	return "docker-compose-" + appName + ".yml"
}

// ValidatePort checks that port is a usable TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return invalid("port", fmt.Sprintf("%d is not within 1-65535", port))
	}
	return nil
}

// RenderDeployment renders the deployment descriptor for the latest image of
// the specified app, mapping the specified host port to the web server. The
// output is byte-for-byte the same for the same inputs.
func RenderDeployment(cfg config.Configuration, appName string, port int) (DeploymentTemplate, error) {
	if err := ValidateAppName(appName); err != nil {
		return DeploymentTemplate{}, err
	}
	if err := ValidatePort(port); err != nil {
		return DeploymentTemplate{}, err
	}
	username := cfg.RegistryUsername
	if username == "" {
		username = UnknownUsername
	}
	d := DeploymentTemplate{
		Service: cfg.ServicePrefix + "-" + appName,
		Image:   fmt.Sprintf("%s/%s-%s:%s", username, cfg.BaseImageName, appName, LatestTag),
		Port:    port,
		Network: cfg.ServicePrefix + "-network",
	}

	service := mapping(
		"image", scalar(d.Image),
		"container_name", scalar(d.Service),
		"ports", sequence(quoted(fmt.Sprintf("%d:%d", port, containerPort))),
		"restart", scalar("unless-stopped"),
		"networks", sequence(scalar(d.Network)),
	)
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{
		mapping(
			"services", mapping(d.Service, service),
			"networks", mapping(d.Network, mapping("driver", scalar("bridge"))),
		),
	}}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return DeploymentTemplate{}, fmt.Errorf("cannot render deployment descriptor, reason: %w", err)
	}
	if err := enc.Close(); err != nil {
		return DeploymentTemplate{}, fmt.Errorf("cannot render deployment descriptor, reason: %w", err)
	}
	d.Text = buf.String()
	return d, nil
}

// WriteDeployment atomically writes the rendered deployment descriptor to
// the specified file.
func WriteDeployment(path string, d DeploymentTemplate) error {
	if err := atomicwriter.WriteFile(path, []byte(d.Text), 0o644); err != nil {
		return &IOError{Op: "write deployment descriptor", Path: path, Err: err}
	}
	return nil
}

// ParseDeployment reads back a deployment descriptor with a single service
// and a single port mapping.
func ParseDeployment(text []byte) (DeploymentTemplate, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(text, &doc); err != nil {
		return DeploymentTemplate{}, fmt.Errorf("malformed deployment descriptor, reason: %w", err)
	}
	services, err := lookupMap(doc, "services")
	if err != nil {
		return DeploymentTemplate{}, err
	}
	if len(services) != 1 {
		return DeploymentTemplate{}, fmt.Errorf("deployment descriptor must have exactly one service, not %d", len(services))
	}
	d := DeploymentTemplate{Text: string(text)}
	for name := range services {
		d.Service = name
	}
	service, err := lookupMap(services, d.Service)
	if err != nil {
		return DeploymentTemplate{}, fmt.Errorf("invalid service %q, reason: %w", d.Service, err)
	}
	if d.Image, err = lookupString(service, "image"); err != nil {
		return DeploymentTemplate{}, fmt.Errorf("invalid service %q, reason: %w", d.Service, err)
	}
	ports, err := lookupStrings(service, "ports")
	if err != nil || len(ports) != 1 {
		return DeploymentTemplate{}, fmt.Errorf("service %q must map exactly one port", d.Service)
	}
	host, _, ok := strings.Cut(ports[0], ":")
	if !ok {
		return DeploymentTemplate{}, fmt.Errorf("service %q has invalid port mapping %q", d.Service, ports[0])
	}
	if d.Port, err = strconv.Atoi(host); err != nil {
		return DeploymentTemplate{}, fmt.Errorf("service %q has invalid port mapping %q", d.Service, ports[0])
	}
	if networks, err := lookupStrings(service, "networks"); err == nil && len(networks) > 0 {
		d.Network = networks[0]
	}
	return d, nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func quoted(value string) *yaml.Node {
	n := scalar(value)
	n.Style = yaml.DoubleQuotedStyle
	return n
}

func sequence(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Content: items}
}

// mapping returns a mapping node from alternating keys and value nodes.
func mapping(keyvals ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for idx := 0; idx+1 < len(keyvals); idx += 2 {
		n.Content = append(n.Content, scalar(keyvals[idx].(string)), keyvals[idx+1].(*yaml.Node))
	}
	return n
}

func lookupMap(yaml map[string]any, key string) (map[string]any, error) {
	element := yaml[key]
	if element == nil {
		return nil, fmt.Errorf("no %s found in deployment descriptor", key)
	}
	m, ok := element.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s in deployment descriptor is not an associative array", key)
	}
	return m, nil
}

func lookupString(yaml map[string]any, key string) (string, error) {
	element := yaml[key]
	if element == nil {
		return "", fmt.Errorf("no %s found in deployment descriptor", key)
	}
	s, ok := element.(string)
	if !ok {
		return "", fmt.Errorf("%s in deployment descriptor is not a string", key)
	}
	return s, nil
}

func lookupStrings(yaml map[string]any, key string) ([]string, error) {
	element := yaml[key]
	if element == nil {
		return nil, fmt.Errorf("no %s found in deployment descriptor", key)
	}
	items, ok := element.([]any)
	if !ok {
		return nil, fmt.Errorf("%s in deployment descriptor is not a list", key)
	}
	strs := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s in deployment descriptor is not a list of strings", key)
		}
		strs = append(strs, s)
	}
	return strs, nil
}
