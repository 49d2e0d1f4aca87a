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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/moby/sys/atomicwriter"

	log "github.com/sirupsen/logrus"
)

// Environment variables overriding the registry credentials and maintainer
// from the settings file.
const (
	UsernameEnv   = "DOCKERHUB_USERNAME"
	TokenEnv      = "DOCKERHUB_TOKEN"
	MaintainerEnv = "MAINTAINER"
)

// Built-in defaults.
const (
	DefaultServicePrefix = "hzxy"
	DefaultBaseImageName = "hzxy-webapp-base"
	DefaultMaintainer    = "HZXY DevOps Team"
	DefaultRuntimeImage  = "nginx:alpine"
)

// DefaultFilename is the name of the user-scoped settings file inside the
// user's home directory.
const DefaultFilename = ".hzxy-agent-config.json"

// Configuration is the resolved configuration of a single pipeline run. It is
// passed around by value and never changes once resolved.
type Configuration struct {
	RegistryUsername string
	RegistryToken    string
	Maintainer       string
	ServicePrefix    string
	BaseImageName    string
	RuntimeImage     string
}

// Settings mirrors the JSON settings file. Unknown keys are ignored when
// loading.
type Settings struct {
	RegistryUsername string `json:"registryUsername,omitempty"`
	RegistryToken    string `json:"registryToken,omitempty"`
	Maintainer       string `json:"maintainer,omitempty"`
	ServicePrefix    string `json:"servicePrefix,omitempty"`
	BaseImageName    string `json:"baseImageName,omitempty"`
	RuntimeImage     string `json:"runtimeImage,omitempty"`
}

// Overrides are explicit in-memory values for the current run only, such as
// form fields or command line flags. Empty fields are unset.
type Overrides Settings

// ConfigError reports a configuration value required by an operation but not
// present in any configuration source.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration %q; set it in the settings file, via %s",
		e.Field, envFor(e.Field))
}

func envFor(field string) string {
	switch field {
	case "registryUsername":
		return "$" + UsernameEnv
	case "registryToken":
		return "$" + TokenEnv
	}
	return "a command line flag"
}

// DefaultPath returns the path of the user-scoped settings file.
func DefaultPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return DefaultFilename
	}
	return filepath.Join(home, DefaultFilename)
}

// Defaults returns the built-in configuration.
func Defaults() Configuration {
	return Configuration{
		Maintainer:    DefaultMaintainer,
		ServicePrefix: DefaultServicePrefix,
		BaseImageName: DefaultBaseImageName,
		RuntimeImage:  DefaultRuntimeImage,
	}
}

// Resolver merges the configuration sources of a run. The zero value reads
// the default settings file and the process environment.
type Resolver struct {
	Path      string              // settings file; defaults to DefaultPath()
	Getenv    func(string) string // defaults to os.Getenv
	Overrides Overrides
}

// Resolve returns the configuration snapshot for a run, applying, from
// highest to lowest precedence: overrides, environment variables, the
// settings file, and the built-in defaults. A missing or malformed settings
// file is logged and otherwise ignored; Resolve never fails.
func (r Resolver) Resolve() Configuration {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	path := r.Path
	if path == "" {
		path = DefaultPath()
	}

	cfg := Defaults()
	settings, err := Load(path)
	if err != nil {
		log.Warn(fmt.Sprintf("⚠️  ignoring settings file %s, reason: %s", path, err))
	}
	cfg.apply(settings)
	cfg.apply(Settings{
		RegistryUsername: getenv(UsernameEnv),
		RegistryToken:    getenv(TokenEnv),
		Maintainer:       getenv(MaintainerEnv),
	})
	cfg.apply(Settings(r.Overrides))
	return cfg
}

// apply overwrites all fields for which s carries a non-empty value.
func (c *Configuration) apply(s Settings) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.RegistryUsername, s.RegistryUsername)
	set(&c.RegistryToken, s.RegistryToken)
	set(&c.Maintainer, s.Maintainer)
	set(&c.ServicePrefix, s.ServicePrefix)
	set(&c.BaseImageName, s.BaseImageName)
	set(&c.RuntimeImage, s.RuntimeImage)
}

// RequireCredentials returns a *ConfigError naming the first missing registry
// credential, or nil if both username and token are present.
func (c Configuration) RequireCredentials() error {
	if c.RegistryUsername == "" {
		return &ConfigError{Field: "registryUsername"}
	}
	if c.RegistryToken == "" {
		return &ConfigError{Field: "registryToken"}
	}
	return nil
}

// Settings returns the persistable form of this configuration.
func (c Configuration) Settings() Settings {
	return Settings{
		RegistryUsername: c.RegistryUsername,
		RegistryToken:    c.RegistryToken,
		Maintainer:       c.Maintainer,
		ServicePrefix:    c.ServicePrefix,
		BaseImageName:    c.BaseImageName,
		RuntimeImage:     c.RuntimeImage,
	}
}

// Load reads the settings file at path. A missing file yields empty settings
// and no error.
func Load(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("cannot read settings, reason: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("malformed settings, reason: %w", err)
	}
	return s, nil
}

// Save atomically replaces the settings file at path: readers either see the
// old file or the complete new one.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot JSONize settings, reason: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create settings directory, reason: %w", err)
		}
	}
	if err := atomicwriter.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("cannot write settings, reason: %w", err)
	}
	log.Info(fmt.Sprintf("💾  settings saved to %s", path))
	return nil
}
