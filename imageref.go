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
	"fmt"
	"regexp"
	"strings"

	"github.com/distribution/distribution/reference"
	"github.com/hzxy-devops/webpub/config"
)

// LatestTag is the moving tag always published alongside the version tag.
const LatestTag = "latest"

var appNameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// defaultDomain is the registry of repository names without an explicit
// registry host.
const defaultDomain = "docker.io"

// PublishRequest asks for publishing a single front-end archive as a
// particular version of an app.
type PublishRequest struct {
	AppName     string
	Version     string
	ArchivePath string
}

// Validate checks the shape of the request without touching the filesystem,
// returning a *ValidationError for the first problem found.
func (r PublishRequest) Validate() error {
	if err := ValidateAppName(r.AppName); err != nil {
		return err
	}
	switch {
	case r.Version == "":
		return invalid("version", "must not be empty")
	case r.Version == LatestTag:
		return invalid("version", `"latest" is reserved and always published anyway`)
	case r.ArchivePath == "":
		return invalid("archive", "no archive path given")
	}
	return validateTag(r.AppName, r.Version)
}

// validateTag checks that tag can be used as an image tag, using the already
// validated app name as the repository to tag.
func validateTag(appName, tag string) error {
	named, err := reference.ParseNormalizedNamed(appName)
	if err == nil {
		_, err = reference.WithTag(named, tag)
	}
	if err != nil {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("%q is not a valid image tag", tag), Err: err}
	}
	return nil
}

// ValidateAppName checks that name can be used inside image repository and
// service names: lowercase letters and digits, separated by single hyphens.
func ValidateAppName(name string) error {
	if name == "" {
		return invalid("app name", "must not be empty")
	}
	if !appNameRe.MatchString(name) {
		return invalid("app name",
			fmt.Sprintf("%q must consist of lowercase letters, digits, and single hyphens", name))
	}
	return nil
}

// ImageReference names the repository and the ordered tags an app version
// gets published under. The version tag always comes first, latest last.
type ImageReference struct {
	Repository string
	Tags       []string
}

// ResolveImage derives the image reference for a publish request: the
// repository is “{registryUsername}/{baseImageName}-{appName}”, tagged with
// the request's version and “latest”, in this order.
func ResolveImage(cfg config.Configuration, req PublishRequest) (ImageReference, error) {
	if err := req.Validate(); err != nil {
		return ImageReference{}, err
	}
	repo, err := repositoryName(cfg.RegistryUsername, cfg.BaseImageName, req.AppName)
	if err != nil {
		return ImageReference{}, err
	}
	return ImageReference{
		Repository: repo,
		Tags:       []string{req.Version, LatestTag},
	}, nil
}

// Repository returns the repository name all versions of the specified app
// get published to.
func Repository(cfg config.Configuration, appName string) (string, error) {
	if err := ValidateAppName(appName); err != nil {
		return "", err
	}
	return repositoryName(cfg.RegistryUsername, cfg.BaseImageName, appName)
}

func repositoryName(username, base, app string) (string, error) {
	if username != strings.ToLower(username) {
		return "", invalid("registry username", fmt.Sprintf("%q must be lowercase", username))
	}
	repo := fmt.Sprintf("%s/%s-%s", username, base, app)
	named, err := reference.ParseNormalizedNamed(repo)
	if err != nil {
		return "", &ValidationError{Field: "repository", Reason: fmt.Sprintf("%q is unusable", repo), Err: err}
	}
	// A user name without a slash is a Docker Hub user, never a registry host.
	// Otherwise only names with a dot or port, or localhost, are registry hosts.
	domain := reference.Domain(named)
	if !strings.Contains(username, "/") && domain != defaultDomain ||
		domain != defaultDomain && domain != "localhost" && !strings.ContainsAny(domain, ".:") {
		return "", invalid("registry username", fmt.Sprintf("%q is neither a user name nor a registry host", username))
	}
	if _, tagged := named.(reference.Tagged); tagged {
		return "", invalid("repository", fmt.Sprintf("%q must not carry a tag", repo))
	}
	return repo, nil
}

// Ref returns the full reference for the specified tag.
func (r ImageReference) Ref(tag string) string {
	return r.Repository + ":" + tag
}

// Refs returns the full references for all tags, in publishing order.
func (r ImageReference) Refs() []string {
	refs := make([]string, 0, len(r.Tags))
	for _, tag := range r.Tags {
		refs = append(refs, r.Ref(tag))
	}
	return refs
}

// VersionTag returns the first tag, which is the version tag.
func (r ImageReference) VersionTag() string {
	if len(r.Tags) == 0 {
		return ""
	}
	return r.Tags[0]
}

// Latest returns the full reference of the latest tag.
func (r ImageReference) Latest() string {
	return r.Ref(LatestTag)
}

// Registry returns the registry host the repository lives in, such as
// “docker.io” for plain Docker Hub user repositories.
func (r ImageReference) Registry() string {
	named, err := reference.ParseNormalizedNamed(r.Repository)
	if err != nil {
		return ""
	}
	return reference.Domain(named)
}

func (r ImageReference) String() string {
	return fmt.Sprintf("%s:{%s}", r.Repository, strings.Join(r.Tags, ","))
}
