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
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/hzxy-devops/webpub/config"

	log "github.com/sirupsen/logrus"
)

// RegistryVerifier asks the registry for the manifest descriptor of a pushed
// image reference, using the configured registry credentials.
type RegistryVerifier struct {
	Options []remote.Option // additional options, such as a custom transport
}

var _ Verifier = (*RegistryVerifier)(nil)

// Verify returns nil if the registry knows the specified image reference.
func (v *RegistryVerifier) Verify(ctx context.Context, ref string, cfg config.Configuration) error {
	r, err := name.ParseReference(ref)
	if err != nil {
		return &ValidationError{Field: "image reference", Reason: fmt.Sprintf("%q is unusable", ref), Err: err}
	}
	opts := append([]remote.Option{remote.WithContext(ctx), remote.WithAuth(registryAuth(cfg))}, v.Options...)
	desc, err := remote.Head(r, opts...)
	if err != nil {
		return fmt.Errorf("cannot find %s in registry, reason: %w", ref, err)
	}
	log.Debug(fmt.Sprintf("registry has %s as %s", ref, desc.Digest))
	return nil
}

// registryAuth returns the registry credentials of the configuration, if
// any.
func registryAuth(cfg config.Configuration) authn.Authenticator {
	if cfg.RegistryUsername == "" {
		return authn.Anonymous
	}
	return &authn.Basic{Username: cfg.RegistryUsername, Password: cfg.RegistryToken}
}

// registryDenied is true if the registry refused access.
func registryDenied(err error) bool {
	var terr *transport.Error
	if !errors.As(err, &terr) {
		return false
	}
	return terr.StatusCode == http.StatusUnauthorized || terr.StatusCode == http.StatusForbidden
}
