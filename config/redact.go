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
	"fmt"
	"strings"
)

// Redacted returns a copy of the configuration safe for printing and logging:
// the registry token is replaced by a marker telling only whether it is set.
func (c Configuration) Redacted() Configuration {
	if c.RegistryToken != "" {
		c.RegistryToken = "(set)"
	} else {
		c.RegistryToken = "(unset)"
	}
	return c
}

// String renders the redacted configuration, one "key: value" per line.
func (c Configuration) String() string {
	r := c.Redacted()
	var b strings.Builder
	line := func(key, value string) {
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(&b, "%-18s %s\n", key+":", value)
	}
	line("registryUsername", r.RegistryUsername)
	line("registryToken", r.RegistryToken)
	line("maintainer", r.Maintainer)
	line("servicePrefix", r.ServicePrefix)
	line("baseImageName", r.BaseImageName)
	line("runtimeImage", r.RuntimeImage)
	return b.String()
}
