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

/*
Package interpolate renders text templates using a Bash-like variable syntax,
as known from Dockerfiles and Compose projects. It is used to render the image
build recipe from a static template.

Both “unbraced” and “braced” references are supported:

	$FOO
	${FOO}

A literal dollar sign is written as “$$”.

# Default

	${VARIABLE:-default}

evaluates to “default” if VARIABLE is unset or empty. In contrast,

	${VARIABLE-default}

evaluates to default only if VARIABLE is unset, but not if it is empty. Default
values may contain further references, such as ${FOO:-${BAR}}.

# Error

	${VARIABLE:?message}

fails rendering with message if VARIABLE is unset or empty, whereas

	${VARIABLE?message}

fails only if VARIABLE is unset.
*/
package interpolate
