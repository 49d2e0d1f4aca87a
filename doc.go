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
Package webpub packages compiled front-end apps into nginx-based container
images and publishes them to a registry.

A publishing run takes an app name, a version, and an archive of the compiled
app (.zip, .tar, .tar.gz, and whatever else can be identified and extracted):

  - the [Stager] extracts the archive into a fresh build context, unwraps a
    “dist/” top-level folder if present, and writes the image recipe
    (Dockerfile) labelled with the app's name, version, maintainer, and
    content digests;
  - the [Builder] builds the image with both the version and the “latest”
    tags in a single run of the docker command;
  - the [Pusher] logs into the registry using a throw-away client
    configuration and then pushes the version tag and then the latest tag,
    retrying transient failures with exponential backoff.

A [Pipeline] strings these steps together as a small state machine, either
synchronously using [Pipeline.Run], or in the background using
[Pipeline.Start], reporting progress lines through a [ProgressReporter].

Additionally, [RenderDeployment] renders compose-style deployment descriptors
for the latest image of an app, and an [Exporter] saves published images as
tarballs for hosts without registry access.

The registry token never shows up in progress lines, logs, or command
arguments; it only gets fed to “docker login” via stdin.
*/
package webpub
