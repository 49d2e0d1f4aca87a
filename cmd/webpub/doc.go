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
webpub publishes compiled front-end apps as nginx-based container images.

# Usage

	webpub [flags]
	webpub [command]

Without a command, webpub starts its interactive front end, asking for the
app, version, and archive to publish.

# Commands

	config        show the resolved configuration, or change the settings file
	doctor        check that everything needed for publishing is in place
	export        save a published app image into a tarball for "docker load"
	gui           publish apps interactively
	history       list past publishing runs, optionally of a single app
	next-version  recommend the next version to publish an app as
	publish       build an app archive into an image and push it as version and latest
	stop          remove the local trial container of an app
	template      render the compose deployment descriptor of an app
	trial         run a published app image locally for a quick look
	version       show the version of webpub

# Flags

	    --debug             enable debug logging
	    --docker string     path of the docker command; looked up automatically if empty
	    --history string    path of the build history file (default "~/.hzxy-builds.json")
	    --settings string   path of the settings file (default "~/.hzxy-agent-config.json")

# Configuration

The registry credentials are taken from the settings file, or the
$DOCKERHUB_USERNAME and $DOCKERHUB_TOKEN environment variables, or the
--username and --token flags of the publish command, in increasing order of
precedence. $MAINTAINER sets the maintainer label of images.
*/
package main
