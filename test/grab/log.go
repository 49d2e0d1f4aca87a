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

package grab

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// Log grabs any logging output of the standard logrus logger and feeds it
// into the specified writer. Preferably, this writer should be a
// GinkgoWriter, so log output will show up only in case a test fails, but
// otherwise we stay silent. Log returns a function that must be deferred in
// order to restore the original output, formatter, and level.
func Log(w io.Writer, level log.Level) func() {
	logger := log.StandardLogger()
	origOut := logger.Out
	origFormatter := logger.Formatter
	origLevel := logger.GetLevel()

	logger.SetOutput(w)
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetLevel(level)

	return func() {
		logger.SetOutput(origOut)
		logger.SetFormatter(origFormatter)
		logger.SetLevel(origLevel)
	}
}
