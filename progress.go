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
	"sync"

	log "github.com/sirupsen/logrus"
)

// ProgressReporter receives the ordered progress lines of a pipeline run. How
// lines get surfaced is up to the implementation, such as appending them to a
// widget or writing them to a terminal.
type ProgressReporter interface {
	Emit(line string)
}

// ReporterFunc adapts an ordinary function to the ProgressReporter interface.
type ReporterFunc func(line string)

func (f ReporterFunc) Emit(line string) { f(line) }

// Discard drops all progress lines.
var Discard ProgressReporter = ReporterFunc(func(string) {})

// LogReporter logs progress lines at info level.
type LogReporter struct{}

func (LogReporter) Emit(line string) { log.Info(line) }

// Collector keeps all progress lines in memory; it is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *Collector) Emit(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

// Lines returns a copy of the lines collected so far.
func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Tee forwards each line to all the specified reporters in turn.
func Tee(reporters ...ProgressReporter) ProgressReporter {
	return ReporterFunc(func(line string) {
		for _, r := range reporters {
			r.Emit(line)
		}
	})
}

// chanReporter hands lines over to a channel; it blocks rather than dropping
// lines when the consumer falls behind.
type chanReporter chan<- string

func (c chanReporter) Emit(line string) { c <- line }

func orDiscard(r ProgressReporter) ProgressReporter {
	if r == nil {
		return Discard
	}
	return r
}
