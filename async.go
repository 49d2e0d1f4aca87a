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

	"github.com/hzxy-devops/webpub/config"
)

// linesBacklog is how many progress lines a background run can get ahead of
// its consumer before it has to wait.
const linesBacklog = 256

// Background is a pipeline run executing in its own goroutine, delivering
// its progress lines and state transitions asynchronously.
type Background struct {
	lines       chan string
	transitions chan Transition
	cancel      context.CancelFunc
	done        chan struct{}
	result      Result
}

// Start runs the pipeline in the background. The caller must drain Lines
// until it gets closed, otherwise the run eventually stalls; lines are never
// dropped. The pipeline's own Reporter and OnTransition still get called.
func (p *Pipeline) Start(ctx context.Context, cfg config.Configuration, req PublishRequest) *Background {
	ctx, cancel := context.WithCancel(ctx)
	bg := &Background{
		lines:       make(chan string, linesBacklog),
		transitions: make(chan Transition, int(Cancelled)+1), // never more than one per state
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	pp := *p
	pp.Reporter = Tee(orDiscard(p.Reporter), chanReporter(bg.lines))
	pp.OnTransition = func(from, to State) {
		if p.OnTransition != nil {
			p.OnTransition(from, to)
		}
		bg.transitions <- Transition{From: from, To: to}
	}
	go func() {
		defer close(bg.done)
		defer cancel()
		bg.result = pp.Run(ctx, cfg, req)
		close(bg.lines)
		close(bg.transitions)
	}()
	return bg
}

// Lines returns the ordered progress lines; the channel gets closed when the
// run has finished.
func (b *Background) Lines() <-chan string { return b.lines }

// Transitions returns the state transitions of the run; the channel gets
// closed when the run has finished.
func (b *Background) Transitions() <-chan Transition { return b.transitions }

// Cancel asks the run to terminate a build or push in progress.
func (b *Background) Cancel() { b.cancel() }

// Done gets closed after the run has finished.
func (b *Background) Done() <-chan struct{} { return b.done }

// Wait for the run to finish and return its result.
func (b *Background) Wait() Result {
	<-b.done
	return b.result
}
