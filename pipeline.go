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
	"time"

	"github.com/hzxy-devops/webpub/config"

	log "github.com/sirupsen/logrus"
)

// State of a single pipeline run.
type State int

const (
	Idle State = iota
	Resolving
	Staging
	Building
	Pushing
	Succeeded
	Failed
	Cancelled
)

var stateNames = [...]string{
	Idle:      "idle",
	Resolving: "resolving",
	Staging:   "staging",
	Building:  "building",
	Pushing:   "pushing",
	Succeeded: "succeeded",
	Failed:    "failed",
	Cancelled: "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal is true for the final states of a run.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// Transition from one pipeline state into the next.
type Transition struct {
	From State
	To   State
}

func (t Transition) String() string { return t.From.String() + "→" + t.To.String() }

// Pipeline publishes a single front-end archive: it stages a build context,
// builds the image, and pushes its tags. A Pipeline can be reused for
// multiple runs, even concurrently, as each run stages into its own build
// context.
type Pipeline struct {
	Stager       *Stager
	Builder      *Builder
	Pusher       *Pusher
	Reporter     ProgressReporter
	OnTransition func(from, to State)
	KeepContext  bool // keep the build context after the run, such as for inspection
}

// Result of a pipeline run. Err is nil for Succeeded, ErrCancelled for
// Cancelled, and the originating error for Failed.
type Result struct {
	State    State
	Image    ImageReference
	Context  *BuildContext
	Push     *PushReport
	Err      error
	Duration time.Duration
}

// run tracks the state of a single pipeline run.
type run struct {
	p     *Pipeline
	rep   ProgressReporter
	state State
}

func (r *run) enter(state State) {
	from := r.state
	r.state = state
	log.Debug(fmt.Sprintf("pipeline %s → %s", from, state))
	if r.p.OnTransition != nil {
		r.p.OnTransition(from, state)
	}
}

// finish moves the run into its terminal state depending on the outcome.
func (r *run) finish(res *Result, err error) {
	switch {
	case err == nil:
		r.enter(Succeeded)
		r.rep.Emit(fmt.Sprintf("🎉  published %s", res.Image))
	case errors.Is(err, ErrCancelled):
		res.Err = ErrCancelled
		r.enter(Cancelled)
		r.rep.Emit("🛑  " + ErrCancelled.Error())
	default:
		res.Err = err
		r.enter(Failed)
		r.rep.Emit("❌  " + err.Error())
	}
	res.State = r.state
}

// Run the pipeline synchronously to completion for the specified request.
// The request and configuration are checked before anything gets touched.
func (p *Pipeline) Run(ctx context.Context, cfg config.Configuration, req PublishRequest) Result {
	started := time.Now()
	r := &run{p: p, rep: orDiscard(p.Reporter), state: Idle}
	var res Result
	err := r.execute(ctx, cfg, req, &res)
	r.finish(&res, err)
	res.Duration = time.Since(started)
	return res
}

func (r *run) execute(ctx context.Context, cfg config.Configuration, req PublishRequest, res *Result) error {
	p := r.p
	r.enter(Resolving)
	img, err := p.resolve(cfg, req)
	if err != nil {
		return err
	}
	res.Image = img
	r.rep.Emit(fmt.Sprintf("🏷  publishing %s", img))

	r.enter(Staging)
	stager := p.Stager
	if stager == nil {
		stager = &Stager{}
	}
	bc, err := stager.Stage(ctx, cfg, req, r.rep)
	if err != nil {
		return err
	}
	res.Context = bc
	if !p.KeepContext {
		defer func() {
			bc.Remove()
			res.Context = nil
		}()
	}

	r.enter(Building)
	builder := p.Builder
	if builder == nil {
		builder = &Builder{}
	}
	if err := builder.Build(ctx, bc, img, r.rep); err != nil {
		return err
	}

	r.enter(Pushing)
	pusher := p.Pusher
	if pusher == nil {
		pusher = &Pusher{}
	}
	res.Push, err = pusher.Push(ctx, cfg, img, r.rep)
	return err
}
func (p *Pipeline) resolve(cfg config.Configuration, req PublishRequest) (ImageReference, error) {
	if err := req.Validate(); err != nil {
		return ImageReference{}, err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return ImageReference{}, err
	}
	if p.Builder != nil {
		if err := p.Builder.Check(); err != nil {
			return ImageReference{}, err
		}
	}
	return ResolveImage(cfg, req)
}
