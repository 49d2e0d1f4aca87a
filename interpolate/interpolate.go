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

package interpolate

import (
	"errors"
	"fmt"
	"strings"
)

// Template is a parsed text ready for rendering with different variable sets.
type Template struct {
	source string
	parts  parts
}

// Parse a template text, reporting syntax errors together with the byte
// offset where they were detected.
func Parse(text string) (*Template, error) {
	p := &parser{text: text}
	pts, err := p.parts(false)
	if err != nil {
		return nil, err
	}
	return &Template{source: text, parts: pts}, nil
}

// MustParse is like Parse but panics on syntax errors. It is intended for
// templates that are part of the program itself.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Render the template, substituting the specified variables.
func (t *Template) Render(vars map[string]string) (string, error) {
	var b strings.Builder
	if err := t.parts.render(&b, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Variables returns the names of all variables referenced in the template,
// including those inside default values, in order of first appearance.
func (t *Template) Variables() []string {
	seen := map[string]bool{}
	var names []string
	t.parts.walk(func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})
	return names
}

// String returns the original template text.
func (t *Template) String() string { return t.source }

// Expand parses and renders text in one go.
func Expand(text string, vars map[string]string) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	return t.Render(vars)
}

type part interface {
	render(b *strings.Builder, vars map[string]string) error
}

type parts []part

func (ps parts) render(b *strings.Builder, vars map[string]string) error {
	for _, p := range ps {
		if err := p.render(b, vars); err != nil {
			return err
		}
	}
	return nil
}

func (ps parts) walk(fn func(name string)) {
	for _, p := range ps {
		if ref, ok := p.(reference); ok {
			fn(ref.name)
			ref.alt.walk(fn)
		}
	}
}

type literal string

func (l literal) render(b *strings.Builder, _ map[string]string) error {
	b.WriteString(string(l))
	return nil
}

// reference to a variable, optionally with an operation on its value.
type reference struct {
	name string
	op   string // "", "-", ":-", "?", ":?"
	alt  parts
}

func (r reference) render(b *strings.Builder, vars map[string]string) error {
	value, ok := vars[r.name]
	missing := !ok
	if strings.HasPrefix(r.op, ":") {
		missing = missing || value == ""
	}
	switch {
	case !missing || r.op == "":
		b.WriteString(value)
		return nil
	case strings.HasSuffix(r.op, "-"):
		return r.alt.render(b, vars)
	}
	var msg strings.Builder
	if err := r.alt.render(&msg, vars); err != nil {
		return err
	}
	if msg.Len() == 0 {
		return fmt.Errorf("variable %s is required", r.name)
	}
	return errors.New(msg.String())
}
