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
	"fmt"
	"strings"
)

// SyntaxError reports a malformed template together with the byte offset at
// which the problem was detected.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at offset %d: %s", e.Offset, e.Msg)
}

type parser struct {
	text string
	pos  int
}

func (p *parser) fail(msg string) error {
	return &SyntaxError{Offset: p.pos, Msg: msg}
}

func (p *parser) eof() bool { return p.pos >= len(p.text) }

// parts consumes text up to the end of input or, when nested, up to and
// including the closing brace of the enclosing reference.
func (p *parser) parts(nested bool) (parts, error) {
	var pts parts
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			pts = append(pts, literal(text.String()))
			text.Reset()
		}
	}
	for !p.eof() {
		ch := p.text[p.pos]
		switch {
		case ch == '}' && nested:
			p.pos++
			flush()
			return pts, nil
		case ch != '$':
			text.WriteByte(ch)
			p.pos++
			continue
		}
		// a '$' it is...
		p.pos++
		if p.eof() {
			return nil, p.fail("stand-alone $ at end of text")
		}
		switch next := p.text[p.pos]; {
		case next == '$':
			text.WriteByte('$')
			p.pos++
		case next == '{':
			p.pos++
			ref, err := p.braced()
			if err != nil {
				return nil, err
			}
			flush()
			pts = append(pts, ref)
		case isNameStart(next):
			flush()
			pts = append(pts, reference{name: p.name()})
		default:
			// not a reference, such as in "$1" or "$(": keep verbatim.
			text.WriteByte('$')
		}
	}
	if nested {
		return nil, p.fail("unterminated ${")
	}
	flush()
	return pts, nil
}

// braced parses the remainder of a reference after its opening "${".
func (p *parser) braced() (reference, error) {
	if p.eof() || !isNameStart(p.text[p.pos]) {
		return reference{}, p.fail("missing variable name after ${")
	}
	ref := reference{name: p.name()}
	if p.eof() {
		return reference{}, p.fail("unterminated ${")
	}
	if p.text[p.pos] == '}' {
		p.pos++
		return ref, nil
	}
	if p.text[p.pos] == ':' {
		ref.op = ":"
		p.pos++
		if p.eof() {
			return reference{}, p.fail("incomplete substitution operation")
		}
	}
	switch p.text[p.pos] {
	case '-', '?':
		ref.op += string(p.text[p.pos])
		p.pos++
	default:
		return reference{}, p.fail("invalid substitution operation")
	}
	alt, err := p.parts(true)
	if err != nil {
		return reference{}, err
	}
	ref.alt = alt
	return ref, nil
}

func (p *parser) name() string {
	start := p.pos
	for !p.eof() && isNameChar(p.text[p.pos]) {
		p.pos++
	}
	return p.text[start:p.pos]
}

func isNameStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || (ch >= '0' && ch <= '9')
}
