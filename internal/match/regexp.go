/*
mfetch - privilege-separated mail retrieval and filtering agent
Copyright © 2023 mfetch contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY and FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package match provides the built-in match primitives usable in rule
// expressions.
package match

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mfetch/mfetch/framework/module"
)

// Area selects the message region a primitive inspects.
type Area int

const (
	AreaAll Area = iota
	AreaHeaders
	AreaBody
)

func (a Area) String() string {
	switch a {
	case AreaHeaders:
		return "headers"
	case AreaBody:
		return "body"
	default:
		return "all"
	}
}

// Regexp matches a regular expression against a region of the message.
// On success the capture groups are stored in the message's LastMatch for
// later template substitution.
type Regexp struct {
	expr *regexp.Regexp
	area Area
}

// NewRegexp compiles the pattern for the given area. ignoreCase folds
// character case during matching.
func NewRegexp(pattern string, area Area, ignoreCase bool) (*Regexp, error) {
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	expr, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("match: regexp: %w", err)
	}
	return &Regexp{expr: expr, area: area}, nil
}

func (r *Regexp) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	m := mctx.Mail

	var region []byte
	switch r.area {
	case AreaHeaders:
		region = m.HeaderBytes()
	case AreaBody:
		region = m.BodyBytes()
	default:
		region = m.Content
	}

	groups := r.expr.FindSubmatch(region)
	if groups == nil {
		return false, nil
	}

	// Up to ten capture groups are exposed to templates as %0 through %9,
	// %0 being the whole match.
	n := len(groups)
	if n > 10 {
		n = 10
	}
	m.LastMatch = m.LastMatch[:0]
	for _, g := range groups[:n] {
		m.LastMatch = append(m.LastMatch, string(g))
	}
	return true, nil
}

func (r *Regexp) Describe() string {
	return fmt.Sprintf("regexp %q in %s", r.expr.String(), r.area)
}
