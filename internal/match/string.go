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

package match

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
)

// String matches a regular expression against an expanded template string
// instead of the message itself, which makes conditions on tags possible
// ("string %[folder] to ^lists-"). Capture groups land in LastMatch like
// with Regexp.
type String struct {
	expr     *regexp.Regexp
	template string
}

func NewString(pattern, template string, ignoreCase bool) (*String, error) {
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	expr, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("match: string: %w", err)
	}
	return &String{expr: expr, template: template}, nil
}

func (s *String) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	m := mctx.Mail
	expanded := m.ExpandTemplate(s.template, mail.TemplateContext{Account: mctx.Account.Name})

	groups := s.expr.FindStringSubmatch(expanded)
	if groups == nil {
		return false, nil
	}

	n := len(groups)
	if n > 10 {
		n = 10
	}
	m.LastMatch = append(m.LastMatch[:0], groups[:n]...)
	return true, nil
}

func (s *String) Describe() string {
	return fmt.Sprintf("string %q to %q", s.template, s.expr.String())
}
