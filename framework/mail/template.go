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

package mail

import (
	"strings"
)

// TemplateContext supplies the non-message values available to tag and
// action-name templates.
type TemplateContext struct {
	Account string
	User    string
}

// ExpandTemplate materializes a template string against the message tags
// and the supplied context. Supported substitutions:
//
//	%[name]  value of the message tag "name", empty if unset
//	%a       account name
//	%u       user the delivery runs as (empty outside delivery)
//	%0..%9   capture groups of the last successful regexp match
//	%%       literal percent sign
//
// Unknown substitutions expand to nothing. A trailing lone '%' is dropped.
func (m *Mail) ExpandTemplate(t string, tctx TemplateContext) string {
	var out strings.Builder
	out.Grow(len(t))

	for i := 0; i < len(t); i++ {
		if t[i] != '%' {
			out.WriteByte(t[i])
			continue
		}
		i++
		if i >= len(t) {
			break
		}

		switch c := t[i]; {
		case c == '%':
			out.WriteByte('%')
		case c == 'a':
			out.WriteString(tctx.Account)
		case c == 'u':
			out.WriteString(tctx.User)
		case c >= '0' && c <= '9':
			idx := int(c - '0')
			if idx < len(m.LastMatch) {
				out.WriteString(m.LastMatch[idx])
			}
		case c == '[':
			end := strings.IndexByte(t[i:], ']')
			if end < 0 {
				// Unterminated tag reference, drop the rest.
				return out.String()
			}
			name := t[i+1 : i+end]
			if v, ok := m.Tags[name]; ok {
				out.WriteString(v)
			}
			i += end
		}
	}
	return out.String()
}
