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

package module

import (
	"context"

	"github.com/mfetch/mfetch/framework/mail"
)

// MatchContext ties together the active account, the current message and
// the transient traversal flags of one top-level rule engine run. A fresh
// context is constructed per message; nothing here survives between runs.
type MatchContext struct {
	Account *Account
	Mail    *mail.Mail

	// Matched records that at least one rule with actions fired.
	Matched bool

	// Stopped records that a stop rule fired. It short-circuits the
	// remaining sibling rules at every enclosing nesting level.
	Stopped bool
}

// MatchPrimitive is a single condition usable in rule expressions.
//
// Match reports whether the condition holds for the message in mctx. An
// error aborts the whole expression evaluation and is reported by the
// caller as a matching failure. Primitives may record capture state on
// mctx.Mail (see mail.Mail.LastMatch) but must not otherwise modify the
// message.
//
// Describe returns a human-readable description of the condition for
// diagnostic logging only; it never affects control flow.
type MatchPrimitive interface {
	Match(ctx context.Context, mctx *MatchContext) (bool, error)
	Describe() string
}
