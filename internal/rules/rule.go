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

// Package rules implements the ordered, nestable ruleset evaluated against
// each fetched message, including the expression evaluator with its
// left-to-right combination semantics.
package rules

import (
	"github.com/mfetch/mfetch/framework/module"
)

// Kind selects how a rule decides whether it matches a message.
type Kind int

const (
	// MatchAll matches every message unconditionally.
	MatchAll Kind = iota

	// MatchExpression matches when the rule's expression evaluates true.
	MatchExpression
)

// Op combines an expression item with the accumulated result of the items
// before it.
type Op int

const (
	// OpNone is used on the first item of an expression; its operator is
	// ignored and its result seeds the accumulator.
	OpNone Op = iota
	OpAnd
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	default:
		return "none"
	}
}

// ExprItem is one entry of a rule expression: a match primitive, an invert
// flag applied to its result, and the operator combining it with the
// accumulated result of the preceding items.
type ExprItem struct {
	Prim   module.MatchPrimitive
	Invert bool
	Op     Op
}

// Expr is an ordered expression. Combination is evaluated strictly left to
// right with no operator precedence: the result folds as acc = acc OP next
// in source order. Existing rulesets depend on this, do not replace it
// with conventional AND/OR precedence.
type Expr []ExprItem

// Rule is a node of the ruleset tree.
type Rule struct {
	// Index is the position of the rule in the ruleset, used only for
	// diagnostics.
	Index int

	// Accounts restricts the rule to accounts whose name matches one of
	// these shell-glob patterns. Empty means the rule applies to all
	// accounts.
	Accounts []string

	Kind Kind
	Expr Expr

	// TagKey/TagValue are templates materialized when the rule matches.
	// The tag is added only when the expanded key is non-empty.
	TagKey   string
	TagValue string

	// Actions holds action-name templates dispatched on match.
	Actions []string

	// Stop halts ruleset scanning after this rule matches, at every
	// enclosing nesting level.
	Stop bool

	// Users / FindUsers are the rule-level identity override, the highest
	// priority level of delivery identity resolution.
	Users     []uint32
	FindUsers bool

	// Nested rules are evaluated after the rule's own actions; see
	// Engine.Run for the stop propagation semantics.
	Nested []*Rule
}
