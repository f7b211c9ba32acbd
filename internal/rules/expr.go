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

package rules

import (
	"context"

	"github.com/mfetch/mfetch/framework/module"
)

// evalExpr evaluates an expression against the match context.
//
// Items are processed in order. Each primitive result is inverted first if
// requested, then folded into the accumulator with the item's operator.
// There is no precedence and no short-circuiting across items: OpNone and
// OpOr fold as acc||next, OpAnd as acc&&next, in source order. The first
// item's operator is ignored because the accumulator starts at false and
// OpNone folds with ||.
//
// A primitive error aborts the evaluation; the caller reports it as a
// matching failure.
func (e *Engine) evalExpr(ctx context.Context, expr Expr, mctx *module.MatchContext) (bool, error) {
	res := false
	for _, item := range expr {
		cres, err := item.Prim.Match(ctx, mctx)
		if err != nil {
			return false, err
		}
		if item.Invert {
			cres = !cres
		}
		switch item.Op {
		case OpNone, OpOr:
			res = res || cres
		case OpAnd:
			res = res && cres
		}

		not := ""
		if item.Invert {
			not = "not "
		}
		e.Log.Debugf("%s: tried %s%s, got %v", mctx.Account.Name, not, item.Prim.Describe(), cres)
	}
	return res, nil
}
