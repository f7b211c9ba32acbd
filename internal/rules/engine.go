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
	"errors"
	"path"

	"github.com/mfetch/mfetch/framework/exterrors"
	"github.com/mfetch/mfetch/framework/log"
	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
)

// Dispatcher executes the actions of a matched rule. It is implemented by
// the deliver package; the interface lives here so the engine does not
// depend on delivery machinery.
type Dispatcher interface {
	Dispatch(ctx context.Context, r *Rule, mctx *module.MatchContext) error
}

// Engine walks a ruleset tree against one message at a time.
//
// Engine is stateless between runs; all per-message traversal state lives
// in the module.MatchContext passed to Run. It is not safe for concurrent
// use with a shared context, which never happens in the strictly
// sequential worker.
type Engine struct {
	Log        log.Logger
	Dispatcher Dispatcher
}

// Run evaluates the rule list, in order, against the context's message.
//
// For each rule: the account filter is checked first; then the rule's
// expression is evaluated with wrapped header lines temporarily joined by
// a space (restored to newlines afterwards no matter how evaluation went).
// A matched rule materializes its tag templates, dispatches its actions
// and then descends into its nested rules. A stop rule, or a stop
// surfacing from nested rules, halts scanning of the current list; the
// stop propagates upward through mctx.Stopped without an error.
//
// Errors are annotated with the stage that failed ("matching" or
// "delivery") and abort the whole run.
func (e *Engine) Run(ctx context.Context, mctx *module.MatchContext, list []*Rule) error {
	a := mctx.Account
	m := mctx.Mail

	for _, r := range list {
		if !r.appliesTo(a.Name) {
			continue
		}

		switch r.Kind {
		case MatchExpression:
			// Joining wrapped lines makes multi-line headers match as one
			// logical line.
			m.SetWrapped(' ')
			res, err := e.evalExpr(ctx, r.Expr, mctx)
			m.SetWrapped('\n')
			if err != nil {
				return exterrors.WithStage(err, "matching")
			}
			if !res {
				continue
			}
		case MatchAll:
		}

		if len(r.Nested) == 0 {
			e.Log.Debugf("%s: matched message with rule %d", a.Name, r.Index)
		} else {
			e.Log.Debugf("%s: matched message with rule %d (nested)", a.Name, r.Index)
		}

		if r.TagKey != "" {
			tctx := mail.TemplateContext{Account: a.Name}
			tkey := m.ExpandTemplate(r.TagKey, tctx)
			tvalue := m.ExpandTemplate(r.TagValue, tctx)
			if tkey != "" {
				e.Log.Debugf("%s: tagging message: %s (%s)", a.Name, tkey, tvalue)
				m.AddTag(tkey, tvalue)
			}
		}

		if len(r.Actions) != 0 {
			e.Log.Debugf("%s: delivering message", a.Name)
			mctx.Matched = true
			if err := e.dispatch(ctx, r, mctx); err != nil {
				return exterrors.WithStage(err, "delivery")
			}
		}

		if len(r.Nested) != 0 {
			e.Log.Debugf("%s: entering nested rules", a.Name)
			if err := e.Run(ctx, mctx, r.Nested); err != nil {
				return err
			}
			if mctx.Stopped {
				e.Log.Debugf("%s: exiting nested rules, and stopping", a.Name)
				return nil
			}
			e.Log.Debugf("%s: exiting nested rules", a.Name)
		}

		if r.Stop {
			mctx.Stopped = true
			return nil
		}
	}

	return nil
}

func (e *Engine) dispatch(ctx context.Context, r *Rule, mctx *module.MatchContext) error {
	if e.Dispatcher == nil {
		return errors.New("rules: rule has actions but no dispatcher is configured")
	}
	return e.Dispatcher.Dispatch(ctx, r, mctx)
}

// appliesTo reports whether the rule's account filter admits the named
// account. An empty filter admits everything; patterns are shell globs.
func (r *Rule) appliesTo(account string) bool {
	if len(r.Accounts) == 0 {
		return true
	}
	for _, pat := range r.Accounts {
		if ok, err := path.Match(pat, account); err == nil && ok {
			return true
		}
	}
	return false
}
