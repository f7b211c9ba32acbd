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

// Package deliver resolves matched rule actions to concrete deliveries and
// executes them, either directly in the worker or through the privsep
// session when the delivery needs different privileges.
package deliver

import (
	"context"
	"fmt"
	"path"

	"github.com/mfetch/mfetch/framework/exterrors"
	"github.com/mfetch/mfetch/framework/log"
	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/privsep"
	"github.com/mfetch/mfetch/internal/rules"
)

// Dispatcher executes the action list of a matched rule. It implements
// rules.Dispatcher.
type Dispatcher struct {
	Log log.Logger

	// Session is the channel to the privileged counterpart, required for
	// out-of-process actions. In-process actions work without it.
	Session *privsep.Session

	// Actions is the configured action set. Rule action templates are
	// expanded and then glob-matched against the action names.
	Actions []*module.Action

	// DefaultUser is the identity used when resolution produces nothing.
	DefaultUser uint32

	// LookupUser maps a local user name (as found in message headers) to
	// an identity when a derive-users flag is in effect. Nil disables
	// derivation, making derive flags resolve to the default identity.
	LookupUser func(name string) (uint32, bool)
}

// Dispatch expands each action-name template of the rule, resolves it
// against the configured action set and executes every matching action. A
// template matching no action is a delivery failure, as is any failing
// execution. Execution stops at the first failure.
func (d *Dispatcher) Dispatch(ctx context.Context, r *rules.Rule, mctx *module.MatchContext) error {
	a := mctx.Account
	m := mctx.Mail

	for _, tmpl := range r.Actions {
		name := m.ExpandTemplate(tmpl, mail.TemplateContext{Account: a.Name})

		d.Log.Debugf("%s: looking for actions matching: %s", a.Name, name)
		matched := d.matchActions(name)
		if len(matched) == 0 {
			return fmt.Errorf("deliver: no actions matching: %s (was %s)", name, tmpl)
		}

		d.Log.Debugf("%s: found %d actions", a.Name, len(matched))
		for _, t := range matched {
			d.Log.Debugf("%s: action %s", a.Name, t.Name)
			if err := d.deliverAction(ctx, r, mctx, t); err != nil {
				deliveryFailures.WithLabelValues(t.Name).Inc()
				return err
			}
		}
	}
	return nil
}

// matchActions returns all configured actions whose name matches the
// shell-glob pattern, in configuration order.
func (d *Dispatcher) matchActions(pattern string) []*module.Action {
	var matched []*module.Action
	for _, t := range d.Actions {
		if ok, err := path.Match(pattern, t.Name); err == nil && ok {
			matched = append(matched, t)
		}
	}
	return matched
}

func (d *Dispatcher) deliverAction(ctx context.Context, r *rules.Rule, mctx *module.MatchContext, t *module.Action) error {
	a := mctx.Account
	m := mctx.Mail

	if t.Deliverer == nil {
		return nil
	}
	m.AddTag("action", t.Name)

	if t.Deliverer.Kind() == module.DeliverInProcess {
		dctx := &module.DeliveryContext{Account: a, Mail: m}
		if err := t.Deliverer.Deliver(ctx, dctx); err != nil {
			return fmt.Errorf("deliver: action %s: %w", t.Name, err)
		}
		deliveriesTotal.WithLabelValues(t.Name, "in-process").Inc()
		return nil
	}

	users := d.resolveUsers(r, t, a, m)
	for _, uid := range users {
		if err := d.remoteDeliver(ctx, mctx, t, uid); err != nil {
			return err
		}
		deliveriesTotal.WithLabelValues(t.Name, "privsep").Inc()
	}
	return nil
}

// remoteDeliver round-trips the message through the privsep session for
// one identity. The privileged side is the source of truth for the tag
// set after the trip since it may have run its own substitutions.
func (d *Dispatcher) remoteDeliver(ctx context.Context, mctx *module.MatchContext, t *module.Action, uid uint32) error {
	a := mctx.Account
	m := mctx.Mail

	if d.Session == nil {
		return fmt.Errorf("deliver: action %s needs the privsep session but none is open", t.Name)
	}

	payload, err := privsep.EncodePayload(m.Tags, m.Content)
	if err != nil {
		return fmt.Errorf("deliver: action %s: %w", t.Name, err)
	}

	req := &privsep.Message{
		Kind:    privsep.KindAction,
		User:    uid,
		Size:    uint64(m.Size()),
		Body:    int64(m.BodyOffset),
		Account: a.Name,
		Action:  t.Name,
		Payload: payload,
	}
	reply, err := d.Session.Roundtrip(ctx, req, privsep.KindDone)
	if err != nil {
		return err
	}

	tags, content, err := privsep.DecodePayload(reply.Payload)
	if err != nil {
		return err
	}
	m.Tags = tags

	if reply.Error != 0 {
		// The privileged side failed the delivery but the channel is fine;
		// the run aborts but a later run may succeed.
		return exterrors.WithTemporary(
			fmt.Errorf("deliver: action %s failed as user %d (error %d)", t.Name, uid, reply.Error),
			true)
	}

	if t.Deliverer.Kind() != module.DeliverWriteBack {
		// Nothing but the tags may change across a non-write-back trip.
		if uint64(m.Size()) != reply.Size || int64(m.BodyOffset) != reply.Body {
			return &privsep.ProtocolError{Reason: "corrupted message: size or body offset changed"}
		}
		return nil
	}

	if content == nil {
		return &privsep.ProtocolError{Reason: "write-back reply without message content"}
	}
	if reply.Size != uint64(len(content)) {
		return &privsep.ProtocolError{Reason: "write-back reply size does not match content"}
	}

	m.Content = content
	m.BodyOffset = int(reply.Body)
	d.Log.Debugf("%s: received modified mail: size %d, body %d", a.Name, m.Size(), m.BodyOffset)

	m.TrimFrom()
	lines := m.FillWrapped()
	d.Log.Debugf("%s: found %d wrapped lines", a.Name, lines)
	return nil
}
