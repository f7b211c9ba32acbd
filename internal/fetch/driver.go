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

// Package fetch drives the per-account fetch loop: pull one message from
// the backend, run it through the rule engine, execute deliveries, report
// the decision back, repeat.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfetch/mfetch/framework/exterrors"
	"github.com/mfetch/mfetch/framework/log"
	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/rules"
)

// Status is the outcome summary of one account run, used only for
// reporting.
type Status struct {
	Kept    int
	Dropped int
	Elapsed time.Duration
}

func (s Status) Processed() int {
	return s.Kept + s.Dropped
}

// Driver runs the fetch loop for a single account. It is single-use and
// strictly single-threaded: every blocking point (backend hooks, privsep
// round trips inside deliveries) blocks the whole worker by design.
type Driver struct {
	Log log.Logger

	Backend module.FetchBackend
	Account *module.Account

	Engine *rules.Engine
	Rules  []*rules.Rule

	// ImplicitDecision applies when the top-level ruleset is exhausted
	// without a stop rule: DecisionNone warns and keeps, DecisionKeep
	// keeps, DecisionDrop drops.
	ImplicitDecision mail.Decision

	// KeepAll forces every final decision to keep, after the ruleset and
	// the implicit decision. The account's own Keep flag does the same.
	KeepAll bool

	// PurgeAfter invokes the backend's purge hook every N processed
	// messages. Zero disables purging.
	PurgeAfter int

	// DiscardOversize treats an over-limit message as normal completion
	// of the item instead of aborting the account.
	DiscardOversize bool

	// NoReceived suppresses insertion of the trace header.
	NoReceived bool

	// Hostname is recorded in the trace header.
	Hostname string

	// Version is recorded in the trace header.
	Version string
}

// Poll reports the number of messages waiting for the account without
// fetching them.
func (d *Driver) Poll(ctx context.Context) error {
	a := d.Account

	poller, ok := d.Backend.(module.FetchPoller)
	if !ok {
		d.Log.Printf("%s: polling not supported", a.Name)
		return fmt.Errorf("fetch: %s: polling not supported", a.Name)
	}

	d.Log.Debugf("%s: polling", a.Name)
	n, err := poller.Poll(ctx, a)
	if err != nil {
		d.Log.Error("polling error. aborted", err, "account", a.Name)
		return exterrors.WithStage(err, "fetching")
	}

	d.Log.Printf("%s: %d messages found", a.Name, n)
	return nil
}

// Run executes the whole account invocation: start hook, processing loop,
// finish hook. The finish hook runs even when processing aborted early;
// its failure also fails the run. The returned Status is valid in both
// cases.
func (d *Driver) Run(ctx context.Context) (Status, error) {
	var st Status
	begin := time.Now()

	err := d.process(ctx, &st)

	if finisher, ok := d.Backend.(module.FetchFinisher); ok {
		if ferr := finisher.Finish(ctx, d.Account); ferr != nil && err == nil {
			err = exterrors.WithStage(ferr, "fetching")
		}
	}

	if err != nil {
		if stage := exterrors.Stage(err); stage != "" {
			d.Log.Msg("error. aborted", "account", d.Account.Name, "stage", stage)
		}
	}

	st.Elapsed = time.Since(begin)
	d.summarize(st)
	return st, err
}

func (d *Driver) summarize(st Status) {
	a := d.Account
	n := st.Processed()
	secs := st.Elapsed.Seconds()
	if n > 0 {
		d.Log.Printf("%s: %d messages processed (%d kept) in %.3f seconds (average %.3f)",
			a.Name, n, st.Kept, secs, secs/float64(n))
		return
	}
	d.Log.Printf("%s: %d messages processed in %.3f seconds", a.Name, n, secs)
}

func (d *Driver) process(ctx context.Context, st *Status) error {
	a := d.Account

	if starter, ok := d.Backend.(module.FetchStarter); ok {
		if err := starter.Start(ctx, a); err != nil {
			d.Log.Debugf("%s: start error. aborting", a.Name)
			return exterrors.WithStage(err, "fetching")
		}
	}

	d.Log.Debugf("%s: started processing", a.Name)
	sincePurge := 0

	for {
		// Cancellation is checked at this well-defined suspension point;
		// a termination request never interrupts the handling of a
		// message that is already in flight.
		if err := ctx.Err(); err != nil {
			return exterrors.WithStage(err, "fetching")
		}

		m, err := d.Backend.Fetch(ctx, a)
		var oversize module.OversizeError
		switch {
		case errors.Is(err, module.ErrFetchComplete):
			return nil
		case errors.As(err, &oversize):
			d.Log.Msg("message too big", "account", a.Name, "size", oversize.Size)
			if !d.DiscardOversize {
				return exterrors.WithStage(err, "fetching")
			}
			// Completed but counted neither as kept nor as dropped by the
			// ruleset.
			if err := d.reportDecision(ctx, mail.DecisionDrop); err != nil {
				return exterrors.WithStage(err, "deleting")
			}
			continue
		case err != nil:
			return exterrors.WithStage(err, "fetching")
		}

		m.Decision = mail.DecisionDrop
		m.TrimFrom()
		if m.Size() == 0 {
			d.Log.Msg("got empty message. ignored", "account", a.Name)
			continue
		}

		if err := d.handleMessage(ctx, m); err != nil {
			return err
		}

		stage := "deleting"
		if m.Decision == mail.DecisionKeep {
			stage = "keeping"
		}
		switch m.Decision {
		case mail.DecisionDrop:
			d.Log.Debugf("%s: deleting message", a.Name)
			st.Dropped++
		case mail.DecisionKeep:
			d.Log.Debugf("%s: keeping message", a.Name)
			st.Kept++
		default:
			return exterrors.WithStage(fmt.Errorf("fetch: invalid decision %v", m.Decision), stage)
		}
		messagesProcessed.WithLabelValues(a.Name, m.Decision.String()).Inc()
		if err := d.reportDecision(ctx, m.Decision); err != nil {
			return exterrors.WithStage(err, stage)
		}

		if d.PurgeAfter > 0 {
			if purger, ok := d.Backend.(module.FetchPurger); ok {
				sincePurge++
				if sincePurge >= d.PurgeAfter {
					d.Log.Debugf("%s: %d mails, purging", a.Name, sincePurge)
					if err := purger.Purge(ctx, a); err != nil {
						return exterrors.WithStage(err, "purging")
					}
					sincePurge = 0
				}
			}
		}
	}
}

func (d *Driver) reportDecision(ctx context.Context, decision mail.Decision) error {
	completer, ok := d.Backend.(module.FetchCompleter)
	if !ok {
		return nil
	}
	return completer.Done(ctx, d.Account, decision)
}

// handleMessage prepares one fetched message and runs the ruleset over
// it, leaving the final decision in m.Decision.
func (d *Driver) handleMessage(ctx context.Context, m *mail.Mail) error {
	a := d.Account

	mlog := d.Log
	mlog.Fields = map[string]interface{}{"msg": uuid.New().String()}
	mlog.Debugf("%s: got message: size %d, body %d", a.Name, m.Size(), m.BodyOffset)

	if id, ok := m.FindHeader("message-id"); ok && len(id) != 0 {
		mlog.Debugf("%s: message-id is: %s", a.Name, id)
		m.AddTag("message_id", string(id))
	} else {
		mlog.Debugf("%s: message-id not found", a.Name)
	}

	if !d.NoReceived {
		d.insertReceived(m)
	}

	lines := m.FillWrapped()
	mlog.Debugf("%s: found %d wrapped lines", a.Name, lines)

	mctx := &module.MatchContext{Account: a, Mail: m}
	if err := d.Engine.Run(ctx, mctx, d.Rules); err != nil {
		return err
	}

	if !mctx.Stopped {
		// Reached end of ruleset, apply the implicit decision.
		switch d.ImplicitDecision {
		case mail.DecisionNone:
			mlog.Msg("reached end of ruleset. no unmatched-mail option; keeping mail", "account", a.Name)
			m.Decision = mail.DecisionKeep
		case mail.DecisionKeep:
			mlog.Debugf("%s: reached end of ruleset. keeping mail", a.Name)
			m.Decision = mail.DecisionKeep
		case mail.DecisionDrop:
			mlog.Debugf("%s: reached end of ruleset. dropping mail", a.Name)
			m.Decision = mail.DecisionDrop
		}
	}

	if d.KeepAll || a.Keep {
		m.Decision = mail.DecisionKeep
	}
	return nil
}

// insertReceived synthesizes the trace header. No header line may exceed
// mail.MaxLineLength bytes; the host and account fields are truncated to
// mail.MaxFieldLength each, which leaves plenty of room for the fixed
// parts. A truncated trace header is better than an over-long line.
func (d *Driver) insertReceived(m *mail.Mail) {
	version := d.Version
	if version == "" {
		version = "unknown"
	}
	line := fmt.Sprintf("Received: by %s (mfetch %s, account %q);\n\t%s",
		mail.TruncateField(d.Hostname), version,
		mail.TruncateField(d.Account.Name),
		time.Now().Format(time.RFC1123Z))
	m.InsertHeader(line)
}
