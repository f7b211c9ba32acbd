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

package fetch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mfetch/mfetch/framework/exterrors"
	"github.com/mfetch/mfetch/framework/log"
	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/rules"
	"github.com/mfetch/mfetch/internal/testutils"
)

func testDriver(t *testing.T, b module.FetchBackend, list []*rules.Rule) *Driver {
	t.Helper()
	l := testutils.Logger(t, "fetch")
	return &Driver{
		Log:     l,
		Backend: b,
		Account: &module.Account{Name: "acct"},
		Engine:  &rules.Engine{Log: l},
		Rules:   list,

		ImplicitDecision: mail.DecisionKeep,
		NoReceived:       true,
		Hostname:         "test.example.org",
	}
}

func queue(contents ...string) []testutils.FetchResult {
	var q []testutils.FetchResult
	for _, c := range contents {
		q = append(q, testutils.FetchResult{Mail: mail.FromBytes([]byte(c))})
	}
	return q
}

func TestRunKeepsByImplicitDecision(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\none\n", "\ntwo\n")}
	d := testDriver(t, b, nil)

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Kept != 2 || st.Dropped != 0 {
		t.Errorf("status = %+v", st)
	}
	if len(b.Decisions) != 2 || b.Decisions[0] != mail.DecisionKeep {
		t.Errorf("reported decisions = %v", b.Decisions)
	}
	if b.StartCalls != 1 || b.FinishCalls != 1 {
		t.Errorf("start = %d, finish = %d", b.StartCalls, b.FinishCalls)
	}
}

func TestRunImplicitDrop(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\none\n")}
	d := testDriver(t, b, nil)
	d.ImplicitDecision = mail.DecisionDrop

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Dropped != 1 || st.Kept != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunImplicitNoneKeeps(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\none\n")}
	d := testDriver(t, b, nil)
	d.ImplicitDecision = mail.DecisionNone

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Kept != 1 {
		t.Errorf("status = %+v; an unconfigured implicit decision must keep", st)
	}
}

func TestRunStopRuleSkipsImplicitDecision(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\none\n")}
	list := []*rules.Rule{{Kind: rules.MatchAll, Stop: true}}
	d := testDriver(t, b, list)
	// Implicit keep must not apply: the stop rule leaves the initial drop
	// decision standing.
	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Dropped != 1 || st.Kept != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunKeepAllOverride(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\none\n")}
	list := []*rules.Rule{{Kind: rules.MatchAll, Stop: true}}
	d := testDriver(t, b, list)
	d.KeepAll = true

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Kept != 1 {
		t.Errorf("status = %+v; keep-all must win over the ruleset", st)
	}
}

func TestRunAccountKeepOverride(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\none\n")}
	d := testDriver(t, b, nil)
	d.Account.Keep = true
	d.ImplicitDecision = mail.DecisionDrop

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Kept != 1 {
		t.Errorf("status = %+v; account keep flag must win", st)
	}
}

func TestRunSkipsEmptyMessage(t *testing.T) {
	b := &testutils.Backend{Queue: queue(
		"From sender@example.org Mon Jan  1 00:00:00 2023",
		"\nreal\n",
	)}
	d := testDriver(t, b, nil)

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Processed() != 1 {
		t.Errorf("status = %+v; empty message must not be counted", st)
	}
	if len(b.Decisions) != 1 {
		t.Errorf("decisions = %v; empty message must not be reported", b.Decisions)
	}
}

func TestRunOversizeAborts(t *testing.T) {
	b := &testutils.Backend{Queue: []testutils.FetchResult{
		{Err: module.OversizeError{Size: 999999}},
		{Mail: mail.FromBytes([]byte("\nunreached\n"))},
	}}
	d := testDriver(t, b, nil)

	st, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("expected abort")
	}
	if stage := exterrors.Stage(err); stage != "fetching" {
		t.Errorf("stage = %q", stage)
	}
	if st.Processed() != 0 {
		t.Errorf("status = %+v", st)
	}
	if b.FinishCalls != 1 {
		t.Error("finish hook skipped on abort")
	}
}

func TestRunOversizeDiscardContinues(t *testing.T) {
	b := &testutils.Backend{Queue: []testutils.FetchResult{
		{Err: module.OversizeError{Size: 999999}},
		{Mail: mail.FromBytes([]byte("\nafter\n"))},
	}}
	d := testDriver(t, b, nil)
	d.DiscardOversize = true

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// The discarded item completes normally but counts neither way.
	if st.Kept != 1 || st.Dropped != 0 {
		t.Errorf("status = %+v", st)
	}
	if len(b.Decisions) != 2 || b.Decisions[0] != mail.DecisionDrop {
		t.Errorf("decisions = %v; discard must be reported to the backend", b.Decisions)
	}
}

func TestRunFetchErrorAborts(t *testing.T) {
	fetchErr := errors.New("connection reset")
	b := &testutils.Backend{Queue: []testutils.FetchResult{{Err: fetchErr}}}
	d := testDriver(t, b, nil)

	_, err := d.Run(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("err = %v", err)
	}
	if stage := exterrors.Stage(err); stage != "fetching" {
		t.Errorf("stage = %q", stage)
	}
}

func TestRunStartErrorAborts(t *testing.T) {
	b := &testutils.Backend{
		Queue:    queue("\nunreached\n"),
		StartErr: errors.New("login failed"),
	}
	d := testDriver(t, b, nil)

	st, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("expected abort")
	}
	if st.Processed() != 0 {
		t.Errorf("status = %+v", st)
	}
	if b.FinishCalls != 1 {
		t.Error("finish hook skipped after start failure")
	}
}

func TestRunFinishErrorFailsRun(t *testing.T) {
	b := &testutils.Backend{
		Queue:     queue("\none\n"),
		FinishErr: errors.New("expunge failed"),
	}
	d := testDriver(t, b, nil)

	st, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("finish failure must fail the run")
	}
	if stage := exterrors.Stage(err); stage != "fetching" {
		t.Errorf("stage = %q, want fetching", stage)
	}
	// Processing itself succeeded.
	if st.Kept != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunFinishErrorLogsAbort(t *testing.T) {
	b := &testutils.Backend{
		Queue:     queue("\none\n"),
		FinishErr: errors.New("expunge failed"),
	}
	d := testDriver(t, b, nil)

	var logged []string
	d.Log = log.Logger{Out: log.FuncOutput(func(_ time.Time, _ bool, msg string) {
		logged = append(logged, msg)
	}, func() error { return nil })}

	if _, err := d.Run(context.Background()); err == nil {
		t.Fatal("finish failure must fail the run")
	}

	var aborted bool
	for _, msg := range logged {
		if strings.HasPrefix(msg, "error. aborted") && strings.Contains(msg, `"stage":"fetching"`) {
			aborted = true
		}
	}
	if !aborted {
		t.Errorf("no abort message logged: %v", logged)
	}
}

func TestRunDoneErrorAbortsWithStage(t *testing.T) {
	b := &testutils.Backend{
		Queue:   queue("\none\n"),
		DoneErr: errors.New("DELE rejected"),
	}
	d := testDriver(t, b, nil)

	_, err := d.Run(context.Background())
	if err == nil {
		t.Fatal("expected abort")
	}
	if stage := exterrors.Stage(err); stage != "keeping" {
		t.Errorf("stage = %q, want %q", stage, "keeping")
	}
}

func TestRunPurgeBatches(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\n1\n", "\n2\n", "\n3\n", "\n4\n", "\n5\n")}
	d := testDriver(t, b, nil)
	d.PurgeAfter = 2

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.PurgeCalls != 2 {
		t.Errorf("purge calls = %d, want 2", b.PurgeCalls)
	}
}

func TestRunPlainBackend(t *testing.T) {
	// A backend with no optional hooks: nothing to start, report to or
	// finish, but counting still works.
	b := &testutils.PlainBackend{Queue: queue("\none\n")}
	d := testDriver(t, b, nil)

	st, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Kept != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunCancelled(t *testing.T) {
	b := &testutils.Backend{Queue: queue("\none\n")}
	d := testDriver(t, b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if st.Processed() != 0 {
		t.Errorf("status = %+v; no message may be handled after cancellation", st)
	}
	if b.FinishCalls != 1 {
		t.Error("finish hook skipped after cancellation")
	}
}

func TestRunTrimsFromAndTagsMessageID(t *testing.T) {
	m := mail.FromBytes([]byte("From sender@example.org Mon Jan  1 00:00:00 2023\nMessage-Id: <42@example.org>\nSubject: hi\n\nbody\n"))
	b := &testutils.Backend{Queue: []testutils.FetchResult{{Mail: m}}}
	d := testDriver(t, b, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if bytes.HasPrefix(m.Content, []byte("From ")) {
		t.Errorf("mbox delimiter kept: %q", m.Content)
	}
	if v, _ := m.Tag("message_id"); v != "<42@example.org>" {
		t.Errorf("message_id tag = %q", v)
	}
}

func TestRunInsertsReceivedHeader(t *testing.T) {
	m := mail.FromBytes([]byte("Subject: hi\n\nbody\n"))
	b := &testutils.Backend{Queue: []testutils.FetchResult{{Mail: m}}}
	d := testDriver(t, b, nil)
	d.NoReceived = false
	d.Version = "0.1"

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	v, ok := m.FindHeader("received")
	if !ok {
		t.Fatalf("no Received header in %q", m.Content)
	}
	if !bytes.Contains(v, []byte("test.example.org")) || !bytes.Contains(v, []byte(`"acct"`)) {
		t.Errorf("Received = %q", v)
	}
	if got := string(m.BodyBytes()); got != "body\n" {
		t.Errorf("body after insertion = %q", got)
	}
}

func TestRunNoReceived(t *testing.T) {
	m := mail.FromBytes([]byte("Subject: hi\n\nbody\n"))
	b := &testutils.Backend{Queue: []testutils.FetchResult{{Mail: m}}}
	d := testDriver(t, b, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.FindHeader("received"); ok {
		t.Errorf("Received header inserted despite no_received: %q", m.Content)
	}
}

func TestRunRuleErrorAborts(t *testing.T) {
	matchErr := errors.New("bad primitive")
	list := []*rules.Rule{{
		Kind: rules.MatchExpression,
		Expr: rules.Expr{{Prim: failingPrim{matchErr}, Op: rules.OpNone}},
	}}
	b := &testutils.Backend{Queue: queue("\none\n")}
	d := testDriver(t, b, list)

	_, err := d.Run(context.Background())
	if !errors.Is(err, matchErr) {
		t.Fatalf("err = %v", err)
	}
	if stage := exterrors.Stage(err); stage != "matching" {
		t.Errorf("stage = %q", stage)
	}
}

type failingPrim struct{ err error }

func (p failingPrim) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	return false, p.err
}

func (p failingPrim) Describe() string { return "failing" }

func TestPoll(t *testing.T) {
	b := &testutils.Backend{PollN: 3}
	d := testDriver(t, b, nil)

	if err := d.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPollUnsupported(t *testing.T) {
	b := &testutils.PlainBackend{}
	d := testDriver(t, b, nil)

	if err := d.Poll(context.Background()); err == nil {
		t.Fatal("expected error for a backend without poll support")
	}
}

func TestPollError(t *testing.T) {
	b := &testutils.Backend{PollErr: errors.New("connection reset")}
	d := testDriver(t, b, nil)

	err := d.Poll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if stage := exterrors.Stage(err); stage != "fetching" {
		t.Errorf("stage = %q", stage)
	}
}
