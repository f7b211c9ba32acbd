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

// Package mfetch ties the worker pieces together: privsep session on an
// inherited descriptor, rule engine, dispatcher and fetch driver. The
// privileged parent forks one worker per account; everything here runs
// with privileges already dropped.
package mfetch

import (
	"context"
	"os"

	"github.com/mfetch/mfetch/framework/hooks"
	"github.com/mfetch/mfetch/framework/log"
	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/config"
	"github.com/mfetch/mfetch/internal/deliver"
	"github.com/mfetch/mfetch/internal/fetch"
	"github.com/mfetch/mfetch/internal/privsep"
	"github.com/mfetch/mfetch/internal/rules"
)

// Version is the worker version reported in trace headers. Set via
// -ldflags at build time.
var Version = "unknown"

// Worker describes one account invocation. The ruleset and action set are
// assembled by the embedding program; Worker only runs them.
type Worker struct {
	Config  config.Config
	Account *module.Account
	Backend module.FetchBackend

	Rules   []*rules.Rule
	Actions []*module.Action

	// LookupUser resolves a mail address local-part to a delivery
	// identity, for actions with the find-users flag.
	LookupUser func(name string) (uint32, bool)

	// SessionFD is the inherited descriptor carrying the privsep channel.
	SessionFD uintptr
}

// Exit codes of the worker process. The parent distinguishes a failed run
// from a protocol violation: the latter means the channel state is
// unknown and the parent must not reuse it.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitProtocol = 2
)

// Fetch runs the full fetch operation and returns the process exit code.
// The exit handshake is performed whether the run succeeded or not, except
// after a protocol violation, which forfeits the handshake entirely.
func (w *Worker) Fetch(ctx context.Context) int {
	l, session, decision, code := w.setup()
	if code != ExitOK {
		return code
	}

	driver := w.driver(l, session, decision)
	_, err := driver.Run(ctx)
	return w.teardown(ctx, l, session, err)
}

// Poll runs the poll operation: report the number of waiting messages
// without fetching. No deliveries happen, but the exit handshake is still
// owed to the parent.
func (w *Worker) Poll(ctx context.Context) int {
	l, session, decision, code := w.setup()
	if code != ExitOK {
		return code
	}

	driver := w.driver(l, session, decision)
	err := driver.Poll(ctx)
	return w.teardown(ctx, l, session, err)
}

func (w *Worker) setup() (log.Logger, *privsep.Session, mail.Decision, int) {
	l := log.DefaultLogger
	l.Debug = w.Config.Debug

	decision, err := w.Config.ImplicitDecision()
	if err != nil {
		l.Error("invalid configuration", err)
		return l, nil, decision, ExitFailure
	}

	conn := os.NewFile(w.SessionFD, "privsep")
	if conn == nil {
		l.Msg("privsep channel descriptor is not open", "fd", w.SessionFD)
		return l, nil, decision, ExitProtocol
	}
	session := privsep.NewSession(conn, l)
	return l, session, decision, ExitOK
}

func (w *Worker) driver(l log.Logger, session *privsep.Session, decision mail.Decision) *fetch.Driver {
	dispatcher := &deliver.Dispatcher{
		Log:         l,
		Session:     session,
		Actions:     w.Actions,
		DefaultUser: w.Config.DefaultUser,
		LookupUser:  w.LookupUser,
	}
	engine := &rules.Engine{
		Log:        l,
		Dispatcher: dispatcher,
	}
	return &fetch.Driver{
		Log:              l,
		Backend:          w.Backend,
		Account:          w.Account,
		Engine:           engine,
		Rules:            w.Rules,
		ImplicitDecision: decision,
		KeepAll:          w.Config.KeepAll,
		PurgeAfter:       w.Config.PurgeAfter,
		DiscardOversize:  w.Config.DiscardOversize,
		NoReceived:       w.Config.NoReceived,
		Hostname:         w.Config.Hostname,
		Version:          Version,
	}
}

func (w *Worker) teardown(ctx context.Context, l log.Logger, session *privsep.Session, err error) int {
	// After a protocol violation the channel cannot be trusted to carry
	// the exit handshake; tear the connection down and terminate
	// abnormally instead of waiting on a peer that is out of sync.
	if privsep.IsProtocolError(err) {
		if cerr := session.Close(); cerr != nil {
			l.Error("session close failed", cerr)
		}
		hooks.RunHooks(hooks.EventShutdown)
		l.Error("privsep protocol violation", err)
		return ExitProtocol
	}

	// The handshake must not be blocked by the cancellation that ended
	// the run.
	if exitErr := session.Exit(context.Background()); exitErr != nil {
		l.Error("exit handshake failed", exitErr)
		if err == nil {
			err = exitErr
		}
	}

	hooks.RunHooks(hooks.EventShutdown)

	switch {
	case err == nil:
		return ExitOK
	case privsep.IsProtocolError(err):
		l.Error("privsep protocol violation", err)
		return ExitProtocol
	default:
		l.Error("run failed", err)
		return ExitFailure
	}
}
