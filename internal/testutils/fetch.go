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

package testutils

import (
	"context"

	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
)

// FetchResult is one queued outcome of a Fetch call.
type FetchResult struct {
	Mail *mail.Mail
	Err  error
}

// Backend is a scripted module.FetchBackend. Fetch pops results off Queue
// and reports completion when the queue runs dry. All optional capability
// hooks are implemented and counted.
type Backend struct {
	Queue []FetchResult

	StartErr  error
	PollN     int
	PollErr   error
	DoneErr   error
	PurgeErr  error
	FinishErr error

	StartCalls  int
	PurgeCalls  int
	FinishCalls int
	Decisions   []mail.Decision
}

func (b *Backend) Fetch(ctx context.Context, acct *module.Account) (*mail.Mail, error) {
	if len(b.Queue) == 0 {
		return nil, module.ErrFetchComplete
	}
	res := b.Queue[0]
	b.Queue = b.Queue[1:]
	return res.Mail, res.Err
}

func (b *Backend) Start(ctx context.Context, acct *module.Account) error {
	b.StartCalls++
	return b.StartErr
}

func (b *Backend) Poll(ctx context.Context, acct *module.Account) (int, error) {
	return b.PollN, b.PollErr
}

func (b *Backend) Done(ctx context.Context, acct *module.Account, decision mail.Decision) error {
	b.Decisions = append(b.Decisions, decision)
	return b.DoneErr
}

func (b *Backend) Purge(ctx context.Context, acct *module.Account) error {
	b.PurgeCalls++
	return b.PurgeErr
}

func (b *Backend) Finish(ctx context.Context, acct *module.Account) error {
	b.FinishCalls++
	return b.FinishErr
}

// PlainBackend exposes only the mandatory Fetch operation, for tests that
// exercise hook-less code paths.
type PlainBackend struct {
	Queue []FetchResult
}

func (b *PlainBackend) Fetch(ctx context.Context, acct *module.Account) (*mail.Mail, error) {
	if len(b.Queue) == 0 {
		return nil, module.ErrFetchComplete
	}
	res := b.Queue[0]
	b.Queue = b.Queue[1:]
	return res.Mail, res.Err
}
