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
	"errors"
	"fmt"

	"github.com/mfetch/mfetch/framework/mail"
)

// ErrFetchComplete is returned by FetchBackend.Fetch when the mailbox has
// no more messages. It signals normal end of input, not a failure.
var ErrFetchComplete = errors.New("fetch: no more messages")

// OversizeError is returned by FetchBackend.Fetch for a message exceeding
// the configured size limit. Depending on configuration the driver either
// discards the item and continues or aborts the account.
type OversizeError struct {
	Size int
}

func (e OversizeError) Error() string {
	return fmt.Sprintf("fetch: message too big: %d bytes", e.Size)
}

// FetchBackend pulls messages from a mailbox or server. Implementations
// live outside this repository; the worker core calls them only through
// this interface.
//
// Fetch returns the next message, ErrFetchComplete at end of input, an
// OversizeError for an over-limit message, or any other error to abort the
// account. The returned Mail must have Content populated and BodyOffset
// located.
//
// Backends may additionally implement any of the optional capability
// interfaces below. Absent capabilities are treated as no-ops.
type FetchBackend interface {
	Fetch(ctx context.Context, acct *Account) (*mail.Mail, error)
}

// FetchStarter is implemented by backends that need per-account setup
// before the first Fetch. A Start failure aborts the account before any
// message is processed.
type FetchStarter interface {
	Start(ctx context.Context, acct *Account) error
}

// FetchPoller is implemented by backends that can report the number of
// waiting messages without fetching them.
type FetchPoller interface {
	Poll(ctx context.Context, acct *Account) (int, error)
}

// FetchCompleter is implemented by backends that want to be told the final
// decision for each processed message.
type FetchCompleter interface {
	Done(ctx context.Context, acct *Account, decision mail.Decision) error
}

// FetchPurger is implemented by backends that support a periodic
// expunge-style operation between messages.
type FetchPurger interface {
	Purge(ctx context.Context, acct *Account) error
}

// FetchFinisher is implemented by backends that need per-account teardown.
// Finish runs even when processing aborted early; its failure marks the
// run as failed.
type FetchFinisher interface {
	Finish(ctx context.Context, acct *Account) error
}
