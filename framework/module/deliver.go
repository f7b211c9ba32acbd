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

// DeliveryKind describes where a deliverer is allowed to run.
type DeliveryKind int

const (
	// DeliverInProcess executes inside the fetch/match worker, with its
	// (unprivileged) credentials.
	DeliverInProcess DeliveryKind = iota

	// DeliverOutOfProcess must be executed by the privileged counterpart
	// through the privsep session, typically because it needs to run as a
	// different user.
	DeliverOutOfProcess

	// DeliverWriteBack is an out-of-process delivery that is additionally
	// permitted to rewrite the message content.
	DeliverWriteBack
)

// DeliveryContext ties together everything a deliverer needs to write one
// message.
type DeliveryContext struct {
	Account *Account
	Mail    *mail.Mail

	// User is the identity the delivery runs as. It is meaningful only for
	// out-of-process deliveries; in-process deliverers run as the worker.
	User uint32
}

// Deliverer writes a message to its destination. Concrete maildir/mbox/
// pipe implementations live outside this repository.
type Deliverer interface {
	Kind() DeliveryKind
	Deliver(ctx context.Context, dctx *DeliveryContext) error
}

// Action is a named delivery operation. A nil Deliverer makes the action a
// no-op that still succeeds (useful as a placeholder during testing and
// staged rollouts).
type Action struct {
	Name      string
	Deliverer Deliverer

	// Explicit identity list and derive flag, consulted after the rule's
	// own but before the account's.
	Users     []uint32
	FindUsers bool
}
