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

package privsep

import (
	"context"
	"fmt"
	"io"

	"github.com/mfetch/mfetch/framework/log"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateAwaitingReply
	stateViolated
	stateClosed
)

// Session is the child end of the privsep channel.
//
// The protocol is strictly synchronous: Idle -> AwaitingReply -> Idle.
// Only one request may be outstanding; the next send is not permitted
// until the previous reply has been consumed. There is deliberately no
// timeout on the round trip: the counterpart is a co-located trusted peer
// and a hung parent should hang the worker rather than be papered over.
//
// Once a reply violates the protocol the channel contents can no longer be
// trusted and the session refuses all further traffic, including the exit
// handshake. The only remaining operation is Close.
//
// Session is not goroutine-safe. The worker is single-threaded and calls
// it strictly sequentially.
type Session struct {
	conn io.ReadWriteCloser
	st   sessionState

	Log log.Logger
}

// NewSession wraps an established channel to the privileged counterpart,
// typically an inherited socket fd.
func NewSession(conn io.ReadWriteCloser, l log.Logger) *Session {
	return &Session{conn: conn, Log: l}
}

// Roundtrip sends req and waits for the matching reply, which must be of
// the want kind. Any other kind, or any decode failure, is a
// ProtocolError.
//
// ctx is checked before the send; it is the designated cancellation point
// for external termination. Once the request is on the wire the reply is
// awaited unconditionally.
func (s *Session) Roundtrip(ctx context.Context, req *Message, want Kind) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.send(req); err != nil {
		return nil, err
	}
	return s.recv(want)
}

func (s *Session) send(req *Message) error {
	switch s.st {
	case stateAwaitingReply:
		return &ProtocolError{Reason: "send with a reply still outstanding"}
	case stateViolated:
		return &ProtocolError{Reason: "send on violated session"}
	case stateClosed:
		return &ProtocolError{Reason: "send on closed session"}
	}

	s.Log.Debugf("sending %v message", req.Kind)
	if err := WriteMessage(s.conn, req); err != nil {
		return err
	}
	s.st = stateAwaitingReply
	return nil
}

func (s *Session) recv(want Kind) (*Message, error) {
	if s.st != stateAwaitingReply {
		return nil, &ProtocolError{Reason: "receive without outstanding request"}
	}

	reply, err := ReadMessage(s.conn)
	if err != nil {
		s.st = stateViolated
		return nil, err
	}

	s.Log.Debugf("received %v message", reply.Kind)
	if reply.Kind != want {
		s.st = stateViolated
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("unexpected message: want %v, got %v", want, reply.Kind),
		}
	}
	s.st = stateIdle
	return reply, nil
}

// Exit performs the shutdown handshake: announce exit intent, wait for the
// acknowledgment, then close the channel. The channel is closed even if
// the handshake fails. On a violated session no handshake is attempted;
// the channel is simply closed.
func (s *Session) Exit(ctx context.Context) error {
	if s.st == stateViolated {
		return s.Close()
	}
	_, err := s.Roundtrip(ctx, &Message{Kind: KindExit}, KindExit)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the underlying channel without a handshake. Safe to call
// twice.
func (s *Session) Close() error {
	if s.st == stateClosed {
		return nil
	}
	s.st = stateClosed
	return s.conn.Close()
}
