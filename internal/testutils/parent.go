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
	"net"
	"testing"

	"github.com/mfetch/mfetch/internal/privsep"
)

// Parent emulates the privileged side of a privsep session. HandleAction
// produces the reply to each action request; exit requests are
// acknowledged automatically.
type Parent struct {
	HandleAction func(req *privsep.Message) *privsep.Message

	Requests []*privsep.Message
	Err      error

	conn net.Conn
	done chan struct{}
}

// StartParent wires a Parent to one end of an in-memory pipe and returns
// the other end for privsep.NewSession. The parent loop is stopped and
// checked at test cleanup.
func StartParent(t *testing.T, handle func(req *privsep.Message) *privsep.Message) (*Parent, net.Conn) {
	t.Helper()

	child, parentConn := net.Pipe()
	p := &Parent{
		HandleAction: handle,
		conn:         parentConn,
		done:         make(chan struct{}),
	}
	go p.serve()

	t.Cleanup(func() {
		parentConn.Close()
		<-p.done
	})
	return p, child
}

func (p *Parent) serve() {
	defer close(p.done)
	for {
		req, err := privsep.ReadMessage(p.conn)
		if err != nil {
			p.Err = err
			return
		}
		p.Requests = append(p.Requests, req)

		var reply *privsep.Message
		if req.Kind == privsep.KindExit {
			reply = &privsep.Message{Kind: privsep.KindExit}
		} else {
			reply = p.HandleAction(req)
		}
		if reply == nil {
			return
		}
		if err := privsep.WriteMessage(p.conn, reply); err != nil {
			p.Err = err
			return
		}
		if req.Kind == privsep.KindExit {
			return
		}
	}
}

// EchoDone builds the usual successful reply to an action request: same
// size and body offset, tags and content passed back unchanged.
func EchoDone(req *privsep.Message) *privsep.Message {
	return &privsep.Message{
		Kind:    privsep.KindDone,
		User:    req.User,
		Size:    req.Size,
		Body:    req.Body,
		Account: req.Account,
		Action:  req.Action,
		Payload: req.Payload,
	}
}
