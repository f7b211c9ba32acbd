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

// Package privsep implements the child (unprivileged) side of the
// synchronous request/reply channel between the worker and its privileged
// counterpart.
//
// The channel carries a closed set of typed messages: a fixed-shape binary
// header plus an optional length-prefixed attached buffer. There is no
// pipelining and no correlation id; request/reply matching is by strict
// alternation. Because the peer is a co-located trusted process, any
// decode mismatch means the trust boundary can no longer be verified:
// such errors are ProtocolError values and the worker terminates rather
// than continuing.
package privsep

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind identifies the message type in the wire header.
type Kind uint32

const (
	// KindAction asks the privileged side to execute a delivery action as
	// a given user. The attached buffer carries the tag set and message
	// content (see EncodePayload).
	KindAction Kind = 1 + iota

	// KindDone is the completion reply to KindAction. The attached buffer
	// carries the authoritative tag set and, for write-back deliveries,
	// the rewritten message content.
	KindDone

	// KindExit announces (and acknowledges) session shutdown.
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "ACTION"
	case KindDone:
		return "DONE"
	case KindExit:
		return "EXIT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint32(k))
	}
}

// maxNameLen bounds the inline account/action name fields of the wire
// header.
const maxNameLen = 64

// maxPayloadLen bounds the attached buffer. Larger values in a received
// header indicate a corrupted or hostile peer.
const maxPayloadLen = 512 << 20

// wireHeader is the fixed-shape envelope header. All fields are encoded
// big-endian; names are NUL-padded.
type wireHeader struct {
	Kind       uint32
	Error      int32
	User       uint32
	Size       uint64
	Body       int64
	Account    [maxNameLen]byte
	Action     [maxNameLen]byte
	PayloadLen uint32
}

// Message is the decoded form of one envelope.
type Message struct {
	Kind  Kind
	Error int32
	User  uint32

	// Size and Body mirror the message's content length and body offset
	// across the boundary so the unprivileged side can verify they did not
	// change where they must not.
	Size uint64
	Body int64

	Account string
	Action  string

	Payload []byte
}

func packName(dst *[maxNameLen]byte, name string) error {
	if len(name) >= maxNameLen {
		return fmt.Errorf("privsep: name too long: %q", name)
	}
	copy(dst[:], name)
	return nil
}

func unpackName(src *[maxNameLen]byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src[:])
}

// WriteMessage encodes msg to w: fixed header first, then the attached
// buffer if any.
func WriteMessage(w io.Writer, msg *Message) error {
	var hdr wireHeader
	hdr.Kind = uint32(msg.Kind)
	hdr.Error = msg.Error
	hdr.User = msg.User
	hdr.Size = msg.Size
	hdr.Body = msg.Body
	hdr.PayloadLen = uint32(len(msg.Payload))
	if err := packName(&hdr.Account, msg.Account); err != nil {
		return err
	}
	if err := packName(&hdr.Action, msg.Action); err != nil {
		return err
	}

	if err := binary.Write(w, binary.BigEndian, &hdr); err != nil {
		return &ProtocolError{Reason: "header write failed", Err: err}
	}
	if len(msg.Payload) != 0 {
		if _, err := w.Write(msg.Payload); err != nil {
			return &ProtocolError{Reason: "payload write failed", Err: err}
		}
	}
	return nil
}

// ReadMessage decodes one envelope from r. A short read or an implausible
// header is a ProtocolError; the caller must not retry.
func ReadMessage(r io.Reader) (*Message, error) {
	var hdr wireHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, &ProtocolError{Reason: "short header read", Err: err}
	}
	if hdr.PayloadLen > maxPayloadLen {
		return nil, &ProtocolError{Reason: fmt.Sprintf("implausible payload length %d", hdr.PayloadLen)}
	}

	msg := &Message{
		Kind:    Kind(hdr.Kind),
		Error:   hdr.Error,
		User:    hdr.User,
		Size:    hdr.Size,
		Body:    hdr.Body,
		Account: unpackName(&hdr.Account),
		Action:  unpackName(&hdr.Action),
	}
	if hdr.PayloadLen != 0 {
		msg.Payload = make([]byte, hdr.PayloadLen)
		if _, err := io.ReadFull(r, msg.Payload); err != nil {
			return nil, &ProtocolError{Reason: "short payload read", Err: err}
		}
	}
	return msg, nil
}

// ProtocolError is a violation of the privsep wire contract. It is never
// recoverable: the process must terminate abnormally instead of operating
// across an unverifiable trust boundary.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("privsep: %s: %v", e.Reason, e.Err)
	}
	return "privsep: " + e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) Fields() map[string]interface{} {
	return map[string]interface{}{"reason": e.Reason}
}

// IsProtocolError reports whether err (or anything it wraps) is a privsep
// protocol violation.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
