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

// Package mail implements the in-memory representation of a single mail
// item as it moves through the fetch-match-deliver pipeline.
//
// The representation is deliberately byte-oriented: the message is kept as
// one contiguous buffer with an offset marking the header/body boundary.
// Malformed input is tolerated (truncated, never rejected), matching what
// remote mailboxes actually contain.
package mail

import (
	"bytes"
)

// Decision is the terminal disposition of a message at its source.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionKeep
	DecisionDrop
)

func (d Decision) String() string {
	switch d {
	case DecisionKeep:
		return "keep"
	case DecisionDrop:
		return "drop"
	default:
		return "none"
	}
}

// Mail is a single fetched message together with its mutable metadata.
//
// Content holds the raw message bytes. BodyOffset is the index of the first
// body byte (one past the blank separator line), or -1 if no separator was
// found. Wrapped holds positions of newlines that belong to folded header
// lines; see FillWrapped.
//
// Mail is not safe for concurrent use. The pipeline accesses it strictly
// sequentially.
type Mail struct {
	Content    []byte
	BodyOffset int
	Decision   Decision
	Wrapped    []int
	Tags       map[string]string

	// LastMatch holds capture groups of the most recent successful regexp
	// match primitive, for use in tag and action templates (%0 ... %9).
	LastMatch []string
}

// New returns an empty Mail with initialized tag storage and no located
// body separator.
func New() *Mail {
	return &Mail{
		BodyOffset: -1,
		Tags:       map[string]string{},
	}
}

// FromBytes builds a Mail from raw message bytes and locates the
// header/body boundary.
func FromBytes(content []byte) *Mail {
	m := New()
	m.Content = content
	m.LocateBody()
	return m
}

func (m *Mail) Size() int {
	return len(m.Content)
}

// HeaderEnd returns the index one past the last header byte. When no body
// separator is present the whole content is considered header.
func (m *Mail) HeaderEnd() int {
	if m.BodyOffset < 0 || m.BodyOffset > len(m.Content) {
		return len(m.Content)
	}
	return m.BodyOffset
}

// HeaderBytes returns the header region of the message, including the
// trailing separator line if one is present.
func (m *Mail) HeaderBytes() []byte {
	return m.Content[:m.HeaderEnd()]
}

// BodyBytes returns the body region of the message, or nil if no body
// separator was found.
func (m *Mail) BodyBytes() []byte {
	if m.BodyOffset < 0 || m.BodyOffset > len(m.Content) {
		return nil
	}
	return m.Content[m.BodyOffset:]
}

// LocateBody finds the blank line separating header from body and records
// the offset of the first body byte. A message without the separator gets
// BodyOffset = -1 and is treated as all-header.
func (m *Mail) LocateBody() {
	if bytes.HasPrefix(m.Content, []byte{'\n'}) {
		m.BodyOffset = 1
		return
	}
	idx := bytes.Index(m.Content, []byte("\n\n"))
	if idx < 0 {
		m.BodyOffset = -1
		return
	}
	m.BodyOffset = idx + 2
}

// TrimFrom removes the leading mbox-style "From " delimiter line, if
// present. Wrapped positions are discarded since they are no longer valid;
// the caller is expected to run FillWrapped again.
func (m *Mail) TrimFrom() {
	if !bytes.HasPrefix(m.Content, []byte("From ")) {
		return
	}
	nl := bytes.IndexByte(m.Content, '\n')
	if nl < 0 {
		m.Content = nil
		m.BodyOffset = -1
		m.Wrapped = nil
		return
	}
	m.Content = m.Content[nl+1:]
	if m.BodyOffset > nl {
		m.BodyOffset -= nl + 1
	} else if m.BodyOffset >= 0 {
		m.BodyOffset = -1
	}
	m.Wrapped = nil
}

// AddTag sets the named tag, overwriting any previous value. Tag names are
// used verbatim; uniqueness is by exact string match.
func (m *Mail) AddTag(name, value string) {
	if m.Tags == nil {
		m.Tags = map[string]string{}
	}
	m.Tags[name] = value
}

// Tag returns the value of the named tag and whether it is set.
func (m *Mail) Tag(name string) (string, bool) {
	v, ok := m.Tags[name]
	return v, ok
}
