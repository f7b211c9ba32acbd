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

package mail

import (
	"bytes"
)

const (
	// MaxLineLength is the hard ceiling for a single header line
	// (RFC 5322, section 2.1.1).
	MaxLineLength = 998

	// MaxFieldLength is the margin applied to user-controlled values
	// substituted into synthesized header lines. Keeping them well below
	// MaxLineLength leaves room for the fixed parts of the line; anything
	// longer gets truncated rather than producing an over-long line.
	MaxFieldLength = 450
)

// FindHeader locates the first header with the given name, matched
// case-insensitively against the physical lines of the header region. It
// returns the header value with leading whitespace removed, up to but not
// including the line terminator.
func (m *Mail) FindHeader(name string) ([]byte, bool) {
	hdr := m.HeaderBytes()
	nameLen := len(name)

	for len(hdr) > 0 {
		line := hdr
		if nl := bytes.IndexByte(hdr, '\n'); nl >= 0 {
			line = hdr[:nl]
			hdr = hdr[nl+1:]
		} else {
			hdr = nil
		}

		if len(line) <= nameLen || line[nameLen] != ':' {
			continue
		}
		if !bytes.EqualFold(line[:nameLen], []byte(name)) {
			continue
		}

		value := line[nameLen+1:]
		for len(value) > 0 && (value[0] == ' ' || value[0] == '\t') {
			value = value[1:]
		}
		return value, true
	}
	return nil, false
}

// InsertHeader prepends a header line to the message. The line must not
// include the terminating newline; it is added here. Lines longer than
// MaxLineLength are truncated, not rejected.
//
// Wrapped positions recorded before the insertion are shifted so they keep
// pointing at the same newlines.
func (m *Mail) InsertHeader(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength]
	}

	ins := make([]byte, 0, len(line)+1)
	ins = append(ins, line...)
	ins = append(ins, '\n')

	content := make([]byte, 0, len(ins)+len(m.Content))
	content = append(content, ins...)
	content = append(content, m.Content...)
	m.Content = content

	if m.BodyOffset >= 0 {
		m.BodyOffset += len(ins)
	}
	for i := range m.Wrapped {
		m.Wrapped[i] += len(ins)
	}
}

// TruncateField clamps a user-controlled substitution value to
// MaxFieldLength bytes.
func TruncateField(s string) string {
	if len(s) > MaxFieldLength {
		return s[:MaxFieldLength]
	}
	return s
}
