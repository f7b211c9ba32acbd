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
	"bytes"
	"testing"

	"github.com/emersion/go-message/textproto"
	"github.com/mfetch/mfetch/framework/mail"
)

// Message assembles a mail from header fields (kept in the given order)
// and a body. Line endings are normalized to bare LF, matching what
// fetch backends hand to the rule engine.
func Message(t *testing.T, fields [][2]string, body string) *mail.Mail {
	t.Helper()

	var hdr textproto.Header
	for i := len(fields) - 1; i >= 0; i-- {
		hdr.Add(fields[i][0], fields[i][1])
	}

	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, hdr); err != nil {
		t.Fatalf("write header: %v", err)
	}
	buf.WriteString(body)

	raw := bytes.ReplaceAll(buf.Bytes(), []byte("\r\n"), []byte("\n"))
	return mail.FromBytes(raw)
}
