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

package deliver

import (
	"strings"

	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/rules"
)

// resolveUsers determines the identities to execute a delivery as. The
// priority order is load-bearing and must not be reordered: rule-level
// derive flag, rule-level explicit list, action-level derive flag,
// action-level explicit list, account-level derive flag, account-level
// explicit list, and finally the single default identity. A provider that
// is selected but produces an empty list also falls back to the default
// identity rather than failing; a catch-all delivery is preferable to a
// lost message.
func (d *Dispatcher) resolveUsers(r *rules.Rule, t *module.Action, a *module.Account, m *mail.Mail) []uint32 {
	var users []uint32
	switch {
	case r.FindUsers:
		users = d.findUsers(m)
	case len(r.Users) != 0:
		users = r.Users
	case t.FindUsers:
		users = d.findUsers(m)
	case len(t.Users) != 0:
		users = t.Users
	case a.FindUsers:
		users = d.findUsers(m)
	case len(a.Users) != 0:
		users = a.Users
	}
	if len(users) == 0 {
		users = []uint32{d.DefaultUser}
	}
	return users
}

// findUsers derives delivery identities from the message's To and Cc
// headers: every address whose local part maps to a known user via
// LookupUser contributes that user, deduplicated in first-seen order.
func (d *Dispatcher) findUsers(m *mail.Mail) []uint32 {
	if d.LookupUser == nil {
		return nil
	}

	var users []uint32
	seen := map[uint32]struct{}{}
	for _, hdr := range []string{"to", "cc"} {
		value, ok := m.FindHeader(hdr)
		if !ok {
			continue
		}
		for _, addr := range strings.Split(string(value), ",") {
			local := localPart(addr)
			if local == "" {
				continue
			}
			uid, ok := d.LookupUser(local)
			if !ok {
				continue
			}
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			users = append(users, uid)
		}
	}
	return users
}

// localPart extracts the local part of one address list entry, tolerating
// display names and angle brackets.
func localPart(addr string) string {
	addr = strings.TrimSpace(addr)
	if start := strings.IndexByte(addr, '<'); start >= 0 {
		end := strings.IndexByte(addr[start:], '>')
		if end < 0 {
			return ""
		}
		addr = addr[start+1 : start+end]
	}
	at := strings.IndexByte(addr, '@')
	if at < 0 {
		return strings.TrimSpace(addr)
	}
	return strings.TrimSpace(addr[:at])
}
