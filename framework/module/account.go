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

// Account identifies a configured mail source during one worker
// invocation. The worker core treats it as read-only.
type Account struct {
	Name string

	// Users is the account-level explicit identity list for deliveries.
	// FindUsers requests deriving identities from the message instead.
	// Both sit at the bottom of the identity resolution priority chain,
	// above only the configured default identity.
	Users     []uint32
	FindUsers bool

	// Keep forces the final decision for every message of this account to
	// "keep" regardless of what the ruleset decided.
	Keep bool
}
