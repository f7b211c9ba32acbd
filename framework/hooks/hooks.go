/*
mfetch - privilege-separated mail retrieval and filtering agent
Copyright © 2023 mfetch contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package hooks provides a global registry of callbacks to run on
// process-lifetime events.
//
// It is used for the best-effort resource cleanup (temporary delivery
// files, cache handles) that must happen when the worker is told to
// terminate before the fetch loop completes.
package hooks

import "sync"

type Event int

const (
	// EventShutdown is triggered when the worker process is about to stop,
	// both on normal exit and on external termination.
	EventShutdown Event = iota

	// EventLogRotate is triggered when the worker process receives the
	// SIGUSR1 signal (on POSIX platforms) and indicates the request to
	// reopen used log files since they might have rotated.
	EventLogRotate
)

var (
	hooks    = make(map[Event][]func())
	hooksLck sync.Mutex
)

func hooksToRun(eventName Event) []func() {
	hooksLck.Lock()
	defer hooksLck.Unlock()
	hooksEv := hooks[eventName]
	if hooksEv == nil {
		return nil
	}

	// The slice is copied so hooks can be run without holding the lock what
	// might be important since they are likely to do a lot of I/O.
	hooksEvCpy := make([]func(), 0, len(hooksEv))
	hooksEvCpy = append(hooksEvCpy, hooksEv...)

	return hooksEvCpy
}

// RunHooks runs the hooks installed for the specified eventName in the reverse
// order.
func RunHooks(eventName Event) {
	hooks := hooksToRun(eventName)
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// AddHook installs the hook to be executed when certain event occurs.
func AddHook(eventName Event, f func()) {
	hooksLck.Lock()
	defer hooksLck.Unlock()

	hooks[eventName] = append(hooks[eventName], f)
}
