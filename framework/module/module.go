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

// Package module contains the modules registry and interfaces implemented
// by modules.
//
// Interfaces are placed here to prevent circular dependencies.
//
// Each pluggable collaborator of the worker core is an object called
// "module": fetch backends that pull messages from a mailbox, deliverers
// that write them somewhere, match primitives used in rule expressions.
// The worker core calls modules only through the interfaces in this
// package; concrete protocol implementations live outside this repository
// and register themselves by name.
package module

// Module is the interface implemented by all mfetch module instances.
//
// It defines basic methods used to identify instances.
//
// Additionally, module can implement io.Closer if it needs to perform
// clean-up on shutdown.
type Module interface {
	// Name method reports module name.
	//
	// It is used to reference module in the configuration and in logs.
	Name() string

	// InstanceName method reports unique name of this module instance or
	// empty string if module instance is unnamed.
	InstanceName() string
}
