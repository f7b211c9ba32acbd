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

import (
	"sync"
)

// FuncNewModule is a function that creates a new instance of a module with
// the specified name.
//
// Module.InstanceName() of the returned module object should return
// instName.
type FuncNewModule func(modName, instName string) (Module, error)

var (
	modules     = make(map[string]FuncNewModule)
	modulesLock sync.RWMutex
)

// Register adds a module constructor to the global registry.
//
// Fetch backends use the "fetch." name prefix, deliverers use "deliver.".
// Panics if the name is already registered, since this indicates a
// developer mistake rather than a runtime condition.
func Register(name string, factory FuncNewModule) {
	modulesLock.Lock()
	defer modulesLock.Unlock()

	if _, ok := modules[name]; ok {
		panic("module: Register: module with specified name is already registered: " + name)
	}

	modules[name] = factory
}

// Get returns the constructor for the named module, or nil if the name is
// not registered.
func Get(name string) FuncNewModule {
	modulesLock.RLock()
	defer modulesLock.RUnlock()

	return modules[name]
}
