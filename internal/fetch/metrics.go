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

package fetch

import "github.com/prometheus/client_golang/prometheus"

var messagesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mfetch",
		Subsystem: "fetch",
		Name:      "processed",
		Help:      "Messages that went through the ruleset, by final decision",
	},
	[]string{"account", "decision"},
)

func init() {
	prometheus.MustRegister(messagesProcessed)
}
