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

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mfetch",
			Subsystem: "deliver",
			Name:      "executed",
			Help:      "Number of successfully executed deliveries (may be more than processed messages since one action can run for multiple identities)",
		},
		[]string{"action", "via"},
	)
	deliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mfetch",
			Subsystem: "deliver",
			Name:      "failed",
			Help:      "Number of failed action executions",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(deliveriesTotal)
	prometheus.MustRegister(deliveryFailures)
}
