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
	"context"

	"github.com/mfetch/mfetch/framework/module"
)

// Deliverer records every Deliver call it receives.
type Deliverer struct {
	DeliveryKind module.DeliveryKind
	Err          error

	Calls []module.DeliveryContext
}

func (d *Deliverer) Kind() module.DeliveryKind {
	return d.DeliveryKind
}

func (d *Deliverer) Deliver(ctx context.Context, dctx *module.DeliveryContext) error {
	d.Calls = append(d.Calls, *dctx)
	return d.Err
}

// Primitive is a scripted match primitive. Results are consumed in order;
// once exhausted the last one repeats.
type Primitive struct {
	Results []bool
	Err     error

	Calls int
}

func (p *Primitive) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	p.Calls++
	if p.Err != nil {
		return false, p.Err
	}
	if len(p.Results) == 0 {
		return false, nil
	}
	i := p.Calls - 1
	if i >= len(p.Results) {
		i = len(p.Results) - 1
	}
	return p.Results[i], nil
}

func (p *Primitive) Describe() string {
	return "scripted"
}
