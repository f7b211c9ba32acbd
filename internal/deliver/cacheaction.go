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
	"context"

	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/cache"
)

// AddToCache is an in-process deliverer that records the expanded key in
// the seen-message cache. Paired with the in-cache match primitive it
// implements duplicate suppression without touching mail storage, so it
// needs no privileges.
type AddToCache struct {
	Cache *cache.Cache
	Key   string
}

func (*AddToCache) Kind() module.DeliveryKind {
	return module.DeliverInProcess
}

func (c *AddToCache) Deliver(ctx context.Context, dctx *module.DeliveryContext) error {
	key := dctx.Mail.ExpandTemplate(c.Key, mail.TemplateContext{Account: dctx.Account.Name})
	if key == "" {
		return nil
	}
	return c.Cache.Add(ctx, key)
}
