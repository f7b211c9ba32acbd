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

package match

import (
	"context"
	"fmt"

	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/cache"
)

// InCache matches when the expanded key template is present in the
// seen-message cache. The usual key is "%[message_id]", making the
// primitive a duplicate detector. A cache I/O failure is a match error and
// aborts the message.
type InCache struct {
	Cache *cache.Cache
	Key   string
}

func (ic *InCache) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	m := mctx.Mail
	key := m.ExpandTemplate(ic.Key, mail.TemplateContext{Account: mctx.Account.Name})
	if key == "" {
		return false, nil
	}
	return ic.Cache.Contains(ctx, key)
}

func (ic *InCache) Describe() string {
	return fmt.Sprintf("in-cache %s key %q", ic.Cache.Path(), ic.Key)
}
