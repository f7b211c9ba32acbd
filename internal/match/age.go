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
	"time"

	"github.com/mfetch/mfetch/framework/module"
)

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

// Age compares the message's age, derived from its Date header, against a
// limit. A missing or unparsable Date header yields age zero rather than
// an error; remote mail is full of broken dates.
type Age struct {
	Limit time.Duration
	Under bool

	// now is overridable for tests.
	now func() time.Time
}

func (a *Age) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	now := time.Now
	if a.now != nil {
		now = a.now
	}

	age := time.Duration(0)
	if value, ok := mctx.Mail.FindHeader("date"); ok {
		for _, layout := range dateLayouts {
			stamp, err := time.Parse(layout, string(value))
			if err != nil {
				continue
			}
			age = now().Sub(stamp)
			break
		}
	}

	if a.Under {
		return age < a.Limit, nil
	}
	return age > a.Limit, nil
}

func (a *Age) Describe() string {
	if a.Under {
		return fmt.Sprintf("age < %v", a.Limit)
	}
	return fmt.Sprintf("age > %v", a.Limit)
}
