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

	"github.com/mfetch/mfetch/framework/module"
)

// Tagged matches when the named tag is set on the message, regardless of
// its value.
type Tagged struct {
	Tag string
}

func (t *Tagged) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	_, ok := mctx.Mail.Tag(t.Tag)
	return ok, nil
}

func (t *Tagged) Describe() string {
	return fmt.Sprintf("tagged %q", t.Tag)
}

// Matched matches when an earlier rule with actions already fired for this
// message.
type Matched struct{}

func (Matched) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	return mctx.Matched, nil
}

func (Matched) Describe() string {
	return "matched"
}

// Unmatched is the complement of Matched.
type Unmatched struct{}

func (Unmatched) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	return !mctx.Matched, nil
}

func (Unmatched) Describe() string {
	return "unmatched"
}
