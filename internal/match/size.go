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

// Size compares the message content length against a limit: under mode
// matches sizes strictly below the limit, otherwise sizes strictly above.
type Size struct {
	Limit int
	Under bool
}

func (s *Size) Match(ctx context.Context, mctx *module.MatchContext) (bool, error) {
	size := mctx.Mail.Size()
	if s.Under {
		return size < s.Limit, nil
	}
	return size > s.Limit, nil
}

func (s *Size) Describe() string {
	if s.Under {
		return fmt.Sprintf("size < %d", s.Limit)
	}
	return fmt.Sprintf("size > %d", s.Limit)
}
