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
	"path/filepath"
	"testing"

	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/cache"
	"github.com/mfetch/mfetch/internal/rules"
	"github.com/mfetch/mfetch/internal/testutils"
)

func TestAddToCache(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "seen.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	d := &Dispatcher{
		Log: testutils.Logger(t, "deliver"),
		Actions: []*module.Action{
			{Name: "mark-seen", Deliverer: &AddToCache{Cache: c, Key: "%[message_id]"}},
		},
	}
	ctx := context.Background()

	mctx := testMctx(t, "Message-Id: <1@x>\n\nbody\n")
	mctx.Mail.AddTag("message_id", "<1@x>")
	if err := d.Dispatch(ctx, &rules.Rule{Actions: []string{"mark-seen"}}, mctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := c.Contains(ctx, "<1@x>"); !ok {
		t.Error("key not cached after delivery")
	}

	// A message without the tag expands to an empty key, which is not
	// cached.
	mctx = testMctx(t, "\nbody\n")
	if err := d.Dispatch(ctx, &rules.Rule{Actions: []string{"mark-seen"}}, mctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.Count(ctx); n != 1 {
		t.Errorf("cache count = %d, want 1", n)
	}
}
