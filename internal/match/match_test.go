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
	"path/filepath"
	"testing"
	"time"

	"github.com/mfetch/mfetch/framework/mail"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/cache"
)

func testMctx(t *testing.T, content string) *module.MatchContext {
	t.Helper()
	return &module.MatchContext{
		Account: &module.Account{Name: "acct"},
		Mail:    mail.FromBytes([]byte(content)),
	}
}

func TestRegexpAreas(t *testing.T) {
	mctx := testMctx(t, "Subject: feed the cat\n\nthe dog barks\n")

	tests := []struct {
		pattern string
		area    Area
		want    bool
	}{
		{"cat", AreaHeaders, true},
		{"dog", AreaHeaders, false},
		{"dog", AreaBody, true},
		{"cat", AreaBody, false},
		{"cat", AreaAll, true},
		{"dog", AreaAll, true},
		{"fish", AreaAll, false},
	}
	for _, tc := range tests {
		p, err := NewRegexp(tc.pattern, tc.area, false)
		if err != nil {
			t.Fatal(err)
		}
		got, err := p.Match(context.Background(), mctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("%q in %v: got %v, want %v", tc.pattern, tc.area, got, tc.want)
		}
	}
}

func TestRegexpIgnoreCase(t *testing.T) {
	mctx := testMctx(t, "Subject: URGENT\n\nbody\n")

	p, err := NewRegexp("urgent", AreaHeaders, true)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Match(context.Background(), mctx); !got {
		t.Error("case-insensitive match failed")
	}

	p, err = NewRegexp("urgent", AreaHeaders, false)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Match(context.Background(), mctx); got {
		t.Error("case-sensitive match should have failed")
	}
}

func TestRegexpCaptures(t *testing.T) {
	mctx := testMctx(t, "List-Id: <golang-nuts.googlegroups.com>\n\nbody\n")

	p, err := NewRegexp(`List-Id: <([^.]+)\.`, AreaHeaders, false)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Match(context.Background(), mctx); !got {
		t.Fatal("no match")
	}
	m := mctx.Mail
	if len(m.LastMatch) != 2 || m.LastMatch[1] != "golang-nuts" {
		t.Errorf("LastMatch = %v", m.LastMatch)
	}

	// Templates can now use the captures.
	if got := m.ExpandTemplate("lists/%1", mail.TemplateContext{}); got != "lists/golang-nuts" {
		t.Errorf("template = %q", got)
	}
}

func TestRegexpBadPattern(t *testing.T) {
	if _, err := NewRegexp("([", AreaAll, false); err == nil {
		t.Error("expected compile error")
	}
}

func TestSize(t *testing.T) {
	mctx := testMctx(t, "\n0123456789")

	over := &Size{Limit: 5}
	if got, _ := over.Match(context.Background(), mctx); !got {
		t.Error("size > 5 should match an 11-byte message")
	}
	under := &Size{Limit: 5, Under: true}
	if got, _ := under.Match(context.Background(), mctx); got {
		t.Error("size < 5 should not match an 11-byte message")
	}
	// Strict comparison: a message exactly at the limit matches neither.
	exact := &Size{Limit: mctx.Mail.Size()}
	if got, _ := exact.Match(context.Background(), mctx); got {
		t.Error("size > limit matched at exactly the limit")
	}
	exact = &Size{Limit: mctx.Mail.Size(), Under: true}
	if got, _ := exact.Match(context.Background(), mctx); got {
		t.Error("size < limit matched at exactly the limit")
	}
}

func TestString(t *testing.T) {
	mctx := testMctx(t, "\nbody\n")
	mctx.Mail.AddTag("folder", "lists-golang")

	p, err := NewString("^lists-(.*)$", "%[folder]", false)
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Match(context.Background(), mctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("no match")
	}
	if len(mctx.Mail.LastMatch) != 2 || mctx.Mail.LastMatch[1] != "golang" {
		t.Errorf("LastMatch = %v", mctx.Mail.LastMatch)
	}
}

func TestTagged(t *testing.T) {
	mctx := testMctx(t, "\nbody\n")

	p := &Tagged{Tag: "flag"}
	if got, _ := p.Match(context.Background(), mctx); got {
		t.Error("matched unset tag")
	}
	mctx.Mail.AddTag("flag", "")
	if got, _ := p.Match(context.Background(), mctx); !got {
		t.Error("tag set to empty value must still count as set")
	}
}

func TestMatchedUnmatched(t *testing.T) {
	mctx := testMctx(t, "\nbody\n")

	if got, _ := (Matched{}).Match(context.Background(), mctx); got {
		t.Error("Matched true before any rule fired")
	}
	if got, _ := (Unmatched{}).Match(context.Background(), mctx); !got {
		t.Error("Unmatched false before any rule fired")
	}

	mctx.Matched = true
	if got, _ := (Matched{}).Match(context.Background(), mctx); !got {
		t.Error("Matched false after a rule fired")
	}
	if got, _ := (Unmatched{}).Match(context.Background(), mctx); got {
		t.Error("Unmatched true after a rule fired")
	}
}

func TestInCache(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "seen.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	mctx := testMctx(t, "\nbody\n")
	mctx.Mail.AddTag("message_id", "<1@example.org>")

	p := &InCache{Cache: c, Key: "%[message_id]"}
	if got, _ := p.Match(ctx, mctx); got {
		t.Error("matched before the key was cached")
	}

	if err := c.Add(ctx, "<1@example.org>"); err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Match(ctx, mctx); !got {
		t.Error("no match after the key was cached")
	}
}

func TestInCacheEmptyKey(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "seen.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// No message_id tag: key expands to nothing, which never matches.
	mctx := testMctx(t, "\nbody\n")
	p := &InCache{Cache: c, Key: "%[message_id]"}
	if got, _ := p.Match(context.Background(), mctx); got {
		t.Error("empty key matched")
	}
}

func TestAge(t *testing.T) {
	sent := time.Date(2023, time.March, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return sent.Add(48 * time.Hour) }

	mctx := testMctx(t, "Date: "+sent.Format(time.RFC1123Z)+"\n\nbody\n")

	old := &Age{Limit: 24 * time.Hour, now: now}
	if got, _ := old.Match(context.Background(), mctx); !got {
		t.Error("age > 24h should match a 48h-old message")
	}
	recent := &Age{Limit: 72 * time.Hour, Under: true, now: now}
	if got, _ := recent.Match(context.Background(), mctx); !got {
		t.Error("age < 72h should match a 48h-old message")
	}
}

func TestAgeBrokenDate(t *testing.T) {
	now := func() time.Time { return time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC) }

	for _, content := range []string{
		"\nno date at all\n",
		"Date: yesterday-ish\n\nbody\n",
	} {
		mctx := testMctx(t, content)
		// Age zero: "older than" never matches, "younger than" always does.
		p := &Age{Limit: time.Hour, now: now}
		if got, _ := p.Match(context.Background(), mctx); got {
			t.Errorf("%q: age > 1h matched", content)
		}
		p = &Age{Limit: time.Hour, Under: true, now: now}
		if got, _ := p.Match(context.Background(), mctx); !got {
			t.Errorf("%q: age < 1h did not match", content)
		}
	}
}
