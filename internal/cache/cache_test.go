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

package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "seen.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAddContains(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if ok, err := c.Contains(ctx, "<1@x>"); err != nil || ok {
		t.Fatalf("Contains before Add = %v, %v", ok, err)
	}
	if err := c.Add(ctx, "<1@x>"); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Contains(ctx, "<1@x>"); err != nil || !ok {
		t.Fatalf("Contains after Add = %v, %v", ok, err)
	}
	if ok, _ := c.Contains(ctx, "<2@x>"); ok {
		t.Error("unrelated key reported present")
	}
}

func TestAddIdempotent(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Add(ctx, "<1@x>"); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := c.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
}

func TestExpire(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()

	if err := c.Add(ctx, "<old@x>"); err != nil {
		t.Fatal(err)
	}
	if err := c.Add(ctx, "<new@x>"); err != nil {
		t.Fatal(err)
	}
	// Backdate one entry past the cutoff.
	if _, err := c.db.ExecContext(ctx, "UPDATE seen SET added = ? WHERE key = ?",
		time.Now().Add(-48*time.Hour).Unix(), "<old@x>"); err != nil {
		t.Fatal(err)
	}

	n, err := c.Expire(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expire removed %d, want 1", n)
	}
	if ok, _ := c.Contains(ctx, "<old@x>"); ok {
		t.Error("expired key still present")
	}
	if ok, _ := c.Contains(ctx, "<new@x>"); !ok {
		t.Error("fresh key was expired")
	}
}

func TestPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.db")
	ctx := context.Background()

	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Add(ctx, "<1@x>"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if ok, err := c.Contains(ctx, "<1@x>"); err != nil || !ok {
		t.Errorf("Contains after reopen = %v, %v", ok, err)
	}
}
