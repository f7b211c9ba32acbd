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

// Package cache implements the persistent seen-message cache used by the
// in-cache match primitive and the add-to-cache action to suppress
// duplicate processing across runs.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a persistent string-key set with insertion timestamps, backed
// by a single-file SQLite database.
//
// Cache is safe for use from the single worker goroutine; no advisory
// locking against concurrent workers is attempted beyond what SQLite
// itself provides.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS seen (
		key TEXT PRIMARY KEY,
		added INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init %s: %w", path, err)
	}

	return &Cache{db: db, path: path}, nil
}

func (c *Cache) Path() string {
	return c.path
}

// Add records the key with the current timestamp. Re-adding an existing
// key refreshes its timestamp.
func (c *Cache) Add(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO seen(key, added) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET added = excluded.added",
		key, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: add: %w", err)
	}
	return nil
}

// Contains reports whether the key is present.
func (c *Cache) Contains(ctx context.Context, key string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, "SELECT 1 FROM seen WHERE key = ?", key).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache: lookup: %w", err)
	}
	return true, nil
}

// Expire removes entries older than maxAge and returns how many were
// removed.
func (c *Cache) Expire(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := c.db.ExecContext(ctx, "DELETE FROM seen WHERE added < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: expire: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache: expire: %w", err)
	}
	return n, nil
}

// Count returns the number of cached keys.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM seen").Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}
