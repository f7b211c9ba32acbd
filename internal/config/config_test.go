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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mfetch/mfetch/framework/mail"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mfetch.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
default_user = 1000
unmatched_mail = "drop"
purge_after = 50
max_size = 1048576
discard_oversize = true
no_received = true
cache_path = "/var/db/mfetch.db"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultUser != 1000 || cfg.PurgeAfter != 50 || cfg.MaxSize != 1048576 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.DiscardOversize || !cfg.NoReceived || cfg.CachePath != "/var/db/mfetch.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if d, _ := cfg.ImplicitDecision(); d != mail.DecisionDrop {
		t.Errorf("implicit decision = %v", d)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxSize != DefaultMaxSize {
		t.Errorf("MaxSize = %d, want %d", cfg.MaxSize, DefaultMaxSize)
	}
	if d, _ := cfg.ImplicitDecision(); d != mail.DecisionNone {
		t.Errorf("implicit decision = %v", d)
	}
}

func TestLoadBadUnmatchedMail(t *testing.T) {
	if _, err := Load(writeConfig(t, `unmatched_mail = "shred"`)); err == nil {
		t.Fatal("expected error for bad unmatched_mail value")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
