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

// Package config holds the runtime knobs of the worker process. The
// ruleset itself is constructed by the embedding program; this file covers
// only behavior toggles.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/mfetch/mfetch/framework/mail"
)

type Config struct {
	// DefaultUser is the fallback delivery identity when neither rule,
	// action nor account names one.
	DefaultUser uint32 `toml:"default_user"`

	// UnmatchedMail decides the fate of mail the ruleset did not stop on:
	// "", "keep" or "drop". The empty value keeps the mail but warns.
	UnmatchedMail string `toml:"unmatched_mail"`

	KeepAll bool `toml:"keep_all"`

	// PurgeAfter triggers the backend purge hook every N messages.
	PurgeAfter int `toml:"purge_after"`

	// MaxSize is the per-message size limit enforced by backends, in
	// bytes. DiscardOversize drops over-limit messages instead of
	// aborting the account.
	MaxSize         uint64 `toml:"max_size"`
	DiscardOversize bool   `toml:"discard_oversize"`

	// NoReceived suppresses the trace header.
	NoReceived bool   `toml:"no_received"`
	Hostname   string `toml:"hostname"`

	// CachePath locates the seen-message cache database. Empty disables
	// cache-backed matching.
	CachePath string `toml:"cache_path"`

	Debug bool `toml:"debug"`
}

const DefaultMaxSize = 32 * 1024 * 1024

func Default() Config {
	hostname, _ := os.Hostname()
	return Config{
		MaxSize:  DefaultMaxSize,
		Hostname: hostname,
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.ImplicitDecision(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ImplicitDecision maps the unmatched_mail setting onto a decision value.
func (c Config) ImplicitDecision() (mail.Decision, error) {
	switch c.UnmatchedMail {
	case "":
		return mail.DecisionNone, nil
	case "keep":
		return mail.DecisionKeep, nil
	case "drop":
		return mail.DecisionDrop, nil
	default:
		return mail.DecisionNone, fmt.Errorf("config: bad unmatched_mail value: %q", c.UnmatchedMail)
	}
}
