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

package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mfetch/mfetch/framework/hooks"
	"github.com/mfetch/mfetch/framework/log"
)

// logOutput builds the log output for the space-separated target list of
// the --log flag. Recognized targets are "stderr", "syslog", "off" and
// file paths; multiple targets are combined.
func logOutput(targets []string) (log.Output, error) {
	if len(targets) == 0 {
		return nil, errors.New("expected at least 1 log target")
	}

	outs := make([]log.Output, 0, len(targets))
	for _, target := range targets {
		switch target {
		case "stderr":
			outs = append(outs, log.WriterOutput(os.Stderr, true))
		case "syslog":
			syslogOut, err := log.SyslogOutput()
			if err != nil {
				return nil, fmt.Errorf("failed to connect to syslog daemon: %v", err)
			}
			outs = append(outs, syslogOut)
		case "off":
			if len(targets) != 1 {
				return nil, errors.New("'off' can't be combined with other log targets")
			}
			return log.NopOutput{}, nil
		default:
			out, err := openLogFile(target)
			if err != nil {
				return nil, err
			}
			outs = append(outs, out)
		}
	}

	if len(outs) == 1 {
		return outs[0], nil
	}
	return log.MultiOutput(outs...), nil
}

// fileOutput is a log file that can be reopened in place, so logrotate
// can move the old file away and signal us to start a fresh one.
type fileOutput struct {
	path string

	mu  sync.Mutex
	f   *os.File
	out log.Output
}

func openLogFile(path string) (*fileOutput, error) {
	o := &fileOutput{path: path}
	if err := o.Reopen(); err != nil {
		return nil, fmt.Errorf("failed to create log file: %v", err)
	}
	hooks.AddHook(hooks.EventLogRotate, func() {
		if err := o.Reopen(); err != nil {
			log.Printf("failed to reopen log file: %v", err)
		}
	})
	return o, nil
}

func (o *fileOutput) Reopen() error {
	f, err := os.OpenFile(o.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o666)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.f != nil {
		o.f.Close()
	}
	o.f = f
	o.out = log.WriterOutput(f, true)
	return nil
}

func (o *fileOutput) Write(stamp time.Time, debug bool, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.out.Write(stamp, debug, msg)
}

func (o *fileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.f.Close()
}
