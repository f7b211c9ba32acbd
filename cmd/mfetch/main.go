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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mfetch/mfetch"
	"github.com/mfetch/mfetch/framework/hooks"
	"github.com/mfetch/mfetch/framework/log"
	"github.com/mfetch/mfetch/framework/module"
	"github.com/mfetch/mfetch/internal/config"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "mfetch"
	app.Usage = "unprivileged mail fetch worker"
	app.Description = `mfetch is the unprivileged half of a privilege-separated mail retrieval
agent. The privileged parent forks it with the session channel on an
inherited descriptor; it fetches mail for one account, runs the ruleset
and asks the parent to execute deliveries on its behalf.

Fetch backends are registered by the embedding program; this executable
only wires them to the worker loop.
`
	app.ExitErrHandler = func(c *cli.Context, err error) {
		cli.HandleExitCoder(err)
		if err != nil {
			log.Println(err)
			cli.OsExiter(mfetch.ExitFailure)
		}
	}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to the configuration file",
			EnvVars: []string{"MFETCH_CONFIG"},
			Value:   "mfetch.toml",
		},
		&cli.StringFlag{
			Name:     "account",
			Usage:    "account name to process",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "backend",
			Usage:    "registered fetch backend name",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "log",
			Usage: "default logging target(s)",
			Value: "stderr",
		},
		&cli.UintFlag{
			Name:  "fd",
			Usage: "inherited descriptor carrying the privsep channel",
			Value: 3,
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "keep-all",
			Usage: "never delete mail from the server, regardless of the ruleset",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:  "fetch",
			Usage: "Fetch and process all waiting mail",
			Action: func(c *cli.Context) error {
				return run(c, func(ctx context.Context, w *mfetch.Worker) int {
					return w.Fetch(ctx)
				})
			},
		},
		{
			Name:  "poll",
			Usage: "Report the number of waiting messages",
			Action: func(c *cli.Context) error {
				return run(c, func(ctx context.Context, w *mfetch.Worker) int {
					return w.Poll(ctx)
				})
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger.Error("app.Run failed", err)
	}
}

func run(c *cli.Context, op func(ctx context.Context, w *mfetch.Worker) int) error {
	// Termination is the parent's call; interactive interrupts go to the
	// parent's process group and are not ours to act on.
	signal.Ignore(syscall.SIGINT)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	out, err := logOutput(strings.Split(c.String("log"), " "))
	if err != nil {
		return err
	}
	log.DefaultLogger.Out = out

	// SIGUSR1 asks for log reopening, e.g. after logrotate moved the file.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for range usr1 {
			hooks.RunHooks(hooks.EventLogRotate)
		}
	}()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if c.Bool("keep-all") {
		cfg.KeepAll = true
	}

	backendName := c.String("backend")
	factory := module.Get("fetch." + backendName)
	if factory == nil {
		return fmt.Errorf("unknown fetch backend: %s", backendName)
	}
	accountName := c.String("account")
	mod, err := factory("fetch."+backendName, accountName)
	if err != nil {
		return err
	}
	backend, ok := mod.(module.FetchBackend)
	if !ok {
		return fmt.Errorf("module %s is not a fetch backend", backendName)
	}

	w := &mfetch.Worker{
		Config:    cfg,
		Account:   &module.Account{Name: accountName},
		Backend:   backend,
		SessionFD: uintptr(c.Uint("fd")),
	}

	if code := op(ctx, w); code != mfetch.ExitOK {
		return cli.Exit("", code)
	}
	return nil
}
