// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pollmaker/lib/cli"
	"github.com/bureau-foundation/pollmaker/lib/pollstore"
	"github.com/bureau-foundation/pollmaker/lib/service"
	"github.com/bureau-foundation/pollmaker/lib/version"
)

// controlTimeout bounds one control socket call.
const controlTimeout = 10 * time.Second

type runParams struct {
	configPath string
	logLevel   string
	logFormat  string
}

// clientParams are the flags shared by the commands that talk to a
// running daemon.
type clientParams struct {
	configPath string
	socketPath string
	json       bool
}

func (p *clientParams) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&p.configPath, "config", "", "config file (default: $POLLMAKER_CONFIG)")
	flagSet.StringVar(&p.socketPath, "socket", "", "control socket path (default: from config)")
	flagSet.BoolVar(&p.json, "json", false, "print JSON")
}

// client connects to the socket named by --socket, or the one the
// configuration names.
func (p *clientParams) client() (*service.ServiceClient, error) {
	if p.socketPath != "" {
		return service.NewServiceClient(p.socketPath), nil
	}
	cfg, err := loadConfig(p.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w (or pass --socket)", err)
	}
	return service.NewServiceClient(cfg.SocketPath), nil
}

func (p *clientParams) call(action string, result any) error {
	client, err := p.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	return client.Call(ctx, action, nil, result)
}

func noArguments(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	return nil
}

// root builds the command tree. Command output goes to stdout; help
// goes to stderr.
func root(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "bureau-pollmaker",
		Summary: "Matrix bot for reaction-voted polls",
		Description: `bureau-pollmaker runs a Matrix bot that creates polls in chat and
counts votes from emoji reactions. "run" starts the bot; the other
commands inspect or control a running bot through its control socket,
or check a poll cache file offline.`,
		Output: stderr,
		Subcommands: []*cli.Command{
			runCommand(),
			statusCommand(stdout),
			pollsCommand(stdout),
			flushCommand(stdout),
			leaveCommand(stdout),
			checkCacheCommand(stdout, stderr),
			versionCommand(stdout),
		},
	}
}

func runCommand() *cli.Command {
	var params runParams
	return &cli.Command{
		Name:    "run",
		Summary: "Run the bot",
		Description: `Run the bot in the foreground until interrupted, until an
administrator or configured operator sends the leave command, or until the homeserver revokes
the access token. The poll cache is written after every change and once
more on the way out.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVar(&params.configPath, "config", "", "config file (default: $POLLMAKER_CONFIG)")
			flagSet.StringVar(&params.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
			flagSet.StringVar(&params.logFormat, "log-format", "", "override log_format (json, text, auto)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Run with debug logging", Command: "bureau-pollmaker run --config pollmaker.yaml --log-level debug"},
		},
		Run: func(args []string) error {
			if err := noArguments(args); err != nil {
				return err
			}
			return runDaemon(&params)
		},
	}
}

func statusCommand(stdout io.Writer) *cli.Command {
	var params clientParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show the running bot's status",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments(args); err != nil {
				return err
			}
			var status statusResponse
			if err := params.call("status", &status); err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(stdout, status)
			}
			lastWrite := "never"
			if !status.Cache.LastWrite.IsZero() {
				lastWrite = status.Cache.LastWrite.UTC().Format(time.RFC3339)
			}
			cachePath := status.Cache.Path
			if cachePath == "" {
				cachePath = "(disabled)"
			}
			return cli.WriteTable(stdout, []string{"FIELD", "VALUE"}, [][]string{
				{"version", status.Version.String()},
				{"user", status.UserID},
				{"uptime", (time.Duration(status.UptimeSeconds) * time.Second).String()},
				{"polls", fmt.Sprintf("%d live, %d slots", status.LivePolls, status.Slots)},
				{"reactions indexed", strconv.Itoa(status.IndexedReactions)},
				{"cache", cachePath},
				{"cache state", cacheState(status.Cache, status.Dirty)},
				{"cache writes", strconv.Itoa(status.Cache.Writes)},
				{"last write", lastWrite},
			})
		},
	}
}

func cacheState(status pollstore.Status, dirty bool) string {
	switch {
	case status.Poisoned:
		return "poisoned"
	case !status.Ready:
		return "loading"
	case dirty:
		return "dirty"
	default:
		return "clean"
	}
}

func pollsCommand(stdout io.Writer) *cli.Command {
	var params clientParams
	return &cli.Command{
		Name:    "polls",
		Summary: "List live polls with their vote counts",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("polls", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments(args); err != nil {
				return err
			}
			var polls []pollSummary
			if err := params.call("polls", &polls); err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(stdout, polls)
			}
			return writePollTable(stdout, polls)
		},
	}
}

func writePollTable(w io.Writer, polls []pollSummary) error {
	rows := make([][]string, 0, len(polls))
	for _, summary := range polls {
		state := "active"
		if !summary.Active {
			state = "stopped"
		}
		tallies := make([]string, len(summary.Options))
		for position, option := range summary.Options {
			tallies[position] = fmt.Sprintf("%s=%d", option.Label, option.Votes)
		}
		rows = append(rows, []string{summary.ID, state, summary.Channel, summary.Author, strings.Join(tallies, " ")})
	}
	return cli.WriteTable(w, []string{"ID", "STATE", "ROOM", "AUTHOR", "VOTES"}, rows)
}

func flushCommand(stdout io.Writer) *cli.Command {
	var params clientParams
	return &cli.Command{
		Name:    "flush",
		Summary: "Write the poll cache now",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("flush", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments(args); err != nil {
				return err
			}
			var status pollstore.Status
			if err := params.call("flush", &status); err != nil {
				return err
			}
			if params.json {
				return cli.WriteJSON(stdout, status)
			}
			if status.Path == "" {
				fmt.Fprintln(stdout, "poll cache is disabled")
				return nil
			}
			fmt.Fprintf(stdout, "wrote %s (%d writes)\n", status.Path, status.Writes)
			return nil
		},
	}
}

func leaveCommand(stdout io.Writer) *cli.Command {
	var params clientParams
	return &cli.Command{
		Name:    "leave",
		Summary: "Save the poll cache and stop the bot",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("leave", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments(args); err != nil {
				return err
			}
			if err := params.call("leave", nil); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "pollmaker is shutting down")
			return nil
		},
	}
}

func versionCommand(stdout io.Writer) *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&asJSON, "json", false, "print JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArguments(args); err != nil {
				return err
			}
			if asJSON {
				return cli.WriteJSON(stdout, version.Current())
			}
			fmt.Fprintf(stdout, "bureau-pollmaker %s\n", version.Full())
			return nil
		},
	}
}
