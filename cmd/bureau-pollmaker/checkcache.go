// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pollmaker/lib/cli"
	"github.com/bureau-foundation/pollmaker/lib/poll"
	"github.com/bureau-foundation/pollmaker/lib/pollcache"
)

// cacheReport is the JSON output of check-cache.
type cacheReport struct {
	Path       string        `json:"path"`
	Slots      int           `json:"slots"`
	Tombstones int           `json:"tombstones"`
	Polls      []pollSummary `json:"polls"`
}

func checkCacheCommand(stdout, stderr io.Writer) *cli.Command {
	var (
		configPath string
		asJSON     bool
	)
	return &cli.Command{
		Name:    "check-cache",
		Summary: "Validate a poll cache file offline",
		Description: `Parse a poll cache file and check every record without contacting
the homeserver. With no argument the cache_file from the configuration
is checked. Exits with status 1 when the file would stop the bot from
starting.`,
		Usage: "bureau-pollmaker check-cache [flags] [path]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check-cache", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file (default: $POLLMAKER_CONFIG)")
			flagSet.BoolVar(&asJSON, "json", false, "print JSON")
			return flagSet
		},
		Run: func(args []string) error {
			var path string
			switch len(args) {
			case 0:
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				path = cfg.CachePath()
				if path == "" {
					return fmt.Errorf("poll cache is disabled in the configuration")
				}
			case 1:
				path = args[0]
			default:
				return fmt.Errorf("unexpected argument: %s", args[1])
			}

			report, err := checkCache(path)
			if err != nil {
				fmt.Fprintf(stderr, "%s: %v\n", path, err)
				return &cli.ExitError{Code: 1}
			}
			if asJSON {
				return cli.WriteJSON(stdout, report)
			}
			fmt.Fprintf(stdout, "%s: %d polls in %d slots (%d tombstones)\n",
				report.Path, len(report.Polls), report.Slots, report.Tombstones)
			if len(report.Polls) == 0 {
				return nil
			}
			return writePollTable(stdout, report.Polls)
		},
	}
}

// checkCache loads path into a fresh registry using offline
// references. A missing file is an empty cache, as at startup.
func checkCache(path string) (cacheReport, error) {
	report := cacheReport{Path: path, Polls: []pollSummary{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return report, nil
	}
	if err != nil {
		return report, err
	}

	records, err := pollcache.Parse(data)
	if err != nil {
		return report, err
	}
	registry := poll.NewRegistry()
	if _, err := registry.Restore(records); err != nil {
		return report, err
	}

	live := registry.Live()
	report.Slots = registry.Len()
	report.Tombstones = registry.Len() - len(live)
	report.Polls = summarizePolls(live)
	return report, nil
}
