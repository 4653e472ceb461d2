// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main implements ifmgrctl, a command line client of the REST API
// served by ifmgr-agent.
package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	host       string
	configFile string

	historyClass  string
	historyFailed bool
	historyLast   int
)

var cmdInterfaces = &cobra.Command{
	Use:   "interfaces [name]",
	Short: "Shows state, service bindings and counters of interfaces",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if len(args) == 1 {
			query.Set("name", args[0])
		}
		return get(cmd.OutOrStdout(), "/ifmgr/interfaces", query)
	},
}

var cmdResync = &cobra.Command{
	Use:   "resync",
	Short: "Re-renders all interfaces and repairs diverged rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd.OutOrStdout(), "/ifmgr/resync", nil)
	},
}

var cmdDeviceStatus = &cobra.Command{
	Use:   "device-status device up|down",
	Short: "Announces reachability of a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var reachable string
		switch args[1] {
		case "up":
			reachable = "true"
		case "down":
			reachable = "false"
		default:
			return errors.Errorf("device status must be up or down, got %q", args[1])
		}
		query := url.Values{"device": {args[0]}, "reachable": {reachable}}
		return post(cmd.OutOrStdout(), "/ifmgr/device-status", query)
	},
}

var cmdQueues = &cobra.Command{
	Use:   "queues",
	Short: "Shows depths of the resource queues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return get(cmd.OutOrStdout(), "/controller/queues", nil)
	},
}

var cmdHistory = &cobra.Command{
	Use:   "history",
	Short: "Shows the history of committed batches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if historyClass != "" {
			query.Set("class", historyClass)
		}
		if historyFailed {
			query.Set("failed", "true")
		}
		if historyLast > 0 {
			query.Set("last", strconv.Itoa(historyLast))
		}
		return get(cmd.OutOrStdout(), "/controller/batch-history", query)
	},
}

func init() {
	cmdHistory.Flags().StringVar(&historyClass, "class", "", "only batches of the given class (records|counters)")
	cmdHistory.Flags().BoolVar(&historyFailed, "failed", false, "only failed batches")
	cmdHistory.Flags().IntVar(&historyLast, "last", 0, "max. number of latest batches")
}

var cmdFlush = &cobra.Command{
	Use:   "flush",
	Short: "Flushes all resource queues immediately",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd.OutOrStdout(), "/controller/flush", nil)
	},
}

func get(out io.Writer, path string, query url.Values) error {
	client, err := CreateHTTPClient(configFile)
	if err != nil {
		return err
	}
	body, err := client.Get(host, path, query)
	if err != nil {
		return err
	}
	fmt.Fprint(out, prettyJSON(body))
	return nil
}

func post(out io.Writer, path string, query url.Values) error {
	client, err := CreateHTTPClient(configFile)
	if err != nil {
		return err
	}
	body, err := client.Post(host, path, query)
	if err != nil {
		return err
	}
	fmt.Fprint(out, prettyJSON(body))
	return nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{Use: "ifmgrctl", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVar(&host, "host", "localhost", "host running ifmgr-agent")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"YAML file with http client config (port, basic-auth, use-https)")
	rootCmd.AddCommand(cmdInterfaces, cmdResync, cmdDeviceStatus, cmdQueues, cmdHistory, cmdFlush)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
