// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rivaas.dev/hello/logging"
)

// rootOptions holds the flags shared by all commands.
type rootOptions struct {
	configPath string
	host       string
	port       int
	logLevel   string
	logFormat  string

	flags *pflag.FlagSet
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "helloserver [command] [flags]",
		Short:         "HTTP server answering GET /hello",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, stdout)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (yaml, toml or json)")
	flags.StringVar(&opts.host, "host", "", "interface to listen on")
	flags.IntVarP(&opts.port, "port", "p", 0, "port to listen on (default 3000)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: json, text, console")
	opts.flags = flags

	root.AddCommand(
		newServeCommand(opts, stdout),
		newRoutesCommand(stdout),
		newVersionCommand(stdout),
	)
	return root
}

func newServeCommand(opts *rootOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the server and run until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, stdout)
		},
	}
}

func newRoutesCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			r, err := buildRouter(logging.Discard())
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(stdout)
			table.SetHeader([]string{"Method", "Path", "Handler"})
			table.SetAutoWrapText(false)
			for _, route := range r.Routes() {
				table.Append([]string{route.Method, route.Path, route.HandlerName})
			}
			table.Render()
			return nil
		},
	}
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of helloserver",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(stdout, "helloserver version", version)
		},
	}
}
