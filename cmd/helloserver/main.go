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

// Command helloserver serves GET /hello over HTTP/1.1.
//
// Usage:
//
//	helloserver [serve] [--config hello.yaml] [--host 0.0.0.0] [--port 3000]
//	helloserver routes
//	helloserver version
//
// The port defaults to 3000 and can be set with the PORT or
// HELLO_SERVER_PORT environment variables, the server.port config key or
// the --port flag, in increasing order of precedence.
//
// The process exits with status 0 after a graceful shutdown on SIGINT or
// SIGTERM and with status 1 when configuration or binding fails.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time using -ldflags.
var version = "development"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "helloserver: %v\n", err)
		return 1
	}
	return 0
}
