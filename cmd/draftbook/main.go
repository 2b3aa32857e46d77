/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"os"
	"os/signal"

	"draftbook/internal/cli"
	"draftbook/internal/crash"
	applog "draftbook/internal/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	// initialize structured logging using environment defaults; the root command
	// re-initializes it from the config file once that is loaded
	applog.Init(applog.FromEnv())
	defer func() { _ = applog.Close() }()

	target := &crash.Target{}
	defer crash.Recover(target)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return cli.Execute(ctx, target, os.Args[1:])
}
