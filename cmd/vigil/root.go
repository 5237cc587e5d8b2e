// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/vigil/internal/version"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "vigil",
	Short:   "Learning orchestrator for web-change monitors",
	Long:    `vigil drives the kto change-detection probe through observe -> evaluate -> experiment -> learn cycles, running time-blocked A/B experiments on monitor configuration and distilling the results into a persistent knowledge base of creation rules.`,
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
