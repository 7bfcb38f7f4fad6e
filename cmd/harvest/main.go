// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/pkg/version"
)

func main() {
	rootCmd := newRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(mapErrorToExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		logLevel   string
		logFormat  string
	)

	rootCmd := &cobra.Command{
		Use:   "sirseer-harvest",
		Short: "Collect pull request metadata for every repository of a GitHub organization",
		Long: `SirSeer Harvest walks every repository of a GitHub organization and
every pull request of each repository through the GraphQL API, collecting one
normalized, deduplicated record per pull request.`,
		Version:       version.Version,
		SilenceUsage:  true, // Don't show usage on error
		SilenceErrors: true, // We'll handle error printing ourselves
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (default: search standard locations)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(newFetchCommand(&configFile))
	rootCmd.AddCommand(newInspectCommand(&configFile))

	return rootCmd
}

// setupLogger installs the process-wide slog handler. Logs go to w so that
// stdout stays free for exported records.
func setupLogger(w io.Writer, level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	}

	slog.SetDefault(slog.New(handler))
}

// mapErrorToExitCode maps internal errors to appropriate exit codes
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, harvesterrors.ErrInvalidToken) ||
		errors.Is(err, harvesterrors.ErrOrgNotFound) ||
		errors.Is(err, harvesterrors.ErrRateLimit) ||
		errors.Is(err, harvesterrors.ErrConfiguration) {
		return 2 // Authentication, authorization and configuration errors
	}

	if errors.Is(err, harvesterrors.ErrNetworkFailure) {
		return 3 // Network errors
	}

	return 1 // General error
}
