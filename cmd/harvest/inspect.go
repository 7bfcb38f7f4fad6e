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
	"time"

	"github.com/spf13/cobra"

	"github.com/sirseerhq/sirseer-harvest/internal/config"
	"github.com/sirseerhq/sirseer-harvest/internal/metadata"
	"github.com/sirseerhq/sirseer-harvest/internal/state"
)

func newInspectCommand(configFile *string) *cobra.Command {
	var stateDir string

	cmd := &cobra.Command{
		Use:   "inspect <org>",
		Short: "Show the last failure checkpoint and run metadata for an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			if stateDir != "" {
				cfg.Defaults.StateDir = stateDir
			}
			return runInspect(args[0], cfg.Defaults.StateDir, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&stateDir, "state-dir", "", "Directory for checkpoints and run metadata (default: from config)")

	return cmd
}

func runInspect(org, stateDir string, w io.Writer) error {
	cp, err := state.LoadCheckpoint(state.CheckpointPath(stateDir, org))
	switch {
	case errors.Is(err, state.ErrNoCheckpoint):
		fmt.Fprintf(w, "No failure checkpoint for %s\n", org)
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "Last failure for %s at %s (run %s)\n", org, cp.FailedAt.Format(time.RFC3339), cp.RunID)
		fmt.Fprintf(w, "  request: %s\n", cp.Request())
		fmt.Fprintf(w, "  records collected: %d\n", cp.RecordsCollected)
		fmt.Fprintf(w, "  error: %s\n", cp.Error)
	}

	md, err := metadata.LoadLatestMetadata(stateDir, org)
	if err != nil {
		return err
	}
	if md == nil {
		fmt.Fprintf(w, "No run metadata for %s\n", org)
		return nil
	}

	fmt.Fprintln(w, "Latest run metadata:")
	return metadata.WriteMetadataToWriter(md, w)
}
