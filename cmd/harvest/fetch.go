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
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/spf13/cobra"

	"github.com/sirseerhq/sirseer-harvest/internal/config"
	harvesterrors "github.com/sirseerhq/sirseer-harvest/internal/errors"
	"github.com/sirseerhq/sirseer-harvest/internal/github"
	"github.com/sirseerhq/sirseer-harvest/internal/metadata"
	"github.com/sirseerhq/sirseer-harvest/internal/output"
	"github.com/sirseerhq/sirseer-harvest/internal/query"
	"github.com/sirseerhq/sirseer-harvest/internal/record"
	"github.com/sirseerhq/sirseer-harvest/internal/state"
	"github.com/sirseerhq/sirseer-harvest/internal/traverse"
	"github.com/sirseerhq/sirseer-harvest/pkg/version"
)

// ghTokenForHost reads the credential stored by the GitHub CLI. Tests
// replace it to keep the developer's own login out of the picture.
var ghTokenForHost = auth.TokenForHost

type fetchOptions struct {
	token      string
	pageSize   int
	workers    int
	stateDir   string
	timeout    time.Duration
	outputFile string
	metadata   bool
}

// newFetchCommand creates the fetch command
func newFetchCommand(configFile *string) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch <org>",
		Short: "Collect every pull request of every repository in an organization",
		Long: `Collect every pull request of every repository in a GitHub organization.

Repositories are listed page by page; each repository's pull requests are then
drained page by page using that repository's own cursor. Records are keyed by
pull request ID, so a pull request is stored once however often it is seen.

Authentication is required via GitHub token:
  - Use --token flag to provide token directly
  - Or set the environment variable named by github.token_env (GITHUB_TOKEN)
  - Or log in with the GitHub CLI (gh auth login)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if opts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.timeout)
				defer cancel()
			}

			return runFetch(ctx, args[0], *configFile, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.token, "token", "", "GitHub personal access token (overrides the token environment variable)")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "Records per page, at most 100 (default: from config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Repositories drained concurrently (default: from config)")
	cmd.Flags().StringVar(&opts.stateDir, "state-dir", "", "Directory for checkpoints and run metadata (default: from config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Overall time limit for the run, e.g. 30m (default: none)")
	cmd.Flags().StringVar(&opts.outputFile, "output", "", "Write all records as NDJSON to this file, - for stdout")
	cmd.Flags().BoolVar(&opts.metadata, "metadata", false, "Save run metadata to the state directory")

	return cmd
}

// runFetch executes the fetch command
func runFetch(ctx context.Context, org, configPath string, opts fetchOptions, stdout, stderr io.Writer) error {
	if org == "" {
		return &harvesterrors.ConfigError{Field: "organization", Reason: "cannot be empty"}
	}

	cfg, err := loadFetchConfig(configPath, opts)
	if err != nil {
		return err
	}

	token := resolveToken(opts.token, cfg.GitHub.TokenEnv, cfg.GitHub.GraphQLEndpoint)
	if token == "" {
		return &harvesterrors.ConfigError{
			Field:  "github.token",
			Reason: fmt.Sprintf("no GitHub token found; set %s, use --token or run gh auth login", cfg.GitHub.TokenEnv),
		}
	}

	builder, err := query.NewBuilder(org, cfg.PageSize(org))
	if err != nil {
		return err
	}

	logger := slog.Default().With("org", org)

	httpTransport := github.NewHTTPTransport(token, cfg.GitHub.GraphQLEndpoint,
		github.WithRequestTimeout(cfg.Defaults.RequestTimeout))
	transport := github.NewRetryTransport(httpTransport, &github.RetryConfig{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		MaxBackoff:        cfg.Retry.MaxBackoff,
		BackoffMultiplier: github.DefaultRetryConfig().BackoffMultiplier,
	}, logger)

	if cfg.RateLimit.Preflight {
		checker, err := github.NewRateLimitChecker(cfg.GitHub.APIEndpoint, httpTransport.HTTPClient())
		if err != nil {
			return &harvesterrors.ConfigError{Field: "github.api_endpoint", Reason: err.Error()}
		}
		if err := preflight(ctx, checker, cfg.RateLimit.AutoWait, logger); err != nil {
			return err
		}
	}

	// The repository total only feeds progress reporting
	info, err := github.NewInfoClient(cfg.GitHub.GraphQLEndpoint, httpTransport.HTTPClient()).GetOrganizationInfo(ctx, org)
	if err != nil {
		logger.Debug("Organization info unavailable", "error", err)
	} else {
		logger.Info("Starting harvest", "repositories", info.TotalRepositories, "page_size", builder.PageSize(), "workers", cfg.Defaults.Workers)
	}

	tracker := metadata.New()
	engine := traverse.New(builder, transport,
		traverse.WithWorkers(cfg.Defaults.Workers),
		traverse.WithLogger(logger),
		traverse.WithTracker(tracker),
		traverse.WithProgress(func(p traverse.Progress) {
			logger.Info("Repository complete",
				"repository", p.Repository,
				"done", p.RepositoriesDone,
				"total", p.TotalRepositories,
				"records", p.Records)
		}),
	)

	store, runErr := engine.Run(ctx)

	for _, r := range store.All() {
		tracker.UpdatePRStats(r.Number, r.CreatedAt, r.UpdatedAt)
	}

	checkpointPath := state.CheckpointPath(cfg.Defaults.StateDir, org)
	if runErr != nil {
		cp := state.NewCheckpoint(org, tracker.RunID(), store.Len(), runErr, time.Now())
		if err := state.SaveCheckpoint(cp, checkpointPath); err != nil {
			logger.Error("Failed to save checkpoint", "error", err)
		} else {
			logger.Info("Checkpoint saved", "path", checkpointPath, "records", store.Len())
		}
	} else if err := state.DeleteCheckpoint(checkpointPath); err != nil {
		logger.Warn("Failed to remove stale checkpoint", "error", err)
	}

	if opts.metadata {
		md := tracker.GenerateMetadata(version.Version, metadata.RunParams{
			Organization: org,
			PageSize:     builder.PageSize(),
			Workers:      cfg.Defaults.Workers,
			Endpoint:     cfg.GitHub.GraphQLEndpoint,
		}, runErr)
		path, err := metadata.SaveMetadata(md, cfg.Defaults.StateDir)
		if err != nil {
			logger.Error("Failed to save run metadata", "error", err)
		} else {
			logger.Info("Run metadata saved", "path", path)
		}
	}

	if runErr != nil {
		return runErr
	}

	summary := stdout
	if opts.outputFile != "" {
		if opts.outputFile == "-" {
			summary = stderr
		}
		if err := exportRecords(store, opts.outputFile, stdout); err != nil {
			return err
		}
	}

	fmt.Fprintf(summary, "Collected %d distinct pull requests from %s\n", store.Len(), org)
	return nil
}

// loadFetchConfig loads the configuration and applies command-line flags,
// which take precedence over every other source.
func loadFetchConfig(configPath string, opts fetchOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if opts.pageSize != 0 {
		cfg.Defaults.PageSize = opts.pageSize
		// An explicit flag also wins over organization overrides
		cfg.Organizations = nil
	}
	if opts.workers != 0 {
		cfg.Defaults.Workers = opts.workers
	}
	if opts.stateDir != "" {
		cfg.Defaults.StateDir = opts.stateDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveToken returns the GitHub token from the flag, the configured
// environment variable or the GitHub CLI, in that order.
func resolveToken(flagToken, tokenEnv, graphqlEndpoint string) string {
	if flagToken != "" {
		return flagToken
	}
	if tokenEnv != "" {
		if token := os.Getenv(tokenEnv); token != "" {
			return token
		}
	}
	token, _ := ghTokenForHost(tokenHost(graphqlEndpoint))
	return token
}

// tokenHost maps a GraphQL endpoint to the host the GitHub CLI stores
// credentials under.
func tokenHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || u.Hostname() == "api.github.com" {
		return "github.com"
	}
	return u.Hostname()
}

type budgetChecker interface {
	GraphQLBudget(ctx context.Context) (github.Budget, error)
}

// preflight fails fast when the GraphQL budget is already spent, or waits for
// the reset when autoWait is set. A failed check is logged and ignored.
func preflight(ctx context.Context, checker budgetChecker, autoWait bool, logger *slog.Logger) error {
	budget, err := checker.GraphQLBudget(ctx)
	if err != nil {
		logger.Warn("Rate limit preflight failed", "error", err)
		return nil
	}
	logger.Debug("GraphQL budget", "remaining", budget.Remaining, "limit", budget.Limit, "reset", budget.Reset)

	if !budget.Exhausted() {
		return nil
	}
	if !autoWait {
		return fmt.Errorf("graphql budget exhausted until %s: %w", budget.Reset.Format(time.RFC3339), harvesterrors.ErrRateLimit)
	}

	wait := time.Until(budget.Reset)
	if wait <= 0 {
		return nil
	}
	logger.Warn("GraphQL budget exhausted, waiting for reset", "wait", wait.Round(time.Second))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w while waiting for rate limit reset", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// exportRecords writes the store as NDJSON to path, or to stdout for "-".
func exportRecords(store *record.Store, path string, stdout io.Writer) error {
	var w *output.Writer
	if path == "-" {
		w = output.NewWriter(stdout)
	} else {
		fw, err := output.NewFileWriter(path)
		if err != nil {
			return err
		}
		w = fw
	}

	if _, err := w.WriteStore(store); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
