package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/factbase/internal/config"
	"github.com/roach88/factbase/internal/github"
	"github.com/roach88/factbase/internal/judge"
	"github.com/roach88/factbase/internal/judges"
	"github.com/roach88/factbase/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config  string
	Metrics string

	// JobGenerator allows overriding the job token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	JobGenerator judge.JobGenerator

	// Clock allows overriding the runtime clock (for testing).
	Clock judge.Clock
}

// RunSummary is the result of a run.
type RunSummary struct {
	Judges []string    `json:"judges"`
	Stats  store.Stats `json:"stats"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [judge...]",
		Short: "Run judges against the fact store",
		Long: `Run judges in order against the fact store named by the configuration.

Without a config file the defaults apply: factbase.db in the current
directory and every sample judge. Judges named on the command line replace
the configured list.

Example:
  factbase run --config factbase.cue
  factbase run --config factbase.cue award-for-issue --metrics metrics.prom`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJudges(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE configuration")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "write metrics to this file in text format")

	return cmd
}

func runJudges(opts *RunOptions, names []string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions)
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if len(names) > 0 {
		cfg.Judges = names
	}

	fns := make([]judges.Func, len(cfg.Judges))
	for i, name := range cfg.Judges {
		fn, err := judges.Lookup(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid judge list", err)
		}
		fns[i] = fn
	}

	env, client, err := buildEnv(cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Open database (create if not exists)
	logger.Info("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	registry := prometheus.NewRegistry()
	metrics := judge.NewMetrics(registry)

	jobs := opts.JobGenerator
	if jobs == nil {
		jobs = judge.UUIDv7Generator{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = judge.SystemClock{}
	}
	budget, err := lifetimeBudget(cfg, clock)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	epoch := clock.Now()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	for i, name := range cfg.Judges {
		quota := judge.AnyQuota{client}
		if cfg.MaxSteps > 0 {
			quota = append(quota, judge.NewStepQuota(cfg.MaxSteps))
		}
		rt := judge.New(st, name,
			judge.WithLogger(logger),
			judge.WithQuota(quota),
			judge.WithClock(clock),
			judge.WithBudget(budget),
			judge.WithMetrics(metrics),
			judge.WithJobGenerator(jobs),
			judge.WithEpoch(epoch),
		)
		logger.Info("judge starting", "judge", name, "job", rt.Job())
		if err := fns[i](ctx, rt, env); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("run interrupted", "judge", name)
				break
			}
			return WrapExitError(ExitFailure, fmt.Sprintf("judge %s failed", name), err)
		}
		logger.Info("judge finished", "judge", name)
	}

	if opts.Metrics != "" {
		if err := prometheus.WriteToTextfile(opts.Metrics, registry); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	stats, err := st.Stats(context.WithoutCancel(ctx))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read store stats", err)
	}
	text := fmt.Sprintf("Ran %d judge(s): %d facts, %d values.", len(cfg.Judges), stats.Facts, stats.Attrs)
	return formatter(opts.RootOptions, cmd).Success(text, RunSummary{Judges: cfg.Judges, Stats: stats})
}

// lifetimeBudget bounds every judge of a run by the configured lifetime.
func lifetimeBudget(cfg *config.Config, clock judge.Clock) (judge.Lifetime, error) {
	lifetime, err := cfg.LifetimeDuration()
	if err != nil {
		return judge.Lifetime{}, err
	}
	return judge.Lifetime{Lifetime: lifetime, Clock: clock}, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// buildEnv wires the GitHub client, partitions and rules from cfg.
func buildEnv(cfg *config.Config, logger *slog.Logger) (judges.Env, *github.Client, error) {
	ghOpts := []github.Option{
		github.WithToken(cfg.Token),
		github.WithRate(rate.Limit(cfg.GitHub.Rate), cfg.GitHub.Burst),
		github.WithMinRemaining(cfg.GitHub.MinRemaining),
		github.WithLogger(logger),
	}
	if cfg.GitHub.BaseURL != "" {
		ghOpts = append(ghOpts, github.WithBaseURL(cfg.GitHub.BaseURL))
	}
	client := github.New(ghOpts...)

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return judges.Env{}, nil, err
	}
	env := judges.Env{
		GitHub:  client,
		Repeat:  cfg.Repeat,
		Seed:    cfg.Seed,
		Timeout: timeout,
		Partitions: func(ctx context.Context) ([]int64, error) {
			if cfg.Repositories == "" {
				return nil, &judge.ConfigError{Component: "run", Message: "no repositories configured"}
			}
			repos, err := client.Resolve(ctx, cfg.Repositories)
			if err != nil {
				return nil, err
			}
			ids := make([]int64, len(repos))
			for i, r := range repos {
				ids[i] = r.ID
			}
			return ids, nil
		},
	}

	if cfg.Rules != "" {
		rf, err := judge.LoadRules(cfg.Rules)
		if err != nil {
			return judges.Env{}, nil, err
		}
		rules, err := rf.Build(nil)
		if err != nil {
			return judges.Env{}, nil, fmt.Errorf("rules %s: %w", cfg.Rules, err)
		}
		env.Rules = rules
	}
	return env, client, nil
}
