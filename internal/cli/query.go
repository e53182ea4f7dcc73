package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/factbase/internal/config"
	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Params   []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query '<predicate>'",
		Short: "Print the facts matching a predicate",
		Long: `Print every fact matching a predicate, ordered by id.

Placeholders in the predicate are bound with --param. Values that look
like integers, floats or RFC 3339 timestamps keep that kind; anything else
is a string.

Example:
  factbase query --db factbase.db "(eq what 'issue-was-opened')"
  factbase query --db factbase.db "(gt issue \$n)" --param n=10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $"+config.EnvDB+")")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "bind a placeholder (name=value, repeatable)")

	return cmd
}

func runQuery(opts *QueryOptions, text string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	db := opts.Database
	if db == "" {
		db = os.Getenv(config.EnvDB)
	}
	if db == "" {
		return WrapExitError(ExitCommandError, "no database", fmt.Errorf("set --db or $%s", config.EnvDB))
	}
	if _, err := os.Stat(db); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	p, err := pred.Parse(text)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid predicate", err)
	}
	values, err := parseParams(opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid parameter", err)
	}
	if p, err = pred.Bind(p, values); err != nil {
		return WrapExitError(ExitCommandError, "invalid predicate", err)
	}
	if err := pred.Validate(p); err != nil {
		return WrapExitError(ExitCommandError, "invalid predicate", err)
	}

	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	facts, err := st.Query(cmd.Context(), p)
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	return out.Facts(facts)
}

// parseParams turns name=value flags into placeholder bindings.
func parseParams(params []string) (map[string]fact.Value, error) {
	values := make(map[string]fact.Value, len(params))
	for _, p := range params {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || !fact.ValidName(name) {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		values[name] = parseValue(raw)
	}
	return values, nil
}

// parseValue infers the kind of a command-line value.
func parseValue(s string) fact.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fact.I(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if v, err := fact.Of(f); err == nil {
			return v
		}
	}
	if t, err := fact.ParseTime(s); err == nil {
		return t
	}
	return fact.S(s)
}
