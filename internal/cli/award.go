package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/judge"
)

// AwardOptions holds flags for the award command.
type AwardOptions struct {
	*RootOptions
	Rules string
	Set   []string
}

// NewAwardCommand creates the award command.
func NewAwardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AwardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "award",
		Short: "Evaluate a YAML rule file",
		Long: `Evaluate the rules of a YAML rule file and print the points and the
explanation a judge would store. Variables used by the rules are set with
--set.

Example:
  factbase award --rules rules.yaml --set lines=120 --set has_tests=1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAward(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "path to YAML rule file (required)")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "set a variable (name=number, repeatable)")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func runAward(opts *AwardOptions, cmd *cobra.Command) error {
	rf, err := judge.LoadRules(opts.Rules)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}
	vars, err := parseVars(opts.Set)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid variable", err)
	}
	rules, err := rf.Build(vars)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build rules", err)
	}

	bill := judge.Award(rules...)
	return formatter(opts.RootOptions, cmd).Success(bill.Explanation, bill)
}

func parseVars(set []string) (map[string]float64, error) {
	vars := make(map[string]float64, len(set))
	for _, s := range set {
		name, raw, ok := strings.Cut(s, "=")
		if !ok || !fact.ValidName(name) {
			return nil, fmt.Errorf("expected name=number, got %q", s)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		vars[name] = v
	}
	return vars, nil
}
