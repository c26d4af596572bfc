package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/service"
)

func newScoreCommand(load registryLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score <instrument-id> <answers...>",
		Short: "Score a response set offline",
		Long: `Score a response set without a session. Answers are either one score
per item in order ("score GAD-7 1 2 0 3") or ordinal=score pairs
("score PHQ-9 1=2 9=1"). Partial sets are scored for progress only.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := load()
			if err != nil {
				return fmt.Errorf("load instruments: %w", err)
			}
			inst, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			answers, err := parseAnswers(args[1:])
			if err != nil {
				return err
			}

			store := domain.NewResponseStore(inst, nil, nil)
			for _, ord := range answers.Ordinals() {
				if err := store.Set(ord, answers[ord]); err != nil {
					return err
				}
			}
			result := service.Score(inst, store.Answers())

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(cmd, inst, result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the scoring result as JSON")
	return cmd
}

// parseAnswers accepts either positional scores or ordinal=score pairs, not
// a mix of both.
func parseAnswers(args []string) (domain.Responses, error) {
	answers := domain.Responses{}
	pairs := strings.Contains(args[0], "=")
	for i, arg := range args {
		if strings.Contains(arg, "=") != pairs {
			return nil, fmt.Errorf("mix of positional and ordinal=score answers at %q", arg)
		}
		ordinal := i + 1
		value := arg
		if pairs {
			k, v, _ := strings.Cut(arg, "=")
			n, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil {
				return nil, fmt.Errorf("invalid ordinal in %q", arg)
			}
			ordinal, value = n, v
		}
		score, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid score in %q", arg)
		}
		answers[ordinal] = score
	}
	return answers, nil
}

func severityColor(key string) *color.Color {
	switch key {
	case "minimal", "high":
		return color.New(color.FgGreen, color.Bold)
	case "mild", "moderate":
		return color.New(color.FgYellow, color.Bold)
	case "moderately_severe", "severe", "low":
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.Bold)
	}
}

func printResult(cmd *cobra.Command, inst *domain.Instrument, result *domain.ScoringResult) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s  total %d / %d  ", inst.ID, result.Total, result.MaxTotal)
	severityColor(result.SeverityKey).Fprintln(out, result.Severity)

	if !result.Complete {
		color.New(color.FgYellow).Fprintf(out, "incomplete: %d%% answered, missing %v\n", result.ProgressPercent(), result.MissingItems)
	} else if result.Interpretation != "" {
		fmt.Fprintln(out, result.Interpretation)
	}

	if len(result.DomainScores) > 0 {
		names := make([]string, 0, len(result.DomainScores))
		for name := range result.DomainScores {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %-24s %d / %d\n", name, result.DomainScores[name], result.DomainMax[name])
		}
	}

	red := color.New(color.FgRed)
	for _, r := range inst.Rules {
		if result.Flags[r.Flag] {
			red.Fprintf(out, "! %s: %s\n", r.Flag, r.Description)
		}
	}
}
