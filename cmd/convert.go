package main

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cellarworks/tasting-cli/internal/model"
)

var (
	convertHints []string
	convertAll   bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [capture-id...]",
	Short: "Convert captures into structured tasting notes",
	Long:  "Runs the AI conversion pipeline for the given captures, or for every pending capture with --all. Each conversion records a full attempt history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !convertAll && len(args) == 0 {
			return eris.New("provide capture IDs or --all")
		}

		hints, err := parseHints(convertHints)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		orch := newOrchestrator(st)

		ids := args
		if convertAll {
			pending, err := st.ListCaptures(ctx, true, 1000)
			if err != nil {
				return eris.Wrap(err, "list pending captures")
			}
			for _, c := range pending {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) == 0 {
			zap.L().Info("nothing to convert")
			return nil
		}

		zap.L().Info("starting conversion",
			zap.Int("captures", len(ids)),
			zap.String("provider", cfg.Provider.Name),
		)

		summaries, err := orch.ConvertAll(ctx, ids, hints)
		if err != nil {
			return eris.Wrap(err, "convert")
		}

		logConvertResults(summaries)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	},
}

func init() {
	convertCmd.Flags().StringArrayVar(&convertHints, "hint", nil, "verified fact as key=value, e.g. --hint producer=\"Ch. Margaux\" (repeatable)")
	convertCmd.Flags().BoolVar(&convertAll, "all", false, "convert every pending capture")
	rootCmd.AddCommand(convertCmd)
}

// parseHints parses repeated key=value flags into a hint map.
func parseHints(raw []string) (model.Hints, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	hints := make(model.Hints, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, eris.Errorf("malformed hint %q: want key=value", h)
		}
		hints[key] = strings.TrimSpace(value)
	}
	return hints, nil
}

func logConvertResults(summaries []model.RunSummary) {
	counts := map[model.RunOutcome]int{}
	var totalCost float64
	for _, s := range summaries {
		counts[s.Outcome]++
		totalCost += s.TotalCost
	}

	zap.L().Info("conversion complete",
		zap.Int("total", len(summaries)),
		zap.Int("succeeded", counts[model.OutcomeSucceeded]),
		zap.Int("exhausted", counts[model.OutcomeExhausted]),
		zap.Int("errors", counts[model.OutcomeProviderError]+counts[model.OutcomeCanceled]),
		zap.Float64("cost_usd", totalCost),
	)
}
