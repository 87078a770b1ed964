package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/cellarworks/tasting-cli/internal/model"
	"github.com/cellarworks/tasting-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect conversion run history",
	Long:  "Commands for listing, viewing, and summarizing conversion runs, including every provider attempt.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversion runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		outcome, _ := cmd.Flags().GetString("outcome")
		captureID, _ := cmd.Flags().GetString("capture")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			CaptureID: captureID,
			Outcome:   model.RunOutcome(outcome),
			Limit:     limit,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its full attempt history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(cmd.OutOrStdout(), computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("outcome", "", "filter by outcome (succeeded, exhausted, canceled, provider_unavailable, provider_error)")
	runsListCmd.Flags().String("capture", "", "filter by capture ID")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total       int
	Succeeded   int
	Exhausted   int
	Errors      int
	Unavailable int
	Attempts    int
	FirstTry    int
	TotalTokens int
	TotalCost   float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.ConversionRun) runStats {
	var s runStats
	s.Total = len(runs)

	for _, r := range runs {
		switch r.Outcome {
		case model.OutcomeSucceeded:
			s.Succeeded++
			if len(r.Attempts) == 1 {
				s.FirstTry++
			}
		case model.OutcomeExhausted:
			s.Exhausted++
		case model.OutcomeProviderUnavailable:
			s.Unavailable++
		default:
			s.Errors++
		}
		s.Attempts += len(r.Attempts)
		s.TotalTokens += r.TotalTokens
		s.TotalCost += r.TotalCost
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.ConversionRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCAPTURE\tOUTCOME\tATTEMPTS\tPROVIDER\tCOST\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t--------\t--------\t----\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t$%.4f\t%s\n",
			truncateID(r.ID),
			truncateID(r.CaptureID),
			r.Outcome,
			len(r.Attempts),
			r.Provider,
			r.TotalCost,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Succeeded:\t%d\n", s.Succeeded)
	_, _ = fmt.Fprintf(w, "  First attempt:\t%d\n", s.FirstTry)
	_, _ = fmt.Fprintf(w, "Exhausted:\t%d\n", s.Exhausted)
	_, _ = fmt.Fprintf(w, "Errors:\t%d\n", s.Errors)
	_, _ = fmt.Fprintf(w, "No provider:\t%d\n", s.Unavailable)
	_, _ = fmt.Fprintf(w, "Provider attempts:\t%d\n", s.Attempts)
	_, _ = fmt.Fprintf(w, "Total tokens:\t%d\n", s.TotalTokens)
	_, _ = fmt.Fprintf(w, "Total cost:\t$%.4f\n", s.TotalCost)
	_ = w.Flush()
}
